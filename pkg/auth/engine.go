package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/salwakit/storegate/pkg/observability"
	"github.com/salwakit/storegate/pkg/password"
	"github.com/salwakit/storegate/pkg/storage"
	"github.com/salwakit/storegate/pkg/tenancy"
	"github.com/salwakit/storegate/pkg/token"
)

// Engine orchestrates register, login, refresh and logout against the
// external stores. All mutations are scoped by tenant id and user id;
// the engine holds no mutable state of its own and is safe for
// concurrent use across requests.
type Engine struct {
	users   UserStore
	refresh RefreshTokenStore
	tenants TenantStore
	signer  *token.Signer
	hasher  password.Hasher
}

// NewEngine wires the engine's collaborators.
func NewEngine(users UserStore, refresh RefreshTokenStore, tenants TenantStore, signer *token.Signer, hasher password.Hasher) *Engine {
	return &Engine{
		users:   users,
		refresh: refresh,
		tenants: tenants,
		signer:  signer,
		hasher:  hasher,
	}
}

// RegisterInput carries the registration payload. TenantCode lets a
// request without a tenant context name its tenant by code.
type RegisterInput struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Role       Role   `json:"role,omitempty"`
	TenantCode string `json:"tenantCode,omitempty"`
}

// TenantSummary is the tenant slice of an auth response.
type TenantSummary struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Session is the result of a successful register, login or refresh:
// the active tenant, the user with the password hash stripped, and a
// fresh token pair.
type Session struct {
	Tenant *TenantSummary `json:"tenant"`
	User   *User          `json:"user"`
	Tokens *token.Pair    `json:"tokens"`
}

// Register creates a user in the active tenant and issues a token pair.
// Fails ErrInvalidInput without a tenant, ErrConflict when the email is
// already taken within the tenant.
func (e *Engine) Register(ctx context.Context, tenant *tenancy.Tenant, in RegisterInput) (*Session, error) {
	tenant, err := e.ensureTenant(ctx, tenant, in.TenantCode)
	if err != nil {
		return nil, err
	}

	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}

	role := in.Role
	if role == "" {
		role = RoleCustomer
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, in.Role)
	}

	_, err = e.users.FindByEmail(ctx, email, tenant.ID)
	switch {
	case err == nil:
		observability.AuthOperationsTotal.WithLabelValues("register", "conflict").Inc()
		return nil, fmt.Errorf("%w: email already registered in this tenant", ErrConflict)
	case !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("checking email: %w", err)
	}

	hash, err := e.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now()
	user := &User{
		ID:           uuid.NewString(),
		TenantID:     tenant.ID,
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.users.Create(ctx, user); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, fmt.Errorf("%w: email already registered in this tenant", ErrConflict)
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	slog.Info("user registered",
		"user_id", user.ID,
		"tenant_id", tenant.ID,
		"role", user.Role,
	)
	observability.AuthOperationsTotal.WithLabelValues("register", "ok").Inc()

	return e.issueSession(ctx, user, tenant)
}

// Login verifies credentials within the active tenant and issues a
// token pair. An unknown email and a wrong password fail with the same
// error to avoid user enumeration.
func (e *Engine) Login(ctx context.Context, tenant *tenancy.Tenant, email, pass string) (*Session, error) {
	if tenant == nil {
		return nil, fmt.Errorf("%w: tenant context not found", ErrInvalidInput)
	}

	user, err := e.lookupByCredentials(ctx, tenant, email, pass)
	if err != nil {
		observability.AuthOperationsTotal.WithLabelValues("login", "denied").Inc()
		return nil, err
	}

	observability.AuthOperationsTotal.WithLabelValues("login", "ok").Inc()
	return e.issueSession(ctx, user, tenant)
}

// Refresh rotates a refresh token: the presented token is verified,
// matched against the active tenant and the persisted records, revoked,
// and replaced by a fresh pair. A used token never rotates twice; under
// a concurrent double-submit at most one caller wins.
func (e *Engine) Refresh(ctx context.Context, tenant *tenancy.Tenant, refreshToken string) (*Session, error) {
	if tenant == nil {
		return nil, fmt.Errorf("%w: tenant context not found", ErrInvalidInput)
	}
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: refresh token is required", ErrInvalidInput)
	}

	claims, err := e.signer.Verify(refreshToken, token.Refresh)
	if err != nil {
		return nil, ErrRefreshRejected
	}

	// Cross-tenant reuse is a hard failure, never silently corrected.
	if claims.TenantID != tenant.ID {
		slog.Warn("refresh token tenant mismatch",
			"token_tenant", claims.TenantID,
			"active_tenant", tenant.ID,
		)
		return nil, ErrRefreshRejected
	}

	active, err := e.refresh.IsActive(ctx, claims.Subject, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("checking refresh token: %w", err)
	}
	if !active {
		observability.TokenRotationsTotal.WithLabelValues("replayed").Inc()
		return nil, ErrRefreshRejected
	}

	user, err := e.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRefreshRejected
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}
	if user.TenantID != tenant.ID {
		return nil, ErrRefreshRejected
	}

	// Conditional delete: of N concurrent submits of the same token,
	// exactly one observes revoked == true.
	revoked, err := e.refresh.Revoke(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("revoking refresh token: %w", err)
	}
	if !revoked {
		observability.TokenRotationsTotal.WithLabelValues("replayed").Inc()
		return nil, ErrRefreshRejected
	}

	observability.TokenRotationsTotal.WithLabelValues("rotated").Inc()
	observability.AuthOperationsTotal.WithLabelValues("refresh", "ok").Inc()

	return e.issueSession(ctx, user, tenant)
}

// Logout revokes the refresh token. Revoking an already absent token is
// not an error: logout is idempotent.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return fmt.Errorf("%w: refresh token is required", ErrInvalidInput)
	}

	if _, err := e.refresh.Revoke(ctx, refreshToken); err != nil {
		return fmt.Errorf("revoking refresh token: %w", err)
	}

	observability.AuthOperationsTotal.WithLabelValues("logout", "ok").Inc()
	return nil
}

// ValidateUser checks credentials without issuing tokens, for non-token
// login flows. Returns the user sans password hash on match and nil on
// any mismatch; a bad password is not an error.
func (e *Engine) ValidateUser(ctx context.Context, tenant *tenancy.Tenant, email, pass string) (*User, error) {
	if tenant == nil {
		return nil, fmt.Errorf("%w: tenant context not found", ErrInvalidInput)
	}

	user, err := e.lookupByCredentials(ctx, tenant, email, pass)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return nil, nil
		}
		return nil, err
	}
	return user.Redacted(), nil
}

// UserByID loads a user for an authenticated principal. The password
// hash is stripped. A missing user maps to ErrUnauthorized because the
// caller only ever reaches this with a verified token whose subject no
// longer exists.
func (e *Engine) UserByID(ctx context.Context, id string) (*User, error) {
	user, err := e.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown user", ErrUnauthorized)
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}
	return user.Redacted(), nil
}

// BootstrapInput carries the atomic tenant-plus-owner creation payload.
type BootstrapInput struct {
	TenantName    string `json:"tenantName"`
	Code          string `json:"code"`
	Domain        string `json:"domain,omitempty"`
	OwnerName     string `json:"ownerName"`
	OwnerEmail    string `json:"ownerEmail"`
	OwnerPassword string `json:"ownerPassword"`
}

// Bootstrap is the result of CreateTenantWithOwner.
type Bootstrap struct {
	Tenant *tenancy.Tenant `json:"tenant"`
	Owner  *User           `json:"owner"`
}

// CreateTenantWithOwner creates a brand-new tenant together with its
// first OWNER user as a single atomic operation. The owner email is
// checked globally, since the tenant does not yet exist to scope it.
func (e *Engine) CreateTenantWithOwner(ctx context.Context, in BootstrapInput) (*Bootstrap, error) {
	code := strings.ToLower(strings.TrimSpace(in.Code))
	email := normalizeEmail(in.OwnerEmail)
	if code == "" || email == "" || in.OwnerPassword == "" {
		return nil, fmt.Errorf("%w: tenant code, owner email and password are required", ErrInvalidInput)
	}

	if _, err := e.tenants.TenantByCode(ctx, code); err == nil {
		return nil, fmt.Errorf("%w: tenant code %q is taken", ErrConflict, code)
	}

	domain := strings.ToLower(strings.TrimSpace(in.Domain))
	if domain != "" {
		if _, err := e.tenants.TenantByDomain(ctx, domain); err == nil {
			return nil, fmt.Errorf("%w: domain %q is taken", ErrConflict, domain)
		}
	}

	_, err := e.users.FindByEmail(ctx, email, "")
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: email already in use", ErrConflict)
	case !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("checking owner email: %w", err)
	}

	hash, err := e.hasher.Hash(in.OwnerPassword)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now()
	tenant := &tenancy.Tenant{
		ID:        uuid.NewString(),
		Code:      code,
		Domain:    domain,
		Name:      strings.TrimSpace(in.TenantName),
		CreatedAt: now,
		UpdatedAt: now,
	}
	owner := &User{
		ID:           uuid.NewString(),
		TenantID:     tenant.ID,
		Name:         strings.TrimSpace(in.OwnerName),
		Email:        email,
		PasswordHash: hash,
		Role:         RoleOwner,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := e.tenants.CreateWithOwner(ctx, tenant, owner); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, fmt.Errorf("%w: tenant code or domain is taken", ErrConflict)
		}
		return nil, fmt.Errorf("creating tenant with owner: %w", err)
	}

	slog.Info("tenant bootstrapped",
		"tenant_id", tenant.ID,
		"code", tenant.Code,
		"owner_id", owner.ID,
	)

	return &Bootstrap{Tenant: tenant, Owner: owner.Redacted()}, nil
}

// lookupByCredentials finds the user by email within the tenant and
// verifies the password. Both failure modes return the identical
// ErrInvalidCredentials value.
func (e *Engine) lookupByCredentials(ctx context.Context, tenant *tenancy.Tenant, email, pass string) (*User, error) {
	user, err := e.users.FindByEmail(ctx, normalizeEmail(email), tenant.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	ok, err := e.hasher.Check(pass, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("checking password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// issueSession signs a fresh pair bound to (user, tenant), persists the
// refresh token, and assembles the response with the password stripped.
func (e *Engine) issueSession(ctx context.Context, user *User, tenant *tenancy.Tenant) (*Session, error) {
	claims := token.Claims{
		Email:    user.Email,
		Role:     string(user.Role),
		TenantID: tenant.ID,
	}
	claims.Subject = user.ID

	pair, err := e.signer.Pair(claims)
	if err != nil {
		return nil, fmt.Errorf("issuing tokens: %w", err)
	}

	expiresAt := time.Now().Add(e.signer.RefreshTTL())
	if err := e.refresh.Save(ctx, user.ID, pair.RefreshToken, expiresAt); err != nil {
		return nil, fmt.Errorf("persisting refresh token: %w", err)
	}

	return &Session{
		Tenant: &TenantSummary{
			ID:   tenant.ID,
			Code: tenant.ResolvedCode(),
			Name: tenant.Name,
		},
		User:   user.Redacted(),
		Tokens: pair,
	}, nil
}

// ensureTenant applies the tenant-code-bootstrap fallback: a request
// without a tenant context may name its tenant by code in the payload.
func (e *Engine) ensureTenant(ctx context.Context, tenant *tenancy.Tenant, code string) (*tenancy.Tenant, error) {
	if tenant != nil {
		return tenant, nil
	}
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return nil, fmt.Errorf("%w: tenant context not found", ErrInvalidInput)
	}
	t, err := e.tenants.TenantByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: tenant context not found", ErrInvalidInput)
	}
	return t, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
