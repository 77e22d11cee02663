package tenancy

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/salwakit/storegate/pkg/token"
)

// Candidate sources, in priority order. Used as metric labels and in
// log attributes.
const (
	SourcePrincipal = "principal"
	SourceHeader    = "header"
	SourceToken     = "token"
	SourceHost      = "host"
)

// tenantHeaders lists the recognized tenant header names, most official
// first. Header lookup is case-insensitive.
var tenantHeaders = []string{"X-Tenant-ID", "X-Tenant", "tenant"}

// TokenVerifier verifies a signed token in a domain and returns its
// claims. Satisfied by *token.Signer.
type TokenVerifier interface {
	Verify(tokenStr string, d token.Domain) (*token.Claims, error)
}

// ResolverConfig holds resolver settings.
type ResolverConfig struct {
	// BaseDomain enables base-domain-relative subdomain extraction
	// (MULTITENANT_BASE_DOMAIN). Empty means first-label extraction.
	BaseDomain string

	// Verifier verifies bearer access tokens for the token-claim
	// candidate source. Nil disables that source.
	Verifier TokenVerifier
}

// Resolver maps ambiguous request signals to one tenant or to none.
type Resolver struct {
	dir Directory
	cfg ResolverConfig
}

// NewResolver creates a Resolver over the given directory.
func NewResolver(dir Directory, cfg ResolverConfig) *Resolver {
	return &Resolver{dir: dir, cfg: cfg}
}

// Candidate extracts at most one tenant identifier candidate from the
// request. The first non-empty source wins; sources are not combined.
// Returns the candidate and its source, or "" when no source yielded one.
func (r *Resolver) Candidate(req *http.Request) (string, string) {
	if v := candidateFromPrincipal(req.Context()); v != "" {
		return v, SourcePrincipal
	}
	if v := candidateFromHeader(req); v != "" {
		return v, SourceHeader
	}
	if v := r.candidateFromBearer(req); v != "" {
		return v, SourceToken
	}
	if v := SubdomainCandidate(requestHost(req), r.cfg.BaseDomain); v != "" {
		return v, SourceHost
	}
	return "", ""
}

// Resolve normalizes the candidate and resolves it to a tenant record:
// lookup by id, then by unique code, then by domain. The lookups are
// independent; an error in one path does not abort the others. When all
// miss, the result is ErrTenantNotFound, unless the request context
// itself expired, which surfaces as a resolution failure instead.
func (r *Resolver) Resolve(ctx context.Context, candidate string) (*Tenant, error) {
	normalized := strings.ToLower(strings.TrimSpace(candidate))
	if normalized == "" {
		return nil, ErrTenantNotFound
	}

	lookups := []func(context.Context, string) (*Tenant, error){
		r.dir.TenantByID,
		r.dir.TenantByCode,
		r.dir.TenantByDomain,
	}
	for _, lookup := range lookups {
		t, err := lookup(ctx, normalized)
		if err == nil && t != nil {
			return t, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("resolving tenant %q: %w", normalized, err)
	}
	return nil, ErrTenantNotFound
}

// ResolveRequest extracts and resolves in one step. When no candidate is
// present it returns (nil, "", nil); the caller decides whether the
// route may proceed without a tenant.
func (r *Resolver) ResolveRequest(req *http.Request) (*Tenant, string, error) {
	candidate, source := r.Candidate(req)
	if candidate == "" {
		return nil, "", nil
	}
	t, err := r.Resolve(req.Context(), candidate)
	if err != nil {
		return nil, source, err
	}
	return t, source, nil
}

// candidateFromPrincipal reads the tenant claim of an already verified
// principal. Highest trust: the claim was signed by this system and the
// guard already checked the signature.
func candidateFromPrincipal(ctx context.Context) string {
	principal := token.PrincipalFromContext(ctx)
	if principal == nil {
		return ""
	}
	return strings.TrimSpace(principal.TenantID)
}

// candidateFromHeader reads the dedicated tenant header, trusted at face
// value for manual and administrative calls.
func candidateFromHeader(req *http.Request) string {
	for _, name := range tenantHeaders {
		if v := strings.TrimSpace(req.Header.Get(name)); v != "" {
			return v
		}
	}
	return ""
}

// candidateFromBearer verifies the Authorization bearer token as an
// access token and reads its tenant claim. Any verification failure is
// treated as candidate absent, never as a hard error.
func (r *Resolver) candidateFromBearer(req *http.Request) string {
	if r.cfg.Verifier == nil {
		return ""
	}

	header := req.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	raw := strings.TrimPrefix(header, "Bearer ")
	if raw == "" {
		return ""
	}

	claims, err := r.cfg.Verifier.Verify(raw, token.Access)
	if err != nil {
		slog.Debug("tenant candidate token rejected", "error", err)
		return ""
	}
	return strings.TrimSpace(claims.TenantID)
}

// requestHost prefers X-Forwarded-Host over the direct Host, so that
// subdomain extraction works behind proxies.
func requestHost(req *http.Request) string {
	if v := req.Header.Get("X-Forwarded-Host"); v != "" {
		return v
	}
	return req.Host
}
