// Package postgres provides the PostgreSQL implementation of the tenant
// directory, user store and refresh token store. It uses pgx/v5 for
// connection pooling; refresh token rotation relies on a conditional
// DELETE so that concurrent rotations of the same token have exactly
// one winner.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/salwakit/storegate/pkg/auth"
	"github.com/salwakit/storegate/pkg/storage"
	"github.com/salwakit/storegate/pkg/tenancy"
)

// Store is a PostgreSQL-backed implementation of all three store
// contracts.
type Store struct {
	pool *pgxpool.Pool
}

// Compile-time contract checks.
var (
	_ tenancy.Directory      = (*Store)(nil)
	_ auth.UserStore         = (*Store)(nil)
	_ auth.RefreshTokenStore = (*Store)(nil)
	_ auth.TenantStore       = (*Store)(nil)
)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

const tenantColumns = "id, code, domain, name, created_at, updated_at"

// TenantByID retrieves a tenant by primary key.
func (s *Store) TenantByID(ctx context.Context, id string) (*tenancy.Tenant, error) {
	return s.scanTenant(s.pool.QueryRow(ctx,
		"SELECT "+tenantColumns+" FROM tenants WHERE id = $1", id))
}

// TenantByCode retrieves a tenant by unique code, case-insensitively.
func (s *Store) TenantByCode(ctx context.Context, code string) (*tenancy.Tenant, error) {
	return s.scanTenant(s.pool.QueryRow(ctx,
		"SELECT "+tenantColumns+" FROM tenants WHERE lower(code) = lower($1)", code))
}

// TenantByDomain retrieves a tenant by unique domain, case-insensitively.
func (s *Store) TenantByDomain(ctx context.Context, domain string) (*tenancy.Tenant, error) {
	return s.scanTenant(s.pool.QueryRow(ctx,
		"SELECT "+tenantColumns+" FROM tenants WHERE lower(domain) = lower($1)", domain))
}

func (s *Store) scanTenant(row pgx.Row) (*tenancy.Tenant, error) {
	var t tenancy.Tenant
	var code, domain *string

	err := row.Scan(&t.ID, &code, &domain, &t.Name, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying tenant: %w", err)
	}

	if code != nil {
		t.Code = *code
	}
	if domain != nil {
		t.Domain = *domain
	}
	return &t, nil
}

// CreateWithOwner inserts the tenant and its first user in one
// transaction. Unique violations on code, domain or email surface as
// storage.ErrConflict.
func (s *Store) CreateWithOwner(ctx context.Context, t *tenancy.Tenant, owner *auth.User) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO tenants (id, code, domain, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, t.ID, nullString(t.Code), nullString(t.Domain), t.Name, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting tenant: %w", err)
	}

	if err := insertUser(ctx, tx, owner); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing tenant with owner: %w", err)
	}
	return nil
}

const userColumns = "id, tenant_id, name, email, password_hash, role, created_at, updated_at"

// FindByEmail retrieves a user by email within a tenant; an empty
// tenantID performs a global lookup.
func (s *Store) FindByEmail(ctx context.Context, email, tenantID string) (*auth.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE lower(email) = lower($1)"
	args := []any{email}

	if tenantID != "" {
		query += " AND tenant_id = $2"
		args = append(args, tenantID)
	}
	// Deterministic row for the global lookup.
	query += " ORDER BY created_at LIMIT 1"

	return s.scanUser(s.pool.QueryRow(ctx, query, args...))
}

// FindByID retrieves a user by primary key.
func (s *Store) FindByID(ctx context.Context, id string) (*auth.User, error) {
	return s.scanUser(s.pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id))
}

// Create inserts a user. A duplicate email within the tenant surfaces
// as storage.ErrConflict.
func (s *Store) Create(ctx context.Context, u *auth.User) error {
	return insertUser(ctx, s.pool, u)
}

// Update replaces the mutable fields of a user record.
func (s *Store) Update(ctx context.Context, u *auth.User) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE users
		SET name = $2, email = $3, password_hash = $4, role = $5, updated_at = $6
		WHERE id = $1
	`, u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role), time.Now())
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("updating user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) scanUser(row pgx.Row) (*auth.User, error) {
	var u auth.User
	var role string

	err := row.Scan(&u.ID, &u.TenantID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	u.Role = auth.Role(role)
	return &u, nil
}

// execer covers both pool and transaction for insertUser.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertUser(ctx context.Context, db execer, u *auth.User) error {
	_, err := db.Exec(ctx, `
		INSERT INTO users (id, tenant_id, name, email, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, u.ID, u.TenantID, u.Name, u.Email, u.PasswordHash, string(u.Role), u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// Save persists an issued refresh token.
func (s *Store) Save(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO refresh_tokens (token, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
	`, token, userID, expiresAt, time.Now())
	if err != nil {
		return fmt.Errorf("inserting refresh token: %w", err)
	}
	return nil
}

// Revoke deletes a refresh token. The row count makes rotation atomic:
// concurrent revokes of the same token see true exactly once.
func (s *Store) Revoke(ctx context.Context, token string) (bool, error) {
	result, err := s.pool.Exec(ctx,
		"DELETE FROM refresh_tokens WHERE token = $1", token)
	if err != nil {
		return false, fmt.Errorf("deleting refresh token: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// IsActive reports whether the token is persisted for the user and not
// past its expiry.
func (s *Store) IsActive(ctx context.Context, userID, token string) (bool, error) {
	var active bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM refresh_tokens
			WHERE token = $1 AND user_id = $2 AND expires_at > now()
		)
	`, token, userID).Scan(&active)
	if err != nil {
		return false, fmt.Errorf("checking refresh token: %w", err)
	}
	return active, nil
}

// DeleteExpired removes refresh tokens past their expiry and returns
// the number of rows removed. Intended for a periodic janitor.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := s.pool.Exec(ctx,
		"DELETE FROM refresh_tokens WHERE expires_at <= now()")
	if err != nil {
		return 0, fmt.Errorf("deleting expired refresh tokens: %w", err)
	}
	return result.RowsAffected(), nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// nullString converts an empty string to nil for nullable TEXT columns,
// so the partial unique indexes on code and domain ignore absent values.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// isUniqueViolation checks for a PostgreSQL unique violation (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
