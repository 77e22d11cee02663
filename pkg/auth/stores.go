package auth

import (
	"context"
	"time"

	"github.com/salwakit/storegate/pkg/tenancy"
)

// UserStore is the external persistence contract for users. Lookup
// misses are reported as storage.ErrNotFound.
type UserStore interface {
	// FindByEmail looks a user up by email within a tenant. An empty
	// tenantID performs a global lookup, used only by the owner
	// bootstrap before the tenant exists.
	FindByEmail(ctx context.Context, email, tenantID string) (*User, error)

	FindByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, u *User) error
	Update(ctx context.Context, u *User) error
}

// RefreshTokenStore tracks issued refresh tokens per user so they can
// be individually revoked. Multiple concurrent tokens per user are
// permitted (multi-device).
type RefreshTokenStore interface {
	// Save persists a freshly issued refresh token.
	Save(ctx context.Context, userID, token string, expiresAt time.Time) error

	// Revoke deletes the token record and reports whether a record was
	// actually removed. The boolean is the atomicity primitive for
	// rotation: of N concurrent revokes of the same token, exactly one
	// observes true.
	Revoke(ctx context.Context, token string) (bool, error)

	// IsActive reports whether the token is currently persisted for the
	// user and not past its expiry.
	IsActive(ctx context.Context, userID, token string) (bool, error)
}

// TenantStore extends the read-only tenant directory with the single
// administrative write the auth core performs: creating a brand-new
// tenant together with its first OWNER user, atomically.
type TenantStore interface {
	tenancy.Directory

	CreateWithOwner(ctx context.Context, t *tenancy.Tenant, owner *User) error
}
