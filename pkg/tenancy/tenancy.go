// Package tenancy binds each request to at most one tenant before any
// business logic runs.
//
// A tenant identifier candidate is extracted from the request by strict
// priority: the authenticated principal's claim, then the X-Tenant-ID
// header, then the tenant claim of a signed access token, then the host
// subdomain. The first non-empty source wins; sources are never combined.
// The candidate is then resolved against a Directory by id, code and
// domain, in that order.
//
// Extraction failures (malformed headers, unverifiable tokens) are
// swallowed and treated as "candidate absent". Only a present candidate
// with no matching tenant surfaces as ErrTenantNotFound.
package tenancy

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for tenant resolution.
var (
	// ErrTenantRequired means no candidate could be extracted and the
	// route is not on the tenant-optional allow-list.
	ErrTenantRequired = errors.New("tenant context not found")

	// ErrTenantNotFound means an identifier was present but matched no
	// tenant record.
	ErrTenantNotFound = errors.New("tenant not found")
)

// Tenant is the unit of isolation. Code and Domain, when present, are
// globally unique across tenants (case-insensitive).
type Tenant struct {
	ID        string    `json:"id"`
	Code      string    `json:"code,omitempty"`
	Domain    string    `json:"domain,omitempty"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ResolvedCode returns the public identifier for the tenant: the code,
// falling back to the domain and finally the id when unset.
func (t *Tenant) ResolvedCode() string {
	if t.Code != "" {
		return t.Code
	}
	if t.Domain != "" {
		return t.Domain
	}
	return t.ID
}

// Directory looks tenants up in external persistence. Each lookup is
// independently callable; a miss is reported as an error the caller may
// treat as "try the next lookup".
type Directory interface {
	TenantByID(ctx context.Context, id string) (*Tenant, error)
	TenantByCode(ctx context.Context, code string) (*Tenant, error)
	TenantByDomain(ctx context.Context, domain string) (*Tenant, error)
}
