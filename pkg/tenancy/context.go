package tenancy

import "context"

// tenantKey is a private type for the tenant context key, preventing
// collisions with other packages.
type tenantKey struct{}

// requestContext is the request-scoped resolution result. It is created
// fresh per request and never shared across requests.
type requestContext struct {
	tenant   *Tenant
	tenantID string
}

// SetTenant attaches the resolved tenant to the request context.
// A nil tenant records that resolution ran and found no tenant (a
// tenant-optional route).
func SetTenant(ctx context.Context, t *Tenant) context.Context {
	rc := &requestContext{tenant: t}
	if t != nil {
		rc.tenantID = t.ID
	}
	return context.WithValue(ctx, tenantKey{}, rc)
}

// FromContext returns the resolved tenant, or nil when the request is
// tenant-less.
func FromContext(ctx context.Context) *Tenant {
	if rc, ok := ctx.Value(tenantKey{}).(*requestContext); ok {
		return rc.tenant
	}
	return nil
}

// IDFromContext returns the resolved tenant id, or empty string.
func IDFromContext(ctx context.Context) string {
	if rc, ok := ctx.Value(tenantKey{}).(*requestContext); ok {
		return rc.tenantID
	}
	return ""
}
