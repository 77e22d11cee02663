package tenancy

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/salwakit/storegate/pkg/observability"
	"github.com/salwakit/storegate/pkg/token"
)

// Middleware creates the per-request tenant resolution middleware.
//
// Every request passes through it before any handler runs. Requests on
// a tenant-optional path (initial registration, platform-admin tenant
// listing) proceed with a nil tenant when no candidate is present; all
// other requests fail closed. If the request carries an authenticated
// principal without a tenant id, the resolved id is injected into it so
// downstream authorization has a single source of truth.
func Middleware(resolver *Resolver, optionalPaths []string) func(http.Handler) http.Handler {
	optional := make(map[string]bool, len(optionalPaths))
	for _, p := range optionalPaths {
		optional[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			candidate, source := resolver.Candidate(r)

			if candidate == "" {
				if optional[r.URL.Path] {
					observability.TenantResolutionsTotal.WithLabelValues("none", "optional").Inc()
					next.ServeHTTP(w, r.WithContext(SetTenant(r.Context(), nil)))
					return
				}
				slog.Warn("tenant context not found",
					"path", r.URL.Path,
					"host", r.Host,
				)
				observability.TenantResolutionsTotal.WithLabelValues("none", "required").Inc()
				http.Error(w, `{"error":{"type":"tenant_required","message":"tenant context not found"}}`, http.StatusBadRequest)
				return
			}

			tenant, err := resolver.Resolve(r.Context(), candidate)
			if err != nil {
				slog.Warn("tenant resolution failed",
					"candidate", candidate,
					"source", source,
					"error", err,
				)
				observability.TenantResolutionsTotal.WithLabelValues(source, "miss").Inc()
				if errors.Is(err, ErrTenantNotFound) {
					http.Error(w, `{"error":{"type":"tenant_not_found","message":"tenant not found"}}`, http.StatusNotFound)
					return
				}
				http.Error(w, `{"error":{"type":"server_error","message":"tenant resolution failed"}}`, http.StatusInternalServerError)
				return
			}

			ctx := SetTenant(r.Context(), tenant)

			// Single source of truth for downstream authorization.
			if principal := token.PrincipalFromContext(ctx); principal != nil && principal.TenantID == "" {
				principal.TenantID = tenant.ID
			}

			slog.Debug("tenant resolved",
				"tenant_id", tenant.ID,
				"code", tenant.ResolvedCode(),
				"source", source,
			)
			observability.TenantResolutionsTotal.WithLabelValues(source, "hit").Inc()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
