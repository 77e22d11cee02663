package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/salwakit/storegate/pkg/token"
)

// Verifier verifies a signed token in a domain. Satisfied by
// *token.Signer.
type Verifier interface {
	Verify(tokenStr string, d token.Domain) (*token.Claims, error)
}

// Principal creates middleware that verifies a bearer access token when
// one is present and injects the claims into the request context as the
// authenticated principal. Requests without a bearer token, or with one
// that fails verification, continue unauthenticated; route-level
// enforcement belongs to RequirePrincipal.
func Principal(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				next.ServeHTTP(w, r)
				return
			}
			raw := strings.TrimPrefix(header, "Bearer ")
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verifier.Verify(raw, token.Access)
			if err != nil {
				slog.Debug("bearer token rejected", "path", r.URL.Path, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			ctx := token.SetPrincipal(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePrincipal rejects requests that carry no authenticated
// principal with 401.
func RequirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token.PrincipalFromContext(r.Context()) == nil {
			slog.Warn("authentication required",
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)
			http.Error(w, `{"error":{"type":"unauthorized","message":"authentication required"}}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
