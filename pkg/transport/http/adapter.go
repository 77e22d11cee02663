package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/salwakit/storegate/pkg/auth"
	"github.com/salwakit/storegate/pkg/observability"
	"github.com/salwakit/storegate/pkg/tenancy"
	"github.com/salwakit/storegate/pkg/token"
	"github.com/salwakit/storegate/pkg/transport"
)

// Adapter serves the auth and tenant API over HTTP. It decodes request
// bodies, pulls the resolved tenant and principal out of the request
// context, and dispatches to the auth engine.
type Adapter struct {
	engine  *auth.Engine
	limiter auth.RateLimiter
	mux     *http.ServeMux
	config  Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize int64
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize: 1 << 20, // 1 MB
	}
}

// NewAdapter creates an HTTP adapter around the auth engine. The rate
// limiter is optional; when nil, the credential endpoints are not
// throttled.
func NewAdapter(engine *auth.Engine, limiter auth.RateLimiter, cfg Config) *Adapter {
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultConfig().MaxBodySize
	}

	a := &Adapter{
		engine:  engine,
		limiter: limiter,
		mux:     http.NewServeMux(),
		config:  cfg,
	}

	a.mux.HandleFunc("POST /v1/auth/register", a.handleRegister)
	a.mux.HandleFunc("POST /v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("POST /v1/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("POST /v1/auth/logout", a.handleLogout)
	a.mux.Handle("GET /v1/auth/me", auth.RequirePrincipal(http.HandlerFunc(a.handleMe)))
	a.mux.HandleFunc("POST /v1/tenants/bootstrap", a.handleBootstrap)

	return a
}

// Handler returns the http.Handler for this adapter. Middleware such as
// tenant resolution and principal extraction wraps this from the
// outside.
func (a *Adapter) Handler() http.Handler {
	return a.mux
}

// handleRegister handles POST /v1/auth/register.
func (a *Adapter) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !a.allow(w, r, "register") {
		return
	}

	var in auth.RegisterInput
	if !a.decode(w, r, &in) {
		return
	}

	session, err := a.engine.Register(r.Context(), tenancy.FromContext(r.Context()), in)
	if err != nil {
		transport.WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

// handleLogin handles POST /v1/auth/login.
func (a *Adapter) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.allow(w, r, "login") {
		return
	}

	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !a.decode(w, r, &in) {
		return
	}

	session, err := a.engine.Login(r.Context(), tenancy.FromContext(r.Context()), in.Email, in.Password)
	if err != nil {
		transport.WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// handleRefresh handles POST /v1/auth/refresh.
func (a *Adapter) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !a.decode(w, r, &in) {
		return
	}

	session, err := a.engine.Refresh(r.Context(), tenancy.FromContext(r.Context()), in.RefreshToken)
	if err != nil {
		transport.WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// handleLogout handles POST /v1/auth/logout. Revocation is idempotent,
// so logging out twice with the same token still returns 204.
func (a *Adapter) handleLogout(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !a.decode(w, r, &in) {
		return
	}

	if err := a.engine.Logout(r.Context(), in.RefreshToken); err != nil {
		transport.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMe handles GET /v1/auth/me. RequirePrincipal guarantees an
// authenticated principal is present.
func (a *Adapter) handleMe(w http.ResponseWriter, r *http.Request) {
	principal := token.PrincipalFromContext(r.Context())

	user, err := a.engine.UserByID(r.Context(), principal.Subject)
	if err != nil {
		transport.WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// handleBootstrap handles POST /v1/tenants/bootstrap.
func (a *Adapter) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	if !a.allow(w, r, "bootstrap") {
		return
	}

	var in auth.BootstrapInput
	if !a.decode(w, r, &in) {
		return
	}

	result, err := a.engine.CreateTenantWithOwner(r.Context(), in)
	if err != nil {
		transport.WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// allow applies the per-host rate limit for credential endpoints.
// Returns false after writing a 429 when the caller is over the limit.
func (a *Adapter) allow(w http.ResponseWriter, r *http.Request, scope string) bool {
	if a.limiter == nil {
		return true
	}
	if err := a.limiter.Allow(r.Context(), remoteHost(r)); err != nil {
		observability.RateLimitRejectedTotal.WithLabelValues(scope).Inc()
		transport.WriteDomainError(w, err)
		return false
	}
	return true
}

// decode reads and parses the JSON request body into dst. Returns false
// after writing an error response when the body is oversized or not
// valid JSON.
func (a *Adapter) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" && ct != "application/json" {
		transport.WriteError(w, http.StatusUnsupportedMediaType,
			"invalid_request", "Content-Type must be application/json")
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteError(w, http.StatusRequestEntityTooLarge,
				"invalid_request", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize))
			return false
		}
		transport.WriteError(w, http.StatusBadRequest,
			"invalid_request", "invalid JSON: "+err.Error())
		return false
	}
	return true
}

// remoteHost extracts the client host from RemoteAddr for rate-limit
// keying.
func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
