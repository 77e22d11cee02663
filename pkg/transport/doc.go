// Package transport provides the HTTP middleware chain and the error
// envelope shared by all storegate handlers.
//
// The middleware chain wraps http.Handler with cross-cutting concerns:
// panic recovery, request ID assignment (X-Request-ID), and structured
// logging via log/slog. Tenant resolution and principal extraction live
// in their own packages (pkg/tenancy, pkg/auth) and compose with the
// same http.Handler shape.
//
// Errors returned by the auth engine and the tenant resolver are mapped
// to HTTP status codes and serialized in a single envelope:
//
//	{"error": {"type": "unauthorized", "message": "..."}}
package transport
