package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/salwakit/storegate/pkg/auth"
	"github.com/salwakit/storegate/pkg/storage"
	"github.com/salwakit/storegate/pkg/tenancy"
)

// APIError is the wire form of a handler error.
type APIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ErrorResponse is the envelope every error body uses.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// StatusFromError maps a domain error to its HTTP status code and
// error type. Unknown errors map to 500 so that internal failure
// details never pick up a client-facing classification by accident.
func StatusFromError(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, tenancy.ErrTenantRequired):
		return http.StatusBadRequest, "tenant_required"
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, tenancy.ErrTenantNotFound):
		return http.StatusNotFound, "tenant_not_found"
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, auth.ErrConflict), errors.Is(err, storage.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, auth.ErrTooManyRequests):
		return http.StatusTooManyRequests, "rate_limited"
	default:
		return http.StatusInternalServerError, "server_error"
	}
}

// WriteError writes a JSON error envelope with the given status code.
func WriteError(w http.ResponseWriter, status int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: &APIError{Type: errType, Message: message}})
}

// WriteDomainError maps a domain error to HTTP and writes it. Server
// errors get a generic message so internals stay out of responses.
func WriteDomainError(w http.ResponseWriter, err error) {
	status, errType := StatusFromError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	WriteError(w, status, errType, message)
}
