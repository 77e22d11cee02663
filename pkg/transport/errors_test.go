package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/salwakit/storegate/pkg/auth"
	"github.com/salwakit/storegate/pkg/storage"
	"github.com/salwakit/storegate/pkg/tenancy"
)

func TestStatusFromError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"invalid input", fmt.Errorf("%w: email required", auth.ErrInvalidInput), http.StatusBadRequest, "invalid_request"},
		{"tenant required", tenancy.ErrTenantRequired, http.StatusBadRequest, "tenant_required"},
		{"bad credentials", auth.ErrInvalidCredentials, http.StatusUnauthorized, "unauthorized"},
		{"refresh rejected", auth.ErrRefreshRejected, http.StatusUnauthorized, "unauthorized"},
		{"tenant not found", tenancy.ErrTenantNotFound, http.StatusNotFound, "tenant_not_found"},
		{"record not found", storage.ErrNotFound, http.StatusNotFound, "not_found"},
		{"conflict", fmt.Errorf("%w: email taken", auth.ErrConflict), http.StatusConflict, "conflict"},
		{"storage conflict", storage.ErrConflict, http.StatusConflict, "conflict"},
		{"rate limited", auth.ErrTooManyRequests, http.StatusTooManyRequests, "rate_limited"},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, "server_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, errType := StatusFromError(tt.err)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if errType != tt.wantType {
				t.Errorf("type = %q, want %q", errType, tt.wantType)
			}
		})
	}
}

func TestWriteDomainErrorHidesInternals(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteDomainError(rec, errors.New("pq: connection refused to 10.0.0.7"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	var body ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Error.Message != "internal server error" {
		t.Errorf("internal details leaked: %q", body.Error.Message)
	}
}

func TestWriteDomainErrorClientMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteDomainError(rec, auth.ErrInvalidCredentials)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var body ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Error.Type != "unauthorized" {
		t.Errorf("type = %q, want unauthorized", body.Error.Type)
	}
	if body.Error.Message != auth.ErrInvalidCredentials.Error() {
		t.Errorf("message = %q", body.Error.Message)
	}
}
