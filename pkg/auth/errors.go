package auth

import (
	"errors"
	"fmt"
)

// Sentinel errors. Callers branch with errors.Is; the HTTP adapter maps
// the base errors to status codes.
var (
	// ErrInvalidInput marks missing or malformed client input (400-class).
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized is the base of all credential failures (401-class).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConflict marks uniqueness violations such as a duplicate email
	// within a tenant (409-class).
	ErrConflict = errors.New("already exists")
)

// Credential failures share deliberately generic messages so that a
// caller cannot tell which part of the credentials was wrong.
var (
	// ErrInvalidCredentials is returned for both an unknown email and a
	// wrong password. The message is identical in both cases.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid email or password", ErrUnauthorized)

	// ErrRefreshRejected is returned for every refresh failure: bad
	// signature, expiry, cross-tenant reuse, or an already rotated or
	// revoked token.
	ErrRefreshRejected = fmt.Errorf("%w: refresh token is invalid or revoked", ErrUnauthorized)
)
