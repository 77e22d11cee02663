// Package auth implements credential issuance, validation and rotation
// for tenant-scoped users.
//
// The Engine orchestrates register, login, refresh and logout on top of
// a password hasher, the two-domain token signer, a persisted refresh
// token store and the resolved tenant context. Refresh tokens are
// single-use: a successful refresh atomically revokes the presented
// token and issues a replacement, so a concurrent double-submit results
// in at most one winner.
//
// The bearer guard is implemented as HTTP middleware, keeping it
// decoupled from engine logic. It verifies access tokens and injects
// the principal into the request context for the tenant resolver and
// downstream handlers.
package auth
