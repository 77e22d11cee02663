// Package storage provides sentinel errors shared across the store
// implementations (memory, postgres, redis).
//
// The store contracts themselves live with their consumers: the tenant
// directory in pkg/tenancy and the user and refresh token stores in
// pkg/auth. This package contains only what every adapter needs.
package storage
