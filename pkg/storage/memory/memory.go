// Package memory provides in-memory implementations of the tenant
// directory, user store and refresh token store for tests and
// lightweight development deployments. All data is lost when the
// process restarts.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/salwakit/storegate/pkg/auth"
	"github.com/salwakit/storegate/pkg/storage"
	"github.com/salwakit/storegate/pkg/tenancy"
)

// Store is an in-memory backend for all three store contracts.
type Store struct {
	mu      sync.RWMutex
	tenants map[string]*tenancy.Tenant // by id
	users   map[string]*auth.User      // by id
	refresh map[string]refreshRecord   // by token
}

type refreshRecord struct {
	userID    string
	expiresAt time.Time
}

// Compile-time contract checks.
var (
	_ tenancy.Directory      = (*Store)(nil)
	_ auth.UserStore         = (*Store)(nil)
	_ auth.RefreshTokenStore = (*Store)(nil)
	_ auth.TenantStore       = (*Store)(nil)
)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		tenants: make(map[string]*tenancy.Tenant),
		users:   make(map[string]*auth.User),
		refresh: make(map[string]refreshRecord),
	}
}

// TenantByID looks a tenant up by id.
func (s *Store) TenantByID(_ context.Context, id string) (*tenancy.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if t, ok := s.tenants[id]; ok {
		return copyTenant(t), nil
	}
	return nil, storage.ErrNotFound
}

// TenantByCode looks a tenant up by unique code, case-insensitively.
func (s *Store) TenantByCode(_ context.Context, code string) (*tenancy.Tenant, error) {
	code = strings.ToLower(code)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.tenants {
		if t.Code != "" && strings.ToLower(t.Code) == code {
			return copyTenant(t), nil
		}
	}
	return nil, storage.ErrNotFound
}

// TenantByDomain looks a tenant up by unique domain, case-insensitively.
func (s *Store) TenantByDomain(_ context.Context, domain string) (*tenancy.Tenant, error) {
	domain = strings.ToLower(domain)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.tenants {
		if t.Domain != "" && strings.ToLower(t.Domain) == domain {
			return copyTenant(t), nil
		}
	}
	return nil, storage.ErrNotFound
}

// CreateWithOwner inserts a tenant and its first user under one lock,
// so the uniqueness checks and both inserts are atomic.
func (s *Store) CreateWithOwner(_ context.Context, t *tenancy.Tenant, owner *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tenants[t.ID]; ok {
		return storage.ErrConflict
	}
	for _, existing := range s.tenants {
		if t.Code != "" && strings.EqualFold(existing.Code, t.Code) {
			return storage.ErrConflict
		}
		if t.Domain != "" && existing.Domain != "" && strings.EqualFold(existing.Domain, t.Domain) {
			return storage.ErrConflict
		}
	}
	for _, u := range s.users {
		if strings.EqualFold(u.Email, owner.Email) {
			return storage.ErrConflict
		}
	}

	s.tenants[t.ID] = copyTenant(t)
	s.users[owner.ID] = copyUser(owner)
	return nil
}

// FindByEmail looks a user up by email within a tenant; an empty
// tenantID searches across all tenants.
func (s *Store) FindByEmail(_ context.Context, email, tenantID string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if !strings.EqualFold(u.Email, email) {
			continue
		}
		if tenantID == "" || u.TenantID == tenantID {
			return copyUser(u), nil
		}
	}
	return nil, storage.ErrNotFound
}

// FindByID looks a user up by id.
func (s *Store) FindByID(_ context.Context, id string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if u, ok := s.users[id]; ok {
		return copyUser(u), nil
	}
	return nil, storage.ErrNotFound
}

// Create inserts a user, enforcing per-tenant email uniqueness.
func (s *Store) Create(_ context.Context, u *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.ID]; ok {
		return storage.ErrConflict
	}
	for _, existing := range s.users {
		if existing.TenantID == u.TenantID && strings.EqualFold(existing.Email, u.Email) {
			return storage.ErrConflict
		}
	}

	s.users[u.ID] = copyUser(u)
	return nil
}

// Update replaces a user record.
func (s *Store) Update(_ context.Context, u *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.ID]; !ok {
		return storage.ErrNotFound
	}
	s.users[u.ID] = copyUser(u)
	return nil
}

// Save persists an issued refresh token.
func (s *Store) Save(_ context.Context, userID, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refresh[token] = refreshRecord{userID: userID, expiresAt: expiresAt}
	return nil
}

// Revoke deletes a refresh token and reports whether it was present.
func (s *Store) Revoke(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.refresh[token]; !ok {
		return false, nil
	}
	delete(s.refresh, token)
	return true, nil
}

// IsActive reports whether the token is persisted for the user and has
// not expired.
func (s *Store) IsActive(_ context.Context, userID, token string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.refresh[token]
	if !ok || rec.userID != userID {
		return false, nil
	}
	if time.Now().After(rec.expiresAt) {
		return false, nil
	}
	return true, nil
}

func copyTenant(t *tenancy.Tenant) *tenancy.Tenant {
	c := *t
	return &c
}

func copyUser(u *auth.User) *auth.User {
	c := *u
	return &c
}
