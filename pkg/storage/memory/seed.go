package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/salwakit/storegate/pkg/auth"
	"github.com/salwakit/storegate/pkg/password"
	"github.com/salwakit/storegate/pkg/tenancy"
)

// Seed populates the store with the development fixture: tenant "salwa"
// with an OWNER and a CUSTOMER user, both with password "password123".
// Used by cmd/server in dev mode and by tests.
func Seed(ctx context.Context, s *Store, hasher password.Hasher) (*tenancy.Tenant, error) {
	hash, err := hasher.Hash("password123")
	if err != nil {
		return nil, fmt.Errorf("hashing seed password: %w", err)
	}

	now := time.Now()
	tenant := &tenancy.Tenant{
		ID:        uuid.NewString(),
		Code:      "salwa",
		Name:      "Toko Salwa",
		CreatedAt: now,
		UpdatedAt: now,
	}
	owner := &auth.User{
		ID:           uuid.NewString(),
		TenantID:     tenant.ID,
		Name:         "Hamzah Robbany",
		Email:        "owner@salwa.com",
		PasswordHash: hash,
		Role:         auth.RoleOwner,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.CreateWithOwner(ctx, tenant, owner); err != nil {
		return nil, fmt.Errorf("seeding tenant: %w", err)
	}

	customer := &auth.User{
		ID:           uuid.NewString(),
		TenantID:     tenant.ID,
		Name:         "John Customer",
		Email:        "customer@salwa.com",
		PasswordHash: hash,
		Role:         auth.RoleCustomer,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Create(ctx, customer); err != nil {
		return nil, fmt.Errorf("seeding customer: %w", err)
	}

	return tenant, nil
}
