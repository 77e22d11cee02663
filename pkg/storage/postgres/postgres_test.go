package postgres

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/salwakit/storegate/pkg/auth"
	"github.com/salwakit/storegate/pkg/storage"
	"github.com/salwakit/storegate/pkg/tenancy"
)

func init() {
	// Configure testcontainers to use podman.
	// Detect the podman socket from `podman machine inspect`.
	if os.Getenv("DOCKER_HOST") == "" {
		out, err := exec.Command("podman", "machine", "inspect", "--format", "{{.ConnectionInfo.PodmanSocket.Path}}").Output()
		if err == nil {
			sock := strings.TrimSpace(string(out))
			if sock != "" {
				os.Setenv("DOCKER_HOST", "unix://"+sock)
			}
		}
	}
	// Ryuk needs privileged mode with podman.
	if os.Getenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED") == "" {
		os.Setenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED", "true")
	}
}

// setupTestDB starts a PostgreSQL container and returns a connected Store.
// Tests are skipped if no container runtime is available.
func setupTestDB(t *testing.T) *Store {
	t.Helper()

	if os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("SKIP_INTEGRATION=true, skipping PostgreSQL integration tests")
	}

	if _, err := exec.LookPath("podman"); err != nil {
		t.Skip("podman not found, skipping integration tests")
	}

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("storegate_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("skipping: could not start PostgreSQL container (is podman running?): %v", err)
	}

	t.Cleanup(func() {
		container.Terminate(context.Background())
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("getting connection string: %v", err)
	}

	store, err := New(ctx, Config{
		DSN:            connStr,
		MaxConns:       5,
		MinConns:       1,
		MigrateOnStart: true,
	})
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func makeTenant(id, code string) *tenancy.Tenant {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &tenancy.Tenant{
		ID:        id,
		Code:      code,
		Domain:    code + ".example.com",
		Name:      "Shop " + code,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func makeUser(id, tenantID, email string) *auth.User {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &auth.User{
		ID:           id,
		TenantID:     tenantID,
		Name:         "User " + id,
		Email:        email,
		PasswordHash: "hash",
		Role:         auth.RoleOwner,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestTenantRoundTrip(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	tenant := makeTenant("t-1", "salwa")
	owner := makeUser("u-1", "t-1", "owner@salwa.com")
	if err := store.CreateWithOwner(ctx, tenant, owner); err != nil {
		t.Fatalf("CreateWithOwner: %v", err)
	}

	got, err := store.TenantByID(ctx, "t-1")
	if err != nil {
		t.Fatalf("TenantByID: %v", err)
	}
	if got.Code != "salwa" || got.Name != "Shop salwa" {
		t.Errorf("tenant = %+v", got)
	}

	// Code and domain lookups are case-insensitive.
	if _, err := store.TenantByCode(ctx, "SALWA"); err != nil {
		t.Errorf("TenantByCode: %v", err)
	}
	if _, err := store.TenantByDomain(ctx, "SALWA.Example.COM"); err != nil {
		t.Errorf("TenantByDomain: %v", err)
	}

	if _, err := store.TenantByID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("miss err = %v, want ErrNotFound", err)
	}
}

func TestCreateWithOwnerAtomicity(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	if err := store.CreateWithOwner(ctx, makeTenant("t-1", "salwa"), makeUser("u-1", "t-1", "owner@salwa.com")); err != nil {
		t.Fatalf("CreateWithOwner: %v", err)
	}

	// Second bootstrap with the same code fails and inserts nothing.
	err := store.CreateWithOwner(ctx, makeTenant("t-2", "salwa"), makeUser("u-2", "t-2", "other@example.com"))
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("duplicate code err = %v, want ErrConflict", err)
	}
	if _, err := store.FindByID(ctx, "u-2"); !errors.Is(err, storage.ErrNotFound) {
		t.Error("owner inserted despite tenant conflict")
	}
}

func TestUserUniquenessPerTenant(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	if err := store.CreateWithOwner(ctx, makeTenant("t-1", "salwa"), makeUser("u-1", "t-1", "owner@salwa.com")); err != nil {
		t.Fatal(err)
	}
	if err := store.CreateWithOwner(ctx, makeTenant("t-2", "other"), makeUser("u-2", "t-2", "boss@other.com")); err != nil {
		t.Fatal(err)
	}

	// Duplicate email in the same tenant conflicts, case-insensitively.
	err := store.Create(ctx, makeUser("u-3", "t-1", "OWNER@SALWA.COM"))
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("same-tenant duplicate err = %v, want ErrConflict", err)
	}

	// Same email in a different tenant is fine.
	if err := store.Create(ctx, makeUser("u-4", "t-2", "owner@salwa.com")); err != nil {
		t.Fatalf("cross-tenant create: %v", err)
	}

	// Scoped lookup.
	u, err := store.FindByEmail(ctx, "owner@salwa.com", "t-1")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if u.ID != "u-1" {
		t.Errorf("user = %+v", u)
	}
}

func TestUserUpdate(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	if err := store.CreateWithOwner(ctx, makeTenant("t-1", "salwa"), makeUser("u-1", "t-1", "owner@salwa.com")); err != nil {
		t.Fatal(err)
	}

	u, err := store.FindByID(ctx, "u-1")
	if err != nil {
		t.Fatal(err)
	}
	u.Name = "Renamed"
	u.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
	if err := store.Update(ctx, u); err != nil {
		t.Fatalf("Update: %v", err)
	}

	again, err := store.FindByID(ctx, "u-1")
	if err != nil {
		t.Fatal(err)
	}
	if again.Name != "Renamed" {
		t.Errorf("name = %q", again.Name)
	}

	missing := makeUser("ghost", "t-1", "ghost@salwa.com")
	if err := store.Update(ctx, missing); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("update missing err = %v, want ErrNotFound", err)
	}
}

func TestRefreshTokenLifecycle(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	if err := store.CreateWithOwner(ctx, makeTenant("t-1", "salwa"), makeUser("u-1", "t-1", "owner@salwa.com")); err != nil {
		t.Fatal(err)
	}

	if err := store.Save(ctx, "u-1", "tok", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	active, err := store.IsActive(ctx, "u-1", "tok")
	if err != nil || !active {
		t.Fatalf("IsActive = (%v, %v), want (true, nil)", active, err)
	}
	active, err = store.IsActive(ctx, "u-other", "tok")
	if err != nil || active {
		t.Fatalf("wrong owner IsActive = (%v, %v)", active, err)
	}

	revoked, err := store.Revoke(ctx, "tok")
	if err != nil || !revoked {
		t.Fatalf("Revoke = (%v, %v), want (true, nil)", revoked, err)
	}
	revoked, err = store.Revoke(ctx, "tok")
	if err != nil || revoked {
		t.Fatalf("second Revoke = (%v, %v), want (false, nil)", revoked, err)
	}
}

func TestDeleteExpired(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	if err := store.CreateWithOwner(ctx, makeTenant("t-1", "salwa"), makeUser("u-1", "t-1", "owner@salwa.com")); err != nil {
		t.Fatal(err)
	}

	if err := store.Save(ctx, "u-1", "dead", time.Now().Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, "u-1", "live", time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	// The expired record is inactive even before the janitor runs.
	active, err := store.IsActive(ctx, "u-1", "dead")
	if err != nil || active {
		t.Fatalf("expired IsActive = (%v, %v)", active, err)
	}

	n, err := store.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}

	active, err = store.IsActive(ctx, "u-1", "live")
	if err != nil || !active {
		t.Fatalf("live token IsActive = (%v, %v)", active, err)
	}
}

func TestHealthCheck(t *testing.T) {
	store := setupTestDB(t)

	if err := store.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}
