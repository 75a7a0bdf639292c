//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// SetupPostgresContainer starts a PostgreSQL container, applies all
// migrations and returns a connection plus a cleanup function. The test is
// skipped when no container runtime is available.
//
//	db, cleanup := postgres.SetupPostgresContainer(t)
//	defer cleanup()
func SetupPostgresContainer(t *testing.T) (*sql.DB, func()) {
	t.Helper()

	ctx := context.Background()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		t.Skip("Docker/Podman not available, skipping integration tests")
	}
	defer provider.Close()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("tenantgate_test"),
		tcpostgres.WithUsername("tenantgate"),
		tcpostgres.WithPassword("tenantgate_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("Failed to start PostgreSQL container: %v", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	db.SetMaxOpenConns(20)
	require.NoError(t, db.PingContext(ctx))

	require.NoError(t, RunMigrations(ctx, db, nil), "Failed to run migrations")

	cleanup := func() {
		db.Close()

		// The test context may already be cancelled here.
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return db, cleanup
}

// SeedTenant inserts a tenant and returns its id
func SeedTenant(t *testing.T, db *sql.DB, id, slug string) string {
	t.Helper()
	_, err := db.Exec(`INSERT INTO tenants (id, slug, name) VALUES ($1, $2, $2)`, id, slug)
	require.NoError(t, err)
	return id
}

// SeedUser inserts a user and returns its id
func SeedUser(t *testing.T, db *sql.DB, id, email string) string {
	t.Helper()
	_, err := db.Exec(`INSERT INTO users (id, email) VALUES ($1, $2)`, id, email)
	require.NoError(t, err)
	return id
}
