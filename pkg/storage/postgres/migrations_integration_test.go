//go:build integration

package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMigrations_Idempotent(t *testing.T) {
	db, cleanup := SetupPostgresContainer(t)
	defer cleanup()

	require.NoError(t, RunMigrations(context.Background(), db, nil))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM tenantgate_migrations").Scan(&count))
	assert.Equal(t, len(GetMigrations()), count)
}

func TestSchema_ActivationRedeemLimitCheck(t *testing.T) {
	db, cleanup := SetupPostgresContainer(t)
	defer cleanup()

	_, err := db.Exec(`
		INSERT INTO subscription_activation_codes (id, code_digest, code_label, plan, redeem_limit, redeemed_count)
		VALUES ('00000000-0000-0000-0000-000000000001', repeat('a', 64), 'ABCD****WXYZ', 'PRO', 1, 2)
	`)
	require.Error(t, err, "redeemed_count above redeem_limit must be rejected")
}

func TestSchema_ShareUniquePerResource(t *testing.T) {
	db, cleanup := SetupPostgresContainer(t)
	defer cleanup()

	tenantID := SeedTenant(t, db, "11111111-1111-1111-1111-111111111111", "acme")

	insert := `INSERT INTO public_shares (id, tenant_id, resource_type, resource_id, share_token) VALUES ($1, $2, 'tenant_feed', $2, $3)`
	_, err := db.Exec(insert, "22222222-2222-2222-2222-222222222222", tenantID, "shr_one")
	require.NoError(t, err)

	_, err = db.Exec(insert, "33333333-3333-3333-3333-333333333333", tenantID, "shr_two")
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
}
