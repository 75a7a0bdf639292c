package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/tenantgate/pkg/observability"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all schema migrations in application order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create identity and tenant tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id UUID PRIMARY KEY,
					email VARCHAR(320) NOT NULL UNIQUE,
					display_name VARCHAR(255),
					password_hash TEXT,
					password_updated_at TIMESTAMPTZ,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS tenants (
					id UUID PRIMARY KEY,
					slug VARCHAR(120) NOT NULL UNIQUE,
					name VARCHAR(255) NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS tenant_memberships (
					tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					role VARCHAR(16) NOT NULL CHECK (role IN ('OWNER', 'ADMIN', 'EDITOR', 'VIEWER')),
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					PRIMARY KEY (tenant_id, user_id)
				);

				CREATE INDEX IF NOT EXISTS idx_tenant_memberships_user_id ON tenant_memberships(user_id);
			`,
		},
		{
			Version:     2,
			Description: "Create login codes table",
			SQL: `
				CREATE TABLE IF NOT EXISTS login_codes (
					id UUID PRIMARY KEY,
					email VARCHAR(320) NOT NULL,
					code_hash CHAR(64) NOT NULL,
					salt CHAR(32) NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					expires_at TIMESTAMPTZ NOT NULL,
					consumed_at TIMESTAMPTZ
				);

				CREATE INDEX IF NOT EXISTS idx_login_codes_email_unconsumed
					ON login_codes(email, created_at DESC)
					WHERE consumed_at IS NULL;
			`,
		},
		{
			Version:     3,
			Description: "Create subscription tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS tenant_subscriptions (
					tenant_id UUID PRIMARY KEY REFERENCES tenants(id) ON DELETE CASCADE,
					plan VARCHAR(16) NOT NULL CHECK (plan IN ('FREE', 'BASIC', 'PRO')),
					starts_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					expires_at TIMESTAMPTZ,
					disabled_at TIMESTAMPTZ,
					disabled_reason TEXT,
					max_images INT CHECK (max_images >= 0),
					max_storage_bytes BIGINT CHECK (max_storage_bytes >= 0),
					max_shares INT CHECK (max_shares >= 0),
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS subscription_activation_codes (
					id UUID PRIMARY KEY,
					code_digest CHAR(64) NOT NULL UNIQUE,
					code_label VARCHAR(32) NOT NULL,
					target_tenant_id UUID REFERENCES tenants(id) ON DELETE CASCADE,
					plan VARCHAR(16) NOT NULL CHECK (plan IN ('FREE', 'BASIC', 'PRO')),
					duration_days INT CHECK (duration_days > 0),
					max_images INT CHECK (max_images >= 0),
					max_storage_bytes BIGINT CHECK (max_storage_bytes >= 0),
					max_shares INT CHECK (max_shares >= 0),
					redeem_limit INT NOT NULL DEFAULT 1 CHECK (redeem_limit >= 1),
					redeemed_count INT NOT NULL DEFAULT 0,
					expires_at TIMESTAMPTZ,
					disabled_at TIMESTAMPTZ,
					created_by_user_id UUID REFERENCES users(id) ON DELETE SET NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CHECK (redeemed_count >= 0 AND redeemed_count <= redeem_limit)
				);

				CREATE TABLE IF NOT EXISTS subscription_activation_redemptions (
					id UUID PRIMARY KEY,
					activation_code_id UUID NOT NULL REFERENCES subscription_activation_codes(id) ON DELETE CASCADE,
					tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					redeemed_by_user_id UUID REFERENCES users(id) ON DELETE SET NULL,
					redeemed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_activation_redemptions_tenant_id
					ON subscription_activation_redemptions(tenant_id);
			`,
		},
		{
			Version:     4,
			Description: "Create product and image tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS products (
					id UUID PRIMARY KEY,
					tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					code VARCHAR(120) NOT NULL,
					name VARCHAR(255),
					description TEXT,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE (tenant_id, code)
				);

				CREATE TABLE IF NOT EXISTS product_images (
					id UUID PRIMARY KEY,
					tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					product_id UUID NOT NULL REFERENCES products(id) ON DELETE CASCADE,
					storage_key TEXT NOT NULL,
					content_type VARCHAR(120) NOT NULL,
					size_bytes BIGINT NOT NULL CHECK (size_bytes >= 0),
					sort_order INT NOT NULL DEFAULT 0,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_product_images_tenant_id ON product_images(tenant_id);
				CREATE INDEX IF NOT EXISTS idx_product_images_product_id ON product_images(product_id, sort_order);
			`,
		},
		{
			Version:     5,
			Description: "Create public shares table",
			SQL: `
				CREATE TABLE IF NOT EXISTS public_shares (
					id UUID PRIMARY KEY,
					tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					resource_type VARCHAR(32) NOT NULL,
					resource_id VARCHAR(255) NOT NULL,
					share_token VARCHAR(64) NOT NULL UNIQUE,
					created_by_user_id UUID REFERENCES users(id) ON DELETE SET NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE (tenant_id, resource_type, resource_id)
				);
			`,
		},
		{
			Version:     6,
			Description: "Create audit events table",
			SQL: `
				CREATE TABLE IF NOT EXISTS audit_events (
					id BIGSERIAL PRIMARY KEY,
					occurred_at TIMESTAMPTZ NOT NULL,
					event_type VARCHAR(80) NOT NULL,
					status VARCHAR(16) NOT NULL,
					user_id VARCHAR(64),
					tenant_id VARCHAR(64),
					resource_type VARCHAR(32),
					resource_id VARCHAR(255),
					ip_address VARCHAR(64),
					user_agent TEXT,
					request_id VARCHAR(64),
					message TEXT,
					metadata JSONB
				);

				CREATE INDEX IF NOT EXISTS idx_audit_events_tenant_time ON audit_events(tenant_id, occurred_at DESC);
				CREATE INDEX IF NOT EXISTS idx_audit_events_type_time ON audit_events(event_type, occurred_at DESC);
			`,
		},
	}
}

// RunMigrations applies pending migrations, each in its own transaction
func RunMigrations(ctx context.Context, db *sql.DB, logger *observability.Logger) error {
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tenantgate_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}

	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
		}

		logger.WithFields(map[string]interface{}{
			"version":     migration.Version,
			"description": migration.Description,
		}).Info("Running migration")

		if err := applyMigration(ctx, db, migration); err != nil {
			return err
		}
	}

	return nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM tenantgate_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func applyMigration(ctx context.Context, db *sql.DB, migration Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
		return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO tenantgate_migrations (version, description) VALUES ($1, $2)",
		migration.Version, migration.Description,
	); err != nil {
		return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
	}
	return nil
}
