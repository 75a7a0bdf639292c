package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/tenantgate/pkg/storage/postgres"
)

const userColumns = `id, email, display_name, password_hash, password_updated_at, created_at`

// PostgresStore implements Store on PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed auth store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateCode stores a new login code, assigning an id when empty
func (s *PostgresStore) CreateCode(ctx context.Context, code *LoginCode) error {
	if code.ID == "" {
		code.ID = uuid.NewString()
	}

	query := `
		INSERT INTO login_codes (id, email, code_hash, salt, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		code.ID, code.Email, code.CodeHash, code.Salt, code.CreatedAt, code.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to create login code: %w", err)
	}
	return nil
}

// LatestUnconsumedCode returns the most recently created unconsumed code
// for email
func (s *PostgresStore) LatestUnconsumedCode(ctx context.Context, email string) (*LoginCode, error) {
	query := `
		SELECT id, email, code_hash, salt, created_at, expires_at
		FROM login_codes
		WHERE email = $1 AND consumed_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1
	`

	var code LoginCode
	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&code.ID, &code.Email, &code.CodeHash, &code.Salt, &code.CreatedAt, &code.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get login code: %w", err)
	}
	return &code, nil
}

// ConsumeCodeAndUpsertUser implements Store
func (s *PostgresStore) ConsumeCodeAndUpsertUser(ctx context.Context, codeID, email, passwordHash string, now time.Time) (*User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE login_codes SET consumed_at = $1 WHERE id = $2 AND consumed_at IS NULL`,
		now, codeID)
	if err != nil {
		return nil, fmt.Errorf("failed to consume login code: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to consume login code: %w", err)
	}
	if affected != 1 {
		return nil, ErrAlreadyConsumed
	}

	var hash sql.NullString
	var hashUpdatedAt sql.NullTime
	if passwordHash != "" {
		hash = sql.NullString{String: passwordHash, Valid: true}
		hashUpdatedAt = sql.NullTime{Time: now, Valid: true}
	}

	query := `
		INSERT INTO users (id, email, password_hash, password_updated_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (email) DO UPDATE SET
			password_hash = COALESCE(EXCLUDED.password_hash, users.password_hash),
			password_updated_at = COALESCE(EXCLUDED.password_updated_at, users.password_updated_at),
			updated_at = EXCLUDED.updated_at
		RETURNING ` + userColumns

	user, err := scanUser(tx.QueryRowContext(ctx, query, uuid.NewString(), email, hash, hashUpdatedAt, now))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return user, nil
}

// GetUserByID retrieves a user by id
func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetUserByEmail retrieves a user by email
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (s *PostgresStore) getUser(ctx context.Context, query string, arg string) (*User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func scanUser(row *sql.Row) (*User, error) {
	var user User
	var displayName, passwordHash sql.NullString
	var passwordUpdatedAt sql.NullTime

	if err := row.Scan(&user.ID, &user.Email, &displayName, &passwordHash, &passwordUpdatedAt, &user.CreatedAt); err != nil {
		return nil, err
	}

	if displayName.Valid {
		name := displayName.String
		user.DisplayName = &name
	}
	user.PasswordHash = passwordHash.String
	if passwordUpdatedAt.Valid {
		at := passwordUpdatedAt.Time
		user.PasswordUpdatedAt = &at
	}
	return &user, nil
}

// FindTenant looks a tenant up by id, or by slug when no id is given.
// Malformed ids are reported as not found.
func (s *PostgresStore) FindTenant(ctx context.Context, ref TenantRef) (*Tenant, error) {
	var row *sql.Row
	switch {
	case ref.ID != "":
		if _, err := uuid.Parse(ref.ID); err != nil {
			return nil, ErrNotFound
		}
		row = s.db.QueryRowContext(ctx, `SELECT id, slug, name FROM tenants WHERE id = $1`, ref.ID)
	case ref.Slug != "":
		row = s.db.QueryRowContext(ctx, `SELECT id, slug, name FROM tenants WHERE slug = $1`, ref.Slug)
	default:
		return nil, ErrNotFound
	}

	var tenant Tenant
	err := row.Scan(&tenant.ID, &tenant.Slug, &tenant.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return &tenant, nil
}

// GetMembership returns the membership of userID in tenantID
func (s *PostgresStore) GetMembership(ctx context.Context, tenantID, userID string) (*Membership, error) {
	if !validUUIDs(tenantID, userID) {
		return nil, ErrNotFound
	}

	query := `SELECT tenant_id, user_id, role FROM tenant_memberships WHERE tenant_id = $1 AND user_id = $2`

	var m Membership
	err := s.db.QueryRowContext(ctx, query, tenantID, userID).Scan(&m.TenantID, &m.UserID, &m.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return &m, nil
}

// ListMemberships lists every tenant the user belongs to, ordered by name
func (s *PostgresStore) ListMemberships(ctx context.Context, userID string) ([]TenantMembership, error) {
	query := `
		SELECT t.id, t.slug, t.name, m.role
		FROM tenant_memberships m
		JOIN tenants t ON t.id = m.tenant_id
		WHERE m.user_id = $1
		ORDER BY t.name, t.slug
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	memberships := []TenantMembership{}
	for rows.Next() {
		var tm TenantMembership
		if err := rows.Scan(&tm.Tenant.ID, &tm.Tenant.Slug, &tm.Tenant.Name, &tm.Role); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, tm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	return memberships, nil
}

// SetMembershipRole creates or updates the membership of userID in
// tenantID. Unknown tenants or users are reported as ErrNotFound.
func (s *PostgresStore) SetMembershipRole(ctx context.Context, tenantID, userID, role string) (*Membership, error) {
	if !validUUIDs(tenantID, userID) {
		return nil, ErrNotFound
	}

	query := `
		INSERT INTO tenant_memberships (tenant_id, user_id, role, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (tenant_id, user_id) DO UPDATE SET
			role = EXCLUDED.role,
			updated_at = NOW()
		RETURNING tenant_id, user_id, role
	`

	var m Membership
	err := s.db.QueryRowContext(ctx, query, tenantID, userID, role).Scan(&m.TenantID, &m.UserID, &m.Role)
	if postgres.IsForeignKeyViolation(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set membership role: %w", err)
	}
	return &m, nil
}

func validUUIDs(ids ...string) bool {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return false
		}
	}
	return true
}
