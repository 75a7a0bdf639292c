package shares

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/platinummonkey/tenantgate/pkg/storage/postgres"
)

const shareColumns = `s.id, s.tenant_id, s.resource_type, s.resource_id, s.share_token,
	s.created_by_user_id, s.created_at, s.updated_at`

// PostgresStore implements Store on PostgreSQL. Every lookup reads the
// primary: the entry redirect and the signed grant that follows it must
// both see a share the moment it is created.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL share store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// FindByResource implements Store
func (s *PostgresStore) FindByResource(ctx context.Context, tenantID string, resourceType ResourceType, resourceID string) (*Share, error) {
	if _, err := uuid.Parse(tenantID); err != nil {
		return nil, ErrNotFound
	}
	query := `SELECT ` + shareColumns + ` FROM public_shares s
		WHERE s.tenant_id = $1 AND s.resource_type = $2 AND s.resource_id = $3`
	return s.get(ctx, s.db, query, false, tenantID, string(resourceType), resourceID)
}

// FindByToken implements Store
func (s *PostgresStore) FindByToken(ctx context.Context, shareToken string) (*Share, error) {
	query := `SELECT ` + shareColumns + `, t.slug, t.name FROM public_shares s
		JOIN tenants t ON t.id = s.tenant_id
		WHERE s.share_token = $1`
	return s.get(ctx, s.db, query, true, shareToken)
}

// FindExact implements Store
func (s *PostgresStore) FindExact(ctx context.Context, shareID, tenantID string, resourceType ResourceType, resourceID string) (*Share, error) {
	for _, id := range []string{shareID, tenantID} {
		if _, err := uuid.Parse(id); err != nil {
			return nil, ErrNotFound
		}
	}
	query := `SELECT ` + shareColumns + `, t.slug, t.name FROM public_shares s
		JOIN tenants t ON t.id = s.tenant_id
		WHERE s.id = $1 AND s.tenant_id = $2 AND s.resource_type = $3 AND s.resource_id = $4`
	return s.get(ctx, s.db, query, true, shareID, tenantID, string(resourceType), resourceID)
}

// Create implements Store
func (s *PostgresStore) Create(ctx context.Context, share *Share) error {
	if share.ID == "" {
		share.ID = uuid.NewString()
	}

	var createdBy sql.NullString
	if share.CreatedByUserID != nil {
		createdBy = sql.NullString{String: *share.CreatedByUserID, Valid: true}
	}

	query := `
		INSERT INTO public_shares (id, tenant_id, resource_type, resource_id, share_token, created_by_user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		share.ID, share.TenantID, string(share.ResourceType), share.ResourceID, share.ShareToken, createdBy, share.CreatedAt)
	if postgres.IsUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to create share: %w", err)
	}
	share.UpdatedAt = share.CreatedAt
	return nil
}

func (s *PostgresStore) get(ctx context.Context, db *sql.DB, query string, withTenant bool, args ...interface{}) (*Share, error) {
	var (
		share        Share
		resourceType string
		createdBy    sql.NullString
	)
	dest := []interface{}{
		&share.ID, &share.TenantID, &resourceType, &share.ResourceID, &share.ShareToken,
		&createdBy, &share.CreatedAt, &share.UpdatedAt,
	}
	var tenant TenantInfo
	if withTenant {
		dest = append(dest, &tenant.Slug, &tenant.Name)
	}

	err := db.QueryRowContext(ctx, query, args...).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get share: %w", err)
	}

	share.ResourceType = ResourceType(resourceType)
	if createdBy.Valid {
		share.CreatedByUserID = &createdBy.String
	}
	if withTenant {
		tenant.ID = share.TenantID
		share.Tenant = &tenant
	}
	return &share, nil
}
