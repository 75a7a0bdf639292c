package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/platinummonkey/tenantgate/pkg/storage/postgres"
)

const (
	productColumns = `id, tenant_id, code, name, description, created_at, updated_at`
	imageColumns   = `id, tenant_id, product_id, storage_key, content_type, size_bytes, sort_order, created_at`
)

// PostgresStore implements Store on PostgreSQL. Listing queries may be
// served by a read replica.
type PostgresStore struct {
	db      *sql.DB
	replica *sql.DB
}

// NewPostgresStore creates a store. A nil replica reads from db.
func NewPostgresStore(db, replica *sql.DB) *PostgresStore {
	if replica == nil {
		replica = db
	}
	return &PostgresStore{db: db, replica: replica}
}

func validUUIDs(ids ...string) bool {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return false
		}
	}
	return true
}

// CreateProduct implements Store
func (s *PostgresStore) CreateProduct(ctx context.Context, product *Product) error {
	if product.ID == "" {
		product.ID = uuid.NewString()
	}

	query := `
		INSERT INTO products (id, tenant_id, code, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		product.ID, product.TenantID, product.Code, product.Name, product.Description, product.CreatedAt)
	if postgres.IsUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	product.UpdatedAt = product.CreatedAt
	return nil
}

// GetProduct implements Store
func (s *PostgresStore) GetProduct(ctx context.Context, tenantID, productID string) (*Product, error) {
	if !validUUIDs(tenantID, productID) {
		return nil, ErrNotFound
	}

	var p Product
	err := s.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE tenant_id = $1 AND id = $2`,
		tenantID, productID,
	).Scan(&p.ID, &p.TenantID, &p.Code, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &p, nil
}

// ListProducts implements Store
func (s *PostgresStore) ListProducts(ctx context.Context, tenantID string) ([]*Product, error) {
	if !validUUIDs(tenantID) {
		return nil, nil
	}

	rows, err := s.replica.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE tenant_id = $1 ORDER BY code ASC, created_at DESC`,
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []*Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Code, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// CreateImage implements Store
func (s *PostgresStore) CreateImage(ctx context.Context, image *Image) error {
	if image.ID == "" {
		image.ID = uuid.NewString()
	}

	query := `
		INSERT INTO product_images (id, tenant_id, product_id, storage_key, content_type, size_bytes, sort_order, created_at)
		SELECT $1::uuid, $2::uuid, $3::uuid, $4::text, $5::varchar, $6::bigint,
			COALESCE(MAX(sort_order) + 1, 0), $7::timestamptz
		FROM product_images WHERE product_id = $3::uuid
		RETURNING sort_order
	`
	err := s.db.QueryRowContext(ctx, query,
		image.ID, image.TenantID, image.ProductID, image.StorageKey, image.ContentType, image.SizeBytes, image.CreatedAt,
	).Scan(&image.SortOrder)
	if postgres.IsForeignKeyViolation(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to create image: %w", err)
	}
	return nil
}

// GetImage implements Store
func (s *PostgresStore) GetImage(ctx context.Context, tenantID, productID, imageID string) (*Image, error) {
	if !validUUIDs(tenantID, productID, imageID) {
		return nil, ErrNotFound
	}

	var img Image
	err := s.db.QueryRowContext(ctx,
		`SELECT `+imageColumns+` FROM product_images WHERE tenant_id = $1 AND product_id = $2 AND id = $3`,
		tenantID, productID, imageID,
	).Scan(&img.ID, &img.TenantID, &img.ProductID, &img.StorageKey, &img.ContentType, &img.SizeBytes, &img.SortOrder, &img.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	return &img, nil
}

// ListImages implements Store
func (s *PostgresStore) ListImages(ctx context.Context, tenantID, productID string) ([]*Image, error) {
	if !validUUIDs(tenantID, productID) {
		return nil, nil
	}

	rows, err := s.replica.QueryContext(ctx,
		`SELECT `+imageColumns+` FROM product_images
		WHERE tenant_id = $1 AND product_id = $2
		ORDER BY sort_order ASC, created_at ASC`,
		tenantID, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer rows.Close()

	var images []*Image
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.ID, &img.TenantID, &img.ProductID, &img.StorageKey, &img.ContentType, &img.SizeBytes, &img.SortOrder, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, &img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	return images, nil
}

// SetMainImage implements Store
func (s *PostgresStore) SetMainImage(ctx context.Context, tenantID, productID, imageID string) error {
	if !validUUIDs(tenantID, productID, imageID) {
		return ErrNotFound
	}

	query := `
		WITH target AS (
			SELECT sort_order FROM product_images
			WHERE tenant_id = $1 AND product_id = $2 AND id = $3
		)
		UPDATE product_images p
		SET sort_order = CASE WHEN p.id = $3 THEN 0 ELSE p.sort_order + 1 END
		FROM target
		WHERE p.tenant_id = $1 AND p.product_id = $2
			AND (p.id = $3 OR p.sort_order < target.sort_order)
	`
	result, err := s.db.ExecContext(ctx, query, tenantID, productID, imageID)
	if err != nil {
		return fmt.Errorf("failed to set main image: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to set main image: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
