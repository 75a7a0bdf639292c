package catalog

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a product or image does not exist in the tenant
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a product code is already used in the tenant
	ErrConflict = errors.New("product code already exists")
)

// Store persists products and image metadata. Every lookup is scoped by
// tenant id; rows of other tenants are reported as ErrNotFound.
type Store interface {
	CreateProduct(ctx context.Context, product *Product) error
	GetProduct(ctx context.Context, tenantID, productID string) (*Product, error)
	ListProducts(ctx context.Context, tenantID string) ([]*Product, error)

	// CreateImage inserts image metadata, appending it after the product's
	// existing images
	CreateImage(ctx context.Context, image *Image) error
	GetImage(ctx context.Context, tenantID, productID, imageID string) (*Image, error)

	// ListImages returns a product's images in display order
	ListImages(ctx context.Context, tenantID, productID string) ([]*Image, error)

	// SetMainImage moves an image to the front of the display order,
	// shifting the images before it back by one
	SetMainImage(ctx context.Context, tenantID, productID, imageID string) error
}
