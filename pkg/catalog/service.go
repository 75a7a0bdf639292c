package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/tenantgate/pkg/apierr"
	"github.com/platinummonkey/tenantgate/pkg/observability"
	"github.com/platinummonkey/tenantgate/pkg/storage"
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// UploadGate admits or rejects an image upload against tenant quotas
type UploadGate interface {
	AssertImageUploadAllowed(ctx context.Context, tenantID string, uploadBytes int64) error
}

// Upload is an image upload with a declared size
type Upload struct {
	ContentType string
	Size        int64
	Body        io.Reader
}

// Service manages products and their images
type Service struct {
	store Store
	blobs storage.BlobStore
	gate  UploadGate
	now   func() time.Time
}

// NewService creates a catalog service
func NewService(store Store, blobs storage.BlobStore, gate UploadGate) *Service {
	return &Service{store: store, blobs: blobs, gate: gate, now: time.Now}
}

func errProductNotFound() error {
	return apierr.New(apierr.CodeResourceNotFound, "Product not found.")
}

func errImageNotFound() error {
	return apierr.New(apierr.CodeResourceNotFound, "Image not found.")
}

// CreateProduct adds a product to the tenant
func (s *Service) CreateProduct(ctx context.Context, tenantID string, req CreateProductRequest) (*Product, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, apierr.InvalidRequest("code is required.")
	}

	product := &Product{
		TenantID:    tenantID,
		Code:        code,
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   s.now().UTC(),
	}
	err := s.store.CreateProduct(ctx, product)
	if errors.Is(err, ErrConflict) {
		return nil, apierr.InvalidRequest("Product code already exists.")
	}
	if err != nil {
		return nil, apierr.Internal(err)
	}
	return product, nil
}

// ListProducts returns the tenant's products ordered by code
func (s *Service) ListProducts(ctx context.Context, tenantID string) ([]*Product, error) {
	products, err := s.store.ListProducts(ctx, tenantID)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	return products, nil
}

// UploadImage stores an image for a product after checking the tenant's
// image quotas
func (s *Service) UploadImage(ctx context.Context, tenantID, productID string, upload Upload) (*Image, error) {
	ext, ok := imageExtensions[upload.ContentType]
	if !ok {
		return nil, apierr.InvalidRequest("Unsupported image content type.")
	}
	if upload.Size <= 0 {
		return nil, apierr.InvalidRequest("Image file is empty.")
	}

	if _, err := s.store.GetProduct(ctx, tenantID, productID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errProductNotFound()
		}
		return nil, apierr.Internal(err)
	}

	if err := s.gate.AssertImageUploadAllowed(ctx, tenantID, upload.Size); err != nil {
		return nil, err
	}

	imageID := uuid.NewString()
	key := fmt.Sprintf("%s/products/%s/%s%s", tenantID, productID, imageID, ext)

	// Read one byte past the declared size so a short declaration is caught
	written, err := s.blobs.Put(ctx, key, io.LimitReader(upload.Body, upload.Size+1), upload.ContentType)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if written != upload.Size {
		s.discard(ctx, key)
		return nil, apierr.InvalidRequest("Upload size does not match the declared size.")
	}

	image := &Image{
		ID:          imageID,
		TenantID:    tenantID,
		ProductID:   productID,
		StorageKey:  key,
		ContentType: upload.ContentType,
		SizeBytes:   written,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.CreateImage(ctx, image); err != nil {
		s.discard(ctx, key)
		if errors.Is(err, ErrNotFound) {
			return nil, errProductNotFound()
		}
		return nil, apierr.Internal(err)
	}
	return image, nil
}

func (s *Service) discard(ctx context.Context, key string) {
	if err := s.blobs.Delete(context.WithoutCancel(ctx), key); err != nil {
		observability.FromContext(ctx).WithError(err).WithField("key", key).Warn("Failed to delete orphaned image")
	}
}

// OpenImage returns an image and its open content. The caller closes the
// object body.
func (s *Service) OpenImage(ctx context.Context, tenantID, productID, imageID string) (*Image, *storage.Object, error) {
	image, err := s.store.GetImage(ctx, tenantID, productID, imageID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil, errImageNotFound()
	}
	if err != nil {
		return nil, nil, apierr.Internal(err)
	}

	obj, err := s.blobs.Get(ctx, image.StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, errImageNotFound()
	}
	if err != nil {
		return nil, nil, apierr.Internal(err)
	}
	return image, obj, nil
}

// SetMainImage makes an image the product's cover and returns the images
// in their new order
func (s *Service) SetMainImage(ctx context.Context, tenantID, productID, imageID string) ([]*Image, error) {
	err := s.store.SetMainImage(ctx, tenantID, productID, imageID)
	if errors.Is(err, ErrNotFound) {
		return nil, errImageNotFound()
	}
	if err != nil {
		return nil, apierr.Internal(err)
	}

	images, err := s.store.ListImages(ctx, tenantID, productID)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	return images, nil
}
