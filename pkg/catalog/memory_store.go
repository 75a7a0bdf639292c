package catalog

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and local development
type MemoryStore struct {
	mu       sync.RWMutex
	products map[string]*Product
	images   map[string]*Image
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[string]*Product),
		images:   make(map[string]*Image),
	}
}

// CreateProduct implements Store
func (s *MemoryStore) CreateProduct(ctx context.Context, product *Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if p.TenantID == product.TenantID && p.Code == product.Code {
			return ErrConflict
		}
	}
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	product.UpdatedAt = product.CreatedAt
	p := *product
	s.products[p.ID] = &p
	return nil
}

// GetProduct implements Store
func (s *MemoryStore) GetProduct(ctx context.Context, tenantID, productID string) (*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[productID]
	if !ok || p.TenantID != tenantID {
		return nil, ErrNotFound
	}
	out := *p
	return &out, nil
}

// ListProducts implements Store
func (s *MemoryStore) ListProducts(ctx context.Context, tenantID string) ([]*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Product
	for _, p := range s.products {
		if p.TenantID == tenantID {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Code != out[j].Code {
			return out[i].Code < out[j].Code
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// CreateImage implements Store
func (s *MemoryStore) CreateImage(ctx context.Context, image *Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[image.ProductID]
	if !ok || p.TenantID != image.TenantID {
		return ErrNotFound
	}
	if image.ID == "" {
		image.ID = uuid.NewString()
	}
	image.SortOrder = 0
	for _, img := range s.images {
		if img.ProductID == image.ProductID && img.SortOrder >= image.SortOrder {
			image.SortOrder = img.SortOrder + 1
		}
	}
	img := *image
	s.images[img.ID] = &img
	return nil
}

// GetImage implements Store
func (s *MemoryStore) GetImage(ctx context.Context, tenantID, productID, imageID string) (*Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	img, ok := s.images[imageID]
	if !ok || img.TenantID != tenantID || img.ProductID != productID {
		return nil, ErrNotFound
	}
	out := *img
	return &out, nil
}

// ListImages implements Store
func (s *MemoryStore) ListImages(ctx context.Context, tenantID, productID string) ([]*Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Image
	for _, img := range s.images {
		if img.TenantID == tenantID && img.ProductID == productID {
			c := *img
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

// SetMainImage implements Store
func (s *MemoryStore) SetMainImage(ctx context.Context, tenantID, productID, imageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := s.images[imageID]
	if !ok || target.TenantID != tenantID || target.ProductID != productID {
		return ErrNotFound
	}
	for _, img := range s.images {
		if img.ProductID == productID && img.ID != imageID && img.SortOrder < target.SortOrder {
			img.SortOrder++
		}
	}
	target.SortOrder = 0
	return nil
}

// Usage returns the image count and total bytes of a tenant
func (s *MemoryStore) Usage(tenantID string) (count, bytes int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, img := range s.images {
		if img.TenantID == tenantID {
			count++
			bytes += img.SizeBytes
		}
	}
	return count, bytes
}
