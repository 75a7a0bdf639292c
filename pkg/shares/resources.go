package shares

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/tenantgate/pkg/catalog"
)

const viewConcurrency = 8

// AssetURLFunc signs a public URL for a stored object key
type AssetURLFunc func(key string) string

// Resource resolves one kind of shareable resource
type Resource interface {
	// Exists reports whether resourceID names a resource of the tenant.
	// Resources of other tenants do not exist.
	Exists(ctx context.Context, tenantID, resourceID string) (bool, error)

	// View assembles the public payload of the shared resource
	View(ctx context.Context, share *Share, assetURL AssetURLFunc) (interface{}, error)
}

// Catalog is the product data public views are built from
type Catalog interface {
	GetProduct(ctx context.Context, tenantID, productID string) (*catalog.Product, error)
	ListProducts(ctx context.Context, tenantID string) ([]*catalog.Product, error)
	ListImages(ctx context.Context, tenantID, productID string) ([]*catalog.Image, error)
}

// PublicProduct is a product as shown to public visitors
type PublicProduct struct {
	ID            string        `json:"id"`
	Code          string        `json:"code"`
	Name          *string       `json:"name"`
	Description   *string       `json:"description"`
	CoverImageURL *string       `json:"coverImageUrl"`
	Images        []PublicImage `json:"images,omitempty"`
}

// PublicImage is a signed image reference
type PublicImage struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
}

// TenantFeedView lists a tenant's products
type TenantFeedView struct {
	Items []PublicProduct `json:"items"`
}

func publicProduct(p *catalog.Product, images []*catalog.Image, assetURL AssetURLFunc, withImages bool) PublicProduct {
	out := PublicProduct{
		ID:          p.ID,
		Code:        p.Code,
		Name:        p.Name,
		Description: p.Description,
	}
	for i, img := range images {
		u := assetURL(img.StorageKey)
		if i == 0 {
			out.CoverImageURL = &u
		}
		if !withImages {
			break
		}
		out.Images = append(out.Images, PublicImage{ID: img.ID, URL: u, ContentType: img.ContentType})
	}
	return out
}

// TenantFeed shares every product of the tenant. Its resource id is the
// tenant id itself.
type TenantFeed struct {
	catalog Catalog
}

// NewTenantFeed creates the tenant feed resource
func NewTenantFeed(c Catalog) *TenantFeed {
	return &TenantFeed{catalog: c}
}

// Exists implements Resource
func (f *TenantFeed) Exists(ctx context.Context, tenantID, resourceID string) (bool, error) {
	return resourceID == tenantID, nil
}

// View implements Resource. Cover images are looked up concurrently.
func (f *TenantFeed) View(ctx context.Context, share *Share, assetURL AssetURLFunc) (interface{}, error) {
	products, err := f.catalog.ListProducts(ctx, share.TenantID)
	if err != nil {
		return nil, err
	}

	items := make([]PublicProduct, len(products))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(viewConcurrency)
	for i, p := range products {
		g.Go(func() error {
			images, err := f.catalog.ListImages(gctx, share.TenantID, p.ID)
			if err != nil {
				return err
			}
			items[i] = publicProduct(p, images, assetURL, false)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &TenantFeedView{Items: items}, nil
}

// ProductResource shares a single product with all of its images
type ProductResource struct {
	catalog Catalog
}

// NewProductResource creates the product resource
func NewProductResource(c Catalog) *ProductResource {
	return &ProductResource{catalog: c}
}

// Exists implements Resource
func (r *ProductResource) Exists(ctx context.Context, tenantID, resourceID string) (bool, error) {
	_, err := r.catalog.GetProduct(ctx, tenantID, resourceID)
	if errors.Is(err, catalog.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// View implements Resource
func (r *ProductResource) View(ctx context.Context, share *Share, assetURL AssetURLFunc) (interface{}, error) {
	p, err := r.catalog.GetProduct(ctx, share.TenantID, share.ResourceID)
	if err != nil {
		return nil, err
	}
	images, err := r.catalog.ListImages(ctx, share.TenantID, p.ID)
	if err != nil {
		return nil, err
	}
	view := publicProduct(p, images, assetURL, true)
	return &view, nil
}
