package catalog

import "time"

// Product is a tenant-owned catalog entry
type Product struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenantId"`
	Code        string    `json:"code"`
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Image is a stored product image
type Image struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenantId"`
	ProductID   string    `json:"productId"`
	StorageKey  string    `json:"-"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	SortOrder   int       `json:"sortOrder"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CreateProductRequest is the payload for creating a product
type CreateProductRequest struct {
	Code        string  `json:"code" validate:"required,max=120"`
	Name        *string `json:"name" validate:"omitempty,max=255"`
	Description *string `json:"description"`
}
