// Package catalog holds the tenant-owned products and product images that
// public shares expose.
//
// Image bytes live in a storage.BlobStore under "{tenantId}/products/..."
// keys; the rows in product_images record the key, content type and size
// that subscription quotas are computed from.
package catalog
