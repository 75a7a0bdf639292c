// Package storage provides object storage for product images and the
// PostgreSQL and Redis plumbing shared by the service stores.
//
// # Object Storage
//
// BlobStore is a small key/value object interface. Keys are slash
// separated and always start with the owning tenant id, which lets public
// share asset requests be restricted to the tenant a share belongs to:
//
//	blobs, err := storage.NewFileSystemStorage("/var/lib/tenantgate/blobs")
//	size, err := blobs.Put(ctx, tenantID+"/products/"+productID+"/"+imageID, body, "image/png")
//
//	if !storage.HasTenantPrefix(share.TenantID, key) {
//	    return notFound
//	}
//	obj, err := blobs.Get(ctx, key)
//	defer obj.Body.Close()
//
// Keys are normalized before use: backslashes become slashes, leading
// slashes are dropped and keys that climb out of the root are rejected
// with ErrInvalidKey.
//
// # PostgreSQL and Redis
//
// The postgres subpackage holds the connection manager with read replicas,
// schema migrations, error classification helpers, the Redis client and a
// JSON cache on top of it, plus testcontainers helpers for integration
// tests (build tag "integration").
package storage
