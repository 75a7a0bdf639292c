package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// ErrNotFound is returned when an object does not exist
var ErrNotFound = errors.New("object not found")

// ErrInvalidKey is returned for keys that are empty or escape the store root
var ErrInvalidKey = errors.New("invalid object key")

// BlobStore stores opaque objects under slash-separated keys. Keys are
// tenant-prefixed ("{tenantId}/...") by the callers.
type BlobStore interface {
	// Put writes content under key and returns the number of bytes stored
	Put(ctx context.Context, key string, content io.Reader, contentType string) (int64, error)

	// Get opens the object stored under key. The caller closes Body.
	Get(ctx context.Context, key string) (*Object, error)

	// Delete removes the object under key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Object is an open stored object
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// NormalizeKey converts backslashes, strips leading slashes and cleans the
// key. It fails for empty keys and keys that climb out of the root.
func NormalizeKey(key string) (string, error) {
	key = strings.ReplaceAll(key, `\`, "/")
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}

// HasTenantPrefix reports whether key is stored under the tenant's prefix
func HasTenantPrefix(tenantID, key string) bool {
	normalized, err := NormalizeKey(key)
	if err != nil || tenantID == "" {
		return false
	}
	return strings.HasPrefix(normalized, tenantID+"/")
}
