package shares

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no share matches
	ErrNotFound = errors.New("share not found")

	// ErrConflict is returned when a share for the resource or with the
	// same token already exists
	ErrConflict = errors.New("share already exists")
)

// Store persists public shares
type Store interface {
	FindByResource(ctx context.Context, tenantID string, resourceType ResourceType, resourceID string) (*Share, error)

	// FindByToken returns the share with its tenant populated
	FindByToken(ctx context.Context, shareToken string) (*Share, error)

	// FindExact returns the share only if all four identifiers match, with
	// its tenant populated
	FindExact(ctx context.Context, shareID, tenantID string, resourceType ResourceType, resourceID string) (*Share, error)

	Create(ctx context.Context, share *Share) error
}
