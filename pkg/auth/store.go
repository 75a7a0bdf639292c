package auth

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a user, tenant, membership or code does
	// not exist
	ErrNotFound = errors.New("not found")

	// ErrAlreadyConsumed is returned when a login code was consumed by a
	// concurrent verification
	ErrAlreadyConsumed = errors.New("login code already consumed")
)

// Store is the persistence interface for identities, login codes, tenants
// and memberships
type Store interface {
	CreateCode(ctx context.Context, code *LoginCode) error
	LatestUnconsumedCode(ctx context.Context, email string) (*LoginCode, error)

	// ConsumeCodeAndUpsertUser marks the code consumed only if it is still
	// unconsumed and upserts the user by email in the same transaction. A
	// non-empty passwordHash replaces the stored one.
	ConsumeCodeAndUpsertUser(ctx context.Context, codeID, email, passwordHash string, now time.Time) (*User, error)

	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	FindTenant(ctx context.Context, ref TenantRef) (*Tenant, error)
	GetMembership(ctx context.Context, tenantID, userID string) (*Membership, error)
	ListMemberships(ctx context.Context, userID string) ([]TenantMembership, error)
}
