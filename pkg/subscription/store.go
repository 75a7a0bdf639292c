package subscription

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a subscription or activation code does not exist
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an activation code digest already exists
	ErrConflict = errors.New("activation code digest conflict")

	// ErrTenantNotFound is returned when a write references an unknown tenant
	ErrTenantNotFound = errors.New("tenant not found")
)

// Store persists subscriptions and activation codes and reports tenant usage
type Store interface {
	GetSubscription(ctx context.Context, tenantID string) (*Subscription, error)

	// CountShares returns the number of public shares owned by the tenant
	CountShares(ctx context.Context, tenantID string) (int64, error)

	// CountImages returns the number of product images owned by the tenant
	CountImages(ctx context.Context, tenantID string) (int64, error)

	// SumImageBytes returns the total stored image size of the tenant
	SumImageBytes(ctx context.Context, tenantID string) (int64, error)

	// TenantExists reports whether the tenant id is known
	TenantExists(ctx context.Context, tenantID string) (bool, error)

	// CreateActivationCode inserts a code, returning ErrConflict when the
	// digest is taken and ErrTenantNotFound for an unknown target tenant
	CreateActivationCode(ctx context.Context, code *ActivationCode) error

	// WithTx runs fn in a transaction, committing when fn returns nil
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of operations available inside a transaction
type Tx interface {
	// GetSubscriptionForUpdate reads and locks the tenant's row
	GetSubscriptionForUpdate(ctx context.Context, tenantID string) (*Subscription, error)

	// SaveSubscription inserts or replaces the tenant's row
	SaveSubscription(ctx context.Context, sub *Subscription) (*Subscription, error)

	FindActivationCode(ctx context.Context, digest string) (*ActivationCode, error)

	// IncrementRedeemedCount adds one redemption if the code is below its
	// redeem limit and reports whether it did
	IncrementRedeemedCount(ctx context.Context, codeID string) (bool, error)

	RecordRedemption(ctx context.Context, redemption *Redemption) error
}
