package rbac

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/platinummonkey/tenantgate/pkg/auth"
	"github.com/platinummonkey/tenantgate/pkg/observability"
)

// Resolver looks up a user's role in a tenant. ok is false when the user
// is not a member.
type Resolver interface {
	Resolve(ctx context.Context, tenantID, userID string) (role Role, ok bool, err error)
}

// MembershipStore reads membership rows
type MembershipStore interface {
	GetMembership(ctx context.Context, tenantID, userID string) (*auth.Membership, error)
}

// StoreResolver resolves roles with a point lookup per call
type StoreResolver struct {
	store MembershipStore
}

// NewStoreResolver creates a resolver over a membership store
func NewStoreResolver(store MembershipStore) *StoreResolver {
	return &StoreResolver{store: store}
}

// Resolve implements Resolver
func (r *StoreResolver) Resolve(ctx context.Context, tenantID, userID string) (Role, bool, error) {
	m, err := r.store.GetMembership(ctx, tenantID, userID)
	if errors.Is(err, auth.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	role, err := ParseRole(m.Role)
	if err != nil {
		return "", false, fmt.Errorf("membership %s/%s: %w", tenantID, userID, err)
	}
	return role, true, nil
}

type cachedRole struct {
	role Role
	ok   bool
}

// CachedResolver memoizes another resolver for a short TTL and coalesces
// concurrent lookups of the same membership. Errors are never cached.
type CachedResolver struct {
	next    Resolver
	cache   *expirable.LRU[string, cachedRole]
	group   singleflight.Group
	metrics *observability.Metrics
}

// NewCachedResolver wraps next with an LRU of at most size entries. A
// non-positive ttl disables caching and returns next unchanged.
func NewCachedResolver(next Resolver, size int, ttl time.Duration, metrics *observability.Metrics) Resolver {
	if ttl <= 0 {
		return next
	}
	if size <= 0 {
		size = 10000
	}
	return &CachedResolver{
		next:    next,
		cache:   expirable.NewLRU[string, cachedRole](size, nil, ttl),
		metrics: metrics,
	}
}

func cacheKey(tenantID, userID string) string {
	return tenantID + "/" + userID
}

// Resolve implements Resolver
func (c *CachedResolver) Resolve(ctx context.Context, tenantID, userID string) (Role, bool, error) {
	key := cacheKey(tenantID, userID)
	if hit, ok := c.cache.Get(key); ok {
		c.metrics.RecordCacheHit("membership")
		return hit.role, hit.ok, nil
	}
	c.metrics.RecordCacheMiss("membership")

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		role, ok, err := c.next.Resolve(ctx, tenantID, userID)
		if err != nil {
			return nil, err
		}
		entry := cachedRole{role: role, ok: ok}
		c.cache.Add(key, entry)
		return entry, nil
	})
	if err != nil {
		return "", false, err
	}

	entry := v.(cachedRole)
	return entry.role, entry.ok, nil
}

// Invalidate drops the cached role of one membership
func (c *CachedResolver) Invalidate(tenantID, userID string) {
	c.cache.Remove(cacheKey(tenantID, userID))
}
