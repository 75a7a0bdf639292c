package shares

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and local development
type MemoryStore struct {
	mu      sync.RWMutex
	shares  map[string]*Share
	tenants map[string]TenantInfo
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		shares:  make(map[string]*Share),
		tenants: make(map[string]TenantInfo),
	}
}

// AddTenant registers the tenant details joined into lookups
func (s *MemoryStore) AddTenant(tenant TenantInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[tenant.ID] = tenant
}

// Len returns the number of stored shares
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.shares)
}

func (s *MemoryStore) withTenant(share *Share) *Share {
	out := *share
	tenant, ok := s.tenants[share.TenantID]
	if !ok {
		tenant = TenantInfo{ID: share.TenantID}
	}
	out.Tenant = &tenant
	return &out
}

// FindByResource implements Store
func (s *MemoryStore) FindByResource(ctx context.Context, tenantID string, resourceType ResourceType, resourceID string) (*Share, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, share := range s.shares {
		if share.TenantID == tenantID && share.ResourceType == resourceType && share.ResourceID == resourceID {
			out := *share
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

// FindByToken implements Store
func (s *MemoryStore) FindByToken(ctx context.Context, shareToken string) (*Share, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, share := range s.shares {
		if share.ShareToken == shareToken {
			return s.withTenant(share), nil
		}
	}
	return nil, ErrNotFound
}

// FindExact implements Store
func (s *MemoryStore) FindExact(ctx context.Context, shareID, tenantID string, resourceType ResourceType, resourceID string) (*Share, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	share, ok := s.shares[shareID]
	if !ok || share.TenantID != tenantID || share.ResourceType != resourceType || share.ResourceID != resourceID {
		return nil, ErrNotFound
	}
	return s.withTenant(share), nil
}

// Create implements Store
func (s *MemoryStore) Create(ctx context.Context, share *Share) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.shares {
		if existing.ShareToken == share.ShareToken ||
			(existing.TenantID == share.TenantID &&
				existing.ResourceType == share.ResourceType &&
				existing.ResourceID == share.ResourceID) {
			return ErrConflict
		}
	}
	if share.ID == "" {
		share.ID = uuid.NewString()
	}
	share.UpdatedAt = share.CreatedAt
	stored := *share
	stored.Tenant = nil
	s.shares[stored.ID] = &stored
	return nil
}
