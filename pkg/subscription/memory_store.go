package subscription

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and local development.
// Transactions are serialized and rolled back when fn fails.
type MemoryStore struct {
	mu            sync.Mutex
	tenants       map[string]bool
	subscriptions map[string]Subscription
	codes         map[string]*ActivationCode // by digest
	redemptions   []Redemption
	shares        map[string]int64
	images        map[string]int64
	imageBytes    map[string]int64
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants:       make(map[string]bool),
		subscriptions: make(map[string]Subscription),
		codes:         make(map[string]*ActivationCode),
		shares:        make(map[string]int64),
		images:        make(map[string]int64),
		imageBytes:    make(map[string]int64),
	}
}

// AddTenant registers a tenant id
func (s *MemoryStore) AddTenant(tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[tenantID] = true
}

// SetUsage replaces the usage counters reported for a tenant
func (s *MemoryStore) SetUsage(tenantID string, shares, images, imageBytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shares[tenantID] = shares
	s.images[tenantID] = images
	s.imageBytes[tenantID] = imageBytes
}

// Redemptions returns a copy of the recorded redemptions
func (s *MemoryStore) Redemptions() []Redemption {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Redemption(nil), s.redemptions...)
}

// ActivationCodeByID returns a copy of a stored code
func (s *MemoryStore) ActivationCodeByID(id string) (*ActivationCode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, code := range s.codes {
		if code.ID == id {
			c := *code
			return &c, true
		}
	}
	return nil, false
}

// GetSubscription implements Store
func (s *MemoryStore) GetSubscription(ctx context.Context, tenantID string) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscriptions[tenantID]
	if !ok {
		return nil, ErrNotFound
	}
	return &sub, nil
}

// CountShares implements Store
func (s *MemoryStore) CountShares(ctx context.Context, tenantID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shares[tenantID], nil
}

// CountImages implements Store
func (s *MemoryStore) CountImages(ctx context.Context, tenantID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.images[tenantID], nil
}

// SumImageBytes implements Store
func (s *MemoryStore) SumImageBytes(ctx context.Context, tenantID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.imageBytes[tenantID], nil
}

// TenantExists implements Store
func (s *MemoryStore) TenantExists(ctx context.Context, tenantID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tenants[tenantID], nil
}

// CreateActivationCode implements Store
func (s *MemoryStore) CreateActivationCode(ctx context.Context, code *ActivationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.codes[code.CodeDigest]; exists {
		return ErrConflict
	}
	if code.TargetTenantID != nil && !s.tenants[*code.TargetTenantID] {
		return ErrTenantNotFound
	}
	if code.ID == "" {
		code.ID = uuid.NewString()
	}
	c := *code
	s.codes[code.CodeDigest] = &c
	return nil
}

// WithTx implements Store
func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{store: s}
	if err := fn(tx); err != nil {
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		return err
	}
	return nil
}

type memoryTx struct {
	store *MemoryStore
	undo  []func()
}

func (t *memoryTx) GetSubscriptionForUpdate(ctx context.Context, tenantID string) (*Subscription, error) {
	sub, ok := t.store.subscriptions[tenantID]
	if !ok {
		return nil, ErrNotFound
	}
	return &sub, nil
}

func (t *memoryTx) SaveSubscription(ctx context.Context, sub *Subscription) (*Subscription, error) {
	if !t.store.tenants[sub.TenantID] {
		return nil, ErrTenantNotFound
	}
	previous, existed := t.store.subscriptions[sub.TenantID]
	saved := *sub
	if existed {
		saved.CreatedAt = previous.CreatedAt
	}
	t.store.subscriptions[sub.TenantID] = saved
	t.undo = append(t.undo, func() {
		if existed {
			t.store.subscriptions[sub.TenantID] = previous
		} else {
			delete(t.store.subscriptions, sub.TenantID)
		}
	})
	out := saved
	return &out, nil
}

func (t *memoryTx) FindActivationCode(ctx context.Context, digest string) (*ActivationCode, error) {
	code, ok := t.store.codes[digest]
	if !ok {
		return nil, ErrNotFound
	}
	c := *code
	return &c, nil
}

func (t *memoryTx) IncrementRedeemedCount(ctx context.Context, codeID string) (bool, error) {
	for _, code := range t.store.codes {
		if code.ID != codeID {
			continue
		}
		if code.RedeemedCount >= code.RedeemLimit {
			return false, nil
		}
		code.RedeemedCount++
		c := code
		t.undo = append(t.undo, func() { c.RedeemedCount-- })
		return true, nil
	}
	return false, nil
}

func (t *memoryTx) RecordRedemption(ctx context.Context, redemption *Redemption) error {
	if redemption.ID == "" {
		redemption.ID = uuid.NewString()
	}
	t.store.redemptions = append(t.store.redemptions, *redemption)
	n := len(t.store.redemptions)
	t.undo = append(t.undo, func() { t.store.redemptions = t.store.redemptions[:n-1] })
	return nil
}
