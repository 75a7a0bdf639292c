package auth

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used by tests and local tooling.
// Code consumption is serialized by a mutex, which gives the same
// single-winner behavior as the conditional update in PostgresStore.
type MemoryStore struct {
	mu          sync.Mutex
	codes       []*LoginCode
	users       map[string]*User
	tenants     map[string]*Tenant
	memberships map[[2]string]string
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[string]*User),
		tenants:     make(map[string]*Tenant),
		memberships: make(map[[2]string]string),
	}
}

// CreateCode implements Store
func (m *MemoryStore) CreateCode(_ context.Context, code *LoginCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if code.ID == "" {
		code.ID = uuid.NewString()
	}
	stored := *code
	m.codes = append(m.codes, &stored)
	return nil
}

// LatestUnconsumedCode implements Store
func (m *MemoryStore) LatestUnconsumedCode(_ context.Context, email string) (*LoginCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *LoginCode
	for _, c := range m.codes {
		if c.Email != email || c.ConsumedAt != nil {
			continue
		}
		if latest == nil || !c.CreatedAt.Before(latest.CreatedAt) {
			latest = c
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	found := *latest
	return &found, nil
}

// ConsumeCodeAndUpsertUser implements Store
func (m *MemoryStore) ConsumeCodeAndUpsertUser(_ context.Context, codeID, email, passwordHash string, now time.Time) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var code *LoginCode
	for _, c := range m.codes {
		if c.ID == codeID {
			code = c
			break
		}
	}
	if code == nil || code.ConsumedAt != nil {
		return nil, ErrAlreadyConsumed
	}
	consumedAt := now
	code.ConsumedAt = &consumedAt

	user := m.userByEmailLocked(email)
	if user == nil {
		user = &User{ID: uuid.NewString(), Email: email, CreatedAt: now}
		m.users[user.ID] = user
	}
	if passwordHash != "" {
		updatedAt := now
		user.PasswordHash = passwordHash
		user.PasswordUpdatedAt = &updatedAt
	}

	out := *user
	return &out, nil
}

func (m *MemoryStore) userByEmailLocked(email string) *User {
	for _, u := range m.users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

// GetUserByID implements Store
func (m *MemoryStore) GetUserByID(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *user
	return &out, nil
}

// GetUserByEmail implements Store
func (m *MemoryStore) GetUserByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user := m.userByEmailLocked(email)
	if user == nil {
		return nil, ErrNotFound
	}
	out := *user
	return &out, nil
}

// DeleteUser removes a user and their memberships
func (m *MemoryStore) DeleteUser(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.users, id)
	for key := range m.memberships {
		if key[1] == id {
			delete(m.memberships, key)
		}
	}
}

// AddTenant registers a tenant and returns it
func (m *MemoryStore) AddTenant(slug, name string) *Tenant {
	m.mu.Lock()
	defer m.mu.Unlock()

	tenant := &Tenant{ID: uuid.NewString(), Slug: slug, Name: name}
	m.tenants[tenant.ID] = tenant
	return tenant
}

// FindTenant implements Store
func (m *MemoryStore) FindTenant(_ context.Context, ref TenantRef) (*Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ref.ID != "" {
		if t, ok := m.tenants[ref.ID]; ok {
			out := *t
			return &out, nil
		}
		return nil, ErrNotFound
	}
	for _, t := range m.tenants {
		if ref.Slug != "" && t.Slug == ref.Slug {
			out := *t
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

// SetMembershipRole creates or updates a membership
func (m *MemoryStore) SetMembershipRole(_ context.Context, tenantID, userID, role string) (*Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tenants[tenantID]; !ok {
		return nil, ErrNotFound
	}
	if _, ok := m.users[userID]; !ok {
		return nil, ErrNotFound
	}
	m.memberships[[2]string{tenantID, userID}] = role
	return &Membership{TenantID: tenantID, UserID: userID, Role: role}, nil
}

// GetMembership implements Store
func (m *MemoryStore) GetMembership(_ context.Context, tenantID, userID string) (*Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	role, ok := m.memberships[[2]string{tenantID, userID}]
	if !ok {
		return nil, ErrNotFound
	}
	return &Membership{TenantID: tenantID, UserID: userID, Role: role}, nil
}

// ListMemberships implements Store
func (m *MemoryStore) ListMemberships(_ context.Context, userID string) ([]TenantMembership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []TenantMembership{}
	for key, role := range m.memberships {
		if key[1] != userID {
			continue
		}
		if t, ok := m.tenants[key[0]]; ok {
			out = append(out, TenantMembership{Tenant: *t, Role: role})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tenant.Name != out[j].Tenant.Name {
			return out[i].Tenant.Name < out[j].Tenant.Name
		}
		return out[i].Tenant.Slug < out[j].Tenant.Slug
	})
	return out, nil
}
