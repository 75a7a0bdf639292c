package auth

import (
	"time"

	"github.com/platinummonkey/tenantgate/pkg/token"
)

// User is an authenticated identity. Users are created by email on their
// first successful code verification; the id never changes afterwards.
type User struct {
	ID                string     `json:"id"`
	Email             string     `json:"email"`
	DisplayName       *string    `json:"name"`
	PasswordHash      string     `json:"-"`
	PasswordUpdatedAt *time.Time `json:"passwordUpdatedAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

// Tenant is the unit of isolation that memberships, subscriptions and
// shares belong to
type Tenant struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// Membership binds a user to a tenant with a role. Role holds one of
// OWNER, ADMIN, EDITOR or VIEWER.
type Membership struct {
	TenantID string `json:"tenantId"`
	UserID   string `json:"userId"`
	Role     string `json:"role"`
}

// TenantMembership is a membership joined with its tenant
type TenantMembership struct {
	Tenant Tenant `json:"tenant"`
	Role   string `json:"role"`
}

// LoginCode is a stored one-time login code. Only the salted hash of the
// code is persisted.
type LoginCode struct {
	ID         string
	Email      string
	CodeHash   string
	Salt       string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	ConsumedAt *time.Time
}

// TenantRef selects a tenant by id or, when ID is empty, by slug
type TenantRef struct {
	ID   string `json:"tenantId,omitempty"`
	Slug string `json:"slug,omitempty"`
}

// AuthContext is the verified caller of a request. TenantID is the tenant
// the session token is scoped to, if any.
type AuthContext struct {
	User     *User
	TenantID string
	Claims   *token.Claims
}

// HasTenant reports whether the session is scoped to a tenant
func (a *AuthContext) HasTenant() bool {
	return a != nil && a.TenantID != ""
}

// CodeRequest is the result of RequestCode. DevCode is only populated in
// development with the dev-code flag enabled.
type CodeRequest struct {
	OK        bool      `json:"ok"`
	ExpiresAt time.Time `json:"expiresAt"`
	DevCode   string    `json:"devCode,omitempty"`
}

// Session is a freshly minted access token for a user
type Session struct {
	AccessToken string `json:"accessToken"`
	User        *User  `json:"user"`
}

// TenantSession is a session re-scoped to a tenant
type TenantSession struct {
	AccessToken string  `json:"accessToken"`
	Tenant      *Tenant `json:"tenant"`
	Role        string  `json:"role"`
}
