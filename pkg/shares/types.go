package shares

import "time"

// ResourceType names a kind of shareable resource
type ResourceType string

const (
	ResourceTenantFeed ResourceType = "tenant_feed"
	ResourceProduct    ResourceType = "product"
)

// Share is a stored public share
type Share struct {
	ID              string       `json:"id"`
	TenantID        string       `json:"tenantId"`
	ResourceType    ResourceType `json:"resourceType"`
	ResourceID      string       `json:"resourceId"`
	ShareToken      string       `json:"shareToken"`
	CreatedByUserID *string      `json:"createdByUserId"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`

	// Tenant is populated by lookups that join the owning tenant
	Tenant *TenantInfo `json:"-"`
}

// TenantInfo is the public identity of the tenant owning a share
type TenantInfo struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// CreateRequest is the payload for creating a share
type CreateRequest struct {
	ResourceType ResourceType `json:"resourceType" validate:"required"`
	ResourceID   string       `json:"resourceId" validate:"required,max=255"`
}

// CreatedShare is a share together with its public entry URL
type CreatedShare struct {
	*Share
	EntryURL string `json:"entryUrl"`
}

// ClientMeta describes the public client for rate limiting and audit
type ClientMeta struct {
	IP        string
	UserAgent string
}

// PublicView is the payload served to public share visitors
type PublicView struct {
	ShareID      string       `json:"shareId"`
	Tenant       TenantInfo   `json:"tenant"`
	ResourceType ResourceType `json:"resourceType"`
	ResourceID   string       `json:"resourceId"`
	ExpiresAt    time.Time    `json:"expiresAt"`
	Resource     interface{}  `json:"resource"`
}
