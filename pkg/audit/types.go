package audit

import (
	"encoding/json"
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authentication events
	EventTypeAuthCodeRequested EventType = "auth.code_requested"
	EventTypeAuthLogin         EventType = "auth.login"
	EventTypeAuthLoginFailed   EventType = "auth.login_failed"
	EventTypeAuthSwitchTenant  EventType = "auth.switch_tenant"

	// Authorization events
	EventTypeAuthzAccessDenied EventType = "authz.access_denied"

	// Membership events
	EventTypeMembershipRoleChange EventType = "membership.role_change"

	// Subscription events
	EventTypeSubscriptionUpdate         EventType = "subscription.update"
	EventTypeActivationCodeCreate       EventType = "subscription.activation_code.create"
	EventTypeActivationCodeRedeem       EventType = "subscription.activation_code.redeem"
	EventTypeActivationCodeRedeemFailed EventType = "subscription.activation_code.redeem_failed"

	// Share events
	EventTypeShareCreate EventType = "share.create"
	EventTypeShareAccess EventType = "share.access"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// ResourceType represents the type of resource an event refers to
type ResourceType string

const (
	ResourceTypeUser           ResourceType = "user"
	ResourceTypeTenant         ResourceType = "tenant"
	ResourceTypeMembership     ResourceType = "membership"
	ResourceTypeSubscription   ResourceType = "subscription"
	ResourceTypeActivationCode ResourceType = "activation_code"
	ResourceTypeShare          ResourceType = "share"
)

// SharePhase identifies which step of public share access produced an event
type SharePhase string

const (
	SharePhaseEntry SharePhase = "entry"
	SharePhaseData  SharePhase = "data"
	SharePhaseAsset SharePhase = "asset"
)

// Event represents a single audit log entry
type Event struct {
	ID        int64       `json:"id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor and scope
	UserID   string `json:"user_id,omitempty"`
	TenantID string `json:"tenant_id,omitempty"`

	// Resource
	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`

	// Request context
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	RequestID string `json:"request_id,omitempty"`

	Message  string                 `json:"message,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// WithMetadata sets a metadata key and returns the event for chaining
func (e *Event) WithMetadata(key string, value interface{}) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ToJSON converts the audit event to JSON
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}
