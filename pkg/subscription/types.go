package subscription

import (
	"strings"
	"time"
)

// Plan is a subscription tier
type Plan string

const (
	PlanFree  Plan = "FREE"
	PlanBasic Plan = "BASIC"
	PlanPro   Plan = "PRO"
)

var planRank = map[Plan]int{
	PlanFree:  0,
	PlanBasic: 1,
	PlanPro:   2,
}

// Rank orders plans FREE < BASIC < PRO. Unknown plans rank below FREE.
func (p Plan) Rank() int {
	if rank, ok := planRank[p]; ok {
		return rank
	}
	return -1
}

// AtLeast reports whether p is the same tier as minimum or higher
func (p Plan) AtLeast(minimum Plan) bool {
	return p.Valid() && p.Rank() >= minimum.Rank()
}

// Valid reports whether p is a known plan
func (p Plan) Valid() bool {
	_, ok := planRank[p]
	return ok
}

// ParsePlan parses a plan name, ignoring case and surrounding space
func ParsePlan(s string) (Plan, bool) {
	p := Plan(strings.ToUpper(strings.TrimSpace(s)))
	return p, p.Valid()
}

// Status is the effective state of a subscription at a point in time
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusDisabled Status = "DISABLED"
	StatusExpired  Status = "EXPIRED"
)

// ComputeStatus derives the status from the disable and expiry timestamps.
// Disabling takes precedence over expiry.
func ComputeStatus(expiresAt, disabledAt *time.Time, now time.Time) Status {
	if disabledAt != nil {
		return StatusDisabled
	}
	if expiresAt != nil && !expiresAt.After(now) {
		return StatusExpired
	}
	return StatusActive
}

// Subscription is a stored tenant_subscriptions row
type Subscription struct {
	TenantID        string     `json:"tenantId"`
	Plan            Plan       `json:"plan"`
	StartsAt        time.Time  `json:"startsAt"`
	ExpiresAt       *time.Time `json:"expiresAt"`
	DisabledAt      *time.Time `json:"disabledAt"`
	DisabledReason  *string    `json:"disabledReason"`
	MaxImages       *int64     `json:"maxImages"`
	MaxStorageBytes *int64     `json:"maxStorageBytes"`
	MaxShares       *int64     `json:"maxShares"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Resolved is the effective subscription of a tenant
type Resolved struct {
	TenantID        string     `json:"tenantId"`
	IsConfigured    bool       `json:"isConfigured"`
	Plan            Plan       `json:"plan"`
	Status          Status     `json:"status"`
	StartsAt        *time.Time `json:"startsAt"`
	ExpiresAt       *time.Time `json:"expiresAt"`
	DisabledAt      *time.Time `json:"disabledAt"`
	DisabledReason  *string    `json:"disabledReason"`
	MaxImages       *int64     `json:"maxImages"`
	MaxStorageBytes *int64     `json:"maxStorageBytes"`
	MaxShares       *int64     `json:"maxShares"`
	CreatedAt       *time.Time `json:"createdAt"`
	UpdatedAt       *time.Time `json:"updatedAt"`
}

// Unconfigured is the effective subscription of a tenant without a row
func Unconfigured(tenantID string) *Resolved {
	return &Resolved{
		TenantID: tenantID,
		Plan:     PlanFree,
		Status:   StatusActive,
	}
}

// Resolve computes the effective subscription of a stored row at now
func (s *Subscription) Resolve(now time.Time) *Resolved {
	startsAt, createdAt, updatedAt := s.StartsAt, s.CreatedAt, s.UpdatedAt
	return &Resolved{
		TenantID:        s.TenantID,
		IsConfigured:    true,
		Plan:            s.Plan,
		Status:          ComputeStatus(s.ExpiresAt, s.DisabledAt, now),
		StartsAt:        &startsAt,
		ExpiresAt:       s.ExpiresAt,
		DisabledAt:      s.DisabledAt,
		DisabledReason:  s.DisabledReason,
		MaxImages:       s.MaxImages,
		MaxStorageBytes: s.MaxStorageBytes,
		MaxShares:       s.MaxShares,
		CreatedAt:       &createdAt,
		UpdatedAt:       &updatedAt,
	}
}

// ActivationCode is a stored activation code. The raw code is never stored.
type ActivationCode struct {
	ID              string     `json:"id"`
	CodeDigest      string     `json:"-"`
	CodeLabel       string     `json:"codeLabel"`
	TargetTenantID  *string    `json:"targetTenantId"`
	Plan            Plan       `json:"plan"`
	DurationDays    *int       `json:"durationDays"`
	MaxImages       *int64     `json:"maxImages"`
	MaxStorageBytes *int64     `json:"maxStorageBytes"`
	MaxShares       *int64     `json:"maxShares"`
	RedeemLimit     int        `json:"redeemLimit"`
	RedeemedCount   int        `json:"redeemedCount"`
	ExpiresAt       *time.Time `json:"expiresAt"`
	DisabledAt      *time.Time `json:"disabledAt"`
	CreatedByUserID *string    `json:"createdByUserId"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// Redemption records one successful activation code redemption
type Redemption struct {
	ID               string
	ActivationCodeID string
	TenantID         string
	RedeemedByUserID string
	RedeemedAt       time.Time
}

// CreateCodeParams describes a new activation code
type CreateCodeParams struct {
	TargetTenantID  *string    `json:"targetTenantId" validate:"omitempty,uuid"`
	Plan            Plan       `json:"plan" validate:"required,oneof=FREE BASIC PRO"`
	DurationDays    *int       `json:"durationDays" validate:"omitempty,min=1,max=3650"`
	MaxImages       *int64     `json:"maxImages" validate:"omitempty,min=0"`
	MaxStorageBytes *int64     `json:"maxStorageBytes" validate:"omitempty,min=0"`
	MaxShares       *int64     `json:"maxShares" validate:"omitempty,min=0"`
	RedeemLimit     *int       `json:"redeemLimit" validate:"omitempty,min=1,max=100000"`
	ExpiresAt       *time.Time `json:"expiresAt"`
}

// CreatedCode is the result of creating an activation code. Code is the
// raw value and is only ever returned here.
type CreatedCode struct {
	Code   string          `json:"code"`
	Record *ActivationCode `json:"record"`
}
