package subscription

import (
	"bytes"
	"encoding/json"
	"time"
)

// Optional is a JSON field that distinguishes absent, null and a value.
// Set is true when the field appeared in the payload, even as null.
type Optional[T any] struct {
	Set   bool
	Value *T
}

// Some returns a set optional holding v
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

// Null returns a set optional holding null
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

// UnmarshalJSON implements json.Unmarshaler. It is only called for fields
// present in the payload.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// Update is a partial subscription change. Absent fields keep their
// current value; null clears nullable fields.
type Update struct {
	Plan            Optional[Plan]      `json:"plan"`
	StartsAt        Optional[time.Time] `json:"startsAt"`
	ExpiresAt       Optional[time.Time] `json:"expiresAt"`
	DisabledAt      Optional[time.Time] `json:"disabledAt"`
	DisabledReason  Optional[string]    `json:"disabledReason"`
	MaxImages       Optional[int64]     `json:"maxImages"`
	MaxStorageBytes Optional[int64]     `json:"maxStorageBytes"`
	MaxShares       Optional[int64]     `json:"maxShares"`
}

// apply merges u into existing, or into a new row for tenantID when
// existing is nil. Validation is left to the caller.
func (u Update) apply(tenantID string, existing *Subscription, now time.Time) *Subscription {
	var next Subscription
	if existing != nil {
		next = *existing
	} else {
		next = Subscription{
			TenantID:  tenantID,
			Plan:      PlanFree,
			StartsAt:  now,
			CreatedAt: now,
		}
	}
	next.UpdatedAt = now

	if u.Plan.Set && u.Plan.Value != nil {
		next.Plan = *u.Plan.Value
	}
	if u.StartsAt.Set && u.StartsAt.Value != nil {
		next.StartsAt = *u.StartsAt.Value
	}
	if u.ExpiresAt.Set {
		next.ExpiresAt = u.ExpiresAt.Value
	}
	if u.DisabledAt.Set {
		next.DisabledAt = u.DisabledAt.Value
	}
	if u.DisabledReason.Set {
		next.DisabledReason = u.DisabledReason.Value
	} else if u.DisabledAt.Set && u.DisabledAt.Value == nil {
		// Re-enabling without a new reason drops the stale one
		next.DisabledReason = nil
	}
	if u.MaxImages.Set {
		next.MaxImages = u.MaxImages.Value
	}
	if u.MaxStorageBytes.Set {
		next.MaxStorageBytes = u.MaxStorageBytes.Value
	}
	if u.MaxShares.Set {
		next.MaxShares = u.MaxShares.Value
	}
	return &next
}

func (u Update) validate() error {
	if u.Plan.Set {
		if u.Plan.Value == nil || !u.Plan.Value.Valid() {
			return errInvalidPayload("plan must be one of FREE, BASIC, PRO.")
		}
	}
	if u.StartsAt.Set && u.StartsAt.Value == nil {
		return errInvalidPayload("startsAt cannot be null.")
	}
	limits := []struct {
		name  string
		value *int64
	}{
		{"maxImages", u.MaxImages.Value},
		{"maxStorageBytes", u.MaxStorageBytes.Value},
		{"maxShares", u.MaxShares.Value},
	}
	for _, limit := range limits {
		if limit.value != nil && *limit.value < 0 {
			return errInvalidPayload(limit.name + " must be greater than or equal to 0.")
		}
	}
	return nil
}
