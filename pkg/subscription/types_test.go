package subscription

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlan_Rank(t *testing.T) {
	assert.True(t, PlanPro.AtLeast(PlanPro))
	assert.True(t, PlanPro.AtLeast(PlanBasic))
	assert.True(t, PlanBasic.AtLeast(PlanFree))
	assert.False(t, PlanBasic.AtLeast(PlanPro))
	assert.False(t, PlanFree.AtLeast(PlanBasic))
	assert.False(t, Plan("ENTERPRISE").AtLeast(PlanFree))

	p, ok := ParsePlan(" pro ")
	assert.True(t, ok)
	assert.Equal(t, PlanPro, p)

	_, ok = ParsePlan("gold")
	assert.False(t, ok)
}

func TestComputeStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Hour)

	tests := []struct {
		name       string
		expiresAt  *time.Time
		disabledAt *time.Time
		want       Status
	}{
		{"no limits", nil, nil, StatusActive},
		{"future expiry", &future, nil, StatusActive},
		{"expiry equal to now", &now, nil, StatusExpired},
		{"past expiry", &past, nil, StatusExpired},
		{"disabled wins over expired", &past, &past, StatusDisabled},
		{"disabled in the future still disables", nil, &future, StatusDisabled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeStatus(tt.expiresAt, tt.disabledAt, now))
		})
	}
}

func TestUnconfigured(t *testing.T) {
	res := Unconfigured("tenant-1")
	assert.False(t, res.IsConfigured)
	assert.Equal(t, PlanFree, res.Plan)
	assert.Equal(t, StatusActive, res.Status)
	assert.Nil(t, res.MaxImages)
	assert.Nil(t, res.MaxStorageBytes)
	assert.Nil(t, res.MaxShares)
}

func TestUpdate_UnmarshalJSON(t *testing.T) {
	var u Update
	require.NoError(t, json.Unmarshal([]byte(`{"plan":"PRO","expiresAt":null,"maxShares":5}`), &u))

	assert.True(t, u.Plan.Set)
	require.NotNil(t, u.Plan.Value)
	assert.Equal(t, PlanPro, *u.Plan.Value)

	assert.True(t, u.ExpiresAt.Set)
	assert.Nil(t, u.ExpiresAt.Value)

	assert.True(t, u.MaxShares.Set)
	require.NotNil(t, u.MaxShares.Value)
	assert.Equal(t, int64(5), *u.MaxShares.Value)

	assert.False(t, u.DisabledAt.Set)
	assert.False(t, u.MaxImages.Set)
}

func TestUpdate_Apply(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	created := now.Add(-48 * time.Hour)
	disabled := now.Add(-time.Hour)
	reason := "billing"
	limit := int64(10)

	existing := &Subscription{
		TenantID:       "tenant-1",
		Plan:           PlanBasic,
		StartsAt:       created,
		DisabledAt:     &disabled,
		DisabledReason: &reason,
		MaxImages:      &limit,
		CreatedAt:      created,
		UpdatedAt:      created,
	}

	t.Run("new row defaults", func(t *testing.T) {
		next := Update{}.apply("tenant-2", nil, now)
		assert.Equal(t, "tenant-2", next.TenantID)
		assert.Equal(t, PlanFree, next.Plan)
		assert.Equal(t, now, next.StartsAt)
		assert.Equal(t, now, next.CreatedAt)
	})

	t.Run("absent fields are kept", func(t *testing.T) {
		next := Update{Plan: Some(PlanPro)}.apply("tenant-1", existing, now)
		assert.Equal(t, PlanPro, next.Plan)
		assert.Equal(t, &limit, next.MaxImages)
		assert.Equal(t, &disabled, next.DisabledAt)
		assert.Equal(t, &reason, next.DisabledReason)
		assert.Equal(t, created, next.CreatedAt)
		assert.Equal(t, now, next.UpdatedAt)
	})

	t.Run("null clears nullable fields", func(t *testing.T) {
		next := Update{MaxImages: Null[int64]()}.apply("tenant-1", existing, now)
		assert.Nil(t, next.MaxImages)
	})

	t.Run("re-enabling clears the reason", func(t *testing.T) {
		next := Update{DisabledAt: Null[time.Time]()}.apply("tenant-1", existing, now)
		assert.Nil(t, next.DisabledAt)
		assert.Nil(t, next.DisabledReason)
	})

	t.Run("re-enabling keeps an explicit reason", func(t *testing.T) {
		next := Update{
			DisabledAt:     Null[time.Time](),
			DisabledReason: Some("resolved"),
		}.apply("tenant-1", existing, now)
		require.NotNil(t, next.DisabledReason)
		assert.Equal(t, "resolved", *next.DisabledReason)
	})

	t.Run("existing row is not mutated", func(t *testing.T) {
		Update{Plan: Some(PlanFree), MaxImages: Null[int64]()}.apply("tenant-1", existing, now)
		assert.Equal(t, PlanBasic, existing.Plan)
		assert.NotNil(t, existing.MaxImages)
	})
}

func TestUpdate_Validate(t *testing.T) {
	negative := int64(-1)

	assert.NoError(t, Update{}.validate())
	assert.NoError(t, Update{Plan: Some(PlanBasic), MaxShares: Null[int64]()}.validate())
	assert.Error(t, Update{Plan: Some(Plan("GOLD"))}.validate())
	assert.Error(t, Update{Plan: Null[Plan]()}.validate())
	assert.Error(t, Update{StartsAt: Null[time.Time]()}.validate())
	assert.Error(t, Update{MaxStorageBytes: Optional[int64]{Set: true, Value: &negative}}.validate())
}
