package subscription

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/platinummonkey/tenantgate/pkg/apierr"
	"github.com/platinummonkey/tenantgate/pkg/audit"
	"github.com/platinummonkey/tenantgate/pkg/observability"
)

const (
	maxCodeAttempts = 5
	cacheName       = "subscription"
)

// Cache is a JSON value cache such as postgres.RedisCache
type Cache interface {
	Get(ctx context.Context, key string, dst interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Config holds subscription service settings
type Config struct {
	// CodePepper is mixed into activation code digests
	CodePepper string

	// CacheTTL bounds how long a subscription row may be served from the
	// cache. Zero disables caching.
	CacheTTL time.Duration
}

// Service resolves tenant subscriptions, enforces plan limits and manages
// activation codes
type Service struct {
	store   Store
	cache   Cache
	config  Config
	audit   audit.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewService creates a subscription service. auditLogger and metrics may be nil.
func NewService(store Store, config Config, auditLogger audit.Logger, metrics *observability.Metrics) *Service {
	if auditLogger == nil {
		auditLogger = audit.NopLogger{}
	}
	return &Service{
		store:   store,
		config:  config,
		audit:   auditLogger,
		metrics: metrics,
		now:     time.Now,
	}
}

// WithCache serves subscription rows from cache for Config.CacheTTL
func (s *Service) WithCache(cache Cache) *Service {
	if s.config.CacheTTL > 0 {
		s.cache = cache
	}
	return s
}

// cachedRow is the cache entry for a tenant. Configured is false when the
// tenant has no subscription row.
type cachedRow struct {
	Configured   bool          `json:"configured"`
	Subscription *Subscription `json:"subscription,omitempty"`
}

func cacheKey(tenantID string) string {
	return "subscription:" + tenantID
}

// Resolve returns the effective subscription of a tenant
func (s *Service) Resolve(ctx context.Context, tenantID string) (*Resolved, error) {
	if err := ctx.Err(); err != nil {
		return nil, apierr.From(err)
	}

	row, err := s.loadRow(ctx, tenantID)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if row == nil {
		return Unconfigured(tenantID), nil
	}
	return row.Resolve(s.now()), nil
}

func (s *Service) loadRow(ctx context.Context, tenantID string) (*Subscription, error) {
	key := cacheKey(tenantID)
	if s.cache != nil {
		var entry cachedRow
		hit, err := s.cache.Get(ctx, key, &entry)
		if err != nil {
			observability.FromContext(ctx).WithError(err).Warn("Subscription cache read failed")
		}
		if hit {
			s.metrics.RecordCacheHit(cacheName)
			return entry.Subscription, nil
		}
		s.metrics.RecordCacheMiss(cacheName)
	}

	sub, err := s.store.GetSubscription(ctx, tenantID)
	if errors.Is(err, ErrNotFound) {
		sub, err = nil, nil
	}
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		entry := cachedRow{Configured: sub != nil, Subscription: sub}
		if err := s.cache.Set(ctx, key, entry, s.config.CacheTTL); err != nil {
			observability.FromContext(ctx).WithError(err).Warn("Subscription cache write failed")
		}
	}
	return sub, nil
}

func (s *Service) invalidate(ctx context.Context, tenantID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cacheKey(tenantID)); err != nil {
		observability.FromContext(ctx).
			WithError(err).
			WithField("tenant_id", tenantID).
			Warn("Subscription cache invalidation failed")
	}
}

// Get returns the effective subscription of an existing tenant
func (s *Service) Get(ctx context.Context, tenantID string) (*Resolved, error) {
	if err := s.requireTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	return s.Resolve(ctx, tenantID)
}

func (s *Service) requireTenant(ctx context.Context, tenantID string) error {
	exists, err := s.store.TenantExists(ctx, tenantID)
	if err != nil {
		return apierr.Internal(err)
	}
	if !exists {
		return errTenantNotFound()
	}
	return nil
}

// Upsert applies a partial update to the tenant's subscription, creating
// it when missing
func (s *Service) Upsert(ctx context.Context, tenantID string, update Update) (*Resolved, error) {
	if err := update.validate(); err != nil {
		return nil, err
	}

	now := s.now()
	var saved *Subscription
	err := s.store.WithTx(ctx, func(tx Tx) error {
		existing, err := tx.GetSubscriptionForUpdate(ctx, tenantID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}

		next := update.apply(tenantID, existing, now)
		if next.ExpiresAt != nil && next.ExpiresAt.Before(next.StartsAt) {
			return errInvalidPayload("expiresAt must be greater than or equal to startsAt.")
		}

		saved, err = tx.SaveSubscription(ctx, next)
		return err
	})
	if err != nil {
		return nil, storeError(err)
	}
	s.invalidate(ctx, tenantID)

	event := audit.NewEvent(ctx, audit.EventTypeSubscriptionUpdate, audit.EventStatusSuccess)
	event.TenantID = tenantID
	event.ResourceType = audit.ResourceTypeSubscription
	event.ResourceID = tenantID
	event.Message = "Tenant subscription updated"
	event.WithMetadata("plan", string(saved.Plan))
	audit.Emit(ctx, s.audit, event)

	return saved.Resolve(now), nil
}

// CreateActivationCode issues a new activation code. The raw code is only
// returned here.
func (s *Service) CreateActivationCode(ctx context.Context, actorUserID string, params CreateCodeParams) (*CreatedCode, error) {
	if !params.Plan.Valid() {
		return nil, errInvalidPayload("plan must be one of FREE, BASIC, PRO.")
	}
	if params.DurationDays != nil && *params.DurationDays <= 0 {
		return nil, errInvalidPayload("durationDays must be greater than 0.")
	}
	redeemLimit := 1
	if params.RedeemLimit != nil {
		redeemLimit = *params.RedeemLimit
	}
	if redeemLimit < 1 {
		return nil, errInvalidPayload("redeemLimit must be greater than or equal to 1.")
	}
	if params.TargetTenantID != nil {
		if err := s.requireTenant(ctx, *params.TargetTenantID); err != nil {
			return nil, err
		}
	}

	now := s.now()
	var actor *string
	if actorUserID != "" {
		actor = &actorUserID
	}

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		raw, err := GenerateActivationCode()
		if err != nil {
			return nil, apierr.Internal(err)
		}
		normalized, _ := NormalizeActivationCode(raw)

		record := &ActivationCode{
			CodeDigest:      DigestActivationCode(normalized, s.config.CodePepper),
			CodeLabel:       LabelActivationCode(normalized),
			TargetTenantID:  params.TargetTenantID,
			Plan:            params.Plan,
			DurationDays:    params.DurationDays,
			MaxImages:       params.MaxImages,
			MaxStorageBytes: params.MaxStorageBytes,
			MaxShares:       params.MaxShares,
			RedeemLimit:     redeemLimit,
			ExpiresAt:       params.ExpiresAt,
			CreatedByUserID: actor,
			CreatedAt:       now,
		}

		err = s.store.CreateActivationCode(ctx, record)
		if errors.Is(err, ErrConflict) {
			continue
		}
		if err != nil {
			return nil, storeError(err)
		}

		event := audit.NewEvent(ctx, audit.EventTypeActivationCodeCreate, audit.EventStatusSuccess)
		event.UserID = actorUserID
		event.ResourceType = audit.ResourceTypeActivationCode
		event.ResourceID = record.ID
		event.Message = "Subscription activation code created"
		event.WithMetadata("plan", string(record.Plan)).
			WithMetadata("redeemLimit", record.RedeemLimit).
			WithMetadata("codeLabel", record.CodeLabel)
		if record.TargetTenantID != nil {
			event.WithMetadata("targetTenantId", *record.TargetTenantID)
		}
		if record.DurationDays != nil {
			event.WithMetadata("durationDays", *record.DurationDays)
		}
		audit.Emit(ctx, s.audit, event)

		return &CreatedCode{Code: raw, Record: record}, nil
	}

	return nil, apierr.Internal(errors.New("could not generate a unique activation code"))
}

// RedeemActivationCode applies an activation code to the tenant's
// subscription. The code lookup, redeem count increment, subscription
// write and redemption record commit together.
func (s *Service) RedeemActivationCode(ctx context.Context, tenantID, actorUserID, rawCode string) (res *Resolved, err error) {
	ctx, span := observability.StartSpan(ctx, "subscription.redeem_activation_code",
		attribute.String("tenant.id", tenantID))
	defer func() { observability.EndSpan(span, err) }()

	var code *ActivationCode
	defer func() {
		s.recordRedemption(ctx, tenantID, actorUserID, code, err)
	}()

	normalized, ok := NormalizeActivationCode(rawCode)
	if !ok {
		return nil, errCodeInvalid()
	}
	digest := DigestActivationCode(normalized, s.config.CodePepper)

	now := s.now()
	var saved *Subscription
	err = s.store.WithTx(ctx, func(tx Tx) error {
		found, err := tx.FindActivationCode(ctx, digest)
		if errors.Is(err, ErrNotFound) {
			return errCodeInvalid()
		}
		if err != nil {
			return err
		}
		code = found

		if code.TargetTenantID != nil && *code.TargetTenantID != tenantID {
			return errCodeInvalid()
		}
		if code.DisabledAt != nil {
			return apierr.New(apierr.CodeActivationCodeDisabled, "Activation code is disabled.")
		}
		if code.ExpiresAt != nil && !code.ExpiresAt.After(now) {
			return apierr.New(apierr.CodeActivationCodeExpired, "Activation code is expired.")
		}

		incremented, err := tx.IncrementRedeemedCount(ctx, code.ID)
		if err != nil {
			return err
		}
		if !incremented {
			return apierr.New(apierr.CodeActivationCodeLimitReached, "Activation code redeem limit reached.")
		}

		existing, err := tx.GetSubscriptionForUpdate(ctx, tenantID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		saved, err = tx.SaveSubscription(ctx, applyCode(tenantID, existing, code, now))
		if err != nil {
			return err
		}

		return tx.RecordRedemption(ctx, &Redemption{
			ActivationCodeID: code.ID,
			TenantID:         tenantID,
			RedeemedByUserID: actorUserID,
			RedeemedAt:       now,
		})
	})
	if err != nil {
		return nil, storeError(err)
	}
	s.invalidate(ctx, tenantID)

	return saved.Resolve(now), nil
}

// applyCode grants the code's plan and quotas. Durations extend from the
// later of now and the current expiry; codes without a duration leave the
// current expiry untouched. The disabled state is left as is.
func applyCode(tenantID string, existing *Subscription, code *ActivationCode, now time.Time) *Subscription {
	var next Subscription
	if existing != nil {
		next = *existing
	} else {
		next = Subscription{TenantID: tenantID, StartsAt: now, CreatedAt: now}
	}

	next.Plan = code.Plan
	next.MaxImages = code.MaxImages
	next.MaxStorageBytes = code.MaxStorageBytes
	next.MaxShares = code.MaxShares
	next.UpdatedAt = now

	if code.DurationDays != nil {
		base := now
		if next.ExpiresAt != nil && next.ExpiresAt.After(now) {
			base = *next.ExpiresAt
		}
		expiresAt := base.Add(time.Duration(*code.DurationDays) * 24 * time.Hour)
		next.ExpiresAt = &expiresAt
	}
	return &next
}

func (s *Service) recordRedemption(ctx context.Context, tenantID, actorUserID string, code *ActivationCode, err error) {
	outcome := "success"
	eventType := audit.EventTypeActivationCodeRedeem
	status := audit.EventStatusSuccess
	if err != nil {
		outcome = string(apierr.CodeOf(err))
		eventType = audit.EventTypeActivationCodeRedeemFailed
		status = audit.EventStatusFailure
	}
	s.metrics.RecordActivationRedemption(outcome)

	event := audit.NewEvent(ctx, eventType, status)
	event.UserID = actorUserID
	event.TenantID = tenantID
	event.ResourceType = audit.ResourceTypeActivationCode
	if code != nil {
		event.ResourceID = code.ID
		event.WithMetadata("codeLabel", code.CodeLabel).WithMetadata("plan", string(code.Plan))
	}
	if err != nil {
		event.Message = "Activation code redemption failed"
		event.WithMetadata("reason", outcome)
	} else {
		event.Message = "Activation code redeemed"
	}
	audit.Emit(ctx, s.audit, event)
}

func errInvalidPayload(message string) error { return apierr.InvalidRequest(message) }

func errTenantNotFound() error { return apierr.New(apierr.CodeTenantNotFound, "Tenant not found.") }

func errCodeInvalid() error {
	return apierr.New(apierr.CodeActivationCodeInvalid, "Activation code is invalid.")
}

// storeError maps store sentinels to API errors and passes API errors through
func storeError(err error) error {
	if errors.Is(err, ErrTenantNotFound) {
		return errTenantNotFound()
	}
	return apierr.From(err)
}
