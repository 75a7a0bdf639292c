package shares

import (
	"context"
	"errors"
	"time"

	"github.com/platinummonkey/tenantgate/pkg/apierr"
	"github.com/platinummonkey/tenantgate/pkg/audit"
	"github.com/platinummonkey/tenantgate/pkg/catalog"
	"github.com/platinummonkey/tenantgate/pkg/observability"
	"github.com/platinummonkey/tenantgate/pkg/ratelimit"
	"github.com/platinummonkey/tenantgate/pkg/storage"
)

const maxCreateAttempts = 3

// CreateGate admits or rejects share creation for a tenant
type CreateGate interface {
	AssertShareCreateAllowed(ctx context.Context, tenantID string, isNewShare bool) error
}

// AssetReader opens stored objects for the public asset endpoint
type AssetReader interface {
	Get(ctx context.Context, key string) (*storage.Object, error)
}

// Service creates shares and serves public share access
type Service struct {
	store     Store
	signer    *Signer
	gate      CreateGate
	limiter   ratelimit.Limiter
	assets    AssetReader
	resources map[ResourceType]Resource
	audit     audit.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

// Options are the collaborators of a share service
type Options struct {
	Store     Store
	Signer    *Signer
	Gate      CreateGate
	Limiter   ratelimit.Limiter
	Assets    AssetReader
	Resources map[ResourceType]Resource
	Audit     audit.Logger
	Metrics   *observability.Metrics
}

// NewService creates a share service
func NewService(opts Options) *Service {
	if opts.Audit == nil {
		opts.Audit = audit.NopLogger{}
	}
	return &Service{
		store:     opts.Store,
		signer:    opts.Signer,
		gate:      opts.Gate,
		limiter:   opts.Limiter,
		assets:    opts.Assets,
		resources: opts.Resources,
		audit:     opts.Audit,
		metrics:   opts.Metrics,
		now:       time.Now,
	}
}

func errShareNotFound(message string) error {
	return apierr.New(apierr.CodeShareNotFound, message)
}

// CreateShare returns the tenant's share for a resource, creating it on
// first use. Concurrent creators converge on a single share.
func (s *Service) CreateShare(ctx context.Context, tenantID, actorUserID string, req CreateRequest) (*CreatedShare, error) {
	resource, ok := s.resources[req.ResourceType]
	if !ok {
		return nil, apierr.Newf(apierr.CodeInvalidRequest, "Unsupported resourceType: %s", req.ResourceType)
	}

	exists, err := resource.Exists(ctx, tenantID, req.ResourceID)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if !exists {
		return nil, apierr.New(apierr.CodeResourceNotFound, "Resource not found.")
	}

	share, err := s.store.FindByResource(ctx, tenantID, req.ResourceType, req.ResourceID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, apierr.Internal(err)
	}

	if err := s.gate.AssertShareCreateAllowed(ctx, tenantID, share == nil); err != nil {
		return nil, err
	}

	created := false
	if share == nil {
		share, created, err = s.create(ctx, tenantID, actorUserID, req)
		if err != nil {
			return nil, err
		}
	}

	event := audit.NewEvent(ctx, audit.EventTypeShareCreate, audit.EventStatusSuccess)
	event.TenantID = tenantID
	event.UserID = actorUserID
	event.ResourceType = audit.ResourceTypeShare
	event.ResourceID = share.ID
	event.Message = "Public share created"
	event.WithMetadata("resourceType", string(share.ResourceType)).
		WithMetadata("resourceId", share.ResourceID).
		WithMetadata("created", created)
	audit.Emit(ctx, s.audit, event)

	return &CreatedShare{Share: share, EntryURL: s.signer.EntryURL(share.ShareToken)}, nil
}

// create inserts a new share. A unique violation means either another
// request created the share first, in which case its row is returned, or
// the random token collided, in which case a new token is tried.
func (s *Service) create(ctx context.Context, tenantID, actorUserID string, req CreateRequest) (*Share, bool, error) {
	var createdBy *string
	if actorUserID != "" {
		createdBy = &actorUserID
	}

	for attempt := 1; attempt <= maxCreateAttempts; attempt++ {
		token, err := NewShareToken()
		if err != nil {
			return nil, false, apierr.Internal(err)
		}

		share := &Share{
			TenantID:        tenantID,
			ResourceType:    req.ResourceType,
			ResourceID:      req.ResourceID,
			ShareToken:      token,
			CreatedByUserID: createdBy,
			CreatedAt:       s.now().UTC(),
		}
		err = s.store.Create(ctx, share)
		if err == nil {
			return share, true, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, false, apierr.Internal(err)
		}

		winner, err := s.store.FindByResource(ctx, tenantID, req.ResourceType, req.ResourceID)
		if err == nil {
			return winner, false, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, false, apierr.Internal(err)
		}
	}
	return nil, false, apierr.Internal(errors.New("could not allocate a unique share token"))
}

// ResolveEntry rate limits a public entry request and returns the signed
// redirect URL for the share
func (s *Service) ResolveEntry(ctx context.Context, shareToken string, meta ClientMeta) (string, error) {
	allowed, err := s.limiter.Allow(ctx, ratelimit.EntryKey(shareToken, meta.IP))
	if err != nil {
		s.metrics.RecordShareEntry("error")
		return "", apierr.Internal(err)
	}
	if !allowed {
		s.metrics.RecordShareEntry("rate_limited")
		return "", apierr.New(apierr.CodeRateLimited, "Too many share entry requests. Please retry later.")
	}

	share, err := s.store.FindByToken(ctx, shareToken)
	if errors.Is(err, ErrNotFound) {
		s.metrics.RecordShareEntry("not_found")
		return "", errShareNotFound("Share link not found.")
	}
	if err != nil {
		s.metrics.RecordShareEntry("error")
		return "", apierr.Internal(err)
	}

	grant, expiresAt := s.signer.Mint(share)
	s.metrics.RecordShareEntry("redirected")
	s.recordAccess(ctx, share, audit.SharePhaseEntry, expiresAt, meta, nil)

	return s.signer.RedirectURL(share.ShareToken, grant), nil
}

// GetPublicPayload verifies a grant and returns the public view of the
// shared resource
func (s *Service) GetPublicPayload(ctx context.Context, shareID string, params GrantParams, meta ClientMeta) (*PublicView, error) {
	share, grant, expiresAt, err := s.verify(ctx, shareID, params)
	if err != nil {
		return nil, err
	}

	resource, ok := s.resources[share.ResourceType]
	if !ok {
		return nil, errShareNotFound("Share content not found.")
	}
	payload, err := resource.View(ctx, share, func(key string) string {
		return s.signer.AssetURL(grant, key)
	})
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, errShareNotFound("Share content not found.")
	}
	if err != nil {
		return nil, apierr.Internal(err)
	}

	s.recordAccess(ctx, share, audit.SharePhaseData, expiresAt, meta, nil)

	tenant := TenantInfo{ID: share.TenantID}
	if share.Tenant != nil {
		tenant = *share.Tenant
	}
	return &PublicView{
		ShareID:      share.ID,
		Tenant:       tenant,
		ResourceType: share.ResourceType,
		ResourceID:   share.ResourceID,
		ExpiresAt:    expiresAt,
		Resource:     payload,
	}, nil
}

// GetPublicAsset verifies a grant and opens a stored object of the share's
// tenant. The caller closes the object body.
func (s *Service) GetPublicAsset(ctx context.Context, shareID string, params GrantParams, key string, meta ClientMeta) (*storage.Object, error) {
	share, _, expiresAt, err := s.verify(ctx, shareID, params)
	if err != nil {
		return nil, err
	}

	if !storage.HasTenantPrefix(share.TenantID, key) {
		return nil, errShareNotFound("Share asset not found.")
	}

	obj, err := s.assets.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidKey) {
		return nil, errShareNotFound("Share asset not found.")
	}
	if err != nil {
		return nil, apierr.Internal(err)
	}

	s.recordAccess(ctx, share, audit.SharePhaseAsset, expiresAt, meta, map[string]interface{}{"key": key})
	return obj, nil
}

func (s *Service) verify(ctx context.Context, shareID string, params GrantParams) (*Share, Grant, time.Time, error) {
	grant, expiresAt, err := s.signer.Verify(shareID, params)
	if err != nil {
		return nil, Grant{}, time.Time{}, err
	}

	share, err := s.store.FindExact(ctx, shareID, grant.TenantID, grant.ResourceType, grant.ResourceID)
	if errors.Is(err, ErrNotFound) {
		return nil, Grant{}, time.Time{}, errShareNotFound("Share content not found.")
	}
	if err != nil {
		return nil, Grant{}, time.Time{}, apierr.Internal(err)
	}
	return share, grant, expiresAt, nil
}

func (s *Service) recordAccess(ctx context.Context, share *Share, phase audit.SharePhase, expiresAt time.Time, meta ClientMeta, extra map[string]interface{}) {
	event := audit.NewEvent(ctx, audit.EventTypeShareAccess, audit.EventStatusSuccess)
	event.TenantID = share.TenantID
	if share.CreatedByUserID != nil {
		event.UserID = *share.CreatedByUserID
	}
	event.ResourceType = audit.ResourceTypeShare
	event.ResourceID = share.ID
	event.IPAddress = meta.IP
	event.UserAgent = meta.UserAgent
	event.Message = "Public share accessed"
	event.WithMetadata("phase", string(phase)).
		WithMetadata("resourceType", string(share.ResourceType)).
		WithMetadata("resourceId", share.ResourceID).
		WithMetadata("expiresAt", expiresAt.UTC().Format(time.RFC3339))
	for k, v := range extra {
		event.WithMetadata(k, v)
	}
	audit.Emit(ctx, s.audit, event)
}
