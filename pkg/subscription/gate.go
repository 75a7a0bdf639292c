package subscription

import (
	"context"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/tenantgate/pkg/apierr"
)

const gateName = "subscription"

// AssertWritable fails unless the tenant's subscription is ACTIVE
func (s *Service) AssertWritable(ctx context.Context, tenantID string) (*Resolved, error) {
	res, err := s.assertWritable(ctx, tenantID)
	if err == nil {
		s.metrics.RecordGateDecision(gateName, "admitted")
	}
	return res, err
}

func (s *Service) assertWritable(ctx context.Context, tenantID string) (*Resolved, error) {
	res, err := s.Resolve(ctx, tenantID)
	if err != nil {
		s.metrics.RecordGateDecision(gateName, "error")
		return nil, err
	}
	if res.Status != StatusActive {
		s.metrics.RecordGateDecision(gateName, "inactive")
		return nil, apierr.Newf(apierr.CodeSubscriptionInactive,
			"Tenant subscription is %s.", strings.ToLower(string(res.Status))).
			WithData("status", string(res.Status))
	}
	return res, nil
}

// AssertShareCreateAllowed checks that the tenant may create a public
// share. Quotas only apply when isNewShare is set, so returning an
// existing share never fails on quota.
func (s *Service) AssertShareCreateAllowed(ctx context.Context, tenantID string, isNewShare bool) error {
	res, err := s.assertWritable(ctx, tenantID)
	if err != nil {
		return err
	}
	if !res.IsConfigured {
		s.metrics.RecordGateDecision(gateName, "admitted")
		return nil
	}

	if !res.Plan.AtLeast(PlanPro) {
		s.metrics.RecordGateDecision(gateName, "plan_insufficient")
		return apierr.New(apierr.CodePlanInsufficient,
			"Current subscription plan does not allow creating public shares.").
			WithData("requiredPlan", string(PlanPro)).
			WithData("currentPlan", string(res.Plan))
	}

	if isNewShare && res.MaxShares != nil {
		used, err := s.store.CountShares(ctx, tenantID)
		if err != nil {
			s.metrics.RecordGateDecision(gateName, "error")
			return apierr.Internal(err)
		}
		if used >= *res.MaxShares {
			s.metrics.RecordGateDecision(gateName, "quota_exceeded")
			return apierr.QuotaExceeded("Share quota exceeded for tenant subscription.",
				"maxShares", *res.MaxShares, used)
		}
	}

	s.metrics.RecordGateDecision(gateName, "admitted")
	return nil
}

// AssertImageUploadAllowed checks that the tenant may store another image
// of uploadBytes. Image count and stored bytes are read concurrently.
func (s *Service) AssertImageUploadAllowed(ctx context.Context, tenantID string, uploadBytes int64) error {
	if uploadBytes < 0 {
		return errInvalidPayload("Upload size must not be negative.")
	}

	res, err := s.assertWritable(ctx, tenantID)
	if err != nil {
		return err
	}
	if !res.IsConfigured || (res.MaxImages == nil && res.MaxStorageBytes == nil) {
		s.metrics.RecordGateDecision(gateName, "admitted")
		return nil
	}

	var imageCount, storedBytes int64
	g, gctx := errgroup.WithContext(ctx)
	if res.MaxImages != nil {
		g.Go(func() error {
			n, err := s.store.CountImages(gctx, tenantID)
			imageCount = n
			return err
		})
	}
	if res.MaxStorageBytes != nil {
		g.Go(func() error {
			n, err := s.store.SumImageBytes(gctx, tenantID)
			storedBytes = n
			return err
		})
	}
	if err := g.Wait(); err != nil {
		s.metrics.RecordGateDecision(gateName, "error")
		return apierr.Internal(err)
	}

	if res.MaxImages != nil && imageCount >= *res.MaxImages {
		s.metrics.RecordGateDecision(gateName, "quota_exceeded")
		return apierr.QuotaExceeded("Image count quota exceeded for tenant subscription.",
			"maxImages", *res.MaxImages, imageCount)
	}
	if res.MaxStorageBytes != nil && storedBytes+uploadBytes > *res.MaxStorageBytes {
		s.metrics.RecordGateDecision(gateName, "quota_exceeded")
		return apierr.QuotaExceeded("Image storage quota exceeded for tenant subscription.",
			"maxStorageBytes",
			strconv.FormatInt(*res.MaxStorageBytes, 10),
			strconv.FormatInt(storedBytes, 10)).
			WithData("requested", strconv.FormatInt(uploadBytes, 10))
	}

	s.metrics.RecordGateDecision(gateName, "admitted")
	return nil
}
