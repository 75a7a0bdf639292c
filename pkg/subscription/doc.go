// Package subscription enforces per-tenant plan, status and quota limits
// and manages activation codes that grant plans.
//
// A tenant without a subscription row is unconfigured: it behaves as an
// ACTIVE FREE plan with no quotas and passes every plan check.
//
//	svc := subscription.NewService(store, subscription.Config{CodePepper: pepper}, auditLogger, metrics)
//	if err := svc.AssertShareCreateAllowed(ctx, tenantID, true); err != nil {
//	    return err
//	}
//
// Quota checks read usage fresh on every call but are not serialized with
// the write that follows, so concurrent uploads may overshoot a quota by a
// small amount.
//
// Activation codes are stored only as a peppered SHA-256 digest. Redemption
// increments the redeemed count with a conditional update so the redeem
// limit holds under concurrency.
package subscription
