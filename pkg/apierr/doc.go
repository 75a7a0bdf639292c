// Package apierr defines the error taxonomy shared by the gates and services.
//
// Every user-visible rejection is an *Error carrying a stable Code, a human
// message and optional structured data. Anything that is not an *Error is
// treated as an internal failure by From, which keeps the gates fail-closed.
//
// Example:
//
//	if subscription.Status != StatusActive {
//	    return apierr.Newf(apierr.CodeSubscriptionInactive, "Tenant subscription is %s.", strings.ToLower(string(subscription.Status)))
//	}
package apierr
