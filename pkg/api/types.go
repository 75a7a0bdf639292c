package api

import (
	"github.com/platinummonkey/tenantgate/pkg/apierr"
	"github.com/platinummonkey/tenantgate/pkg/auth"
)

// requestCodeRequest is the body of POST /auth/request-code
type requestCodeRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

// verifyCodeRequest is the body of POST /auth/verify-code
type verifyCodeRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Code     string `json:"code" validate:"required,max=32"`
	Password string `json:"password,omitempty" validate:"omitempty,max=128"`
}

// passwordLoginRequest is the body of POST /auth/password-login
type passwordLoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=128"`
}

// switchTenantRequest is the body of POST /auth/switch-tenant
type switchTenantRequest struct {
	TenantID string `json:"tenantId,omitempty" validate:"required_without=Slug,omitempty,max=64"`
	Slug     string `json:"slug,omitempty" validate:"required_without=TenantID,omitempty,max=120"`
}

// redeemCodeRequest is the body of POST /subscriptions/activation-codes/redeem
type redeemCodeRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

// setMemberRoleRequest is the body of PUT /admin/tenants/{tenantId}/members/{userId}
type setMemberRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=OWNER ADMIN EDITOR VIEWER"`
}

// meResponse is the body of GET /me
type meResponse struct {
	User     *auth.User `json:"user"`
	TenantID *string    `json:"tenantId"`
}

func errRouteNotFound() error {
	return apierr.New(apierr.CodeResourceNotFound, "Route not found.")
}

// callerOf returns the authenticated caller. Routes are wrapped in the
// authentication middleware, so a missing caller is a wiring fault.
func callerOf(authCtx *auth.AuthContext) (*auth.AuthContext, error) {
	if authCtx == nil || authCtx.User == nil {
		return nil, apierr.Unauthorized("No user found in access token.")
	}
	return authCtx, nil
}

// tenantCallerOf returns the authenticated caller of a tenant route
func tenantCallerOf(authCtx *auth.AuthContext) (*auth.AuthContext, error) {
	caller, err := callerOf(authCtx)
	if err != nil {
		return nil, err
	}
	if !caller.HasTenant() {
		return nil, apierr.New(apierr.CodeTenantNotSelected, "No tenant selected in access token.")
	}
	return caller, nil
}
