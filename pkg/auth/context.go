package auth

import (
	"context"

	"github.com/platinummonkey/tenantgate/pkg/contextkeys"
)

// WithAuthContext stores the verified caller in ctx together with the
// user and tenant ids used by logging and audit
func WithAuthContext(ctx context.Context, authCtx *AuthContext) context.Context {
	ctx = contextkeys.WithAuth(ctx, authCtx)
	if authCtx != nil && authCtx.User != nil {
		ctx = contextkeys.WithUserID(ctx, authCtx.User.ID)
	}
	if authCtx.HasTenant() {
		ctx = contextkeys.WithTenantID(ctx, authCtx.TenantID)
	}
	return ctx
}

// FromContext returns the verified caller, or nil for anonymous requests
func FromContext(ctx context.Context) *AuthContext {
	authCtx, _ := ctx.Value(contextkeys.AuthKey).(*AuthContext)
	return authCtx
}
