package rbac

import (
	"context"
	"fmt"
	"net/http"

	"github.com/platinummonkey/tenantgate/pkg/apierr"
	"github.com/platinummonkey/tenantgate/pkg/audit"
	"github.com/platinummonkey/tenantgate/pkg/auth"
	"github.com/platinummonkey/tenantgate/pkg/contextkeys"
	"github.com/platinummonkey/tenantgate/pkg/httputil"
	"github.com/platinummonkey/tenantgate/pkg/observability"
)

const gateName = "rbac"

// Gate admits tenant-scoped requests whose caller holds at least the
// minimum role for the route
type Gate struct {
	resolver Resolver
	policy   *RoutePolicy
	audit    audit.Logger
	metrics  *observability.Metrics
}

// NewGate creates an RBAC gate. A nil policy uses DefaultRoutePolicy.
func NewGate(resolver Resolver, policy *RoutePolicy, auditLogger audit.Logger, metrics *observability.Metrics) *Gate {
	if policy == nil {
		policy = DefaultRoutePolicy()
	}
	if auditLogger == nil {
		auditLogger = audit.NopLogger{}
	}
	return &Gate{resolver: resolver, policy: policy, audit: auditLogger, metrics: metrics}
}

// Admit checks, in order: caller present, tenant selected, membership,
// rank. It returns the caller's role on admission. Lookup failures and
// cancellation reject with an internal error.
func (g *Gate) Admit(ctx context.Context, authCtx *auth.AuthContext, minimum Role) (Role, error) {
	role, err := g.admit(ctx, authCtx, minimum)

	outcome := "admitted"
	if err != nil {
		outcome = string(apierr.CodeOf(err))
	}
	g.metrics.RecordGateDecision(gateName, outcome)

	if apierr.Is(err, apierr.CodeNotTenantMember) || apierr.Is(err, apierr.CodeForbidden) {
		event := audit.NewEvent(ctx, audit.EventTypeAuthzAccessDenied, audit.EventStatusDenied)
		event.UserID = authCtx.User.ID
		event.TenantID = authCtx.TenantID
		event.ResourceType = audit.ResourceTypeMembership
		event.Message = apierr.From(err).Message
		event.WithMetadata("required_role", string(minimum)).
			WithMetadata("role", string(role))
		audit.Emit(ctx, g.audit, event)
	}

	if err != nil {
		return "", err
	}
	return role, nil
}

func (g *Gate) admit(ctx context.Context, authCtx *auth.AuthContext, minimum Role) (Role, error) {
	if authCtx == nil || authCtx.User == nil {
		return "", apierr.Unauthorized("Authentication is required before role check.")
	}
	if !authCtx.HasTenant() {
		return "", apierr.New(apierr.CodeTenantNotSelected, "No tenant selected in access token.")
	}
	if err := ctx.Err(); err != nil {
		return "", apierr.From(err)
	}

	role, ok, err := g.resolver.Resolve(ctx, authCtx.TenantID, authCtx.User.ID)
	if err != nil {
		return "", apierr.From(err)
	}
	if !ok {
		return "", apierr.New(apierr.CodeNotTenantMember, "User is not a member of this tenant.")
	}
	if !Meets(role, minimum) {
		return role, apierr.New(apierr.CodeForbidden, fmt.Sprintf("Tenant role %s or above is required.", minimum)).
			WithData("requiredRole", string(minimum)).
			WithData("currentRole", string(role))
	}
	return role, nil
}

// Require returns middleware enforcing the policy minimum for route. The
// admitted role is stored in the request context.
func (g *Gate) Require(route string) func(http.Handler) http.Handler {
	minimum := g.policy.Minimum(route)
	return g.RequireRole(minimum)
}

// RequireRole returns middleware enforcing a fixed minimum role
func (g *Gate) RequireRole(minimum Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, err := g.Admit(r.Context(), auth.FromContext(r.Context()), minimum)
			if err != nil {
				httputil.WriteAPIError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(contextkeys.WithRole(r.Context(), role)))
		})
	}
}

// RoleFromContext returns the role admitted by the gate for this request
func RoleFromContext(ctx context.Context) (Role, bool) {
	role, ok := ctx.Value(contextkeys.RoleKey).(Role)
	return role, ok
}
