package superadmin

import (
	"context"
	"net/http"

	"github.com/platinummonkey/tenantgate/pkg/apierr"
	"github.com/platinummonkey/tenantgate/pkg/audit"
	"github.com/platinummonkey/tenantgate/pkg/auth"
	"github.com/platinummonkey/tenantgate/pkg/httputil"
	"github.com/platinummonkey/tenantgate/pkg/observability"
)

const gateName = "super_admin"

// Gate admits cross-tenant operator requests. It is independent of tenant
// membership.
type Gate struct {
	source  Source
	audit   audit.Logger
	metrics *observability.Metrics
}

// NewGate creates a super-admin gate over a settings source
func NewGate(source Source, auditLogger audit.Logger, metrics *observability.Metrics) *Gate {
	if auditLogger == nil {
		auditLogger = audit.NopLogger{}
	}
	return &Gate{source: source, audit: auditLogger, metrics: metrics}
}

// Admit requires an authenticated user, the feature flag and the user's
// email on the allowlist. The flag is checked before the allowlist.
func (g *Gate) Admit(ctx context.Context, user *auth.User) error {
	err := g.admit(ctx, user)

	outcome := "admitted"
	if err != nil {
		outcome = string(apierr.CodeOf(err))
	}
	g.metrics.RecordGateDecision(gateName, outcome)

	if apierr.Is(err, apierr.CodeForbidden) {
		event := audit.NewEvent(ctx, audit.EventTypeAuthzAccessDenied, audit.EventStatusDenied)
		event.UserID = user.ID
		event.ResourceType = audit.ResourceTypeUser
		event.ResourceID = user.ID
		event.Message = apierr.From(err).Message
		event.WithMetadata("gate", gateName)
		audit.Emit(ctx, g.audit, event)
	}
	return err
}

func (g *Gate) admit(ctx context.Context, user *auth.User) error {
	if user == nil {
		return apierr.Unauthorized("Authentication is required before super-admin check.")
	}

	settings, err := g.source.Settings(ctx)
	if err != nil {
		return apierr.Internal(err)
	}
	if !settings.Enabled {
		return apierr.Forbidden("Super-admin access is disabled.")
	}
	if !settings.Allows(user.Email) {
		return apierr.Forbidden("User is not in the super-admin allowlist.")
	}
	return nil
}

// Middleware rejects requests that the gate does not admit
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var user *auth.User
		if authCtx := auth.FromContext(r.Context()); authCtx != nil {
			user = authCtx.User
		}
		if err := g.Admit(r.Context(), user); err != nil {
			httputil.WriteAPIError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
