package middleware

import (
	"context"
	"net/http"

	"github.com/platinummonkey/tenantgate/pkg/auth"
	"github.com/platinummonkey/tenantgate/pkg/httputil"
	"github.com/platinummonkey/tenantgate/pkg/subscription"
)

// WriteGate reports whether a tenant may perform writes
type WriteGate interface {
	AssertWritable(ctx context.Context, tenantID string) (*subscription.Resolved, error)
}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// SubscriptionWriteGate rejects writes for tenants whose subscription is
// not active.
//
// REQUIRES: an authentication middleware must run before this one.
// Requests without a tenant in the token pass through unchecked.
func SubscriptionWriteGate(gate WriteGate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isWrite(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			authCtx := auth.FromContext(r.Context())
			if !authCtx.HasTenant() {
				next.ServeHTTP(w, r)
				return
			}
			if _, err := gate.AssertWritable(r.Context(), authCtx.TenantID); err != nil {
				httputil.WriteAPIError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
