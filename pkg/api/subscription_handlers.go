package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/tenantgate/pkg/auth"
	"github.com/platinummonkey/tenantgate/pkg/httputil"
	"github.com/platinummonkey/tenantgate/pkg/rbac"
	"github.com/platinummonkey/tenantgate/pkg/subscription"
)

// routeWrapper builds the middleware chain for a tenant route
type routeWrapper func(route string, write bool, h http.HandlerFunc) http.Handler

// SubscriptionHandlers serves the tenant-facing subscription endpoints
type SubscriptionHandlers struct {
	service *subscription.Service
	wrap    routeWrapper
}

// NewSubscriptionHandlers creates subscription handlers
func NewSubscriptionHandlers(service *subscription.Service, wrap routeWrapper) *SubscriptionHandlers {
	return &SubscriptionHandlers{service: service, wrap: wrap}
}

// RegisterRoutes registers subscription routes
func (h *SubscriptionHandlers) RegisterRoutes(router *mux.Router) {
	router.Handle("/subscriptions/current", h.wrap(rbac.RouteSubscriptionCurrent, false, h.current)).Methods("GET")
	// Redemption is how an expired or disabled tenant recovers, so it is
	// not subject to the write gate.
	router.Handle("/subscriptions/activation-codes/redeem", h.wrap(rbac.RouteActivationRedeem, false, h.redeem)).Methods("POST")
}

// current handles GET /subscriptions/current
func (h *SubscriptionHandlers) current(w http.ResponseWriter, r *http.Request) {
	caller, err := tenantCallerOf(auth.FromContext(r.Context()))
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	resolved, err := h.service.Get(r.Context(), caller.TenantID)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"subscription": resolved})
}

// redeem handles POST /subscriptions/activation-codes/redeem
func (h *SubscriptionHandlers) redeem(w http.ResponseWriter, r *http.Request) {
	caller, err := tenantCallerOf(auth.FromContext(r.Context()))
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	var req redeemCodeRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	resolved, err := h.service.RedeemActivationCode(r.Context(), caller.TenantID, caller.User.ID, req.Code)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"subscription": resolved})
}
