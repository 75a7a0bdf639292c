package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/tenantgate/pkg/apierr"
	"github.com/platinummonkey/tenantgate/pkg/auth"
	"github.com/platinummonkey/tenantgate/pkg/httputil"
	"github.com/platinummonkey/tenantgate/pkg/rbac"
	"github.com/platinummonkey/tenantgate/pkg/subscription"
)

// AdminHandlers serves the operator endpoints behind the super-admin gate
type AdminHandlers struct {
	subscriptions *subscription.Service
	members       *rbac.MemberService
	wrap          func(h http.HandlerFunc) http.Handler
}

// NewAdminHandlers creates admin handlers
func NewAdminHandlers(subscriptions *subscription.Service, members *rbac.MemberService, wrap func(h http.HandlerFunc) http.Handler) *AdminHandlers {
	return &AdminHandlers{subscriptions: subscriptions, members: members, wrap: wrap}
}

// RegisterRoutes registers admin routes
func (h *AdminHandlers) RegisterRoutes(router *mux.Router) {
	router.Handle("/admin/subscription-activation-codes", h.wrap(h.createActivationCode)).Methods("POST")
	router.Handle("/admin/tenants/{tenantId}/subscription", h.wrap(h.getSubscription)).Methods("GET")
	router.Handle("/admin/tenants/{tenantId}/subscription", h.wrap(h.updateSubscription)).Methods("PUT")
	router.Handle("/admin/tenants/{tenantId}/members/{userId}", h.wrap(h.setMemberRole)).Methods("PUT")
}

// createActivationCode handles POST /admin/subscription-activation-codes
func (h *AdminHandlers) createActivationCode(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(auth.FromContext(r.Context()))
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	var params subscription.CreateCodeParams
	if err := httputil.DecodeAndValidate(r, &params); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	created, err := h.subscriptions.CreateActivationCode(r.Context(), caller.User.ID, params)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteCreated(w, created)
}

// getSubscription handles GET /admin/tenants/{tenantId}/subscription
func (h *AdminHandlers) getSubscription(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httputil.ParsePathString(r, "tenantId")
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	resolved, err := h.subscriptions.Get(r.Context(), tenantID)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"subscription": resolved})
}

// updateSubscription handles PUT /admin/tenants/{tenantId}/subscription
func (h *AdminHandlers) updateSubscription(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httputil.ParsePathString(r, "tenantId")
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	var update subscription.Update
	if err := httputil.ParseJSON(r, &update); err != nil {
		httputil.WriteAPIError(w, r, apierr.InvalidRequest(err.Error()))
		return
	}

	resolved, err := h.subscriptions.Upsert(r.Context(), tenantID, update)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"subscription": resolved})
}

// setMemberRole handles PUT /admin/tenants/{tenantId}/members/{userId}
func (h *AdminHandlers) setMemberRole(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req setMemberRoleRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	role, err := rbac.ParseRole(req.Role)
	if err != nil {
		httputil.WriteAPIError(w, r, apierr.InvalidRequest(err.Error()))
		return
	}

	membership, err := h.members.SetMemberRole(r.Context(), vars["tenantId"], vars["userId"], role)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"membership": membership})
}
