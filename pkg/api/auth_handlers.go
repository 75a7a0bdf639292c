package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/tenantgate/pkg/auth"
	"github.com/platinummonkey/tenantgate/pkg/httputil"
	"github.com/platinummonkey/tenantgate/pkg/middleware"
	"github.com/platinummonkey/tenantgate/pkg/ratelimit"
)

// AuthHandlers handles authentication-related HTTP requests
type AuthHandlers struct {
	service     *auth.Service
	authn       *middleware.AuthMiddleware
	codeLimiter ratelimit.Limiter
}

// NewAuthHandlers creates a new auth handlers instance. codeLimiter may be nil.
func NewAuthHandlers(service *auth.Service, authn *middleware.AuthMiddleware, codeLimiter ratelimit.Limiter) *AuthHandlers {
	return &AuthHandlers{service: service, authn: authn, codeLimiter: codeLimiter}
}

// RegisterRoutes registers authentication routes
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	var requestCode http.Handler = http.HandlerFunc(h.requestCode)
	if h.codeLimiter != nil {
		requestCode = middleware.RateLimit(h.codeLimiter, middleware.ClientIPKey("request-code"))(requestCode)
	}

	router.Handle("/auth/request-code", requestCode).Methods("POST")
	router.HandleFunc("/auth/verify-code", h.verifyCode).Methods("POST")
	router.HandleFunc("/auth/password-login", h.passwordLogin).Methods("POST")

	router.Handle("/auth/switch-tenant", h.authn.Handler(http.HandlerFunc(h.switchTenant))).Methods("POST")
	router.Handle("/me", h.authn.Handler(http.HandlerFunc(h.me))).Methods("GET")
	router.Handle("/tenants", h.authn.Handler(http.HandlerFunc(h.listTenants))).Methods("GET")
}

// requestCode handles POST /auth/request-code
func (h *AuthHandlers) requestCode(w http.ResponseWriter, r *http.Request) {
	var req requestCodeRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	res, err := h.service.RequestCode(r.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, res)
}

// verifyCode handles POST /auth/verify-code
func (h *AuthHandlers) verifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	session, err := h.service.VerifyCode(r.Context(), req.Email, req.Code, req.Password)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, session)
}

// passwordLogin handles POST /auth/password-login
func (h *AuthHandlers) passwordLogin(w http.ResponseWriter, r *http.Request) {
	var req passwordLoginRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	session, err := h.service.PasswordLogin(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, session)
}

// switchTenant handles POST /auth/switch-tenant
func (h *AuthHandlers) switchTenant(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(auth.FromContext(r.Context()))
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	var req switchTenantRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	session, err := h.service.SwitchTenant(r.Context(), caller.User, auth.TenantRef{ID: req.TenantID, Slug: req.Slug})
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, session)
}

// me handles GET /me
func (h *AuthHandlers) me(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(auth.FromContext(r.Context()))
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	resp := meResponse{User: caller.User}
	if caller.HasTenant() {
		resp.TenantID = &caller.TenantID
	}
	httputil.WriteSuccess(w, resp)
}

// listTenants handles GET /tenants
func (h *AuthHandlers) listTenants(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(auth.FromContext(r.Context()))
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	tenants, err := h.service.ListTenants(r.Context(), caller.User.ID)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	if tenants == nil {
		tenants = []auth.TenantMembership{}
	}
	httputil.WriteSuccess(w, map[string]interface{}{"tenants": tenants})
}
