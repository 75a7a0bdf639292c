package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/tenantgate/pkg/auth"
	"github.com/platinummonkey/tenantgate/pkg/httputil"
	"github.com/platinummonkey/tenantgate/pkg/observability"
	"github.com/platinummonkey/tenantgate/pkg/rbac"
	"github.com/platinummonkey/tenantgate/pkg/shares"
)

// ShareHandlers serves share creation and the public share surface
type ShareHandlers struct {
	service *shares.Service
	wrap    routeWrapper
}

// NewShareHandlers creates share handlers
func NewShareHandlers(service *shares.Service, wrap routeWrapper) *ShareHandlers {
	return &ShareHandlers{service: service, wrap: wrap}
}

// RegisterRoutes registers share routes. Only share creation requires a
// session; the public routes are authorized by the share token or grant.
func (h *ShareHandlers) RegisterRoutes(router *mux.Router) {
	router.Handle("/shares", h.wrap(rbac.RouteShareCreate, true, h.create)).Methods("POST")

	router.HandleFunc("/s/{shareToken}", h.entry).Methods("GET")
	router.HandleFunc("/shares/{shareId}/public", h.publicPayload).Methods("GET")
	router.HandleFunc("/shares/{shareId}/public/assets", h.publicAsset).Methods("GET")
}

func clientMeta(r *http.Request) shares.ClientMeta {
	return shares.ClientMeta{IP: httputil.ClientIP(r), UserAgent: r.UserAgent()}
}

// create handles POST /shares
func (h *ShareHandlers) create(w http.ResponseWriter, r *http.Request) {
	caller, err := tenantCallerOf(auth.FromContext(r.Context()))
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	var req shares.CreateRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	created, err := h.service.CreateShare(r.Context(), caller.TenantID, caller.User.ID, req)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteCreated(w, map[string]interface{}{"share": created})
}

// entry handles GET /s/{shareToken} by redirecting to a signed view
func (h *ShareHandlers) entry(w http.ResponseWriter, r *http.Request) {
	shareToken, err := httputil.ParsePathString(r, "shareToken")
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	target, err := h.service.ResolveEntry(r.Context(), shareToken, clientMeta(r))
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, target, http.StatusFound)
}

// publicPayload handles GET /shares/{shareId}/public
func (h *ShareHandlers) publicPayload(w http.ResponseWriter, r *http.Request) {
	shareID, err := httputil.ParsePathString(r, "shareId")
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	view, err := h.service.GetPublicPayload(r.Context(), shareID, shares.ParseGrantParams(r.URL.Query()), clientMeta(r))
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	httputil.WriteSuccess(w, view)
}

// publicAsset handles GET /shares/{shareId}/public/assets?key=...
func (h *ShareHandlers) publicAsset(w http.ResponseWriter, r *http.Request) {
	shareID, err := httputil.ParsePathString(r, "shareId")
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	query := r.URL.Query()
	obj, err := h.service.GetPublicAsset(r.Context(), shareID, shares.ParseGrantParams(query), query.Get("key"), clientMeta(r))
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	defer obj.Body.Close()

	w.Header().Set("Cache-Control", "private, max-age=60")
	streamObject(w, r, obj.ContentType, obj.Size, obj.Body)
}

// streamObject copies a stored object to the response
func streamObject(w http.ResponseWriter, r *http.Request, contentType string, size int64, body io.Reader) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		observability.FromContext(r.Context()).WithError(err).Warn("Failed to stream object")
	}
}
