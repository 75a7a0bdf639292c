package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/tenantgate/pkg/apierr"
	"github.com/platinummonkey/tenantgate/pkg/auth"
	"github.com/platinummonkey/tenantgate/pkg/catalog"
	"github.com/platinummonkey/tenantgate/pkg/httputil"
	"github.com/platinummonkey/tenantgate/pkg/middleware"
	"github.com/platinummonkey/tenantgate/pkg/rbac"
)

// multipartOverhead is the allowance for multipart framing on top of the
// maximum file size
const multipartOverhead = 64 << 10

// CatalogHandlers serves products and product images
type CatalogHandlers struct {
	service        *catalog.Service
	wrap           routeWrapper
	queryAuthn     *middleware.AuthMiddleware
	gate           *rbac.Gate
	maxUploadBytes int64
}

// NewCatalogHandlers creates catalog handlers. queryAuthn authenticates
// image content requests, which may carry the token in the query string.
func NewCatalogHandlers(service *catalog.Service, wrap routeWrapper, queryAuthn *middleware.AuthMiddleware, gate *rbac.Gate, maxUploadBytes int64) *CatalogHandlers {
	return &CatalogHandlers{
		service:        service,
		wrap:           wrap,
		queryAuthn:     queryAuthn,
		gate:           gate,
		maxUploadBytes: maxUploadBytes,
	}
}

// RegisterRoutes registers catalog routes
func (h *CatalogHandlers) RegisterRoutes(router *mux.Router) {
	router.Handle("/products", h.wrap(rbac.RouteProductCreate, true, h.createProduct)).Methods("POST")
	router.Handle("/products", h.wrap(rbac.RouteProductList, false, h.listProducts)).Methods("GET")

	upload := httputil.MaxBytesMiddleware(h.maxUploadBytes + multipartOverhead)(
		h.wrap(rbac.RouteImageUpload, true, h.uploadImage))
	router.Handle("/products/{productId}/images", upload).Methods("POST")
	router.Handle("/products/{productId}/images/{imageId}/main", h.wrap(rbac.RouteImageSetMain, true, h.setMainImage)).Methods("PUT")

	content := httputil.Chain(h.queryAuthn.Handler, h.gate.Require(rbac.RouteImageContent))(http.HandlerFunc(h.imageContent))
	router.Handle("/products/{productId}/images/{imageId}/content", content).Methods("GET")
}

// createProduct handles POST /products
func (h *CatalogHandlers) createProduct(w http.ResponseWriter, r *http.Request) {
	caller, err := tenantCallerOf(auth.FromContext(r.Context()))
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	var req catalog.CreateProductRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	product, err := h.service.CreateProduct(r.Context(), caller.TenantID, req)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteCreated(w, map[string]interface{}{"product": product})
}

// listProducts handles GET /products
func (h *CatalogHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	caller, err := tenantCallerOf(auth.FromContext(r.Context()))
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	products, err := h.service.ListProducts(r.Context(), caller.TenantID)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	if products == nil {
		products = []*catalog.Product{}
	}
	httputil.WriteSuccess(w, map[string]interface{}{"products": products})
}

// uploadImage handles POST /products/{productId}/images with the image in
// the multipart field "file"
func (h *CatalogHandlers) uploadImage(w http.ResponseWriter, r *http.Request) {
	caller, err := tenantCallerOf(auth.FromContext(r.Context()))
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	productID, err := httputil.ParsePathString(r, "productId")
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteAPIError(w, r, apierr.InvalidRequest("Image file is too large."))
			return
		}
		httputil.WriteAPIError(w, r, apierr.InvalidRequest("Multipart field \"file\" is required."))
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadBytes {
		httputil.WriteAPIError(w, r, apierr.InvalidRequest("Image file is too large."))
		return
	}

	image, err := h.service.UploadImage(r.Context(), caller.TenantID, productID, catalog.Upload{
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteCreated(w, map[string]interface{}{"image": image})
}

// setMainImage handles PUT /products/{productId}/images/{imageId}/main
func (h *CatalogHandlers) setMainImage(w http.ResponseWriter, r *http.Request) {
	caller, err := tenantCallerOf(auth.FromContext(r.Context()))
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	vars := mux.Vars(r)

	images, err := h.service.SetMainImage(r.Context(), caller.TenantID, vars["productId"], vars["imageId"])
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"images": images})
}

// imageContent handles GET /products/{productId}/images/{imageId}/content
func (h *CatalogHandlers) imageContent(w http.ResponseWriter, r *http.Request) {
	caller, err := tenantCallerOf(auth.FromContext(r.Context()))
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	vars := mux.Vars(r)

	image, obj, err := h.service.OpenImage(r.Context(), caller.TenantID, vars["productId"], vars["imageId"])
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	defer obj.Body.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = image.ContentType
	}
	w.Header().Set("Cache-Control", "private, no-store")
	streamObject(w, r, contentType, obj.Size, obj.Body)
}
