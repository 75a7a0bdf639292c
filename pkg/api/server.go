package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/tenantgate/pkg/auth"
	"github.com/platinummonkey/tenantgate/pkg/catalog"
	"github.com/platinummonkey/tenantgate/pkg/httputil"
	"github.com/platinummonkey/tenantgate/pkg/middleware"
	"github.com/platinummonkey/tenantgate/pkg/observability"
	"github.com/platinummonkey/tenantgate/pkg/ratelimit"
	"github.com/platinummonkey/tenantgate/pkg/rbac"
	"github.com/platinummonkey/tenantgate/pkg/shares"
	"github.com/platinummonkey/tenantgate/pkg/subscription"
	"github.com/platinummonkey/tenantgate/pkg/superadmin"
)

const defaultMaxUploadBytes = 10 << 20

// Dependencies are the services the API is built from. Health, Registry,
// CodeLimiter and Metrics are optional.
type Dependencies struct {
	Auth          *auth.Service
	Members       *rbac.MemberService
	RBAC          *rbac.Gate
	SuperAdmin    *superadmin.Gate
	Subscriptions *subscription.Service
	Shares        *shares.Service
	Catalog       *catalog.Service

	// CodeLimiter limits login code requests per client IP
	CodeLimiter ratelimit.Limiter

	Logger   *observability.Logger
	Metrics  *observability.Metrics
	Registry *prometheus.Registry
	Health   *observability.HealthChecker

	CORSOrigins    []string
	MaxUploadBytes int64
	// Tracing wraps the router with OpenTelemetry HTTP instrumentation
	Tracing bool
}

// Server represents our API server
type Server struct {
	router  *mux.Router
	handler http.Handler
	deps    Dependencies
	authn   *middleware.AuthMiddleware
}

// NewServer creates a new API server
func NewServer(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = defaultMaxUploadBytes
	}

	s := &Server{
		router: mux.NewRouter(),
		deps:   deps,
		authn:  middleware.NewAuthMiddleware(deps.Auth, false),
	}

	s.router.Use(
		observability.RecoveryMiddleware(deps.Logger),
		httputil.RequestIDMiddleware(deps.Logger),
		httputil.LoggingMiddleware,
		observability.HTTPMetricsMiddleware(deps.Metrics),
	)
	s.setupRoutes()

	var handler http.Handler = s.router
	if len(deps.CORSOrigins) > 0 {
		handler = httputil.CORSMiddleware(deps.CORSOrigins)(handler)
	}
	if deps.Tracing {
		handler = otelhttp.NewHandler(handler, "tenantgate",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}))
	}
	s.handler = handler
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	NewAuthHandlers(s.deps.Auth, s.authn, s.deps.CodeLimiter).RegisterRoutes(s.router)
	NewSubscriptionHandlers(s.deps.Subscriptions, s.tenantRoute).RegisterRoutes(s.router)
	NewShareHandlers(s.deps.Shares, s.tenantRoute).RegisterRoutes(s.router)
	NewCatalogHandlers(s.deps.Catalog, s.tenantRoute, s.authn.WithQueryToken(), s.deps.RBAC, s.deps.MaxUploadBytes).RegisterRoutes(s.router)
	NewAdminHandlers(s.deps.Subscriptions, s.deps.Members, s.adminRoute).RegisterRoutes(s.router)

	if s.deps.Health != nil {
		s.router.HandleFunc("/healthz", s.deps.Health.Liveness).Methods("GET")
		s.router.HandleFunc("/readyz", s.deps.Health.Readiness).Methods("GET")
	}
	if s.deps.Registry != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(s.deps.Registry)).Methods("GET")
	}

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteAPIError(w, r, errRouteNotFound())
	})
}

// tenantRoute wraps h in authentication, the RBAC gate for route and,
// when write is set, the subscription write gate
func (s *Server) tenantRoute(route string, write bool, h http.HandlerFunc) http.Handler {
	chain := []func(http.Handler) http.Handler{
		s.authn.Handler,
		s.deps.RBAC.Require(route),
	}
	if write {
		chain = append(chain, middleware.SubscriptionWriteGate(s.deps.Subscriptions))
	}
	return httputil.Chain(chain...)(h)
}

// adminRoute wraps h in authentication and the super-admin gate
func (s *Server) adminRoute(h http.HandlerFunc) http.Handler {
	return httputil.Chain(s.authn.Handler, s.deps.SuperAdmin.Middleware)(h)
}

// Router returns the underlying router
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
