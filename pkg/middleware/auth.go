package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/platinummonkey/tenantgate/pkg/apierr"
	"github.com/platinummonkey/tenantgate/pkg/auth"
	"github.com/platinummonkey/tenantgate/pkg/httputil"
)

// Authenticator verifies a raw session token
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (*auth.AuthContext, error)
}

// AuthMiddleware provides bearer token authentication
type AuthMiddleware struct {
	authenticator Authenticator
	optional      bool // If true, allow requests without a token
	queryToken    bool // If true, GET requests may pass ?accessToken=
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(authenticator Authenticator, optional bool) *AuthMiddleware {
	return &AuthMiddleware{
		authenticator: authenticator,
		optional:      optional,
	}
}

// WithQueryToken returns a copy that also accepts the token from the
// accessToken query parameter on GET requests
func (m *AuthMiddleware) WithQueryToken() *AuthMiddleware {
	c := *m
	c.queryToken = true
	return &c
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := m.extractToken(r)
		if err != nil {
			httputil.WriteAPIError(w, r, err)
			return
		}
		if raw == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteAPIError(w, r, apierr.Unauthorized("Missing access token."))
			return
		}

		authCtx, err := m.authenticator.Authenticate(r.Context(), raw)
		if err != nil {
			httputil.WriteAPIError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithAuthContext(r.Context(), authCtx)))
	})
}

// extractToken reads "Authorization: Bearer <token>", falling back to the
// query parameter when allowed. An empty token means none was sent.
func (m *AuthMiddleware) extractToken(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", apierr.Unauthorized("Invalid authorization header.")
		}
		return strings.TrimSpace(parts[1]), nil
	}

	if m.queryToken && r.Method == http.MethodGet {
		return strings.TrimSpace(r.URL.Query().Get("accessToken")), nil
	}
	return "", nil
}

// RequireTenant rejects authenticated requests whose token carries no tenant
func RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx := auth.FromContext(r.Context())
		if authCtx == nil {
			httputil.WriteAPIError(w, r, apierr.Unauthorized("Missing access token."))
			return
		}
		if !authCtx.HasTenant() {
			httputil.WriteAPIError(w, r, apierr.New(apierr.CodeTenantNotSelected, "No tenant selected in access token."))
			return
		}
		next.ServeHTTP(w, r)
	})
}
