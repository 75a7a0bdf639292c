package middleware

import (
	"net/http"

	"github.com/platinummonkey/tenantgate/pkg/apierr"
	"github.com/platinummonkey/tenantgate/pkg/httputil"
	"github.com/platinummonkey/tenantgate/pkg/ratelimit"
)

// KeyFunc derives the rate limit key of a request
type KeyFunc func(r *http.Request) string

// ClientIPKey keys requests by client IP under prefix
func ClientIPKey(prefix string) KeyFunc {
	return func(r *http.Request) string {
		ip := httputil.ClientIP(r)
		if ip == "" {
			ip = "unknown"
		}
		return prefix + ":" + ip
	}
}

// RateLimit rejects requests once the limiter denies their key. A limiter
// failure rejects the request as well.
func RateLimit(limiter ratelimit.Limiter, key KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, err := limiter.Allow(r.Context(), key(r))
			if err != nil {
				httputil.WriteAPIError(w, r, apierr.Internal(err))
				return
			}
			if !allowed {
				httputil.WriteAPIError(w, r, apierr.New(apierr.CodeRateLimited, "Too many requests. Please retry later."))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
