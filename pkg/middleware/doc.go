// Package middleware provides HTTP middleware for bearer authentication,
// the subscription write gate and per-client rate limiting.
//
// # Ordering
//
// Authentication must run before any gate that reads the caller:
//
//	authn := middleware.NewAuthMiddleware(authService, false)
//	router.Handle("/shares", httputil.Chain(
//		authn.Handler,                                 // 1. verifies the bearer token
//		rbacGate.Require(rbac.RouteShareCreate),       // 2. tenant role
//		middleware.SubscriptionWriteGate(subscriptions), // 3. tenant must be writable
//	)(handler))
//
// The write gate only inspects POST, PUT, PATCH and DELETE requests and
// skips requests whose token carries no tenant.
//
// # Query Tokens
//
// Image content is loaded by browsers through plain <img> tags, so that
// route accepts the token as an accessToken query parameter:
//
//	authn.WithQueryToken().Handler(imageContentHandler)
//
// Only GET requests may use a query token.
//
// # Rate Limiting
//
//	limiter := ratelimit.NewSlidingWindow(ratelimit.Config{Window: time.Minute, MaxRequests: 5})
//	router.Handle("/auth/request-code", middleware.RateLimit(limiter, middleware.ClientIPKey("request-code"))(handler))
//
// Limiter failures reject the request.
package middleware
