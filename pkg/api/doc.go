// Package api provides the HTTP API of tenantgate.
//
// # Architecture
//
// The API is built on gorilla/mux and organized into handler groups that
// each register their own routes:
//
//   - AuthHandlers: login codes, password login, tenant switching, /me
//   - SubscriptionHandlers: the tenant's own subscription and code redemption
//   - ShareHandlers: share creation and the public share endpoints
//   - CatalogHandlers: products and product images
//   - AdminHandlers: super-admin subscription and membership management
//
// Every tenant route is wrapped, outermost first, in bearer
// authentication, the RBAC gate for the route's policy entry and, for
// writes, the subscription write gate:
//
//	server := api.NewServer(api.Dependencies{...})
//	http.ListenAndServe(":8080", server)
//
// Errors are rendered as {"errorCode", "message", "data"} by
// httputil.WriteAPIError.
package api
