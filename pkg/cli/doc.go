// Package cli implements tenantgate-admin, the operator command line for
// tasks that run outside the HTTP surface.
//
// # Commands
//
// migrate: Apply pending database migrations
//
//	tenantgate-admin migrate --db postgres://localhost/tenantgate
//
// create-activation-code: Issue a subscription activation code
//
//	tenantgate-admin create-activation-code \
//		--plan PRO \
//		--duration-days 30 \
//		--redeem-limit 5
//
// show-subscription: Print a tenant's effective subscription
//
//	tenantgate-admin show-subscription --tenant 2b6f0a39-...
//
// set-role: Grant a user a role in a tenant
//
//	tenantgate-admin set-role --tenant 2b6f0a39-... --user 7c1d... --role ADMIN
//
// # Configuration
//
// Flags default to the server's environment variables, and a .env file in
// the working directory is loaded first:
//
//	TENANTGATE_POSTGRES_URL
//	TENANTGATE_ACTIVATION_CODE_PEPPER (falls back to TENANTGATE_AUTH_CODE_PEPPER)
package cli
