// Package rbac provides tenant role-based access control.
//
// # Roles
//
// Every tenant membership carries exactly one role. Roles are totally
// ordered:
//
//	OWNER (40) > ADMIN (30) > EDITOR (20) > VIEWER (10)
//
// Meets(current, minimum) is true when current ranks at or above minimum.
//
// # Gate
//
// The Gate admits a request in four steps and stops at the first failure:
//
//  1. No authenticated caller: UNAUTHORIZED
//  2. Session token carries no tenant: TENANT_NOT_SELECTED
//  3. Caller is not a member of the tenant: NOT_TENANT_MEMBER
//  4. Caller's role is below the route minimum: FORBIDDEN
//
// Store errors and context cancellation reject the request with
// INTERNAL_ERROR. The gate never admits on failure.
//
//	gate := rbac.NewGate(resolver, policy, auditLogger, metrics)
//	router.Handle("/shares", gate.Require(rbac.RouteShareCreate)(createShare))
//
// Handlers read the admitted role with RoleFromContext.
//
// # Route Policy
//
// Route minimums are declared in DefaultRoutePolicy and may be overridden
// from YAML with LoadRoutePolicy. Routes that have no entry require OWNER.
//
// # Caching
//
// StoreResolver performs one membership lookup per call. NewCachedResolver
// adds an expirable LRU in front of it with singleflight coalescing. It is
// disabled when the TTL is zero. MemberService invalidates cached entries
// when it changes a role.
package rbac
