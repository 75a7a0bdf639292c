// Package shares creates public share links for tenant resources and
// serves them through short-lived signed URLs.
//
// A share is a durable row keyed by an opaque token. Visiting the entry
// URL ({apiBase}/s/{token}) is rate limited per token and client, then
// redirects to the web app with a signed grant:
//
//	{webBase}/public/s/{token}?sid=..&tenantId=..&resourceType=..&resourceId=..&exp=..&sig=..
//
// sig is the hex HMAC-SHA256 of "sid.tenantId.resourceType.resourceId.exp"
// under the share signing secret. The public data and asset endpoints
// recompute it, reject expired grants and look the share up by all four
// identifiers so a grant cannot be replayed against another resource.
package shares
