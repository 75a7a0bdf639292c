// Package token implements the compact session token used as the bearer
// credential.
//
// Wire format:
//
//	base64url(JSON(header)) + "." + base64url(JSON(payload)) + "." + base64url(HMAC-SHA256(header + "." + payload))
//
// The header is always {"alg":"HS256","typ":"JWT"}. The payload carries sub,
// email, an optional tenantId, iat and exp in Unix seconds. Tokens are fixed-TTL
// and never refreshed; re-scoping to another tenant mints a new token.
//
// Verify returns ErrInvalid for every failure (bad segment count, signature
// mismatch, decode error, unexpected header, expiry) so that callers cannot be
// used as an oracle.
package token
