// Package auth implements email one-time-code login, password login and
// tenant-scoped session tokens.
//
// A login starts with RequestCode, which stores a salted SHA-256 hash of a
// random 6-digit code. VerifyCode consumes the latest unconsumed code with
// a conditional update so that concurrent verifications of the same code
// produce exactly one session. Sessions carry no tenant until
// SwitchTenant re-issues the token for a tenant the user is a member of.
//
// Authenticate verifies a bearer token and re-reads the user on every
// request, so a deleted user is rejected even while their token is
// unexpired:
//
//	authCtx, err := svc.Authenticate(ctx, bearer)
//	if err != nil {
//		httputil.WriteAPIError(w, r, err)
//		return
//	}
//	ctx = auth.WithAuthContext(ctx, authCtx)
package auth
