// Package httputil provides JSON request and response helpers and the
// generic HTTP middleware shared by every route.
//
// Errors are rendered through WriteAPIError so that every failure uses the
// same envelope:
//
//	{"errorCode": "FORBIDDEN", "message": "...", "data": {...}}
//
// Request bodies are decoded strictly and validated with struct tags:
//
//	var req redeemRequest
//	if err := httputil.DecodeAndValidate(r, &req); err != nil {
//		httputil.WriteAPIError(w, r, err)
//		return
//	}
package httputil
