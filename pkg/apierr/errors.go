package apierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable, machine-readable error identifier returned to clients
type Code string

const (
	CodeUnauthorized               Code = "UNAUTHORIZED"
	CodeTenantNotSelected          Code = "TENANT_NOT_SELECTED"
	CodeNotTenantMember            Code = "NOT_TENANT_MEMBER"
	CodeForbidden                  Code = "FORBIDDEN"
	CodeInvalidCode                Code = "INVALID_CODE"
	CodeExpiredCode                Code = "EXPIRED_CODE"
	CodeTenantNotFound             Code = "TENANT_NOT_FOUND"
	CodeShareNotFound              Code = "SHARE_NOT_FOUND"
	CodeResourceNotFound           Code = "RESOURCE_NOT_FOUND"
	CodeShareSignatureInvalid      Code = "SHARE_SIGNATURE_INVALID"
	CodeShareSignatureExpired      Code = "SHARE_SIGNATURE_EXPIRED"
	CodeSubscriptionInactive       Code = "TENANT_SUBSCRIPTION_INACTIVE"
	CodePlanInsufficient           Code = "TENANT_SUBSCRIPTION_PLAN_INSUFFICIENT"
	CodeQuotaExceeded              Code = "TENANT_SUBSCRIPTION_QUOTA_EXCEEDED"
	CodeActivationCodeInvalid      Code = "SUBSCRIPTION_ACTIVATION_CODE_INVALID"
	CodeActivationCodeDisabled     Code = "SUBSCRIPTION_ACTIVATION_CODE_DISABLED"
	CodeActivationCodeExpired      Code = "SUBSCRIPTION_ACTIVATION_CODE_EXPIRED"
	CodeActivationCodeLimitReached Code = "SUBSCRIPTION_ACTIVATION_CODE_REDEEM_LIMIT_REACHED"
	CodeRateLimited                Code = "RATE_LIMITED"
	CodeInvalidRequest             Code = "INVALID_REQUEST_PAYLOAD"
	CodeInternal                   Code = "INTERNAL_ERROR"
)

var statusByCode = map[Code]int{
	CodeUnauthorized:               http.StatusUnauthorized,
	CodeTenantNotSelected:          http.StatusBadRequest,
	CodeNotTenantMember:            http.StatusForbidden,
	CodeForbidden:                  http.StatusForbidden,
	CodeInvalidCode:                http.StatusUnauthorized,
	CodeExpiredCode:                http.StatusUnauthorized,
	CodeTenantNotFound:             http.StatusNotFound,
	CodeShareNotFound:              http.StatusNotFound,
	CodeResourceNotFound:           http.StatusNotFound,
	CodeShareSignatureInvalid:      http.StatusUnauthorized,
	CodeShareSignatureExpired:      http.StatusUnauthorized,
	CodeSubscriptionInactive:       http.StatusForbidden,
	CodePlanInsufficient:           http.StatusForbidden,
	CodeQuotaExceeded:              http.StatusForbidden,
	CodeActivationCodeInvalid:      http.StatusBadRequest,
	CodeActivationCodeDisabled:     http.StatusForbidden,
	CodeActivationCodeExpired:      http.StatusForbidden,
	CodeActivationCodeLimitReached: http.StatusForbidden,
	CodeRateLimited:                http.StatusTooManyRequests,
	CodeInvalidRequest:             http.StatusBadRequest,
	CodeInternal:                   http.StatusInternalServerError,
}

// Status returns the HTTP status associated with a code
func (c Code) Status() int {
	if status, ok := statusByCode[c]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Error is a terminal, user-visible outcome
type Error struct {
	Code    Code                   `json:"errorCode"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`

	// cause is never serialized
	cause error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any
func (e *Error) Unwrap() error {
	return e.cause
}

// Status returns the HTTP status for the error
func (e *Error) Status() int {
	return e.Code.Status()
}

// WithData attaches structured detail to the error
func (e *Error) WithData(key string, value interface{}) *Error {
	if e.Data == nil {
		e.Data = make(map[string]interface{})
	}
	e.Data[key] = value
	return e
}

// New creates a new error with the given code and message
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a new error with a formatted message
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a new error that keeps err as its cause
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// Internal wraps an unexpected failure. The cause is kept for logs only.
func Internal(err error) *Error {
	return &Error{Code: CodeInternal, Message: "Internal server error.", cause: err}
}

// As extracts an *Error from err
func As(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// From converts any error into an *Error. Unknown errors and context
// cancellation become INTERNAL_ERROR so callers never admit on failure.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	if apiErr, ok := As(err); ok {
		return apiErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Wrap(CodeInternal, "Request was cancelled.", err)
	}
	return Internal(err)
}

// CodeOf returns the code carried by err, or CodeInternal
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	return From(err).Code
}

// Is reports whether err carries the given code
func Is(err error, code Code) bool {
	apiErr, ok := As(err)
	return ok && apiErr.Code == code
}

// Common constructors

func Unauthorized(message string) *Error {
	return New(CodeUnauthorized, message)
}

func Forbidden(message string) *Error {
	return New(CodeForbidden, message)
}

func InvalidRequest(message string) *Error {
	return New(CodeInvalidRequest, message)
}

// QuotaExceeded builds a quota error with the standard detail fields
func QuotaExceeded(message, quota string, limit, used interface{}) *Error {
	return New(CodeQuotaExceeded, message).
		WithData("quota", quota).
		WithData("limit", limit).
		WithData("used", used)
}
