package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
)

// Entitlement error codes. These outcomes must stay distinguishable by
// API callers: the UI shows "upgrade to unlock" for a missing feature but
// "you've hit this period's cap" for an exhausted limit.
const (
	ErrUnauthenticated ErrorCode = iota + 2000
	ErrNoOrganization
	ErrFeatureNotLicensed
	ErrUsageLimitExceeded
	ErrUnknownPlanIdentifier
)

// AppError represents an application error
type AppError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode maps the error code to an HTTP status. Callers branch on the
// status and code, never on the message string.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case ErrNotFound, ErrNoOrganization:
		return http.StatusNotFound
	case ErrBadRequest:
		return http.StatusBadRequest
	case ErrUnauthorized, ErrUnauthenticated:
		return http.StatusUnauthorized
	case ErrForbidden, ErrFeatureNotLicensed, ErrUsageLimitExceeded:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Kind returns the wire identifier for the error code.
func (e *AppError) Kind() string {
	switch e.Code {
	case ErrUnauthenticated:
		return "unauthenticated"
	case ErrNoOrganization:
		return "no_organization"
	case ErrFeatureNotLicensed:
		return "feature_not_licensed"
	case ErrUsageLimitExceeded:
		return "usage_limit_exceeded"
	case ErrUnknownPlanIdentifier:
		return "unknown_plan_identifier"
	case ErrNotFound:
		return "not_found"
	case ErrBadRequest:
		return "bad_request"
	case ErrUnauthorized:
		return "unauthorized"
	case ErrForbidden:
		return "forbidden"
	default:
		return "internal"
	}
}

// AsAppError unwraps err to an *AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

func Unauthenticated(message string) *AppError {
	return &AppError{
		Code:    ErrUnauthenticated,
		Message: message,
	}
}

func NoOrganization(err error) *AppError {
	return &AppError{
		Code:    ErrNoOrganization,
		Message: "no organization for this account",
		Err:     err,
	}
}

// FeatureNotLicensed carries the tier the caller would need to upgrade to.
func FeatureNotLicensed(feature, currentTier, requiredTier string) *AppError {
	return &AppError{
		Code:    ErrFeatureNotLicensed,
		Message: fmt.Sprintf("your plan does not include %s", feature),
		Details: map[string]interface{}{
			"feature":       feature,
			"current_tier":  currentTier,
			"required_tier": requiredTier,
		},
	}
}

// UsageLimitExceeded carries the current count and the cap that was hit.
func UsageLimitExceeded(metric string, current, limit int) *AppError {
	return &AppError{
		Code:    ErrUsageLimitExceeded,
		Message: fmt.Sprintf("%s limit reached for this billing period", metric),
		Details: map[string]interface{}{
			"metric":  metric,
			"current": current,
			"limit":   limit,
		},
	}
}

func UnknownPlanIdentifier(priceID string) *AppError {
	return &AppError{
		Code:    ErrUnknownPlanIdentifier,
		Message: "unrecognized billing plan identifier",
		Details: map[string]interface{}{
			"price_id": priceID,
		},
	}
}

// Common errors
func NotFound(resource string, err error) *AppError {
	return NewNotFound(resource, err)
}

func BadRequest(message string, err error) *AppError {
	return NewBadRequest(message, err)
}

func Internal(err error) *AppError {
	return NewInternal(err)
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}
