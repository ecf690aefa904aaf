package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Status  int                    `json:"status"`
	Field   string                 `json:"field,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrDuplicateEntry     = New("DUPLICATE_ENTRY", http.StatusConflict, "resource already exists")
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrTokenExpired       = New("TOKEN_EXPIRED", http.StatusUnauthorized, "token has expired")
	ErrInvalidToken       = New("INVALID_TOKEN", http.StatusUnauthorized, "invalid token")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "authentication required")
	ErrPermissionDenied   = New("PERMISSION_DENIED", http.StatusForbidden, "permission denied")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusUnprocessableEntity, "validation failed")
	ErrRateLimited        = New("RATE_LIMITED", http.StatusTooManyRequests, "too many requests")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")

	// Catalog business rules.
	ErrInvalidRequest   = New("INVALID_REQUEST", http.StatusBadRequest, "invalid request")
	ErrCarNotAvailable  = New("CAR_NOT_AVAILABLE", http.StatusBadRequest, "car is not available")
	ErrInvalidVIN       = New("INVALID_VIN", http.StatusBadRequest, "invalid VIN")
	ErrDuplicateVIN     = New("DUPLICATE_VIN", http.StatusConflict, "VIN already registered")
	ErrInvalidPrice     = New("INVALID_PRICE", http.StatusBadRequest, "invalid price")
	ErrTooManyListings  = New("TOO_MANY_LISTINGS", http.StatusBadRequest, "listing limit exceeded")
	ErrModelYear        = New("MODEL_YEAR_MISMATCH", http.StatusBadRequest, "year does not match model production range")
	ErrInvalidDateRange = New("INVALID_DATE_RANGE", http.StatusBadRequest, "invalid date range")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Validation builds a validation error bound to a request field.
func Validation(field, message string, details map[string]interface{}) *Error {
	e := Clone(ErrValidation, message)
	e.Field = field
	e.Details = details
	return e
}

// WithDetails returns a copy of err carrying the given details.
func WithDetails(err *Error, message string, details map[string]interface{}) *Error {
	e := Clone(err, message)
	e.Details = details
	return e
}

// Is reports whether err is a typed error with the same code as target.
func Is(err error, target *Error) bool {
	if err == nil || target == nil {
		return false
	}
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == target.Code
}
