// Package errors provides custom error types for the Chainlog API.
// All service-layer errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication & authorization errors.
var (
	ErrUnauthorized = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrForbidden    = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Audit entry errors.
var (
	ErrMissingOrg       = &AppError{Code: "MISSING_ORG", Message: "Organization ID is required", StatusCode: http.StatusBadRequest}
	ErrInvalidCategory  = &AppError{Code: "INVALID_CATEGORY", Message: "Unknown audit category", StatusCode: http.StatusBadRequest}
	ErrInvalidAction    = &AppError{Code: "INVALID_ACTION", Message: "Unknown audit action", StatusCode: http.StatusBadRequest}
	ErrInvalidSeverity  = &AppError{Code: "INVALID_SEVERITY", Message: "Unknown audit severity", StatusCode: http.StatusBadRequest}
	ErrInvalidDateRange = &AppError{Code: "INVALID_DATE_RANGE", Message: "End of date range is before its start", StatusCode: http.StatusBadRequest}
	ErrInvalidFormat    = &AppError{Code: "INVALID_FORMAT", Message: "Unsupported export format", StatusCode: http.StatusBadRequest}
)

// Integrity errors.
var (
	ErrHashSecretMissing = &AppError{Code: "HASH_SECRET_MISSING", Message: "Audit hash secret is not configured", StatusCode: http.StatusInternalServerError}
)
