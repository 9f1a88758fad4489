package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a closed set of machine-readable error identifiers. Handlers
// and services express failures as AppError values carrying one of these
// codes; the HTTP layer maps them to status codes in one place.
type ErrorCode string

const (
	// Validation
	ErrCodeValidationMissingField ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidTime  ErrorCode = "validation_invalid_schedule_time"
	ErrCodeValidationInvalidStore ErrorCode = "validation_invalid_store_config"
	ErrCodeValidationBatchSize    ErrorCode = "validation_batch_size_exceeded"
	ErrCodeValidationEmptyBatch   ErrorCode = "validation_empty_batch"
	ErrCodeValidationConfig       ErrorCode = "validation_invalid_configuration"

	// Authentication
	ErrCodeAuthTokenMissing   ErrorCode = "auth_token_missing"
	ErrCodeAuthTokenInvalid   ErrorCode = "auth_token_invalid"
	ErrCodeAuthSessionExpired ErrorCode = "auth_session_expired"
	ErrCodeAuthHashMismatch   ErrorCode = "auth_telegram_hash_mismatch"
	ErrCodeAuthStale          ErrorCode = "auth_telegram_data_stale"

	// Store configuration
	ErrCodeNotFoundStore ErrorCode = "not_found_store"
	ErrCodeConflictStore ErrorCode = "conflict_store_exists"

	// Marketplace client
	ErrCodeClientMissingCreds ErrorCode = "client_missing_credentials"
	ErrCodeUpstreamQuota      ErrorCode = "upstream_quota_exhausted"
	ErrCodeUpstreamForbidden  ErrorCode = "upstream_access_denied"
	ErrCodeUpstreamFailure    ErrorCode = "upstream_request_failed"

	// Internal
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
	ErrCodeInternalStorage    ErrorCode = "internal_storage_error"
)

// HTTPStatus maps an error code to its HTTP status. Codes are grouped by
// prefix so a new code in an existing family picks up the right status
// without touching this switch.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest
	case strings.HasPrefix(s, "auth_"):
		return http.StatusUnauthorized
	case s == string(ErrCodeNotFoundStore):
		return http.StatusNotFound
	case strings.HasPrefix(s, "conflict_"):
		return http.StatusConflict
	case s == string(ErrCodeUpstreamForbidden):
		return http.StatusForbidden
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the application-wide error type. Every error that crosses a
// package boundary should be (or wrap) an AppError so the HTTP layer can
// render it consistently and callers can branch on the code.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/errors.As.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status for this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// NewAppError builds an AppError from a code, a human-readable message and an
// optional underlying cause.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}
