package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants. Handlers and repositories use these constants
// instead of hardcoded strings so the HTTP mapping stays in one place.
const (
	// Validation (400)
	ErrCodeValidationMissingField ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidField ErrorCode = "validation_invalid_field"
	ErrCodeValidationInvalidEmail ErrorCode = "validation_invalid_email"
	ErrCodeValidationCompanyID    ErrorCode = "validation_invalid_company_id"

	// Auth (401)
	ErrCodeAuthTokenMissing   ErrorCode = "auth_token_missing"
	ErrCodeAuthTokenInvalid   ErrorCode = "auth_token_invalid"
	ErrCodeAuthSessionExpired ErrorCode = "auth_session_expired"
	ErrCodeAuthInvalidCreds   ErrorCode = "auth_invalid_credentials"

	// Permission (403)
	ErrCodePermissionCompanyMismatch ErrorCode = "permission_company_mismatch"
	ErrCodePermissionRole            ErrorCode = "permission_role_insufficient"

	// Not Found (404)
	ErrCodeNotFoundCompany    ErrorCode = "not_found_company"
	ErrCodeNotFoundUser       ErrorCode = "not_found_user"
	ErrCodeNotFoundClient     ErrorCode = "not_found_client"
	ErrCodeNotFoundSite       ErrorCode = "not_found_site"
	ErrCodeNotFoundInspection ErrorCode = "not_found_inspection"
	ErrCodeNotFoundEstimate   ErrorCode = "not_found_estimate"
	ErrCodeNotFoundWorkOrder  ErrorCode = "not_found_work_order"
	ErrCodeNotFoundEvent      ErrorCode = "not_found_schedule_event"

	// Conflict (409)
	ErrCodeConflictEmail  ErrorCode = "conflict_email_exists"
	ErrCodeConflictStatus ErrorCode = "conflict_invalid_status_transition"

	// Storage taxonomy (500/503/504). Configuration errors are fatal at
	// startup, connection errors may be retried by callers with backoff,
	// query errors never are, timeouts are surfaced distinctly, and
	// transaction errors always pair with a rollback attempt. Cancellation
	// is its own class: the caller gave up, so retrying on its behalf
	// would be wrong.
	ErrCodeDBConfiguration ErrorCode = "db_configuration_invalid"
	ErrCodeDBConnection    ErrorCode = "db_connection_failed"
	ErrCodeDBQuery         ErrorCode = "db_query_failed"
	ErrCodeDBTimeout       ErrorCode = "db_timeout"
	ErrCodeDBCanceled      ErrorCode = "db_query_canceled"
	ErrCodeDBTransaction   ErrorCode = "db_transaction_failed"
	ErrCodeDBUnavailable   ErrorCode = "db_unavailable"

	// Internal (500)
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest // 400
	case strings.HasPrefix(s, "auth_"):
		return http.StatusUnauthorized // 401
	case strings.HasPrefix(s, "permission_"):
		return http.StatusForbidden // 403
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound // 404
	case strings.HasPrefix(s, "conflict_"):
		return http.StatusConflict // 409
	case s == string(ErrCodeDBTimeout):
		return http.StatusGatewayTimeout // 504
	case s == string(ErrCodeDBConnection), s == string(ErrCodeDBUnavailable):
		return http.StatusServiceUnavailable // 503
	case strings.HasPrefix(s, "db_"), strings.HasPrefix(s, "internal_"):
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// Retryable reports whether the error class represents a transient condition
// that a caller may retry with backoff. Query and transaction failures are
// never retryable: blindly re-running a non-idempotent mutation is unsafe.
func (c ErrorCode) Retryable() bool {
	switch c {
	case ErrCodeDBConnection, ErrCodeDBTimeout, ErrCodeDBUnavailable:
		return true
	default:
		return false
	}
}

// AppError is the standard application error type. All domain, storage, and
// handler errors are expressed as AppError to enable consistent formatting,
// HTTP status mapping, and error chain support. Wrapped driver errors stay
// server-side; only Code, Message, and Details reach clients.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// Retryable reports whether this error represents a transient condition.
func (e *AppError) Retryable() bool {
	return e.Code.Retryable()
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError carrying structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}
