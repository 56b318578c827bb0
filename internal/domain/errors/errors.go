package errors

import (
	"fmt"
	"net/http"
)

// AppError is a custom error type for application errors
type AppError struct {
	Code       string
	Message    string
	StatusCode int // Same rule as HTTP status codes
	Err        error
	Details    map[string]interface{}
}

// Error returns a string representation of the error
func (e AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is implements the errors.Is interface
func (e AppError) Is(target error) bool {
	if target, ok := target.(AppError); ok {
		return target.Code == e.Code
	}
	return false
}

// Unwrap returns the underlying error
func (e AppError) Unwrap() error {
	return e.Err
}

// WithDetails adds details to the error
func (e AppError) WithDetails(details map[string]interface{}) AppError {
	e.Details = details
	return e
}

// WithDetail adds a single detail to the error
func (e AppError) WithDetail(key string, value interface{}) AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewBackendUnavailableError reports a non-success response from the
// banking backend. Status, headers, and body of the failed call are
// attached as details for diagnostics.
func NewBackendUnavailableError(description string, status int, headers map[string]interface{}, body string) AppError {
	return AppError{
		Code:       "BACKEND_UNAVAILABLE",
		Message:    description,
		StatusCode: http.StatusBadGateway,
		Details: map[string]interface{}{
			"status":  status,
			"headers": headers,
			"body":    body,
		},
	}
}

// NewPollTimeoutError reports an enrichment job that never reached a
// terminal event within the configured bound.
func NewPollTimeoutError(taskID string, attempts int, err error) AppError {
	return AppError{
		Code:       "POLL_TIMEOUT",
		Message:    fmt.Sprintf("enrichment task %s did not finish within %d polls", taskID, attempts),
		StatusCode: http.StatusGatewayTimeout,
		Err:        err,
	}
}

// NewNoEligibleAccountsError reports that no account survived the
// eligibility filter.
func NewNoEligibleAccountsError() AppError {
	return AppError{
		Code:       "NO_ELIGIBLE_ACCOUNTS",
		Message:    "no eligible accounts on file",
		StatusCode: http.StatusNotFound,
	}
}

// NewAccountNotFoundError reports a selected account id with no match in
// the canonical list.
func NewAccountNotFoundError(accountID string) AppError {
	return AppError{
		Code:       "ACCOUNT_NOT_FOUND",
		Message:    "selected account is not in the canonical list",
		StatusCode: http.StatusNotFound,
		Details:    map[string]interface{}{"accountId": accountID},
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string) AppError {
	return AppError{
		Code:       "VALIDATION_ERROR",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

// NewAuthenticationError creates a new authentication error
func NewAuthenticationError(message string) AppError {
	return AppError{
		Code:       "AUTHENTICATION_ERROR",
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) AppError {
	return AppError{
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}
