package shared

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType categorises service errors for the response envelope.
type ErrorType string

const (
	TypeValidationError      ErrorType = "VALIDATION_ERROR"
	TypeDuplicateRequest     ErrorType = "DUPLICATE_REQUEST"
	TypeObjectNotFound       ErrorType = "OBJECT_NOT_FOUND"
	TypeAuthenticationFailed ErrorType = "AUTHENTICATION_FAILED"
	TypeInvalidRequest       ErrorType = "INVALID_REQUEST_ERROR"
	TypeExpiredError         ErrorType = "EXPIRED_ERROR"
	TypeServerNotAvailable   ErrorType = "SERVER_NOT_AVAILABLE"
	TypeUnexpectedError      ErrorType = "UNEXPECTED_ERROR"
)

// ServiceError is the rich error carried by every failure path. It holds the
// stable machine code, the HTTP status it maps to, and remediation guidance
// rendered verbatim in the error envelope.
type ServiceError struct {
	Code     string    `json:"err_code"`
	Status   int       `json:"err_status_code"`
	Type     ErrorType `json:"err_type"`
	Message  string    `json:"err_message"`
	Handling string    `json:"err_handling"`

	cause error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/As chains.
func (e *ServiceError) Unwrap() error { return e.cause }

// Is matches service errors by machine code so that sentinel comparisons like
// errors.Is(err, shared.ErrInvalidActivationCode) work across wrapping.
func (e *ServiceError) Is(target error) bool {
	var t *ServiceError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy carrying the underlying error.
func (e *ServiceError) WithCause(cause error) *ServiceError {
	clone := *e
	clone.cause = cause
	return &clone
}

// Registration error taxonomy. Codes are stable and part of the API contract.
var (
	ErrInvalidEmail = &ServiceError{
		Code:     "REG_0001",
		Status:   http.StatusUnprocessableEntity,
		Type:     TypeValidationError,
		Message:  "Invalid email format provided",
		Handling: "Please provide a valid email address",
	}
	// ErrMalformedRequest shares the REG_0001 code: the contract reports
	// every request-level validation failure under it, with a body-level
	// message when the request could not be parsed at all.
	ErrMalformedRequest = &ServiceError{
		Code:     "REG_0001",
		Status:   http.StatusUnprocessableEntity,
		Type:     TypeValidationError,
		Message:  "Request validation failed",
		Handling: "Please check your request data and try again",
	}
	ErrInvalidPassword = &ServiceError{
		Code:     "REG_0002",
		Status:   http.StatusUnprocessableEntity,
		Type:     TypeValidationError,
		Message:  "Invalid password format",
		Handling: "Password must be at least 8 characters long and contain letters and numbers",
	}
	ErrEmailExists = &ServiceError{
		Code:     "REG_0003",
		Status:   http.StatusConflict,
		Type:     TypeDuplicateRequest,
		Message:  "Email address already exists",
		Handling: "Please use a different email address or try logging in",
	}
	ErrUserNotFound = &ServiceError{
		Code:     "REG_0004",
		Status:   http.StatusNotFound,
		Type:     TypeObjectNotFound,
		Message:  "User not found",
		Handling: "Please check the email address and try again",
	}
	ErrInvalidActivationCode = &ServiceError{
		Code:     "REG_0005",
		Status:   http.StatusBadRequest,
		Type:     TypeValidationError,
		Message:  "Invalid activation code",
		Handling: "Please check the 4-digit code and try again",
	}
	ErrActivationCodeExpired = &ServiceError{
		Code:     "REG_0006",
		Status:   http.StatusBadRequest,
		Type:     TypeExpiredError,
		Message:  "Activation code has expired",
		Handling: "Please request a new activation code",
	}
	ErrAlreadyActivated = &ServiceError{
		Code:     "REG_0007",
		Status:   http.StatusBadRequest,
		Type:     TypeInvalidRequest,
		Message:  "User account is already activated",
		Handling: "No action required. You can now login to your account",
	}
	ErrStorageUnavailable = &ServiceError{
		Code:     "REG_0008",
		Status:   http.StatusServiceUnavailable,
		Type:     TypeServerNotAvailable,
		Message:  "Database operation failed",
		Handling: "Please try again later or contact support",
	}
	ErrNotificationUnavailable = &ServiceError{
		Code:     "REG_0009",
		Status:   http.StatusServiceUnavailable,
		Type:     TypeServerNotAvailable,
		Message:  "Email service temporarily unavailable",
		Handling: "Please try again later or contact support",
	}
	ErrAuthenticationFailed = &ServiceError{
		Code:     "REG_0010",
		Status:   http.StatusUnauthorized,
		Type:     TypeAuthenticationFailed,
		Message:  "Invalid authentication credentials",
		Handling: "Please check your email and password and try again",
	}
	ErrUnexpected = &ServiceError{
		Code:     "REG_0050",
		Status:   http.StatusInternalServerError,
		Type:     TypeUnexpectedError,
		Message:  "An unexpected error occurred",
		Handling: "Please try again later or contact support",
	}
)

// AsServiceError extracts a *ServiceError from err, falling back to
// ErrUnexpected so every failure renders the uniform envelope.
func AsServiceError(err error) *ServiceError {
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	return ErrUnexpected.WithCause(err)
}
