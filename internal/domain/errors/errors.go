package errors

import (
	"errors"
	"fmt"
)

// Error types for different domains
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeInternal     ErrorType = "internal"
	ErrorTypeExternal     ErrorType = "external"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeStore        ErrorType = "store_unavailable"
	ErrorTypeNotification ErrorType = "notification"
	ErrorTypeVerification ErrorType = "verification"
)

// AppError represents a structured application error
type AppError struct {
	Type      ErrorType              `json:"type"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Cause     error                  `json:"-"`
	Retryable bool                   `json:"retryable"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// Error constructors

func NewValidationError(code, message string) *AppError {
	return &AppError{
		Type:      ErrorTypeValidation,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:      ErrorTypeNotFound,
		Code:      "RESOURCE_NOT_FOUND",
		Message:   fmt.Sprintf("%s not found", resource),
		Retryable: false,
	}
}

func NewInternalError(message string) *AppError {
	return &AppError{
		Type:      ErrorTypeInternal,
		Code:      "INTERNAL_ERROR",
		Message:   message,
		Retryable: true,
	}
}

// NewStoreUnavailableError signals that the backing event store could not be
// reached. Callers must treat it as "evaluation skipped", never as zero rows.
func NewStoreUnavailableError(message string) *AppError {
	return &AppError{
		Type:      ErrorTypeStore,
		Code:      "STORE_UNAVAILABLE",
		Message:   message,
		Retryable: true,
	}
}

// NewNotificationError signals that an alert could not be delivered. Mitigation
// already applied must not be rolled back because of it.
func NewNotificationError(message string) *AppError {
	return &AppError{
		Type:      ErrorTypeNotification,
		Code:      "NOTIFICATION_FAILURE",
		Message:   message,
		Retryable: true,
	}
}

// NewVerificationTransportError signals the CAPTCHA verification endpoint was
// unreachable. The caller must treat the request as unverified.
func NewVerificationTransportError(message string) *AppError {
	return &AppError{
		Type:      ErrorTypeVerification,
		Code:      "VERIFICATION_TRANSPORT_ERROR",
		Message:   message,
		Retryable: true,
	}
}

// NewMalformedResponseError signals an unexpected payload shape from an
// external service. Always a failure, never a success.
func NewMalformedResponseError(service, message string) *AppError {
	return &AppError{
		Type:      ErrorTypeExternal,
		Code:      "MALFORMED_RESPONSE",
		Message:   fmt.Sprintf("%s returned malformed response: %s", service, message),
		Retryable: false,
		Details:   map[string]interface{}{"service": service},
	}
}

// Wrap wraps an error with a message using fmt.Errorf with %w
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsType checks if an error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// IsStoreUnavailable reports whether err represents an unreachable event store.
func IsStoreUnavailable(err error) bool {
	return IsType(err, ErrorTypeStore)
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}
