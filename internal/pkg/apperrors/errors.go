package apperrors

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// Input errors
	ErrValidationFailed = errors.New("validation failed")

	// Resource errors
	ErrResourceNotFound = errors.New("resource not found")
	ErrConflict         = errors.New("conflict")

	// Business rule errors
	ErrQuotaExceeded = errors.New("slot quota exceeded")

	// Storage / infrastructure errors
	ErrInternal = errors.New("internal error")

	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("authentication required")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("invalid token")
)

// Domain errors
var (
	ErrStudentNotFound = NewNotFoundError("student not found")
	ErrBookingNotFound = NewNotFoundError("booking does not exist")
	ErrSlotNotFound    = NewNotFoundError("some of the selected slots do not exist")
	ErrSlotTaken       = NewConflictError("some of the selected slots are already taken by other students")
	ErrNoSlotsSelected = NewValidationError("select at least one slot")
	ErrConcurrentWrite = NewConflictError("the data was changed by another request, please try again")
)

// NewValidationError creates a new custom error for invalid input with a message
func NewValidationError(message string) error {
	return &CustomError{
		Err:     ErrValidationFailed,
		Message: message,
	}
}

// NewNotFoundError creates a new custom error for resource not found with a message
func NewNotFoundError(message string) error {
	return &CustomError{
		Err:     ErrResourceNotFound,
		Message: message,
	}
}

// NewConflictError creates a new custom error for conflict situations with a message
func NewConflictError(message string) error {
	return &CustomError{
		Err:     ErrConflict,
		Message: message,
	}
}

// NewQuotaExceededError reports a request for more slots than the student may hold.
// The quota is part of the message so callers can render it directly.
func NewQuotaExceededError(quota int) error {
	return &CustomError{
		Err:     ErrQuotaExceeded,
		Message: fmt.Sprintf("you can book at most %d slots", quota),
		Details: map[string]interface{}{"maxSlots": quota},
	}
}

// NewInternalError wraps a storage or transaction failure.
func NewInternalError(message string, cause error) error {
	return &CustomError{
		Err:     ErrInternal,
		Message: message,
		Cause:   cause,
	}
}

// CustomError represents application-specific errors with additional context
type CustomError struct {
	Err     error
	Message string
	Details map[string]interface{}
	// Cause is the underlying failure, kept for logs and never shown to clients
	Cause error
}

// Error implements error interface
func (e *CustomError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

// Unwrap exposes both the category sentinel and the cause
func (e *CustomError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// WithDetails adds context details to the error
func (e *CustomError) WithDetails(details map[string]interface{}) *CustomError {
	e.Details = details
	return e
}

// Message returns the human-readable message carried by err, or fallback when
// err is not a CustomError.
func Message(err error, fallback string) string {
	var ce *CustomError
	if errors.As(err, &ce) && ce.Message != "" {
		return ce.Message
	}
	return fallback
}

// Details returns the details map carried by err, if any.
func Details(err error) map[string]interface{} {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce.Details
	}
	return nil
}
