package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a report error code.
type ErrorCode string

const (
	ErrInvalidInput  ErrorCode = "INVALID_INPUT"  // 400
	ErrInvalidConfig ErrorCode = "INVALID_CONFIG" // 422
	ErrNotFound      ErrorCode = "NOT_FOUND"      // 404
	ErrCancelled     ErrorCode = "CANCELLED"      // 499
	ErrInternal      ErrorCode = "INTERNAL"       // 500
)

// Error represents a structured error with code, status, and details.
type Error struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidInput creates a 400 error for unreadable report input.
func NewInvalidInput(msg string) *Error {
	return &Error{
		Code:    ErrInvalidInput,
		Status:  400,
		Message: msg,
	}
}

// NewInvalidConfig creates a 422 error for a rejected configuration value.
// index is the position of the offending mapping entry, or -1 for report settings.
func NewInvalidConfig(index int, msg string) *Error {
	e := &Error{
		Code:    ErrInvalidConfig,
		Status:  422,
		Message: msg,
	}
	if index >= 0 {
		e.Message = fmt.Sprintf("mapping #%d: %s", index, msg)
		e.Details = map[string]any{"index": index}
	}
	return e
}

// NewNotFound creates a 404 error for an archived run that does not exist.
func NewNotFound(identifier string) *Error {
	return &Error{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("run not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewCancelled creates an error for an operation aborted by its context.
func NewCancelled(operation string) *Error {
	return &Error{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", operation),
		Details: map[string]any{"operation": operation},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *Error {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &Error{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if err (or anything it wraps) is an *Error with the given code.
func Is(err error, code ErrorCode) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code == code
	}
	return false
}
