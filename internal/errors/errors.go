package errors

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes an application error. HTTP handlers map codes onto
// status codes; repositories produce them through MapDBError.
type ErrorCode string

const (
	ErrCodeNotFound   ErrorCode = "not_found"
	ErrCodeConflict   ErrorCode = "conflict"
	ErrCodeValidation ErrorCode = "validation"
	ErrCodeInternal   ErrorCode = "internal"
	ErrCodeTimeout    ErrorCode = "timeout"
	ErrCodeCanceled   ErrorCode = "canceled"
	// ErrCodeUnauthenticated marks a request that carries no valid session.
	ErrCodeUnauthenticated ErrorCode = "unauthenticated"
	// ErrCodeForbidden marks a session that lacks the required role.
	ErrCodeForbidden ErrorCode = "forbidden"
)

// AppError is a coded error with an optional cause and offending field.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
	// Field names the input that failed validation, if any.
	Field string
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

func newError(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// NotFound creates a NotFound error.
func NotFound(message string) *AppError { return newError(ErrCodeNotFound, message) }

// NotFoundf creates a NotFound error with a formatted message.
func NotFoundf(format string, args ...any) *AppError {
	return newError(ErrCodeNotFound, fmt.Sprintf(format, args...))
}

// ValidationField creates a Validation error for a specific field.
func ValidationField(field, message string) *AppError {
	e := newError(ErrCodeValidation, message)
	e.Field = field
	return e
}

// Unauthenticated creates an error for a request without a usable session.
func Unauthenticated(message string) *AppError { return newError(ErrCodeUnauthenticated, message) }

// Forbidden creates an error for a session missing a required role.
func Forbidden(message string) *AppError { return newError(ErrCodeForbidden, message) }

// Wrap attaches code and message to err. A nil err yields nil.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// IsNotFound reports whether err carries ErrCodeNotFound.
func IsNotFound(err error) bool { return GetCode(err) == ErrCodeNotFound }

// GetCode returns the code of the outermost AppError in err's chain, or "".
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if err != nil && errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
