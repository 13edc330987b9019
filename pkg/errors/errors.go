// Package errors provides the structured error type shared by every layer of
// LexiGuard. An AppError carries a Code that decides how the failure is
// surfaced (HTTP status, audit action) and an optional Cause so that
// errors.Is / errors.As keep working across layers.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a failure category.
type Code string

const (
	// CodeValidation marks missing or empty input rejected before processing.
	CodeValidation Code = "VALIDATION"
	// CodeExtraction marks a corrupt document that could not be converted to text.
	CodeExtraction Code = "EXTRACTION"
	// CodeUnsupportedFormat marks a document whose format no extractor handles.
	// It is an extraction failure with its own status code.
	CodeUnsupportedFormat Code = "UNSUPPORTED_FORMAT"
	// CodePersistence marks a store read or write failure.
	CodePersistence Code = "PERSISTENCE"
	// CodeNotFound marks a lookup that matched nothing.
	CodeNotFound Code = "NOT_FOUND"
	// CodeInternal is the catch-all.
	CodeInternal Code = "INTERNAL"
)

func (c Code) String() string { return string(c) }

// AppError is the single structured error type used throughout LexiGuard.
type AppError struct {
	Code    Code
	Message string
	Cause   error
}

// Error renders "[CODE] message: cause". The cause segment is omitted when nil.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *AppError) Unwrap() error { return e.Cause }

// New constructs an AppError without a cause.
func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Newf is New with a format string.
func Newf(code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches code and message to err. Wrap(nil, ...) returns nil so it can
// be used inline on a return path.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// IsCode reports whether any AppError in err's chain carries code.
func IsCode(err error, code Code) bool {
	for err != nil {
		var ae *AppError
		if !errors.As(err, &ae) {
			return false
		}
		if ae.Code == code {
			return true
		}
		err = ae.Cause
	}
	return false
}

// CodeOf returns the code of the outermost AppError in err's chain, or
// CodeInternal when there is none.
func CodeOf(err error) Code {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// Message returns the user-facing message of the outermost AppError, falling
// back to err.Error().
func Message(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Message
	}
	return err.Error()
}

// HTTPStatus maps an error to the status code the API layer responds with.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case CodeExtraction:
		return http.StatusUnprocessableEntity
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Validation is shorthand for New(CodeValidation, message).
func Validation(message string) *AppError { return New(CodeValidation, message) }

// NotFound is shorthand for New(CodeNotFound, message).
func NotFound(message string) *AppError { return New(CodeNotFound, message) }
