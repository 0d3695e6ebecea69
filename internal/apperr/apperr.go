// Package apperr provides the request-level error taxonomy.
// Services return these typed errors and the HTTP layer maps them to status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind represents the category of error.
type Kind int

const (
	// KindInternal indicates an unexpected failure in parsing or serialization.
	KindInternal Kind = iota
	// KindValidation indicates a bad or missing input field.
	KindValidation
	// KindCapacity indicates an upload that is too large or has too many rows.
	KindCapacity
	// KindInvalidInput indicates a well-formed request whose field values are rejected.
	KindInvalidInput
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindCapacity:
		return "capacity"
	case KindInvalidInput:
		return "invalid_input"
	default:
		return "internal"
	}
}

// Error is a domain error with a typed Kind for HTTP mapping.
type Error struct {
	Kind    Kind
	Message string
	Op      string // Operation that failed (optional)
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code for this error kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindCapacity:
		return http.StatusRequestEntityTooLarge
	case KindInvalidInput:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// WithOp sets the operation that failed.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// New creates a new error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a new error wrapping an existing one.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation creates a validation error.
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// InvalidInput creates an error for rejected field values.
func InvalidInput(message string) *Error {
	return New(KindInvalidInput, message)
}

// Capacity creates a capacity error.
func Capacity(message string) *Error {
	return New(KindCapacity, message)
}

// Internal creates an internal error.
func Internal(message string, err error) *Error {
	return Wrap(KindInternal, message, err)
}

// As extracts an *Error from the chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetKind extracts the error kind, defaulting to KindInternal for foreign errors.
func GetKind(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// Is checks if err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && GetKind(err) == kind
}
