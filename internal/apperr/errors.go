// Package apperr classifies failures so handlers can pick a status code without
// string-matching error messages.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the category of an application error.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindValidation
	KindNotFound
	KindConflict
	KindExternal
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindExternal:
		return "external_service"
	default:
		return "internal"
	}
}

// Status maps a kind to the HTTP status used in responses. Conflicts are
// informational and answered with 200.
func (k Kind) Status() int {
	switch k {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusOK
	case KindExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is a user-facing message with a kind and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same kind and message, so package level
// sentinels keep working after being wrapped with a cause.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

// Wrap attaches a cause to a sentinel while keeping its kind and message.
func (e *Error) Wrap(cause error) *Error {
	return &Error{Kind: e.Kind, Message: e.Message, Err: cause}
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Unauthenticated(message string) *Error { return New(KindUnauthenticated, message) }
func Validation(message string) *Error      { return New(KindValidation, message) }
func NotFound(message string) *Error        { return New(KindNotFound, message) }
func Conflict(message string) *Error        { return New(KindConflict, message) }

// External wraps a failure of a collaborating service.
func External(message string, cause error) *Error {
	return &Error{Kind: KindExternal, Message: message, Err: cause}
}

// KindOf reports the kind of err, KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Message returns the user-facing message for err. Unclassified errors never
// leak their text.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal server error"
}
