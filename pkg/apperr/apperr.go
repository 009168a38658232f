// Package apperr defines the error taxonomy shared by services and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error independently of its message.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindAccessDenied       Kind = "access_denied"
	KindInvalidState       Kind = "invalid_state"
	KindInvalidTransition  Kind = "invalid_transition"
	KindPreconditionFailed Kind = "precondition_failed"
	KindDuplicateResource  Kind = "duplicate_resource"
	KindValidation         Kind = "validation_error"
	KindUnauthorized       Kind = "unauthorized"
	KindRateLimited        Kind = "rate_limited"
	KindInternal           Kind = "internal"
)

// Error is the canonical application error. Code is a stable machine-readable
// identifier, Message is safe to show to API callers.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches another *Error by kind and code, so sentinel values work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	if t.Code != "" && t.Code != e.Code {
		return false
	}
	return t.Kind == e.Kind
}

// Wrap attaches an underlying cause that is logged but never rendered.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.cause = cause
	return &cp
}

// HTTPStatus maps the kind to a response status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindAccessDenied:
		return http.StatusForbidden
	case KindInvalidState, KindInvalidTransition, KindValidation:
		return http.StatusBadRequest
	case KindPreconditionFailed:
		return http.StatusPreconditionFailed
	case KindDuplicateResource:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func newErr(kind Kind, code, format string, args ...any) *Error {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &Error{Kind: kind, Code: code, Message: msg}
}

func NotFound(code, format string, args ...any) *Error {
	return newErr(KindNotFound, code, format, args...)
}

func AccessDenied(code, format string, args ...any) *Error {
	return newErr(KindAccessDenied, code, format, args...)
}

func InvalidState(code, format string, args ...any) *Error {
	return newErr(KindInvalidState, code, format, args...)
}

func InvalidTransition(code, format string, args ...any) *Error {
	return newErr(KindInvalidTransition, code, format, args...)
}

func PreconditionFailed(code, format string, args ...any) *Error {
	return newErr(KindPreconditionFailed, code, format, args...)
}

func Duplicate(code, format string, args ...any) *Error {
	return newErr(KindDuplicateResource, code, format, args...)
}

func Validation(code, format string, args ...any) *Error {
	return newErr(KindValidation, code, format, args...)
}

func Unauthorized(code, format string, args ...any) *Error {
	return newErr(KindUnauthorized, code, format, args...)
}

func RateLimited(code, format string, args ...any) *Error {
	return newErr(KindRateLimited, code, format, args...)
}

func Internal(cause error) *Error {
	return (&Error{Kind: KindInternal, Code: "internal_error", Message: "internal server error"}).Wrap(cause)
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
