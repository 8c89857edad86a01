// Package apperror models the engine's error kinds (spec.md §7) as a single
// typed sentinel so handlers return errors and never write status codes
// themselves; the HTTP layer maps Kind to a status the same way the teacher's
// CustomHTTPErrorHandler maps echo.HTTPError.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind enumerates the engine's semantic error categories.
type Kind int

const (
	// Unknown is the zero value; never returned deliberately.
	Unknown Kind = iota
	Unauthenticated
	Forbidden
	BadRequest
	NotFound
	Conflict
	StoreUnavailable
	OracleUnavailable
	Cancelled
)

// Status returns the HTTP status this Kind surfaces as.
func (k Kind) Status() int {
	switch k {
	case Unauthenticated:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case BadRequest:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case StoreUnavailable, OracleUnavailable:
		return http.StatusInternalServerError
	case Cancelled:
		return 499 // client closed request; no standard code
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) String() string {
	switch k {
	case Unauthenticated:
		return "unauthenticated"
	case Forbidden:
		return "forbidden"
	case BadRequest:
		return "bad_request"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case StoreUnavailable:
		return "store_unavailable"
	case OracleUnavailable:
		return "oracle_unavailable"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is the concrete error type carrying a Kind and an underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error of the given kind with a message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind wrapping a lower-level cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind from err, defaulting to StoreUnavailable for
// errors the engine did not itself classify (an unmapped internal failure
// surfaces as a 500, never a silently-swallowed 200).
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return StoreUnavailable
}

func Unauthenticatedf(format string, args ...interface{}) *Error {
	return New(Unauthenticated, fmt.Sprintf(format, args...))
}

func BadRequestf(format string, args ...interface{}) *Error {
	return New(BadRequest, fmt.Sprintf(format, args...))
}

func NotFoundf(format string, args ...interface{}) *Error {
	return New(NotFound, fmt.Sprintf(format, args...))
}
