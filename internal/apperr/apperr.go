// Package apperr defines the request-level error taxonomy.
//
// Every failure that can surface to an API caller is classified by a
// Kind. Failures detected before the response stream opens become a
// JSON error with the Kind's HTTP status; failures after the stream
// opens degrade to a terminal error frame (see internal/stream).
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a request failure.
type Kind string

const (
	KindBadRequest   Kind = "bad_request"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindRateLimit    Kind = "rate_limit"
	KindInternal     Kind = "internal"
)

// Error is a classified application error. Surface names the area the
// error originated from ("chat", "vote", "document", ...) and appears
// in the wire code as "<kind>:<surface>".
type Error struct {
	Kind    Kind
	Surface string
	Message string
	Err     error // optional cause, not exposed to callers
}

// New creates an Error with the given kind, surface and message.
func New(kind Kind, surface, message string) *Error {
	return &Error{Kind: kind, Surface: surface, Message: message}
}

// Wrap attaches a cause to a classified error.
func Wrap(kind Kind, surface, message string, err error) *Error {
	return &Error{Kind: kind, Surface: surface, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s:%s: %s: %v", e.Kind, e.Surface, e.Message, e.Err)
	}
	return fmt.Sprintf("%s:%s: %s", e.Kind, e.Surface, e.Message)
}

// Unwrap exposes the cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error { return e.Err }

// Code returns the wire error code, e.g. "rate_limit:chat".
func (e *Error) Code() string {
	if e.Surface == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ":" + e.Surface
}

// HTTPStatus maps the Kind to its HTTP status code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// From extracts an *Error from err, or classifies it as internal.
// The internal fallback carries a generic message so unexpected error
// text never leaks to callers.
func From(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Wrap(KindInternal, "api", "an unexpected error occurred", err)
}
