// Package apperr defines the error taxonomy shared by every layer. Each error
// carries the public body fields ({message, action, statusCode,
// errorLocationCode}) plus internal diagnostics that are only logged.
package apperr

import (
	"errors"
	"net/http"
)

type Kind string

const (
	KindValidation   Kind = "validation"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindUnauthorized Kind = "unauthorized"
	KindService      Kind = "service"
)

type Error struct {
	Kind         Kind
	Message      string
	Action       string
	StatusCode   int
	LocationCode string
	// Key is the offending input field, when one can be named.
	Key string
	// Type is the machine-readable rule that failed, e.g. "string.min".
	Type string
	// Retryable marks infrastructure failures that may succeed on a later attempt.
	Retryable bool
	// Context holds diagnostic payload for logs. Never serialized.
	Context map[string]any

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.LocationCode + ": " + e.Message + ": " + e.cause.Error()
	}
	return e.LocationCode + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Body is the stable wire shape of an error response.
type Body struct {
	Message           string `json:"message"`
	Action            string `json:"action"`
	StatusCode        int    `json:"statusCode"`
	ErrorLocationCode string `json:"errorLocationCode"`
}

func (e *Error) Body() Body {
	return Body{
		Message:           e.Message,
		Action:            e.Action,
		StatusCode:        e.StatusCode,
		ErrorLocationCode: e.LocationCode,
	}
}

type Option func(*Error)

func WithKey(key string) Option { return func(e *Error) { e.Key = key } }
func WithType(typ string) Option { return func(e *Error) { e.Type = typ } }
func WithAction(action string) Option { return func(e *Error) { e.Action = action } }
func WithStatus(status int) Option { return func(e *Error) { e.StatusCode = status } }
func WithCause(err error) Option { return func(e *Error) { e.cause = err } }
func WithContext(ctx map[string]any) Option { return func(e *Error) { e.Context = ctx } }

func build(kind Kind, status int, message, action, location string, opts []Option) *Error {
	e := &Error{
		Kind:         kind,
		Message:      message,
		Action:       action,
		StatusCode:   status,
		LocationCode: location,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func Validation(message, location string, opts ...Option) *Error {
	return build(KindValidation, http.StatusBadRequest, message,
		"Adjust the submitted data and try again.", location, opts)
}

func Forbidden(message, location string, opts ...Option) *Error {
	return build(KindForbidden, http.StatusForbidden, message,
		"Check that this user has the required feature.", location, opts)
}

func NotFound(message, location string, opts ...Option) *Error {
	return build(KindNotFound, http.StatusNotFound, message,
		"Check that the referenced resource exists.", location, opts)
}

func Unauthorized(message, location string, opts ...Option) *Error {
	return build(KindUnauthorized, http.StatusUnauthorized, message,
		"Check that the submitted data is correct.", location, opts)
}

func Service(message, location string, opts ...Option) *Error {
	e := build(KindService, http.StatusServiceUnavailable, message,
		"Try again in a few moments.", location, opts)
	e.Retryable = true
	return e
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err carries an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}

// Internal is the body sent for errors outside the taxonomy.
func Internal() Body {
	return Body{
		Message:           "An unexpected internal error occurred.",
		Action:            "Report the error to the support team.",
		StatusCode:        http.StatusInternalServerError,
		ErrorLocationCode: "INFRA:UNKNOWN",
	}
}
