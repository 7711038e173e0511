// Package apierror provides the typed error taxonomy used across the service
// and the standardized response envelopes for the API. All errors returned to
// clients go through this package to ensure consistency and to prevent leaking
// internal details (stack traces, DB errors, etc.).
package apierror

import (
	"errors"
	"net/http"
)

// Kind classifies a failure for both callers and the HTTP layer.
type Kind int

const (
	KindInternal Kind = iota
	// KindValidation — malformed input. Recovered locally, no retry.
	KindValidation
	// KindConflict — the transition lost a race (session already open /
	// already closed). Caller should re-fetch state, not blindly retry.
	KindConflict
	// KindNotFound — referenced record does not exist.
	KindNotFound
	// KindTransient — store/network unavailability. Reads may be retried
	// with backoff; mutations must re-check state first.
	KindTransient
)

// Error is the canonical typed failure returned by repositories and services.
type Error struct {
	Kind   Kind
	Detail string
	Fields map[string]string
	cause  error
}

func (e *Error) Error() string { return e.Detail }

func (e *Error) Unwrap() error { return e.cause }

// HTTPStatus maps the error kind to the response status code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func NewValidation(detail string) *Error {
	return &Error{Kind: KindValidation, Detail: detail}
}

// NewFieldValidation wraps per-field messages from the request validator.
func NewFieldValidation(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Detail: "validation failed", Fields: fields}
}

func NewConflict(detail string) *Error {
	return &Error{Kind: KindConflict, Detail: detail}
}

func NewNotFound(detail string) *Error {
	return &Error{Kind: KindNotFound, Detail: detail}
}

// NewTransient keeps the underlying cause for logging while exposing a safe
// message to clients.
func NewTransient(detail string, cause error) *Error {
	return &Error{Kind: KindTransient, Detail: detail, cause: cause}
}

// As extracts a typed *Error from an error chain.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, k Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == k
}

// ── Response envelopes ───────────────────────────────────────────────────────

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields,omitempty"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// Envelope converts a typed error into its wire form.
func Envelope(e *Error) *APIError {
	return &APIError{Detail: e.Detail, Fields: e.Fields}
}
