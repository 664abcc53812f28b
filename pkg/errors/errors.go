package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation       Code = "VALIDATION_ERROR"
	CodeUnauthorized     Code = "UNAUTHORIZED"
	CodeForbidden        Code = "FORBIDDEN"
	CodeNotFound         Code = "NOT_FOUND"
	CodeConflict         Code = "CONFLICT"
	CodeStateConflict    Code = "STATE_CONFLICT"
	CodeIdempotency      Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit        Code = "RATE_LIMIT_EXCEEDED"
	CodeInvalidSignature Code = "INVALID_SIGNATURE"
	CodeInternal         Code = "INTERNAL_ERROR"
	CodeDependency       Code = "DEPENDENCY_ERROR"
)

// Metadata describes how a Code surfaces over HTTP. Client faults expose the
// error's own message; server faults only ever show PublicMessage.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
	ExposeMessage  bool
}

func clientFault(status int, public string, details bool) Metadata {
	return Metadata{HTTPStatus: status, PublicMessage: public, DetailsAllowed: details, ExposeMessage: true}
}

func serverFault(status int, public string, details bool) Metadata {
	return Metadata{HTTPStatus: status, PublicMessage: public, DetailsAllowed: details, Retryable: true}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:       clientFault(http.StatusBadRequest, "validation failed", true),
	CodeUnauthorized:     clientFault(http.StatusUnauthorized, "authentication required", false),
	CodeForbidden:        clientFault(http.StatusForbidden, "access denied", false),
	CodeNotFound:         clientFault(http.StatusNotFound, "resource not found", false),
	CodeConflict:         clientFault(http.StatusConflict, "conflict detected", false),
	CodeStateConflict:    clientFault(http.StatusUnprocessableEntity, "state transition disallowed", true),
	CodeIdempotency:      clientFault(http.StatusConflict, "idempotency key reused", true),
	CodeRateLimit:        clientFault(http.StatusTooManyRequests, "rate limit exceeded", false),
	CodeInvalidSignature: clientFault(http.StatusBadRequest, "invalid signature", false),
	CodeInternal:         serverFault(http.StatusInternalServerError, "internal server error", false),
	CodeDependency:       serverFault(http.StatusServiceUnavailable, "dependency unavailable", true),
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// HasCode reports whether err carries a typed error with code.
func HasCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// Error is the typed error surfaced by services. Reason narrows a Code to a
// machine-readable kind such as INSUFFICIENT_STOCK.
type Error struct {
	code    Code
	reason  string
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// NewReason builds an error carrying a specific reason under a broader code.
func NewReason(code Code, reason, message string) *Error {
	return &Error{code: code, reason: reason, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Reason() string {
	if e == nil {
		return ""
	}
	return e.reason
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails returns a copy carrying details so shared sentinels stay untouched.
func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	clone := *e
	clone.details = details
	return &clone
}

// WithCause returns a copy wrapping cause.
func (e *Error) WithCause(cause error) *Error {
	if e == nil {
		return nil
	}
	clone := *e
	clone.cause = cause
	return &clone
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.reason != "" {
		return fmt.Sprintf("%s(%s): %s", e.code, e.reason, e.message)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches another *Error by code and reason, which lets callers compare
// against exported sentinels with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	if t.reason == "" {
		return e == t
	}
	return e.code == t.code && e.reason == t.reason
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}
