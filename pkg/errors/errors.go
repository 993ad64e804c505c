package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	// signing workflow
	CodeInvalidToken  Code = "INVALID_TOKEN"
	CodeExpired       Code = "EXPIRED"
	CodeAlreadySigned Code = "ALREADY_SIGNED"
	CodeOutOfOrder    Code = "OUT_OF_ORDER"
	CodeUnsafeContent Code = "UNSAFE_CONTENT"
)

// Metadata is the HTTP contract of a Code: status, client-facing message and
// whether Details may be echoed back.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

const (
	retryable    = true
	notRetryable = false
	withDetails  = true
	noDetails    = false
)

var metadataByCode = map[Code]Metadata{
	CodeValidation:    {http.StatusBadRequest, notRetryable, "validation failed", withDetails},
	CodeUnauthorized:  {http.StatusUnauthorized, notRetryable, "authentication required", noDetails},
	CodeForbidden:     {http.StatusForbidden, notRetryable, "access denied", noDetails},
	CodeNotFound:      {http.StatusNotFound, notRetryable, "resource not found", noDetails},
	CodeConflict:      {http.StatusConflict, notRetryable, "conflict detected", noDetails},
	CodeStateConflict: {http.StatusUnprocessableEntity, notRetryable, "state transition disallowed", withDetails},
	CodeIdempotency:   {http.StatusConflict, notRetryable, "idempotency key reused", withDetails},
	CodeRateLimit:     {http.StatusTooManyRequests, notRetryable, "rate limit exceeded", noDetails},
	CodeInternal:      {http.StatusInternalServerError, retryable, "internal server error", noDetails},
	CodeDependency:    {http.StatusServiceUnavailable, retryable, "dependency unavailable", withDetails},

	CodeInvalidToken:  {http.StatusUnauthorized, notRetryable, "signing token rejected", withDetails},
	CodeExpired:       {http.StatusGone, notRetryable, "signing window has expired", withDetails},
	CodeAlreadySigned: {http.StatusConflict, notRetryable, "signature already recorded", withDetails},
	CodeOutOfOrder:    {http.StatusConflict, notRetryable, "an earlier signer has not signed yet", withDetails},
	CodeUnsafeContent: {http.StatusUnprocessableEntity, notRetryable, "content rejected by scanner", withDetails},
}

// MetadataFor falls back to CodeInternal for codes outside the catalog.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error carries a Code, a message safe to show when details are allowed, and
// the underlying cause for logs. A nil *Error reads as CodeInternal.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches cause to a typed error. A nil cause behaves like New.
func Wrap(code Code, cause error, message string) *Error {
	return &Error{code: code, message: message, cause: cause}
}

// WithDetails sets the client-visible details and returns e for chaining.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
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

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause == nil:
		return fmt.Sprintf("%s: %s", e.code, e.message)
	default:
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf returns the typed code carried by err, or CodeInternal for untyped errors.
func CodeOf(err error) Code {
	return As(err).Code()
}

// IsCode reports whether the outermost typed error in err has code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
