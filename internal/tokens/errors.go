package tokens

import (
	"errors"

	pkgerrors "github.com/coownly/esign-backend/pkg/errors"
)

// FailureKind classifies why a token did not resolve.
type FailureKind string

const (
	FailureMalformed        FailureKind = "malformed"
	FailureMacMismatch      FailureKind = "mac_mismatch"
	FailureDocumentMismatch FailureKind = "document_mismatch"
	FailureExpired          FailureKind = "expired"
	FailureAlreadyConsumed  FailureKind = "already_consumed"
)

// Failure is the typed validation error. It converts to the API error taxonomy
// through APIError.
type Failure struct {
	Kind FailureKind
	err  error
}

func newFailure(kind FailureKind, cause error) *Failure {
	return &Failure{Kind: kind, err: cause}
}

func (f *Failure) Error() string {
	if f.err != nil {
		return "signing token " + string(f.Kind) + ": " + f.err.Error()
	}
	return "signing token " + string(f.Kind)
}

func (f *Failure) Unwrap() error {
	return f.err
}

// APIError maps the failure onto the service error codes. The message never
// echoes token contents.
func (f *Failure) APIError() *pkgerrors.Error {
	var e *pkgerrors.Error
	switch f.Kind {
	case FailureExpired:
		e = pkgerrors.Wrap(pkgerrors.CodeExpired, f, "signing window has expired")
	case FailureAlreadyConsumed:
		e = pkgerrors.Wrap(pkgerrors.CodeAlreadySigned, f, "signature already recorded")
	default:
		e = pkgerrors.Wrap(pkgerrors.CodeInvalidToken, f, "signing token is invalid")
	}
	return e.WithDetails(map[string]any{"reason": string(f.Kind)})
}

// KindOf returns the failure kind carried by err, or "" when err is not a
// token failure.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}
