// Package verr defines the error taxonomy shared across vecstore's packages.
// Every exported operation that can fail in a way a caller should branch on
// returns (or wraps) a *verr.Error with one of the Kind values below.
package verr

import (
	"errors"
	"fmt"
)

// Kind classifies a vecstore error for programmatic handling.
type Kind string

const (
	InvalidInput      Kind = "InvalidInput"
	NotFound          Kind = "NotFound"
	AlreadyExists     Kind = "AlreadyExists"
	NotAStore         Kind = "NotAStore"
	UnsupportedFormat Kind = "UnsupportedFormat"
	UnreadableSource  Kind = "UnreadableSource"
	CorruptIndex      Kind = "CorruptIndex"
	CorruptRecord     Kind = "CorruptRecord"
	EmbeddingFailed   Kind = "EmbeddingFailed"
	ModelUnavailable  Kind = "ModelUnavailable"
	DimensionMismatch Kind = "DimensionMismatch"
	Cancelled         Kind = "Cancelled"
)

// Error is the concrete error type returned by vecstore's public surface.
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "store.Open"
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches by Kind so callers can write errors.Is(err, verr.NotFound.Sentinel()).
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// New constructs an *Error for op/kind with a formatted message.
func New(op string, kind Kind, format string, args ...any) *Error {
	return &Error{Op: op, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error that preserves cause for errors.Unwrap/As chains.
func Wrap(op string, kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Op: op, Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Sentinel returns a zero-value *Error of the given kind, suitable as the
// target of errors.Is(err, verr.NotFound.Sentinel()).
func (k Kind) Sentinel() *Error { return &Error{Kind: k} }

// Of reports the Kind of err if it is (or wraps) a *Error, and ok=false
// otherwise.
func Of(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	got, ok := Of(err)
	return ok && got == kind
}
