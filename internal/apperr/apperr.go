// Package apperr classifies failures so the protocol layer can decide what a
// client is allowed to see.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the failure class of an error.
type Kind int

const (
	KindInternal Kind = iota
	KindAuth
	KindValidation
	KindResource
	KindFunds
)

func (k Kind) String() string {
	return [...]string{"internal", "auth", "validation", "resource", "funds"}[k]
}

// Error is a classified failure. Message is safe to show to the client.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Auth(format string, args ...any) *Error       { return newf(KindAuth, format, args...) }
func Validation(format string, args ...any) *Error { return newf(KindValidation, format, args...) }
func Resource(format string, args ...any) *Error   { return newf(KindResource, format, args...) }
func Funds(format string, args ...any) *Error      { return newf(KindFunds, format, args...) }

// Internal wraps an unexpected fault. The cause is kept for logging only.
func Internal(err error, format string, args ...any) *Error {
	e := newf(KindInternal, format, args...)
	e.Err = err
	return e
}

// Wrap attaches a cause to a classified error and returns it.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf reports the kind of err. Unclassified errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Public returns the message a client may see for err.
func Public(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return "Internal server error"
}
