package domain

import (
	"errors"
	"fmt"
)

// Kind classifies session failures by the component that raised them.
type Kind string

const (
	KindAuth       Kind = "auth"
	KindLocation   Kind = "location"
	KindGeocode    Kind = "geocode"
	KindQuery      Kind = "query"
	KindValidation Kind = "validation"
	KindCreation   Kind = "creation"
)

var (
	ErrUnauthenticated     = errors.New("no session token")
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrPositionUnavailable = errors.New("position unavailable")
	ErrTimeout             = errors.New("timed out")
	ErrUnsupported         = errors.New("geolocation is not supported")
	ErrSuperseded          = errors.New("superseded by a newer request")
	ErrNotConfigured       = errors.New("not configured")
)

// Error is a classified failure surfaced to the user.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an Error whose message is taken from err.
func NewError(kind Kind, op string, err error) *Error {
	e := &Error{Kind: kind, Op: op, Err: err}
	if err != nil {
		e.Message = err.Error()
	}
	return e
}

// ValidationError reports locally rejected input. No network call is made
// for a draft that fails validation.
func ValidationError(op, msg string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: msg}
}

// KindOf returns the Kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// UserMessage returns the text shown to the user for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}
