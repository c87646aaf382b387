package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	Unauthorized Kind = "unauthorized"
	Forbidden    Kind = "forbidden"
	NotFound     Kind = "not_found"
	InvalidInput Kind = "invalid_input"
	ServerFault  Kind = "server_fault"
)

// Error carries a Kind so the HTTP layer can pick a status without string matching.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, apperr.ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrUnauthorized = &Error{Kind: Unauthorized}
	ErrForbidden    = &Error{Kind: Forbidden}
	ErrNotFound     = &Error{Kind: NotFound}
	ErrInvalidInput = &Error{Kind: InvalidInput}
	ErrServerFault  = &Error{Kind: ServerFault}
)

func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func Invalid(format string, args ...any) error {
	return &Error{Kind: InvalidInput, Msg: fmt.Sprintf(format, args...)}
}

func Missing(what string) error {
	return &Error{Kind: NotFound, Msg: what + " not found"}
}

// KindOf reports the kind of err. Anything that is not an *Error is a ServerFault.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ServerFault
}

// Message returns the client-safe message for err. Server faults never leak driver text.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != ServerFault {
		return e.Msg
	}
	return "internal server error"
}
