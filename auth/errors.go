package auth

import (
	"errors"
)

// Kind classifies a failure returned by the Service.
type Kind int

const (
	Internal Kind = iota
	InvalidInput
	Conflict
	Unauthorized
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "invalid_input"
	case Conflict:
		return "conflict"
	case Unauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

// Error is a classified service failure. Msg is safe to show to callers, Err
// (if any) is the underlying cause and is only meant for logs.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// internalError hides err behind a generic message.
func internalError(err error) error {
	return &Error{Kind: Internal, Msg: "internal error", Err: err}
}

// KindOf returns the Kind of err. Errors that are not an *Error are Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
