package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures crossing a component boundary.
type ErrorKind int

const (
	KindUpstreamUnavailable ErrorKind = iota + 1
	KindObserverUnreachable
	KindUnitGenerationFailed
	KindAlreadyRunning
	KindNotFound
	KindInvalidArgument
)

func (k ErrorKind) String() string {
	switch k {
	case KindUpstreamUnavailable:
		return "upstream unavailable"
	case KindObserverUnreachable:
		return "observer unreachable"
	case KindUnitGenerationFailed:
		return "unit generation failed"
	case KindAlreadyRunning:
		return "already running"
	case KindNotFound:
		return "not found"
	case KindInvalidArgument:
		return "invalid argument"
	default:
		return "unknown"
	}
}

// Error is the typed error used inside the core. Only the RPC-facing layer
// turns it into a wire sentinel.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so errors.Is(err, ErrNotFound)
// works for every not-found error regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrUpstreamUnavailable = &Error{Kind: KindUpstreamUnavailable}
	ErrObserverUnreachable = &Error{Kind: KindObserverUnreachable}
	ErrUnitGeneration      = &Error{Kind: KindUnitGenerationFailed}
	ErrAlreadyRunning      = &Error{Kind: KindAlreadyRunning}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrInvalidArgument     = &Error{Kind: KindInvalidArgument}
)

// Errorf builds an *Error of the given kind.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to err. A nil err stays nil.
func Wrap(kind ErrorKind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind carried by err, or KindUpstreamUnavailable for
// foreign errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUpstreamUnavailable
}
