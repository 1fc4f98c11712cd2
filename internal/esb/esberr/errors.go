// Package esberr defines the error taxonomy used across the bus core.
//
// Every error that crosses a handler or producer boundary carries a
// ClientMessage (safe to surface to callers) separate from Detail (the
// diagnostic cause). Exceptions are never propagated across the handler
// boundary; callers always receive a typed error value.
package esberr

import (
	"errors"
	"fmt"
)

// DefaultClientMessage backs ClientMessage when a constructor is not given one.
var DefaultClientMessage = "an internal error occurred processing this message"

// Kind identifies which branch of the taxonomy an error belongs to.
type Kind string

const (
	KindArgument          Kind = "argument"
	KindInvalidState      Kind = "invalid_state"
	KindInvariantViolation Kind = "invariant_violation"
	KindHandler           Kind = "handler"
	KindTransport         Kind = "transport"
	KindFaultRouting      Kind = "fault_routing"
)

// Error is the single error type flowing through the bus. ClientMessage is
// the public-facing message; Detail is the diagnostic cause. Error()
// renders both, and Unwrap exposes Detail to errors.Is/errors.As.
type Error struct {
	Kind          Kind
	ClientMessage string
	Detail        error
	QueueName     string
}

func (e *Error) Error() string {
	if e.Detail != nil {
		return fmt.Sprintf("%s: %v", e.ClientMessage, e.Detail)
	}
	return e.ClientMessage
}

func (e *Error) Unwrap() error {
	return e.Detail
}

func newErr(kind Kind, clientMessage string, detail error) *Error {
	if clientMessage == "" {
		clientMessage = DefaultClientMessage
	}
	return &Error{Kind: kind, ClientMessage: clientMessage, Detail: detail}
}

// Argument reports invalid or missing input at an API boundary.
func Argument(clientMessage string, detail error) *Error {
	return newErr(KindArgument, clientMessage, detail)
}

// InvalidState reports an operation attempted against a disposed or
// terminated queue.
func InvalidState(queueName, clientMessage string, detail error) *Error {
	e := newErr(KindInvalidState, clientMessage, detail)
	e.QueueName = queueName
	return e
}

// InvariantViolation reports a broken internal contract (nil handler
// result, a peek returning the wrong concrete type, and similar defects).
func InvariantViolation(clientMessage string, detail error) *Error {
	return newErr(KindInvariantViolation, clientMessage, detail)
}

// Handler reports a user handler that returned errors or panicked.
func Handler(clientMessage string, detail error) *Error {
	return newErr(KindHandler, clientMessage, detail)
}

// Transport reports a body-provider or queue-container I/O failure.
func Transport(clientMessage string, detail error) *Error {
	return newErr(KindTransport, clientMessage, detail)
}

// FaultRouting reports a failed enqueue to the fault queue.
func FaultRouting(clientMessage string, detail error) *Error {
	return newErr(KindFaultRouting, clientMessage, detail)
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Sentinel errors for container/queue-level conditions that do not need a
// ClientMessage wrapper at the point they are raised; callers wrap them with
// the constructors above before they cross the handler boundary.
var (
	ErrDisposed       = errors.New("queue is disposed")
	ErrTerminated     = errors.New("queue is terminated")
	ErrNotFound       = errors.New("message not found in container")
	ErrWrongPeekType  = errors.New("peek returned an unexpected concrete type")
	ErrNilHandlerResult = errors.New("handler returned a nil result")
)
