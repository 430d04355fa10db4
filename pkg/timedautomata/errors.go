package timedautomata

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by queue reads. They are the only way a blocked
// read ends without a value.
var (
	// ErrReadTimeout indicates a bounded read elapsed with no record available.
	ErrReadTimeout = errors.New("read timed out")

	// ErrQueueClosed indicates the queue's exit signal fired.
	ErrQueueClosed = errors.New("queue closed")
)

// Sentinel errors for the discriminator lifecycle.
var (
	// ErrAlreadyStarted indicates registration or Start after Start.
	ErrAlreadyStarted = errors.New("discriminator already started")

	// ErrNotStarted indicates Stop before Start.
	ErrNotStarted = errors.New("discriminator not started")

	// ErrStopped indicates Push or Start after Stop.
	ErrStopped = errors.New("discriminator stopped")

	// ErrNilState indicates a nil initial state.
	ErrNilState = errors.New("initial state cannot be nil")

	// ErrDuplicateAutomaton indicates two automata registered under one name.
	ErrDuplicateAutomaton = errors.New("duplicate automaton name")

	// ErrIncomparableState indicates a state type that cannot be compared by
	// identity (a func, map or slice type, or a struct holding one).
	ErrIncomparableState = errors.New("state type is not comparable")

	// ErrReleaseFuncType indicates WithReleaseFunc was given a function whose
	// parameter type differs from the discriminator's event type.
	ErrReleaseFuncType = errors.New("release func does not match event type")
)

// AutomatonError wraps an error with automaton context.
type AutomatonError struct {
	// Automaton is the registered name.
	Automaton string
	// Op is the operation that failed ("register", "attempt").
	Op string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *AutomatonError) Error() string {
	return fmt.Sprintf("automaton %s: %s: %v", e.Automaton, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *AutomatonError) Unwrap() error {
	return e.Err
}

// PanicError captures a panic raised inside a state's HandleInput.
// The attempt it happened in counts as a reject.
type PanicError struct {
	// Automaton is the automaton whose state panicked.
	Automaton string
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("automaton %s panicked: %v", e.Automaton, e.Value)
}
