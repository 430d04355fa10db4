package timedautomata

import (
	"context"
	"log/slog"
	"time"

	"github.com/randalmurphal/timedautomata/pkg/timedautomata/env"
)

// State is one node of an automaton.
//
// HandleInput consumes zero or more records from the scope's input and
// returns the next state. Returning the receiver keeps the automaton in the
// same state; returning nil ends the attempt. Whether the attempt accepted
// is decided by the engine: an attempt accepts when it appended to the
// output queue (see Scope.Emit).
//
// States are compared by identity, so implementations should be pointers.
// A transition to a state whose type is not comparable ends the attempt as
// a reject with ErrIncomparableState.
// A read that returns ErrQueueClosed means the engine is stopping and the
// state should return nil.
type State[T any] interface {
	HandleInput(sc *Scope[T]) State[T]
}

// Releaser is implemented by states that hold resources. The engine calls
// Release on an intermediate state after transitioning away from it, and
// on each initial state when the discriminator stops.
type Releaser interface {
	Release()
}

// Scope is what a state sees during one attempt.
type Scope[T any] struct {
	// Input is the discriminator's input queue, positioned at the attempt's cursor.
	Input *Queue[T]

	// Output is the queue that feeds the replay stage.
	Output *Queue[T]

	// Env is shared by every state of the automaton and survives across cycles.
	Env *env.Env

	// Automaton is the name the automaton was registered under.
	Automaton string

	// Logger is enriched with session_id and automaton. Never nil.
	Logger *slog.Logger

	ctx context.Context
}

// Context returns the attempt's context. It carries the attempt span when
// tracing is enabled.
func (s *Scope[T]) Context() context.Context {
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}

// Next reads the next input record. See Queue.Next.
func (s *Scope[T]) Next(timeout time.Duration) (Record[T], error) {
	return s.Input.Next(timeout)
}

// Emit appends a recognized value to the output with no delay, which marks
// the attempt as accepted.
func (s *Scope[T]) Emit(v T) {
	s.Output.Append(Record[T]{Value: v})
}

func releaseState[T any](st State[T]) {
	if r, ok := st.(Releaser); ok {
		r.Release()
	}
}
