package pattern

import (
	"errors"
	"log/slog"
	"time"

	"github.com/randalmurphal/timedautomata/pkg/timedautomata"
)

// Match describes a completed sequence.
type Match[T any] struct {
	// Pattern is the Spec name.
	Pattern string

	// Emit is the Spec's emit label.
	Emit string

	// Events are the matched events in order. The first event's Delta is
	// its gap from whatever preceded the sequence.
	Events []timedautomata.Record[T]

	// Captures holds events stored by steps with a Capture key.
	Captures map[string]T
}

// Span returns the time from the first matched event to the last.
func (m Match[T]) Span() time.Duration {
	var d time.Duration
	if len(m.Events) < 2 {
		return 0
	}
	for _, rec := range m.Events[1:] {
		d += rec.Delta
	}
	return d
}

// FieldsFunc exposes an event's fields to step conditions.
type FieldsFunc[T any] func(T) map[string]any

// EmitFunc turns a completed match into the value appended to the output.
type EmitFunc[T any] func(Match[T]) T

// Environment keys maintained by pattern automata.
const (
	// EnvMatches counts completed matches.
	EnvMatches = "matches"
	// EnvLastMatch holds the time of the latest match.
	EnvLastMatch = "last_match_at"
)

// GapField is the condition variable holding the event's gap from the
// previous event, in milliseconds.
const GapField = "gap_ms"

var (
	// ErrNilFields indicates Build was called without a fields func.
	ErrNilFields = errors.New("fields func is required")
	// ErrNilEmit indicates Build was called without an emit func.
	ErrNilEmit = errors.New("emit func is required")
)

// compiled is a validated spec with its conditions parsed.
type compiled[T any] struct {
	spec   Spec
	conds  []*Condition
	fields FieldsFunc[T]
	emit   EmitFunc[T]
}

// Build compiles spec into the initial state of an automaton.
func Build[T any](spec Spec, fields FieldsFunc[T], emit EmitFunc[T]) (timedautomata.State[T], error) {
	if fields == nil {
		return nil, ErrNilFields
	}
	if emit == nil {
		return nil, ErrNilEmit
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	p := &compiled[T]{spec: spec, fields: fields, emit: emit}
	for _, step := range spec.Steps {
		c, err := Compile(step.Match)
		if err != nil {
			return nil, err
		}
		p.conds = append(p.conds, c)
	}
	return &initialState[T]{p: p}, nil
}

// vars returns the condition variables for one event.
func (p *compiled[T]) vars(rec timedautomata.Record[T]) map[string]any {
	vars := make(map[string]any)
	for k, v := range p.fields(rec.Value) {
		vars[k] = v
	}
	vars[GapField] = float64(rec.Delta.Microseconds()) / 1000
	return vars
}

// accept checks one event against step i and captures it on success.
func (p *compiled[T]) accept(sc *timedautomata.Scope[T], i int, rec timedautomata.Record[T]) bool {
	step := p.spec.Steps[i]
	if i > 0 && step.Within > 0 && rec.Delta > step.Within {
		return false
	}
	if !p.conds[i].Eval(p.vars(rec)) {
		return false
	}
	if step.Capture != "" {
		sc.Env.Set(step.Capture, rec.Value)
	}
	return true
}

// next advances after a successful step: it emits on the last step and
// otherwise returns a fresh state for the following one.
func (p *compiled[T]) next(sc *timedautomata.Scope[T], i int, events []timedautomata.Record[T]) timedautomata.State[T] {
	if i+1 < len(p.spec.Steps) {
		return &stepState[T]{p: p, index: i + 1, events: events}
	}

	m := Match[T]{
		Pattern:  p.spec.Name,
		Emit:     p.spec.Emit,
		Events:   events,
		Captures: make(map[string]T),
	}
	for j, step := range p.spec.Steps {
		if step.Capture != "" {
			m.Captures[step.Capture] = events[j].Value
		}
	}
	sc.Env.Incr(EnvMatches, 1)
	sc.Env.Set(EnvLastMatch, time.Now())
	sc.Logger.Debug("pattern matched",
		slog.String("pattern", p.spec.Name),
		slog.Int("events", len(events)),
		slog.Duration("span", m.Span()),
	)
	sc.Emit(p.emit(m))
	return nil
}

// initialState waits indefinitely for the first step's event.
type initialState[T any] struct {
	p *compiled[T]
}

func (s *initialState[T]) HandleInput(sc *timedautomata.Scope[T]) timedautomata.State[T] {
	for _, step := range s.p.spec.Steps {
		if step.Capture != "" {
			sc.Env.Delete(step.Capture)
		}
	}

	rec, err := sc.Next(0)
	if err != nil {
		return nil
	}
	if !s.p.accept(sc, 0, rec) {
		return nil
	}
	return s.p.next(sc, 0, []timedautomata.Record[T]{rec})
}

// stepState waits for step index, bounded by the step's Within.
type stepState[T any] struct {
	p      *compiled[T]
	index  int
	events []timedautomata.Record[T]
}

func (s *stepState[T]) HandleInput(sc *timedautomata.Scope[T]) timedautomata.State[T] {
	rec, err := sc.Next(s.p.spec.Steps[s.index].Within)
	if err != nil {
		if errors.Is(err, timedautomata.ErrReadTimeout) {
			sc.Logger.Debug("pattern step timed out",
				slog.String("pattern", s.p.spec.Name),
				slog.Int("step", s.index),
			)
		}
		return nil
	}
	if !s.p.accept(sc, s.index, rec) {
		return nil
	}
	events := make([]timedautomata.Record[T], len(s.events), len(s.events)+1)
	copy(events, s.events)
	return s.p.next(sc, s.index, append(events, rec))
}

// Release drops the partial match.
func (s *stepState[T]) Release() {
	s.events = nil
}
