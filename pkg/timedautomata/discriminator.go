package timedautomata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/randalmurphal/timedautomata/pkg/timedautomata/env"
	"github.com/randalmurphal/timedautomata/pkg/timedautomata/journal"
	"github.com/randalmurphal/timedautomata/pkg/timedautomata/observability"
)

// automaton is one registered candidate: its initial state and the
// environment shared by every state in its chain.
type automaton[T any] struct {
	name   string
	state  State[T]
	env    *env.Env
	logger *slog.Logger
}

// Discriminator sorts a live event stream into spans that some automaton
// recognizes and spans that nobody does.
//
// Pushed events are buffered in the input queue. A processing goroutine
// repeatedly offers the buffered window to each automaton in registration
// order; the first one that emits output absorbs the span it read. If none
// accepts, the span is forwarded unchanged to the output queue, where a
// replay goroutine delivers it to the notify func with its original timing.
type Discriminator[T any] struct {
	input   *Queue[T]
	output  *Queue[T]
	exit    *exitSignal
	replay  *OutputGenerator[T]
	release func(T)

	automata []*automaton[T]

	sessionID   string
	baseLogger  *slog.Logger
	logger      *slog.Logger
	metrics     observability.MetricsRecorder
	spans       observability.SpanManager
	journal     journal.Store
	journalPath string
	ownsJournal bool
	resolution  time.Duration
	now         func() time.Time

	// mu guards lifecycle flags and the arrival baseline.
	mu       sync.Mutex
	started  bool
	stopped  bool
	lastPush time.Time

	group     *errgroup.Group
	cancel    context.CancelFunc
	stopWatch func() bool
	elapsed   func() float64
	cycles    atomic.Int64
}

// New creates a discriminator with no automata registered.
func New[T any](opts ...Option) (*Discriminator[T], error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	release, err := resolveRelease[T](&o)
	if err != nil {
		return nil, err
	}

	sessionID := o.sessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	baseLogger := o.logger
	if baseLogger == nil {
		baseLogger = slog.Default()
	}
	logger := baseLogger.With(slog.String("session_id", sessionID))

	var metrics observability.MetricsRecorder = observability.NoopMetrics{}
	if o.metricsEnabled {
		metrics = observability.NewMetricsRecorder()
	}
	var spans observability.SpanManager = observability.NoopSpanManager{}
	if o.tracingEnabled {
		spans = observability.NewSpanManager()
	}

	exit := newExitSignal()
	input := newQueue[T](exit)
	output := newQueue[T](exit)

	return &Discriminator[T]{
		input:       input,
		output:      output,
		exit:        exit,
		replay:      newOutputGenerator(output, &o, logger, release),
		release:     release,
		sessionID:   sessionID,
		baseLogger:  baseLogger,
		logger:      logger,
		metrics:     metrics,
		spans:       spans,
		journal:     o.journal,
		journalPath: o.journalPath,
		resolution:  o.resolution,
		now:         o.now,
	}, nil
}

// AddInitialState registers a candidate automaton. Registration order is
// attempt priority. Must be called before Start.
func (d *Discriminator[T]) AddInitialState(state State[T], opts ...AutomatonOption) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started || d.stopped {
		return ErrAlreadyStarted
	}

	cfg := automatonConfig{name: fmt.Sprintf("automaton-%d", len(d.automata))}
	for _, opt := range opts {
		opt(&cfg)
	}

	if state == nil {
		return &AutomatonError{Automaton: cfg.name, Op: "register", Err: ErrNilState}
	}
	if !reflect.TypeOf(state).Comparable() {
		return &AutomatonError{Automaton: cfg.name, Op: "register", Err: ErrIncomparableState}
	}
	for _, a := range d.automata {
		if a.name == cfg.name {
			return &AutomatonError{Automaton: cfg.name, Op: "register", Err: ErrDuplicateAutomaton}
		}
	}

	e := cfg.env
	if e == nil {
		e = env.New()
	}
	d.automata = append(d.automata, &automaton[T]{
		name:   cfg.name,
		state:  state,
		env:    e,
		logger: observability.EnrichLogger(d.baseLogger, d.sessionID, cfg.name),
	})
	return nil
}

// SetNotifyFunc installs the func that receives every replayed value.
// Forwarded values are owned by the receiver from then on.
func (d *Discriminator[T]) SetNotifyFunc(fn func(T)) {
	d.replay.SetNotifyFunc(fn)
}

// Start launches the processing and replay goroutines. Cancelling ctx has
// the same effect as the exit signal; Stop must still be called to join.
func (d *Discriminator[T]) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return ErrStopped
	}
	if d.started {
		return ErrAlreadyStarted
	}
	// A journal configured by path is opened on Start and closed by Stop.
	if d.journal == nil && d.journalPath != "" {
		store, err := journal.Open(d.journalPath)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		d.journal = store
		d.ownsJournal = true
	}
	d.started = true

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.stopWatch = context.AfterFunc(runCtx, d.exit.fire)
	d.elapsed = observability.TimedOperation()

	observability.LogEngineStart(d.logger, len(d.automata))

	g := &errgroup.Group{}
	g.Go(func() error {
		d.process(runCtx)
		return nil
	})
	g.Go(func() error {
		return d.replay.Run(runCtx)
	})
	d.group = g
	return nil
}

// Push buffers v, stamped with the time since the previous push.
// It is safe to call from any goroutine, before or after Start.
func (d *Discriminator[T]) Push(v T) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return ErrStopped
	}

	now := d.now()
	var delta time.Duration
	if !d.lastPush.IsZero() {
		delta = now.Sub(d.lastPush)
		if d.resolution > 0 {
			delta = delta.Truncate(d.resolution)
		}
		if delta < 0 {
			delta = 0
		}
	}
	d.lastPush = now

	d.input.Append(Record[T]{Value: v, Delta: delta})
	return nil
}

// Stop signals exit, waits for both goroutines and releases everything the
// engine still owns: buffered values go to the release hook, initial states
// are released and environments cleared. A second call is a no-op.
func (d *Discriminator[T]) Stop() error {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return ErrNotStarted
	}
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	d.mu.Unlock()

	d.exit.fire()
	d.cancel()
	err := d.group.Wait()
	d.stopWatch()

	for _, rec := range d.input.Drain() {
		d.release(rec.Value)
	}
	for _, rec := range d.output.Drain() {
		d.release(rec.Value)
	}
	for _, a := range d.automata {
		releaseState(a.state)
		a.env.Clear()
	}

	if d.ownsJournal {
		if cerr := d.journal.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close journal: %w", cerr))
		}
	}

	observability.LogEngineStop(d.logger, d.cycles.Load(), d.elapsed())
	return err
}

// Input returns the input queue. Intended for inspection.
func (d *Discriminator[T]) Input() *Queue[T] { return d.input }

// Output returns the output queue. Intended for inspection.
func (d *Discriminator[T]) Output() *Queue[T] { return d.output }

// SessionID returns the session ID.
func (d *Discriminator[T]) SessionID() string { return d.sessionID }

// Cycles returns the number of cycles started so far.
func (d *Discriminator[T]) Cycles() int64 { return d.cycles.Load() }

func (d *Discriminator[T]) resetBaseline() {
	d.mu.Lock()
	d.lastPush = time.Time{}
	d.mu.Unlock()
}

// process runs cycles until exit.
func (d *Discriminator[T]) process(ctx context.Context) {
	for d.cycle(ctx) {
	}
}

// cycle runs one orchestration cycle. It returns false once the engine is
// exiting; whatever is still buffered is then left for Stop to release.
func (d *Discriminator[T]) cycle(ctx context.Context) bool {
	n := d.cycles.Add(1)
	cycleCtx, span := d.spans.StartCycleSpan(ctx, d.sessionID, n)
	observability.LogCycleStart(d.logger, n, d.input.Len())

	acceptedBy := ""
	attempts := 0
	if len(d.automata) == 0 {
		if _, err := d.input.Next(0); err != nil {
			d.spans.EndSpanWithError(span, err)
			return false
		}
	}
	for _, a := range d.automata {
		attempts++
		if d.attempt(cycleCtx, a) {
			acceptedBy = a.name
			d.output.ClearUpdated()
			break
		}
		d.input.Rewind()
	}

	if d.exit.fired() {
		d.spans.EndSpanWithError(span, ErrQueueClosed)
		return false
	}

	// Every automaton rejected without reading. Forward the head so the
	// next cycle sees new data instead of the same empty verdict.
	if acceptedBy == "" && d.input.HighWaterMark() == 0 {
		if _, err := d.input.Next(0); err != nil {
			d.spans.EndSpanWithError(span, err)
			return false
		}
	}

	consumed := d.input.Consumed()
	verdict := observability.VerdictForwarded
	if acceptedBy != "" {
		verdict = observability.VerdictAccepted
		for _, rec := range consumed {
			d.release(rec.Value)
		}
	} else {
		d.output.Extend(consumed)
	}
	d.input.TrimConsumed()
	d.resetBaseline()

	d.metrics.RecordCycle(cycleCtx, verdict, len(consumed))
	observability.LogCycleComplete(d.logger, n, verdict, acceptedBy, len(consumed))
	d.appendJournal(n, verdict, acceptedBy, len(consumed), attempts)

	d.spans.EndSpan(span,
		attribute.String("verdict", verdict),
		attribute.String("accepted_by", acceptedBy),
		attribute.Int("span", len(consumed)),
	)
	return true
}

// attempt offers the buffered window to one automaton and reports whether
// it accepted.
func (d *Discriminator[T]) attempt(ctx context.Context, a *automaton[T]) bool {
	attemptCtx, span := d.spans.StartAttemptSpan(ctx, a.name)
	start := time.Now()

	accepted, err := d.processState(attemptCtx, a)

	duration := time.Since(start)
	read := d.input.Cursor()
	if err != nil {
		var pe *PanicError
		if errors.As(err, &pe) {
			observability.LogStatePanic(a.logger, pe.Value, pe.Stack)
		} else {
			observability.LogStateError(a.logger, err)
		}
		d.spans.EndSpanWithError(span, &AutomatonError{Automaton: a.name, Op: "attempt", Err: err})
	} else {
		d.spans.EndSpan(span,
			attribute.Bool("accepted", accepted),
			attribute.Int("read", read),
		)
	}
	d.metrics.RecordAttempt(attemptCtx, a.name, accepted, duration)
	observability.LogAttempt(a.logger, read, accepted, float64(duration.Microseconds())/1000)
	return accepted
}

// processState drives one automaton from its initial state until a state
// returns nil. Intermediate states are released as the chain leaves them;
// registered initial states are kept for the next cycle. A panic ends the
// attempt as a reject and releases the state that was active.
func (d *Discriminator[T]) processState(ctx context.Context, a *automaton[T]) (accepted bool, err error) {
	sc := &Scope[T]{
		Input:     d.input,
		Output:    d.output,
		Env:       a.env,
		Automaton: a.name,
		Logger:    a.logger,
		ctx:       ctx,
	}

	current := a.state
	defer func() {
		if r := recover(); r != nil {
			if current != nil && !d.isInitial(current) {
				releaseState(current)
			}
			d.output.ClearUpdated()
			accepted = false
			err = &PanicError{
				Automaton: a.name,
				Value:     r,
				Stack:     string(debug.Stack()),
			}
		}
	}()

	for current != nil {
		next := current.HandleInput(sc)
		if next != nil && !reflect.TypeOf(next).Comparable() {
			dropped := current
			current = nil
			releaseState(next)
			if !d.isInitial(dropped) {
				releaseState(dropped)
			}
			d.output.ClearUpdated()
			return false, &AutomatonError{Automaton: a.name, Op: "transition", Err: ErrIncomparableState}
		}
		if next != current {
			prev := current
			current = next
			if !d.isInitial(prev) {
				releaseState(prev)
			}
		}
	}
	return d.output.Updated(), nil
}

func (d *Discriminator[T]) isInitial(st State[T]) bool {
	for _, a := range d.automata {
		if a.state == st {
			return true
		}
	}
	return false
}

func (d *Discriminator[T]) appendJournal(cycle int64, verdict, acceptedBy string, spanLen, attempts int) {
	if d.journal == nil {
		return
	}
	err := d.journal.Append(journal.Entry{
		SessionID: d.sessionID,
		Cycle:     cycle,
		Verdict:   verdict,
		Automaton: acceptedBy,
		SpanLen:   spanLen,
		Attempts:  attempts,
		Timestamp: time.Now(),
	})
	if err != nil {
		observability.LogJournalError(d.logger, cycle, err)
	}
}
