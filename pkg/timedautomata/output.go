package timedautomata

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/randalmurphal/timedautomata/pkg/timedautomata/observability"
)

// OutputGenerator replays the output queue to a notify func, reproducing
// each record's original gap from the previous delivery.
//
// A record is delivered no earlier than its Delta after the previous
// delivery. Time already spent upstream counts toward the gap, so
// processing latency is absorbed instead of added.
type OutputGenerator[T any] struct {
	out     *Queue[T]
	release func(T)
	limiter *rate.Limiter
	logger  *slog.Logger
	metrics observability.MetricsRecorder

	mu     sync.Mutex
	notify func(T)

	lastSent time.Time
}

// NewOutputGenerator creates a replay stage over out. It honours WithLogger,
// WithMetrics, WithDeliveryLimit and WithReleaseFunc.
func NewOutputGenerator[T any](out *Queue[T], opts ...Option) (*OutputGenerator[T], error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	release, err := resolveRelease[T](&o)
	if err != nil {
		return nil, err
	}
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}
	return newOutputGenerator(out, &o, logger, release), nil
}

func newOutputGenerator[T any](out *Queue[T], o *options, logger *slog.Logger, release func(T)) *OutputGenerator[T] {
	var metrics observability.MetricsRecorder = observability.NoopMetrics{}
	if o.metricsEnabled {
		metrics = observability.NewMetricsRecorder()
	}
	return &OutputGenerator[T]{
		out:     out,
		release: release,
		limiter: o.limiter(),
		logger:  logger,
		metrics: metrics,
	}
}

// SetNotifyFunc installs the func called once per replayed value, in order,
// from the Run goroutine only. It may be changed while running.
func (g *OutputGenerator[T]) SetNotifyFunc(fn func(T)) {
	g.mu.Lock()
	g.notify = fn
	g.mu.Unlock()
}

func (g *OutputGenerator[T]) notifyFunc() func(T) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.notify
}

// Run delivers records until the queue is closed or ctx is done.
// Both are normal termination and return nil. A record whose pacing wait
// is interrupted is left in the queue undelivered.
func (g *OutputGenerator[T]) Run(ctx context.Context) error {
	for {
		rec, err := g.out.NextContext(ctx, 0)
		if err != nil {
			if errors.Is(err, ErrQueueClosed) || ctx.Err() != nil {
				return nil
			}
			// Indefinite reads only end on exit; anything else is a bug
			// upstream, and reading again simply blocks.
			observability.LogReplayEmpty(g.logger, err)
			continue
		}

		if !g.deliver(ctx, rec) {
			return nil
		}
		g.out.TrimConsumed()
	}
}

// deliver waits out the record's gap, then hands the value to the notify
// func. It returns false if the wait was interrupted.
func (g *OutputGenerator[T]) deliver(ctx context.Context, rec Record[T]) bool {
	now := time.Now()
	target := now
	var wait time.Duration
	if !g.lastSent.IsZero() {
		target = g.lastSent.Add(rec.Delta)
		wait = target.Sub(now)
	}

	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-g.out.exit.done():
			return false
		case <-ctx.Done():
			return false
		}
	} else {
		wait = 0
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return false
		}
	}
	if g.out.Closed() {
		return false
	}

	sent := time.Now()
	lag := sent.Sub(target)
	if lag < 0 {
		lag = 0
	}
	g.lastSent = sent

	g.metrics.RecordReplay(ctx, lag)
	observability.LogReplay(g.logger, rec.Delta, wait, lag)

	notify := g.notifyFunc()
	if notify == nil {
		g.logger.Debug("no notify func set, dropping replayed value")
		g.release(rec.Value)
		return true
	}
	notify(rec.Value)
	return true
}
