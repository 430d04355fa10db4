package timedautomata

import (
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/randalmurphal/timedautomata/pkg/timedautomata/config"
	"github.com/randalmurphal/timedautomata/pkg/timedautomata/env"
	"github.com/randalmurphal/timedautomata/pkg/timedautomata/journal"
)

// options holds engine configuration shared by the discriminator and the
// replay stage.
type options struct {
	logger         *slog.Logger
	metricsEnabled bool
	tracingEnabled bool
	journal        journal.Store
	journalPath    string
	release        any
	resolution     time.Duration
	deliveryRate   rate.Limit
	deliveryBurst  int
	sessionID      string
	now            func() time.Time
}

func defaultOptions() options {
	return options{
		resolution:    time.Millisecond,
		deliveryBurst: 1,
		now:           time.Now,
	}
}

// Option configures a Discriminator or OutputGenerator.
type Option func(*options)

// WithLogger sets the logger. Default: slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics enables OpenTelemetry metrics through the global meter provider.
func WithMetrics(enabled bool) Option {
	return func(o *options) {
		o.metricsEnabled = enabled
	}
}

// WithTracing enables OpenTelemetry spans through the global tracer provider.
func WithTracing(enabled bool) Option {
	return func(o *options) {
		o.tracingEnabled = enabled
	}
}

// WithJournal records one entry per cycle in store.
// The caller keeps ownership; Stop does not close it.
func WithJournal(store journal.Store) Option {
	return func(o *options) {
		o.journal = store
	}
}

// WithReleaseFunc sets the hook that receives every value the engine drops:
// spans absorbed by an accepting automaton, values still buffered at Stop,
// and replayed values when no notify func is set. Values handed to the
// notify func belong to its receiver.
//
// The parameter type must match the discriminator's event type.
func WithReleaseFunc[T any](fn func(T)) Option {
	return func(o *options) {
		o.release = fn
	}
}

// WithDeltaResolution truncates recorded inter-arrival gaps to a multiple of d.
// Zero keeps full precision. Default: 1ms
func WithDeltaResolution(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.resolution = d
		}
	}
}

// WithDeliveryLimit caps how fast the replay stage calls the notify func.
// The cap only ever delays deliveries. A limit of 0 disables it.
func WithDeliveryLimit(limit rate.Limit, burst int) Option {
	return func(o *options) {
		o.deliveryRate = limit
		if burst > 0 {
			o.deliveryBurst = burst
		}
	}
}

// WithSessionID sets the session ID used in logs, spans and the journal.
// Default: a random UUID
func WithSessionID(id string) Option {
	return func(o *options) {
		o.sessionID = id
	}
}

// WithSettings applies loaded settings. A non-empty JournalPath names a
// SQLite journal that Start opens and Stop closes. The logger is not
// derived from settings; pass Settings.NewLogger through WithLogger.
func WithSettings(s config.Settings) Option {
	return func(o *options) {
		o.metricsEnabled = s.Metrics
		o.tracingEnabled = s.Tracing
		o.journalPath = s.JournalPath
		if s.DeltaResolution >= 0 {
			o.resolution = s.DeltaResolution
		}
		o.deliveryRate = rate.Limit(s.DeliveryRate)
		if s.DeliveryBurst > 0 {
			o.deliveryBurst = s.DeliveryBurst
		}
	}
}

// WithClock sets the clock used to stamp pushed events.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// resolveRelease returns the typed release hook, or a no-op.
func resolveRelease[T any](o *options) (func(T), error) {
	if o.release == nil {
		return func(T) {}, nil
	}
	fn, ok := o.release.(func(T))
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrReleaseFuncType, o.release)
	}
	if fn == nil {
		return func(T) {}, nil
	}
	return fn, nil
}

func (o *options) limiter() *rate.Limiter {
	if o.deliveryRate <= 0 {
		return nil
	}
	return rate.NewLimiter(o.deliveryRate, o.deliveryBurst)
}

// automatonConfig holds per-automaton registration settings.
type automatonConfig struct {
	name string
	env  *env.Env
}

// AutomatonOption configures one registered automaton.
type AutomatonOption func(*automatonConfig)

// WithName names the automaton in logs, spans, metrics and the journal.
// Default: "automaton-<index>"
func WithName(name string) AutomatonOption {
	return func(c *automatonConfig) {
		c.name = name
	}
}

// WithEnv supplies the automaton's environment instead of a fresh one.
func WithEnv(e *env.Env) AutomatonOption {
	return func(c *automatonConfig) {
		c.env = e
	}
}
