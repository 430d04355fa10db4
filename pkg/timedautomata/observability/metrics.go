package observability

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records timedautomata metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordAttempt records one automaton attempt with its verdict and duration.
	RecordAttempt(ctx context.Context, automaton string, accepted bool, duration time.Duration)

	// RecordCycle records a finished cycle and how many events it disposed of.
	RecordCycle(ctx context.Context, verdict string, spanLen int)

	// RecordReplay records how late a replayed event was relative to its paced target.
	RecordReplay(ctx context.Context, lag time.Duration)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	cycles         metric.Int64Counter
	attempts       metric.Int64Counter
	attemptLatency metric.Float64Histogram
	forwarded      metric.Int64Counter
	absorbed       metric.Int64Counter
	replayLag      metric.Float64Histogram
}

// newOtelMetrics creates a new OTel metrics instance from the global meter provider.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("timedautomata")

	cycles, err := meter.Int64Counter("timedautomata.cycles",
		metric.WithDescription("Number of orchestration cycles"),
	)
	if err != nil {
		return nil, err
	}

	attempts, err := meter.Int64Counter("timedautomata.attempts",
		metric.WithDescription("Number of automaton attempts"),
	)
	if err != nil {
		return nil, err
	}

	attemptLatency, err := meter.Float64Histogram("timedautomata.attempt.latency_ms",
		metric.WithDescription("Automaton attempt latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	forwarded, err := meter.Int64Counter("timedautomata.events.forwarded",
		metric.WithDescription("Number of unmatched events forwarded to replay"),
	)
	if err != nil {
		return nil, err
	}

	absorbed, err := meter.Int64Counter("timedautomata.events.absorbed",
		metric.WithDescription("Number of events absorbed by accepting automata"),
	)
	if err != nil {
		return nil, err
	}

	replayLag, err := meter.Float64Histogram("timedautomata.replay.lag_ms",
		metric.WithDescription("Delay between an event's paced target time and its delivery"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		cycles:         cycles,
		attempts:       attempts,
		attemptLatency: attemptLatency,
		forwarded:      forwarded,
		absorbed:       absorbed,
		replayLag:      replayLag,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := newOtelMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordAttempt records an automaton attempt.
func (m *otelMetrics) RecordAttempt(ctx context.Context, automaton string, accepted bool, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("automaton", automaton),
		attribute.Bool("accepted", accepted),
	)
	m.attempts.Add(ctx, 1, attrs)
	m.attemptLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
}

// RecordCycle records a cycle verdict and the size of its span.
func (m *otelMetrics) RecordCycle(ctx context.Context, verdict string, spanLen int) {
	m.cycles.Add(ctx, 1, metric.WithAttributes(attribute.String("verdict", verdict)))
	if spanLen == 0 {
		return
	}
	if verdict == VerdictAccepted {
		m.absorbed.Add(ctx, int64(spanLen))
	} else {
		m.forwarded.Add(ctx, int64(spanLen))
	}
}

// RecordReplay records replay lag.
func (m *otelMetrics) RecordReplay(ctx context.Context, lag time.Duration) {
	m.replayLag.Record(ctx, float64(lag.Microseconds())/1000)
}

// Cycle verdicts used as metric attributes, journal values and log fields.
const (
	VerdictAccepted  = "accepted"
	VerdictForwarded = "forwarded"
)
