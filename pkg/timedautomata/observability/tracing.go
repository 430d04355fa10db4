package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName identifies spans created by timedautomata.
const tracerName = "timedautomata"

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartCycleSpan starts a span covering one orchestration cycle.
	StartCycleSpan(ctx context.Context, sessionID string, cycle int64) (context.Context, trace.Span)

	// StartAttemptSpan starts a span for one automaton attempt.
	// The attempt span should be a child of the cycle span.
	StartAttemptSpan(ctx context.Context, automaton string) (context.Context, trace.Span)

	// EndSpan completes a span, attaching the given attributes.
	EndSpan(span trace.Span, attrs ...attribute.KeyValue)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct {
	tracer trace.Tracer
}

// NewSpanManager returns a SpanManager that uses the global OTel tracer
// provider as it is configured at the time of the call.
func NewSpanManager() SpanManager {
	return &otelSpanManager{tracer: otel.Tracer(tracerName)}
}

// StartCycleSpan starts a span for an orchestration cycle.
func (m *otelSpanManager) StartCycleSpan(ctx context.Context, sessionID string, cycle int64) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "timedautomata.cycle",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.Int64("cycle", cycle),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartAttemptSpan starts a span for an automaton attempt.
func (m *otelSpanManager) StartAttemptSpan(ctx context.Context, automaton string) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "timedautomata.attempt."+automaton,
		trace.WithAttributes(
			attribute.String("automaton", automaton),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpan sets attributes, marks the span OK and ends it.
func (m *otelSpanManager) EndSpan(span trace.Span, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}
	span.SetAttributes(attrs...)
	span.SetStatus(codes.Ok, "")
	span.End()
}

// EndSpanWithError completes a span, optionally recording an error.
func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
