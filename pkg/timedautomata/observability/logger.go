// Package observability provides structured logging, metrics and tracing
// for timedautomata.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds automaton context to a logger.
// Returns a new logger with session_id and automaton fields.
func EnrichLogger(logger *slog.Logger, sessionID, automaton string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("session_id", sessionID),
		slog.String("automaton", automaton),
	)
}

// LogEngineStart logs discriminator startup.
// The logger is expected to carry session_id already.
func LogEngineStart(logger *slog.Logger, automata int) {
	if logger == nil {
		return
	}
	logger.Info("discriminator starting",
		slog.Int("automata", automata),
	)
}

// LogEngineStop logs discriminator shutdown with the number of cycles run.
func LogEngineStop(logger *slog.Logger, cycles int64, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("discriminator stopped",
		slog.Int64("cycles", cycles),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogCycleStart logs the start of an orchestration cycle.
func LogCycleStart(logger *slog.Logger, cycle int64, buffered int) {
	if logger == nil {
		return
	}
	logger.Debug("cycle starting",
		slog.Int64("cycle", cycle),
		slog.Int("buffered", buffered),
	)
}

// LogAttempt logs one automaton's verdict within a cycle.
// The logger should come from EnrichLogger.
func LogAttempt(logger *slog.Logger, read int, accepted bool, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("attempt finished",
		slog.Int("read", read),
		slog.Bool("accepted", accepted),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogCycleComplete logs the verdict of a cycle.
// acceptedBy is empty when the span was forwarded.
func LogCycleComplete(logger *slog.Logger, cycle int64, verdict string, acceptedBy string, spanLen int) {
	if logger == nil {
		return
	}
	logger.Debug("cycle completed",
		slog.Int64("cycle", cycle),
		slog.String("verdict", verdict),
		slog.String("accepted_by", acceptedBy),
		slog.Int("span", spanLen),
	)
}

// LogStatePanic logs a recovered panic from a state's HandleInput.
func LogStatePanic(logger *slog.Logger, value any, stack string) {
	if logger == nil {
		return
	}
	logger.Error("state panicked",
		slog.Any("panic", value),
		slog.String("stack", stack),
	)
}

// LogStateError logs an attempt that ended with an engine-detected error.
func LogStateError(logger *slog.Logger, err error) {
	if logger == nil {
		return
	}
	logger.Error("attempt failed",
		slog.String("error", err.Error()),
	)
}

// LogReplay logs delivery of one replayed event.
func LogReplay(logger *slog.Logger, delta, slept, lag time.Duration) {
	if logger == nil {
		return
	}
	logger.Debug("event replayed",
		slog.Duration("delta", delta),
		slog.Duration("slept", slept),
		slog.Duration("lag", lag),
	)
}

// LogReplayEmpty logs the critical, non-fatal case of the output queue
// returning no value while the engine is still running.
func LogReplayEmpty(logger *slog.Logger, err error) {
	if logger == nil {
		return
	}
	logger.Error("output buffer returned without value",
		slog.String("error", err.Error()),
	)
}

// LogJournalError logs a journal failure (non-fatal).
func LogJournalError(logger *slog.Logger, cycle int64, err error) {
	if logger == nil {
		return
	}
	logger.Warn("journal append failed",
		slog.Int64("cycle", cycle),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
