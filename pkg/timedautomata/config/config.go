package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// Log formats accepted by Settings.LogFormat.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Settings holds engine configuration.
// Field tags cover both file keys (yaml, also used for JSON files)
// and TIMEDAUTOMATA_* environment overrides.
type Settings struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" env:"TIMEDAUTOMATA_LOG_LEVEL"`

	// LogFormat is text or json.
	LogFormat string `yaml:"log_format" env:"TIMEDAUTOMATA_LOG_FORMAT"`

	// Metrics enables OpenTelemetry metrics.
	Metrics bool `yaml:"metrics" env:"TIMEDAUTOMATA_METRICS"`

	// Tracing enables OpenTelemetry spans.
	Tracing bool `yaml:"tracing" env:"TIMEDAUTOMATA_TRACING"`

	// JournalPath is the SQLite file for the verdict journal.
	// Empty disables the journal; ":memory:" keeps it in process.
	JournalPath string `yaml:"journal_path" env:"TIMEDAUTOMATA_JOURNAL_PATH"`

	// DeltaResolution truncates recorded inter-arrival gaps.
	// Default: 1ms
	DeltaResolution time.Duration `yaml:"delta_resolution" env:"TIMEDAUTOMATA_DELTA_RESOLUTION"`

	// DeliveryRate caps replayed events per second. 0 disables the cap.
	DeliveryRate float64 `yaml:"delivery_rate" env:"TIMEDAUTOMATA_DELIVERY_RATE"`

	// DeliveryBurst is the limiter burst when DeliveryRate is set.
	// Default: 1
	DeliveryBurst int `yaml:"delivery_burst" env:"TIMEDAUTOMATA_DELIVERY_BURST"`
}

// Default returns the settings used when nothing is configured.
func Default() Settings {
	return Settings{
		LogLevel:        "info",
		LogFormat:       FormatText,
		DeltaResolution: time.Millisecond,
		DeliveryBurst:   1,
	}
}

// Validate reports every invalid field.
func (s Settings) Validate() error {
	var errs []error
	if _, err := ParseLevel(s.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch s.LogFormat {
	case FormatText, FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log_format: unsupported format %q", s.LogFormat))
	}
	if s.DeltaResolution < 0 {
		errs = append(errs, errors.New("delta_resolution: must not be negative"))
	}
	if s.DeliveryRate < 0 {
		errs = append(errs, errors.New("delivery_rate: must not be negative"))
	}
	if s.DeliveryRate > 0 && s.DeliveryBurst < 1 {
		errs = append(errs, errors.New("delivery_burst: must be at least 1 when delivery_rate is set"))
	}
	return errors.Join(errs...)
}

// ParseLevel converts a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log_level: unknown level %q", name)
}

// NewLogger builds a logger writing to w with the configured level and format.
// Invalid values fall back to info/text; call Validate first to reject them.
func (s Settings) NewLogger(w io.Writer) *slog.Logger {
	level, _ := ParseLevel(s.LogLevel)
	opts := &slog.HandlerOptions{Level: level}
	if s.LogFormat == FormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
