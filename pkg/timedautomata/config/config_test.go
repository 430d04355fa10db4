package config_test

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/timedautomata/pkg/timedautomata/config"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	s := config.Default()
	assert.Equal(t, "info", s.LogLevel)
	assert.Equal(t, config.FormatText, s.LogFormat)
	assert.Equal(t, time.Millisecond, s.DeltaResolution)
	assert.Equal(t, 1, s.DeliveryBurst)
	assert.NoError(t, s.Validate())
}

func TestLoad_RootYAML(t *testing.T) {
	path := writeFile(t, "settings.yaml", `
log_level: debug
log_format: json
metrics: true
delta_resolution: 10ms
delivery_rate: 50
`)

	s, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", s.LogLevel)
	assert.Equal(t, config.FormatJSON, s.LogFormat)
	assert.True(t, s.Metrics)
	assert.False(t, s.Tracing)
	assert.Equal(t, 10*time.Millisecond, s.DeltaResolution)
	assert.Equal(t, 50.0, s.DeliveryRate)
	assert.Equal(t, 1, s.DeliveryBurst, "unset fields keep defaults")
}

func TestLoad_EngineSection(t *testing.T) {
	path := writeFile(t, "run.yaml", `
engine:
  tracing: true
  journal_path: ":memory:"
automata:
  - name: ignored-here
`)

	s, err := config.Load(path)
	require.NoError(t, err)

	assert.True(t, s.Tracing)
	assert.Equal(t, ":memory:", s.JournalPath)
	assert.Equal(t, "info", s.LogLevel)
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "settings.json", `{"log_level": "warn", "delta_resolution": "5ms"}`)

	s, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", s.LogLevel)
	assert.Equal(t, 5*time.Millisecond, s.DeltaResolution)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeFile(t, "settings.yaml", "log_level: debug\n")
	t.Setenv("TIMEDAUTOMATA_LOG_LEVEL", "error")
	t.Setenv("TIMEDAUTOMATA_METRICS", "true")
	t.Setenv("TIMEDAUTOMATA_DELTA_RESOLUTION", "2ms")

	s, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "error", s.LogLevel)
	assert.True(t, s.Metrics)
	assert.Equal(t, 2*time.Millisecond, s.DeltaResolution)
}

func TestLoad_EmptyPathUsesEnvOnly(t *testing.T) {
	t.Setenv("TIMEDAUTOMATA_LOG_FORMAT", "json")

	s, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.FormatJSON, s.LogFormat)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := writeFile(t, "settings.toml", "log_level = 'debug'")
		_, err := config.Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported config file extension")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := writeFile(t, "bad.yaml", "log_level: [unterminated")
		_, err := config.Load(path)
		assert.Error(t, err)
	})

	t.Run("invalid values", func(t *testing.T) {
		path := writeFile(t, "bad.yaml", "log_level: loud\nlog_format: xml\n")
		_, err := config.Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "log_level")
		assert.Contains(t, err.Error(), "log_format")
	})

	t.Run("invalid env", func(t *testing.T) {
		t.Setenv("TIMEDAUTOMATA_DELIVERY_RATE", "fast")
		_, err := config.Load("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse env")
	})
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Settings)
		wantErr string
	}{
		{"defaults", func(*config.Settings) {}, ""},
		{"negative resolution", func(s *config.Settings) { s.DeltaResolution = -1 }, "delta_resolution"},
		{"negative rate", func(s *config.Settings) { s.DeliveryRate = -1 }, "delivery_rate"},
		{"rate without burst", func(s *config.Settings) { s.DeliveryRate = 10; s.DeliveryBurst = 0 }, "delivery_burst"},
		{"unknown format", func(s *config.Settings) { s.LogFormat = "xml" }, "log_format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := config.Default()
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for name, want := range tests {
		got, err := config.ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := config.ParseLevel("trace")
	assert.Error(t, err)
}

func TestSettings_NewLogger(t *testing.T) {
	t.Run("json at debug", func(t *testing.T) {
		var buf bytes.Buffer
		s := config.Default()
		s.LogLevel = "debug"
		s.LogFormat = config.FormatJSON

		s.NewLogger(&buf).Debug("hello", "k", "v")
		assert.Contains(t, buf.String(), `"msg":"hello"`)
		assert.Contains(t, buf.String(), `"k":"v"`)
	})

	t.Run("text filters below level", func(t *testing.T) {
		var buf bytes.Buffer
		s := config.Default()
		s.LogLevel = "warn"

		logger := s.NewLogger(&buf)
		logger.Info("hidden")
		logger.Warn("shown")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "msg=shown")
	})
}
