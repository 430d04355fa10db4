package cli

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadEvents(t *testing.T) {
	input := `
# comment
{"at": "0s", "fields": {"key": "a"}}
{"at": 50, "fields": {"key": "a", "n": 3}}

{"at": "1.5s", "fields": {"key": "b"}}
{"fields": {"key": "late"}, "at": 1500}
`
	events, err := ReadEvents(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, events, 4)

	assert.Equal(t, time.Duration(0), events[0].At)
	assert.Equal(t, 50*time.Millisecond, events[1].At)
	assert.Equal(t, 1500*time.Millisecond, events[2].At)
	assert.Equal(t, 1500*time.Millisecond, events[3].At)
	assert.Equal(t, "a", events[1].Fields["key"])
	assert.Equal(t, json.Number("3"), events[1].Fields["n"])
}

func TestReadEvents_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		msg   string
	}{
		{"malformed", `{"at": 0,`, "line 1"},
		{"bad duration", `{"at": "soon"}`, "at:"},
		{"wrong type", `{"at": true}`, "at:"},
		{"negative", `{"at": -5}`, "must not be negative"},
		{"out of order", "{\"at\": 100}\n{\"at\": 50}", "line 2: at 50ms precedes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadEvents(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestEvent_String(t *testing.T) {
	ev := Event{Fields: map[string]any{"key": "a", "count": 2}}
	assert.Equal(t, "count=2 key=a", ev.String())
}

func TestEvent_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(Event{At: 1500 * time.Microsecond, Fields: map[string]any{"key": "a"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"at": 1.5, "fields": {"key": "a"}}`, string(data))
}
