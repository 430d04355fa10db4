package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/randalmurphal/timedautomata/pkg/timedautomata/pattern"
)

// Event is one line of an events file: the fields automata match against
// and the offset from the start of the run at which it is pushed.
type Event struct {
	At     time.Duration  `json:"at"`
	Fields map[string]any `json:"fields"`
}

// UnmarshalJSON accepts "at" as a duration string ("150ms") or a number of
// milliseconds.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw struct {
		At     json.RawMessage `json:"at"`
		Fields map[string]any  `json:"fields"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	e.Fields = raw.Fields
	e.At = 0
	if len(raw.At) == 0 || string(raw.At) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw.At, &s); err == nil {
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("at: %w", err)
		}
		e.At = d
		return nil
	}
	var ms float64
	if err := json.Unmarshal(raw.At, &ms); err != nil {
		return fmt.Errorf("at: must be a duration string or milliseconds")
	}
	e.At = time.Duration(ms * float64(time.Millisecond))
	return nil
}

// MarshalJSON writes "at" in milliseconds.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		At     float64        `json:"at"`
		Fields map[string]any `json:"fields,omitempty"`
	}{
		At:     float64(e.At.Microseconds()) / 1000,
		Fields: e.Fields,
	})
}

// String renders the fields as sorted key=value pairs.
func (e Event) String() string {
	keys := slices.Sorted(maps.Keys(e.Fields))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, e.Fields[k]))
	}
	return strings.Join(parts, " ")
}

// eventFields exposes an event to pattern conditions.
func eventFields(e Event) map[string]any {
	return e.Fields
}

// recognized is the event a pattern emits when it matches. It is stamped
// with the offset of the last matched event.
func recognized(m pattern.Match[Event]) Event {
	last := m.Events[len(m.Events)-1].Value
	return Event{
		At: last.At,
		Fields: map[string]any{
			"pattern": m.Pattern,
			"emit":    m.Emit,
			"matched": len(m.Events),
			"span_ms": m.Span().Milliseconds(),
		},
	}
}

// ReadEvents parses JSON lines. Blank lines and lines starting with '#'
// are skipped. Offsets must not decrease.
func ReadEvents(r io.Reader) ([]Event, error) {
	var events []Event
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var ev Event
		if err := json.Unmarshal([]byte(text), &ev); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if ev.At < 0 {
			return nil, fmt.Errorf("line %d: at must not be negative", line)
		}
		if n := len(events); n > 0 && ev.At < events[n-1].At {
			return nil, fmt.Errorf("line %d: at %s precedes previous event at %s", line, ev.At, events[n-1].At)
		}
		events = append(events, ev)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return events, nil
}

// ReadEventsFile reads events from path, or from stdin when path is "-".
func ReadEventsFile(path string) ([]Event, error) {
	if path == "-" {
		return ReadEvents(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open events: %w", err)
	}
	defer f.Close()
	return ReadEvents(f)
}
