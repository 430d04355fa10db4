package timedautomata

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// testLogHandler captures log records for testing, including attrs added
// with Logger.With.
type testLogHandler struct {
	out   *logOutput
	level slog.Level
	attrs []slog.Attr
}

type logOutput struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func newTestLogHandler() *testLogHandler {
	return &testLogHandler{
		out:   &logOutput{},
		level: slog.LevelDebug,
	}
}

func (h *testLogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *testLogHandler) Handle(_ context.Context, r slog.Record) error {
	data := map[string]any{
		"level": r.Level.String(),
		"msg":   r.Message,
	}
	for _, a := range h.attrs {
		data[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		data[a.Key] = a.Value.Any()
		return true
	})
	h.out.mu.Lock()
	defer h.out.mu.Unlock()
	return json.NewEncoder(&h.out.buf).Encode(data)
}

func (h *testLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &testLogHandler{
		out:   h.out,
		level: h.level,
		attrs: append(slices.Clone(h.attrs), attrs...),
	}
}

func (h *testLogHandler) WithGroup(_ string) slog.Handler { return h }

func (h *testLogHandler) getRecords() []map[string]any {
	h.out.mu.Lock()
	defer h.out.mu.Unlock()
	var records []map[string]any
	for _, line := range bytes.Split(h.out.buf.Bytes(), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(line, &m); err == nil {
			records = append(records, m)
		}
	}
	return records
}

func (h *testLogHandler) messages() []string {
	var msgs []string
	for _, r := range h.getRecords() {
		msgs = append(msgs, r["msg"].(string))
	}
	return msgs
}

// fakeClock is a manually advanced clock for stamping pushes.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// collector records delivered values and when they arrived.
type collector struct {
	mu     sync.Mutex
	values []string
	times  []time.Time
}

func (c *collector) notify(v string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = append(c.values, v)
	c.times = append(c.times, time.Now())
}

func (c *collector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.values...)
}

func (c *collector) deliveryTimes() []time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Time(nil), c.times...)
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.values)
}

// seqState accepts when the next events equal want, emitting label.
type seqState struct {
	want  []string
	label string
}

func (s *seqState) HandleInput(sc *Scope[string]) State[string] {
	for _, w := range s.want {
		rec, err := sc.Next(0)
		if err != nil || rec.Value != w {
			return nil
		}
	}
	sc.Emit(s.label)
	return nil
}

// readState reads n events, remembers them and rejects.
type readState struct {
	n int

	mu   sync.Mutex
	seen [][]string
}

func (s *readState) HandleInput(sc *Scope[string]) State[string] {
	var got []string
	defer func() {
		s.mu.Lock()
		s.seen = append(s.seen, got)
		s.mu.Unlock()
	}()
	for i := 0; i < s.n; i++ {
		rec, err := sc.Next(0)
		if err != nil {
			return nil
		}
		got = append(got, rec.Value)
	}
	return nil
}

func (s *readState) attempts() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]string(nil), s.seen...)
}

// panicState panics on every attempt, optionally emitting first.
type panicState struct {
	emit bool
}

func (s *panicState) HandleInput(sc *Scope[string]) State[string] {
	if s.emit {
		sc.Emit("P")
	}
	panic("boom")
}

// startState hands every event to a fresh echoState.
type startState struct {
	stepReleases    *atomic.Int32
	initialReleases atomic.Int32
}

func (s *startState) HandleInput(_ *Scope[string]) State[string] {
	return &echoState{releases: s.stepReleases}
}

func (s *startState) Release() { s.initialReleases.Add(1) }

// echoState reads one event and emits it upper-cased with a "!" suffix.
type echoState struct {
	releases *atomic.Int32
}

func (s *echoState) HandleInput(sc *Scope[string]) State[string] {
	rec, err := sc.Next(0)
	if err != nil {
		return nil
	}
	sc.Emit(rec.Value + "!")
	return nil
}

func (s *echoState) Release() { s.releases.Add(1) }

// countState reads one event, counts it in the environment and emits the count.
type countState struct{}

func (s *countState) HandleInput(sc *Scope[string]) State[string] {
	if _, err := sc.Next(0); err != nil {
		return nil
	}
	n := sc.Env.Incr("seen", 1)
	sc.Emit(string(rune('0' + n)))
	return nil
}

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// transitionState reads one event and moves to next.
type transitionState struct {
	next State[string]
}

func (s *transitionState) HandleInput(sc *Scope[string]) State[string] {
	if _, err := sc.Next(0); err != nil {
		return nil
	}
	return s.next
}

// panicStep panics when run and counts its releases.
type panicStep struct {
	releases *atomic.Int32
}

func (s *panicStep) HandleInput(_ *Scope[string]) State[string] {
	panic("step failed")
}

func (s *panicStep) Release() { s.releases.Add(1) }
