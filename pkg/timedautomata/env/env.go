package env

import (
	"time"
)

// Env is the mutable key/value environment shared by every state of one
// automaton. All accessor methods return default values if the key is
// missing or the value cannot be converted to the requested type.
//
// Env is NOT safe for concurrent use. The discriminator only touches an
// automaton's environment from its processing goroutine.
type Env struct {
	data map[string]any
}

// New creates an empty Env.
func New() *Env {
	return &Env{data: make(map[string]any)}
}

// From creates an Env seeded with a copy of the given map.
// If data is nil, an empty Env is returned.
func From(data map[string]any) *Env {
	e := New()
	for k, v := range data {
		e.data[k] = v
	}
	return e
}

// Set stores value under key, replacing any previous value.
func (e *Env) Set(key string, value any) {
	e.data[key] = value
}

// Get returns the raw value for key and whether it exists.
func (e *Env) Get(key string) (any, bool) {
	v, ok := e.data[key]
	return v, ok
}

// Delete removes key. Deleting a missing key is a no-op.
func (e *Env) Delete(key string) {
	delete(e.data, key)
}

// Clear removes every key.
func (e *Env) Clear() {
	clear(e.data)
}

// Has returns true if the key exists in the environment.
func (e *Env) Has(key string) bool {
	_, ok := e.data[key]
	return ok
}

// Len returns the number of stored keys.
func (e *Env) Len() int {
	return len(e.data)
}

// Keys returns all keys. The order is not guaranteed.
func (e *Env) Keys() []string {
	keys := make([]string, 0, len(e.data))
	for k := range e.data {
		keys = append(keys, k)
	}
	return keys
}

// Snapshot returns a shallow copy of the underlying map.
func (e *Env) Snapshot() map[string]any {
	out := make(map[string]any, len(e.data))
	for k, v := range e.data {
		out[k] = v
	}
	return out
}

// String returns the string value for key, or defaultVal if missing or not a string.
func (e *Env) String(key, defaultVal string) string {
	if s, ok := e.data[key].(string); ok {
		return s
	}
	return defaultVal
}

// Bool returns the boolean value for key, or defaultVal if missing or not a bool.
func (e *Env) Bool(key string, defaultVal bool) bool {
	if b, ok := e.data[key].(bool); ok {
		return b
	}
	return defaultVal
}

// Int returns the integer value for key, or defaultVal if missing or not convertible.
//
// Accepts:
//   - int: used directly
//   - int64: converted to int
//   - float64: converted to int (only if no fractional part)
func (e *Env) Int(key string, defaultVal int) int {
	switch val := e.data[key].(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		if val == float64(int(val)) {
			return int(val)
		}
	}
	return defaultVal
}

// Float returns the float64 value for key, or defaultVal if missing or not convertible.
func (e *Env) Float(key string, defaultVal float64) float64 {
	switch val := e.data[key].(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	}
	return defaultVal
}

// Duration returns the duration value for key, or defaultVal if missing or invalid.
//
// Accepts:
//   - time.Duration: used directly
//   - string: parsed with time.ParseDuration
//   - int/int64: interpreted as milliseconds
func (e *Env) Duration(key string, defaultVal time.Duration) time.Duration {
	switch val := e.data[key].(type) {
	case time.Duration:
		return val
	case string:
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	case int:
		return time.Duration(val) * time.Millisecond
	case int64:
		return time.Duration(val) * time.Millisecond
	}
	return defaultVal
}

// Time returns the time value for key, or defaultVal if missing or not a time.Time.
func (e *Env) Time(key string, defaultVal time.Time) time.Time {
	if t, ok := e.data[key].(time.Time); ok {
		return t
	}
	return defaultVal
}

// Incr adds delta to the integer stored under key (missing counts as zero)
// and returns the new value.
func (e *Env) Incr(key string, delta int) int {
	n := e.Int(key, 0) + delta
	e.data[key] = n
	return n
}

// Lookup returns the value for key asserted to V.
// The second result is false if the key is missing or holds another type.
func Lookup[V any](e *Env, key string) (V, bool) {
	v, ok := e.data[key].(V)
	return v, ok
}

// Append appends value to the []V slice stored under key, creating it if needed.
// A value of another type under key is replaced.
func Append[V any](e *Env, key string, value V) []V {
	s, _ := e.data[key].([]V)
	s = append(s, value)
	e.data[key] = s
	return s
}
