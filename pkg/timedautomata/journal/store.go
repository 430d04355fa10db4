// Package journal records the verdict of every discriminator cycle.
//
// A journal entry says which automaton (if any) accepted the buffered span
// and how many events the span held. Events themselves are never stored.
package journal

import (
	"errors"
	"time"
)

// Store persists journal entries.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append records one entry.
	Append(entry Entry) error

	// List returns all entries for a session ordered by cycle.
	// Returns an empty slice (not error) if the session has no entries.
	List(sessionID string) ([]Entry, error)

	// Sessions returns every session ID with at least one entry, oldest first.
	Sessions() ([]string, error)

	// DeleteSession removes all entries for a session.
	// Returns nil if the session has no entries.
	DeleteSession(sessionID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Entry is the outcome of one discriminator cycle.
type Entry struct {
	SessionID string    `json:"session_id"`
	Cycle     int64     `json:"cycle"`
	Verdict   string    `json:"verdict"`
	Automaton string    `json:"automaton,omitempty"`
	SpanLen   int       `json:"span_len"`
	Attempts  int       `json:"attempts"`
	Timestamp time.Time `json:"timestamp"`
}

// Sentinel errors for journal operations.
var (
	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("journal store closed")

	// ErrInvalidEntry indicates an entry without a session ID.
	ErrInvalidEntry = errors.New("journal entry requires a session ID")
)

func normalize(e Entry) (Entry, error) {
	if e.SessionID == "" {
		return e, ErrInvalidEntry
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	e.Timestamp = e.Timestamp.UTC()
	return e, nil
}
