package journal

import (
	"sort"
	"sync"
)

// MemoryStore is an in-memory journal.
// Data is lost when the process exits.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]Entry // sessionID -> entries in append order
	order   []string           // session IDs by first append
	closed  bool
}

// NewMemoryStore creates a new in-memory journal.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string][]Entry),
	}
}

// Append implements Store.
func (m *MemoryStore) Append(entry Entry) error {
	entry, err := normalize(entry)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	if _, ok := m.entries[entry.SessionID]; !ok {
		m.order = append(m.order, entry.SessionID)
	}
	m.entries[entry.SessionID] = append(m.entries[entry.SessionID], entry)
	return nil
}

// List implements Store.
func (m *MemoryStore) List(sessionID string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	out := make([]Entry, len(m.entries[sessionID]))
	copy(out, m.entries[sessionID])
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Cycle < out[j].Cycle
	})
	return out, nil
}

// Sessions implements Store.
func (m *MemoryStore) Sessions() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	out := make([]string, len(m.order))
	copy(out, m.order)
	return out, nil
}

// DeleteSession implements Store.
func (m *MemoryStore) DeleteSession(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	if _, ok := m.entries[sessionID]; !ok {
		return nil
	}
	delete(m.entries, sessionID)
	for i, id := range m.order {
		if id == sessionID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.entries = nil
	m.order = nil
	return nil
}
