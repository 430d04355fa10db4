package journal_test

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/timedautomata/pkg/timedautomata/journal"
)

// storeFactories runs the shared contract against every implementation.
func storeFactories(t *testing.T) map[string]func() journal.Store {
	return map[string]func() journal.Store{
		"memory": func() journal.Store { return journal.NewMemoryStore() },
		"sqlite": func() journal.Store {
			s, err := journal.NewSQLiteStore(":memory:")
			require.NoError(t, err)
			return s
		},
	}
}

func TestStore_AppendAndList(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory()
			defer store.Close()

			ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
			require.NoError(t, store.Append(journal.Entry{
				SessionID: "s1", Cycle: 2, Verdict: "forwarded", SpanLen: 1, Attempts: 2, Timestamp: ts,
			}))
			require.NoError(t, store.Append(journal.Entry{
				SessionID: "s1", Cycle: 1, Verdict: "accepted", Automaton: "chord", SpanLen: 3, Attempts: 1, Timestamp: ts,
			}))
			require.NoError(t, store.Append(journal.Entry{
				SessionID: "s2", Cycle: 1, Verdict: "forwarded", SpanLen: 1,
			}))

			entries, err := store.List("s1")
			require.NoError(t, err)
			require.Len(t, entries, 2)

			assert.Equal(t, int64(1), entries[0].Cycle)
			assert.Equal(t, "accepted", entries[0].Verdict)
			assert.Equal(t, "chord", entries[0].Automaton)
			assert.Equal(t, 3, entries[0].SpanLen)
			assert.Equal(t, 1, entries[0].Attempts)
			assert.True(t, ts.Equal(entries[0].Timestamp))
			assert.Equal(t, int64(2), entries[1].Cycle)

			other, err := store.List("s2")
			require.NoError(t, err)
			require.Len(t, other, 1)
			assert.False(t, other[0].Timestamp.IsZero(), "zero timestamp is filled in")
		})
	}
}

func TestStore_ListUnknownSession(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory()
			defer store.Close()

			entries, err := store.List("missing")
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestStore_Sessions(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory()
			defer store.Close()

			for _, id := range []string{"b", "a", "b", "c"} {
				require.NoError(t, store.Append(journal.Entry{SessionID: id, Verdict: "forwarded"}))
			}

			sessions, err := store.Sessions()
			require.NoError(t, err)
			assert.Equal(t, []string{"b", "a", "c"}, sessions)
		})
	}
}

func TestStore_DeleteSession(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory()
			defer store.Close()

			require.NoError(t, store.Append(journal.Entry{SessionID: "a", Verdict: "forwarded"}))
			require.NoError(t, store.Append(journal.Entry{SessionID: "b", Verdict: "forwarded"}))

			require.NoError(t, store.DeleteSession("a"))
			require.NoError(t, store.DeleteSession("never-existed"))

			entries, err := store.List("a")
			require.NoError(t, err)
			assert.Empty(t, entries)

			sessions, err := store.Sessions()
			require.NoError(t, err)
			assert.Equal(t, []string{"b"}, sessions)
		})
	}
}

func TestStore_InvalidEntry(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory()
			defer store.Close()

			err := store.Append(journal.Entry{Verdict: "forwarded"})
			assert.ErrorIs(t, err, journal.ErrInvalidEntry)
		})
	}
}

func TestStore_Closed(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory()
			require.NoError(t, store.Close())
			require.NoError(t, store.Close(), "close is idempotent")

			assert.ErrorIs(t, store.Append(journal.Entry{SessionID: "s"}), journal.ErrStoreClosed)
			_, err := store.List("s")
			assert.ErrorIs(t, err, journal.ErrStoreClosed)
			_, err = store.Sessions()
			assert.ErrorIs(t, err, journal.ErrStoreClosed)
			assert.ErrorIs(t, store.DeleteSession("s"), journal.ErrStoreClosed)
		})
	}
}

func TestStore_Concurrent(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory()
			defer store.Close()

			const goroutines = 8
			const perGoroutine = 25

			var wg sync.WaitGroup
			wg.Add(goroutines)
			for g := 0; g < goroutines; g++ {
				go func() {
					defer wg.Done()
					for i := 0; i < perGoroutine; i++ {
						_ = store.Append(journal.Entry{SessionID: "shared", Cycle: int64(i), Verdict: "forwarded"})
						_, _ = store.List("shared")
					}
				}()
			}
			wg.Wait()

			entries, err := store.List("shared")
			require.NoError(t, err)
			assert.Len(t, entries, goroutines*perGoroutine)
		})
	}
}

func TestSQLiteStore_Persistence(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "journal.db")

	store1, err := journal.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, store1.Append(journal.Entry{SessionID: "s", Cycle: 1, Verdict: "accepted", Automaton: "x"}))
	require.NoError(t, store1.Close())

	store2, err := journal.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store2.Close()

	entries, err := store2.List("s")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "x", entries[0].Automaton)
}

func TestSQLiteStore_InvalidPath(t *testing.T) {
	_, err := journal.NewSQLiteStore("/nonexistent/path/journal.db")
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	store, err := journal.Open("")
	require.NoError(t, err)
	assert.Nil(t, store)

	store, err = journal.Open(":memory:")
	require.NoError(t, err)
	require.NotNil(t, store)
	assert.NoError(t, store.Close())
}
