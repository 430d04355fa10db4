package timedautomata

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Record is one buffered event together with the gap since the event
// that arrived before it.
type Record[T any] struct {
	Value T
	Delta time.Duration
}

// exitSignal is a one-shot cancellation token. A discriminator shares one
// between its input and output queues so a single Close stops both.
type exitSignal struct {
	once sync.Once
	ch   chan struct{}
}

func newExitSignal() *exitSignal {
	return &exitSignal{ch: make(chan struct{})}
}

func (s *exitSignal) fire() {
	s.once.Do(func() { close(s.ch) })
}

func (s *exitSignal) done() <-chan struct{} {
	return s.ch
}

func (s *exitSignal) fired() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// Queue is an append-only event buffer that can be re-scanned.
//
// Reads advance a cursor without removing anything. Rewind moves the cursor
// back to the head so another automaton can read the same window, and the
// high-water mark remembers the furthest position any scan reached since the
// last TrimConsumed. Only that prefix is ever erased.
//
// Invariant: 0 <= Cursor() <= HighWaterMark() <= Len().
//
// Queue is safe for concurrent use by one reader and any number of writers.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []Record[T]
	cursor int
	hwm    int

	// wake is closed and replaced whenever something is appended.
	wake chan struct{}

	updated atomic.Bool
	exit    *exitSignal
}

// NewQueue creates an empty queue with its own exit signal.
func NewQueue[T any]() *Queue[T] {
	return newQueue[T](newExitSignal())
}

func newQueue[T any](exit *exitSignal) *Queue[T] {
	return &Queue[T]{
		wake: make(chan struct{}),
		exit: exit,
	}
}

// Append adds a record at the tail, marks the queue updated and wakes a
// blocked reader.
func (q *Queue[T]) Append(rec Record[T]) {
	q.mu.Lock()
	q.items = append(q.items, rec)
	q.signalLocked()
	q.mu.Unlock()
	q.updated.Store(true)
}

// Extend appends records in order without marking the queue updated.
// The discriminator forwards rejected spans with Extend so forwarding is
// never mistaken for an automaton's output.
func (q *Queue[T]) Extend(recs []Record[T]) {
	if len(recs) == 0 {
		return
	}
	q.mu.Lock()
	q.items = append(q.items, recs...)
	q.signalLocked()
	q.mu.Unlock()
}

func (q *Queue[T]) signalLocked() {
	close(q.wake)
	q.wake = make(chan struct{})
}

// Next returns the record at the cursor and advances it.
// It blocks until a record is available. A timeout of zero waits forever;
// otherwise ErrReadTimeout is returned once it elapses. After Close every
// call returns ErrQueueClosed, even while records remain buffered.
func (q *Queue[T]) Next(timeout time.Duration) (Record[T], error) {
	return q.NextContext(context.Background(), timeout)
}

// NextContext is Next that also gives up when ctx is done, returning ctx.Err().
func (q *Queue[T]) NextContext(ctx context.Context, timeout time.Duration) (Record[T], error) {
	var zero Record[T]

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		q.mu.Lock()
		if q.exit.fired() {
			q.mu.Unlock()
			return zero, ErrQueueClosed
		}
		if q.cursor < len(q.items) {
			rec := q.items[q.cursor]
			q.cursor++
			if q.cursor > q.hwm {
				q.hwm = q.cursor
			}
			q.mu.Unlock()
			return rec, nil
		}
		wake := q.wake
		q.mu.Unlock()

		select {
		case <-wake:
		case <-deadline:
			return zero, ErrReadTimeout
		case <-q.exit.done():
			return zero, ErrQueueClosed
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// Rewind moves the cursor back to the head. Stored records and the
// high-water mark are untouched.
func (q *Queue[T]) Rewind() {
	q.mu.Lock()
	q.cursor = 0
	q.mu.Unlock()
}

// Consumed returns a copy of the records before the high-water mark.
func (q *Queue[T]) Consumed() []Record[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.items[:q.hwm])
}

// TrimConsumed erases the records before the high-water mark and resets
// both the cursor and the mark. It returns the number of records erased.
func (q *Queue[T]) TrimConsumed() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := q.hwm
	q.items = slices.Delete(q.items, 0, n)
	q.cursor = 0
	q.hwm = 0
	return n
}

// Drain removes and returns every buffered record.
func (q *Queue[T]) Drain() []Record[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	q.cursor = 0
	q.hwm = 0
	return out
}

// MarkUpdated sets the updated flag.
func (q *Queue[T]) MarkUpdated() { q.updated.Store(true) }

// Updated reports whether a record was appended since the last ClearUpdated.
func (q *Queue[T]) Updated() bool { return q.updated.Load() }

// ClearUpdated resets the updated flag.
func (q *Queue[T]) ClearUpdated() { q.updated.Store(false) }

// Close wakes every blocked reader. Subsequent reads return ErrQueueClosed.
// Closing a discriminator queue closes its sibling too.
func (q *Queue[T]) Close() { q.exit.fire() }

// Closed reports whether Close has been called.
func (q *Queue[T]) Closed() bool { return q.exit.fired() }

// Len returns the number of buffered records.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Cursor returns the position of the next read.
func (q *Queue[T]) Cursor() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cursor
}

// HighWaterMark returns the furthest cursor position since the last trim.
func (q *Queue[T]) HighWaterMark() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.hwm
}
