package queue

import (
	"context"
	"sync"
	"time"
)

// Predicate reports whether an element is acceptable to a waiter.
type Predicate[V any] func(v V) bool

// Queue is a thread-safe, FIFO, unbounded queue whose take/poll operations
// return the oldest element matching a predicate, blocking until one
// exists or the wait ends.
type Queue[V any] struct {
	mu      sync.Mutex
	items   []V
	changed chan struct{}
}

// New returns an empty queue.
func New[V any]() *Queue[V] {
	return &Queue[V]{changed: make(chan struct{})}
}

// Add appends v to the tail. It never blocks.
func (q *Queue[V]) Add(v V) {
	q.mu.Lock()
	q.items = append(q.items, v)
	ch := q.changed
	q.changed = make(chan struct{})
	q.mu.Unlock()
	close(ch)
}

// Take blocks until the oldest element matching pred is available, then
// removes and returns it. It returns ctx.Err() if ctx is done first.
//
// Every waiter re-scans the full queue from the head on each wake, because
// a single add may satisfy one of several waiters with non-overlapping
// predicates; there is no fairness guarantee beyond FIFO among matches.
func (q *Queue[V]) Take(ctx context.Context, pred Predicate[V]) (V, error) {
	for {
		q.mu.Lock()
		for i, v := range q.items {
			if pred(v) {
				q.items = append(q.items[:i], q.items[i+1:]...)
				q.mu.Unlock()
				return v, nil
			}
		}
		ch := q.changed
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			var zero V
			return zero, ctx.Err()
		case <-ch:
		}
	}
}

// Poll behaves like Take but gives up after timeout, returning ok=false
// rather than an error in that case.
func (q *Queue[V]) Poll(ctx context.Context, pred Predicate[V], timeout time.Duration) (V, bool, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	v, err := q.Take(cctx, pred)
	if err != nil {
		var zero V
		if cctx.Err() != nil && ctx.Err() == nil {
			return zero, false, nil
		}
		return zero, false, err
	}
	return v, true, nil
}

// Remove removes the first element matching pred, returning it and
// whether one was found. Callers identify "their" element by constructing
// pred to compare identity (e.g. a serial number).
func (q *Queue[V]) Remove(pred Predicate[V]) (V, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, v := range q.items {
		if pred(v) {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return v, true
		}
	}
	var zero V
	return zero, false
}

// Iterate returns a snapshot of the queue's contents, oldest first, for
// diagnostics. Mutating the returned slice does not affect the queue.
func (q *Queue[V]) Iterate() []V {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]V, len(q.items))
	copy(out, q.items)
	return out
}

// Len returns the current element count.
func (q *Queue[V]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
