// Package queue implements the priority-conditioned blocking queue (C5): a
// FIFO queue of device handles whose distinguishing operation is take/poll
// by predicate rather than by position. add never blocks; take/poll block
// until the oldest predicate-matching element exists or the wait ends.
//
// There is no third-party queue in the dependency pack that models a
// predicate-conditioned wait — this is a mutex plus a broadcast channel
// that Add closes and replaces, standing in for a condition variable so
// that waits compose with context cancellation.
package queue
