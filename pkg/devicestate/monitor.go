package devicestate

import (
	"sync"
	"time"
)

// Monitor tracks the connectivity state of a single device and lets callers
// wait for a state transition away from "available" (Online/Fastboot).
//
// It is grounded on the same mutex-guarded, callback-driven shape as a
// one-shot timer: instead of time.AfterFunc firing a terminal callback,
// every SetState closes and replaces a "changed" channel so blocked waiters
// wake immediately rather than on a poll interval.
type Monitor struct {
	mu      sync.Mutex
	state   State
	changed chan struct{}

	onChange func(old, new State)
}

// NewMonitor creates a Monitor in the given initial state.
func NewMonitor(initial State) *Monitor {
	return &Monitor{
		state:   initial,
		changed: make(chan struct{}),
	}
}

// State returns the current state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SetState updates the state and wakes any waiters. A no-op transition
// (new == old) still wakes waiters, since WaitForNotAvailable callers care
// about liveness, not just the value.
func (m *Monitor) SetState(s State) {
	m.mu.Lock()
	old := m.state
	m.state = s
	ch := m.changed
	m.changed = make(chan struct{})
	onChange := m.onChange
	m.mu.Unlock()

	close(ch)

	if onChange != nil {
		onChange(old, s)
	}
}

// OnChange sets a callback invoked (outside the lock) after every SetState.
func (m *Monitor) OnChange(fn func(old, new State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// Changed returns the channel that closes on the next SetState call. Read
// State again after it fires; the channel itself carries no value.
func (m *Monitor) Changed() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.changed
}

// WaitForNotAvailable blocks for up to window, returning true if the device
// remained available (Online or Fastboot) for the entire window, and false
// if it transitioned to a non-available state before the window elapsed.
//
// This backs the readiness prober's stability check: a device is admitted
// to the pool only if it stays up for the whole window.
func (m *Monitor) WaitForNotAvailable(window time.Duration) bool {
	deadline := time.NewTimer(window)
	defer deadline.Stop()

	for {
		m.mu.Lock()
		state := m.state
		ch := m.changed
		m.mu.Unlock()

		if !state.IsAvailable() {
			return false
		}

		select {
		case <-deadline.C:
			return true
		case <-ch:
			// state changed; loop and re-check
		}
	}
}
