package altmode

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/devicepool/devicepool/pkg/devicestate"
	"github.com/devicepool/devicepool/pkg/runner"
)

// CommandTimeout bounds a single list-alt-mode-devices invocation.
const CommandTimeout = 60 * time.Second

// PollInterval is the sleep between cycles.
const PollInterval = 5 * time.Second

var serialPattern = regexp.MustCompile(`(\w+)\s+fastboot\s*`)

// parseSerials extracts every serial reported in alt-mode from the raw
// command output.
func parseSerials(output string) map[string]struct{} {
	matches := serialPattern.FindAllStringSubmatch(output, -1)
	serials := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		serials[m[1]] = struct{}{}
	}
	return serials
}

// Tracked is an allocated device the monitor can inspect and update.
type Tracked interface {
	Serial() string
	Monitor() *devicestate.Monitor
}

// Listener is notified of alt-mode transitions.
type Listener interface {
	// AltModeChanged reports that serial entered (inAltMode=true) or left
	// (inAltMode=false) alt-mode.
	AltModeChanged(serial string, inAltMode bool)
}

// Monitor runs the background alt-mode poll loop.
type Monitor struct {
	run          runner.Runner
	toolPath     string
	allocated    func() []Tracked
	pollInterval time.Duration

	mu        sync.Mutex
	listeners []Listener

	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a Monitor. toolPath is the external tool binary; allocated
// returns the current set of allocated devices to reconcile each cycle.
func New(run runner.Runner, toolPath string, allocated func() []Tracked) *Monitor {
	return &Monitor{run: run, toolPath: toolPath, allocated: allocated, pollInterval: PollInterval}
}

// SetPollInterval overrides the poll interval, mainly so tests don't have
// to wait out the production PollInterval.
func (m *Monitor) SetPollInterval(d time.Duration) {
	m.pollInterval = d
}

// AddListener registers l. It may be called before or after Start; the
// loop checks for listeners on every cycle, so a new listener takes effect
// from the next cycle on.
func (m *Monitor) AddListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// RemoveListener unregisters l.
func (m *Monitor) RemoveListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.listeners {
		if existing == l {
			m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
			return
		}
	}
}

func (m *Monitor) listenerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

func (m *Monitor) snapshotListeners() []Listener {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Listener, len(m.listeners))
	copy(out, m.listeners)
	return out
}

// Start launches the background poll loop. It returns immediately; the
// loop runs until Stop is called.
func (m *Monitor) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.loop(loopCtx)
}

// Stop cancels the poll loop and waits for it to exit.
func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)

	for {
		if ctx.Err() != nil {
			return
		}

		if m.listenerCount() > 0 {
			m.cycle(ctx)
		}

		if err := m.run.Sleep(ctx, m.pollInterval); err != nil {
			return
		}
	}
}

func (m *Monitor) cycle(ctx context.Context) {
	if m.listenerCount() == 0 {
		return
	}

	result, err := m.run.Run(ctx, CommandTimeout, m.toolPath, "list-alt-mode-devices")
	if err != nil || result.Status != 0 {
		return
	}

	inAltMode := parseSerials(result.Stdout)

	var entered, exited []string
	for _, d := range m.allocated() {
		_, reported := inAltMode[d.Serial()]
		currentlyAltMode := d.Monitor().State() == devicestate.Fastboot

		switch {
		case reported && !currentlyAltMode:
			d.Monitor().SetState(devicestate.Fastboot)
			entered = append(entered, d.Serial())
		case !reported && currentlyAltMode:
			d.Monitor().SetState(devicestate.NotAvailable)
			exited = append(exited, d.Serial())
		}
	}

	if len(entered) == 0 && len(exited) == 0 {
		return
	}

	listeners := m.snapshotListeners()
	for _, l := range listeners {
		for _, serial := range entered {
			l.AltModeChanged(serial, true)
		}
		for _, serial := range exited {
			l.AltModeChanged(serial, false)
		}
	}
}
