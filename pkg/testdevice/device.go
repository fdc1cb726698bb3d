package testdevice

import (
	"context"
	"sync"

	"github.com/devicepool/devicepool/pkg/bridge"
	"github.com/devicepool/devicepool/pkg/devicestate"
	"github.com/devicepool/devicepool/pkg/log"
)

// ManagerHandle is the narrow capability a test-device uses to reach back
// into the allocation manager, breaking the manager <-> device reference
// cycle. A full manager satisfies this without the device ever seeing the
// rest of its surface.
type ManagerHandle interface {
	MarkUnavailable(serial string)
	RequestFree(serial string)
}

// Device is the wrapper the allocation manager hands to consumers: a
// device handle, its state monitor, a pluggable recovery strategy, a
// log-capture toggle, and the fastboot-enabled flag.
type Device struct {
	mu sync.Mutex

	handle  bridge.Handle
	monitor *devicestate.Monitor
	manager ManagerHandle

	recovery RecoveryStrategy
	logger   *log.FileLogger
	logPath  string

	fastbootEnabled bool
	runnerName      string
	sessionID       string
}

// New wraps handle with a fresh test-device. monitor is the per-device
// state monitor the bridge listener keeps updated; manager is the narrow
// capability used for recovery callbacks.
func New(handle bridge.Handle, monitor *devicestate.Monitor, manager ManagerHandle) *Device {
	return &Device{
		handle:   handle,
		monitor:  monitor,
		manager:  manager,
		recovery: WaitForOnlineStrategy{Monitor: monitor, Timeout: devicestate.DefaultRecoveryTimeout},
	}
}

// Serial returns the device's stable identity.
func (d *Device) Serial() string { return d.handle.Serial }

// Kind returns the device's handle kind.
func (d *Device) Kind() bridge.Kind { return d.handle.Kind }

// Handle returns a copy of the underlying device handle.
func (d *Device) Handle() bridge.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handle
}

// SetHandle replaces the underlying handle, used when the bridge re-issues
// it for an already-allocated serial.
func (d *Device) SetHandle(h bridge.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handle = h
}

// Monitor returns the device's state monitor, satisfying altmode.Tracked.
func (d *Device) Monitor() *devicestate.Monitor { return d.monitor }

// SetSessionID records the allocation session identifier used in log events.
func (d *Device) SetSessionID(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sessionID = id
}

// SessionID returns the allocation session identifier.
func (d *Device) SessionID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessionID
}

// SetRunnerName records the name of the runner this device was allocated
// to. The provided value is assigned as given.
func (d *Device) SetRunnerName(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.runnerName = name
}

// RunnerName returns the name set by SetRunnerName.
func (d *Device) RunnerName() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.runnerName
}

// SetFastbootEnabled toggles whether this device is permitted to enter
// alt-mode operations.
func (d *Device) SetFastbootEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fastbootEnabled = enabled
}

// FastbootEnabled reports the current flag value.
func (d *Device) FastbootEnabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fastbootEnabled
}

// SetRecoveryStrategy installs a new recovery strategy, e.g. AbortStrategy
// after terminateHard.
func (d *Device) SetRecoveryStrategy(s RecoveryStrategy) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recovery = s
}

// RecoverDevice invokes the currently-installed recovery strategy.
func (d *Device) RecoverDevice(ctx context.Context) error {
	d.mu.Lock()
	strategy := d.recovery
	d.mu.Unlock()
	return strategy.Recover(ctx)
}

// StartLogCapture begins writing pool events for this device to path.
// Starting capture twice replaces the previous logger, closing it first.
func (d *Device) StartLogCapture(path string) error {
	logger, err := log.NewFileLogger(path)
	if err != nil {
		return err
	}

	d.mu.Lock()
	old := d.logger
	d.logger = logger
	d.logPath = path
	d.mu.Unlock()

	if old != nil {
		old.Close()
	}
	return nil
}

// StopLogCapture closes the active log file, if any. Safe to call when no
// capture is active.
func (d *Device) StopLogCapture() error {
	d.mu.Lock()
	logger := d.logger
	d.logger = nil
	d.logPath = ""
	d.mu.Unlock()

	if logger == nil {
		return nil
	}
	return logger.Close()
}

// LogCaptureActive reports whether log capture is currently enabled.
func (d *Device) LogCaptureActive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.logger != nil
}

// Log records a pool event to the active log file, if capture is
// enabled. A no-op otherwise.
func (d *Device) Log(event log.Event) {
	d.mu.Lock()
	logger := d.logger
	d.mu.Unlock()
	if logger != nil {
		logger.Log(event)
	}
}
