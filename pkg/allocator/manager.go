package allocator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/devicepool/devicepool/pkg/altmode"
	"github.com/devicepool/devicepool/pkg/bridge"
	"github.com/devicepool/devicepool/pkg/devicestate"
	"github.com/devicepool/devicepool/pkg/filter"
	"github.com/devicepool/devicepool/pkg/log"
	"github.com/devicepool/devicepool/pkg/prober"
	"github.com/devicepool/devicepool/pkg/queue"
	"github.com/devicepool/devicepool/pkg/registry"
	"github.com/devicepool/devicepool/pkg/runner"
	"github.com/devicepool/devicepool/pkg/testdevice"
	"github.com/devicepool/devicepool/pkg/wireless"
	"github.com/google/uuid"
)

// OperationTimeout bounds a single bridge-tool invocation made directly by
// the manager (connect, transport switch, alt-mode help probe).
const OperationTimeout = 30 * time.Second

// TCPConnectRetries and TCPConnectDelay govern connectToTcpDevice's retry
// loop.
const (
	TCPConnectRetries = 3
	TCPConnectDelay   = 5 * time.Second
)

// FreeState is the post-use state a consumer reports when returning a
// device.
type FreeState uint8

const (
	// FreeAvailable returns the device's handle to the available pool.
	FreeAvailable FreeState = iota
	// FreeUnavailable marks the device permanently broken; it is not
	// returned to the pool.
	FreeUnavailable
	// FreeUnresponsive is treated like FreeAvailable: the device is
	// returned, on the theory that unresponsiveness was transient.
	FreeUnresponsive
	// FreeIgnore drops the device without returning it; the consumer is
	// responsible for its fate (used after a failed secondary-transport
	// connect).
	FreeIgnore
)

// AltModeStatus is the outcome of Init's alt-mode support probe.
type AltModeStatus uint8

const (
	// AltModeUnavailable means the `help` probe failed outright; the
	// alt-mode monitor is never started.
	AltModeUnavailable AltModeStatus = iota
	// AltModeAvailable means the probe succeeded cleanly (exit 0).
	AltModeAvailable
	// AltModeAvailableLegacy means the probe only found a usage banner on
	// stderr: an old tool version. Alt-mode is still started, but Init
	// logs a warning since the tool's alt-mode support is unconfirmed.
	AltModeAvailableLegacy
)

// String returns the status name.
func (s AltModeStatus) String() string {
	switch s {
	case AltModeUnavailable:
		return "UNAVAILABLE"
	case AltModeAvailable:
		return "AVAILABLE"
	case AltModeAvailableLegacy:
		return "AVAILABLE_LEGACY"
	default:
		return "UNKNOWN"
	}
}

var (
	// ErrNotInitialized is returned by any public method except Init
	// called before Init.
	ErrNotInitialized = errors.New("allocator: not initialized")
	// ErrAlreadyInitialized is returned by a second call to Init.
	ErrAlreadyInitialized = errors.New("allocator: already initialized")
)

// Config configures Init.
type Config struct {
	// GlobalFilter is the policy filter newly-seen devices must pass
	// before the prober will even consider them. Defaults to
	// filter.MatchesAny.
	GlobalFilter filter.Filter
	// Properties answers device-property lookups for filters; may be nil
	// if no filter in use needs them.
	Properties filter.Properties
	// NumEmulators is the number of emulator placeholder slots to seed
	// the pool with.
	NumEmulators int
	// NumNullDevices is the number of no-device placeholder slots.
	NumNullDevices int
	// ToolPath is the external bridge-tool binary (e.g. "adb").
	ToolPath string
	// LogDir, if non-empty, enables per-device log capture under this
	// directory for the duration of each allocation.
	LogDir string
}

// Manager is the allocation manager façade (C9).
type Manager struct {
	run    runner.Runner
	br     bridge.Bridge
	logger log.Logger

	mu          sync.Mutex
	initialized bool
	terminated  bool

	cfg Config

	monitors  *registry.Registry[string, *devicestate.Monitor]
	allocated *registry.Registry[string, *testdevice.Device]
	available *queue.Queue[bridge.Handle]

	prober    *prober.Prober
	altMon    *altmode.Monitor
	altStatus AltModeStatus
	listener  *Listener
	wireless  *wireless.Browser
	terminate sync.Once
	bgCtx     context.Context
	bgCancel  context.CancelFunc
}

// New constructs a Manager. br and run are the bridge and command-runner
// capabilities; construction does not contact either until Init.
func New(br bridge.Bridge, run runner.Runner, logger log.Logger) *Manager {
	if logger == nil {
		logger = log.NoopLogger{}
	}
	bgCtx, bgCancel := context.WithCancel(context.Background())
	return &Manager{
		br:        br,
		run:       run,
		logger:    logger,
		monitors:  registry.New[string, *devicestate.Monitor](),
		allocated: registry.New[string, *testdevice.Device](),
		available: queue.New[bridge.Handle](),
		wireless:  wireless.NewBrowser(wireless.BrowserConfig{}),
		bgCtx:     bgCtx,
		bgCancel:  bgCancel,
	}
}

// Init prepares the pool: seeds placeholders, probes alt-mode support,
// registers the bridge listener, and starts the bridge and (if available)
// the alt-mode monitor. Init must be called exactly once before any other
// method.
func (m *Manager) Init(ctx context.Context, cfg Config) error {
	m.mu.Lock()
	if m.initialized {
		m.mu.Unlock()
		return ErrAlreadyInitialized
	}
	m.initialized = true
	if cfg.GlobalFilter == nil {
		cfg.GlobalFilter = filter.MatchesAny
	}
	m.cfg = cfg
	m.mu.Unlock()

	for i := 0; i < cfg.NumEmulators; i++ {
		h := bridge.Handle{
			Serial: bridge.EmulatorPlaceholderSerial(i),
			State:  devicestate.Online,
			Kind:   bridge.KindEmulatorPlaceholder,
		}
		m.monitorFor(h.Serial, h.State)
		m.available.Add(h)
	}
	for i := 0; i < cfg.NumNullDevices; i++ {
		h := bridge.Handle{
			Serial: bridge.NullPlaceholderSerial(i),
			State:  devicestate.Online,
			Kind:   bridge.KindNullPlaceholder,
		}
		m.monitorFor(h.Serial, h.State)
		m.available.Add(h)
	}

	altStatus := m.probeAltModeSupport(ctx)
	m.mu.Lock()
	m.altStatus = altStatus
	m.mu.Unlock()

	m.prober = prober.New(cfg.GlobalFilter, cfg.Properties, m.admitDevice)

	m.listener = &Listener{manager: m}
	m.br.AddListener(m.listener)

	// ctx bounds only this synchronous handshake. The bridge poll and
	// alt-mode monitor loops run for the manager's lifetime and must not
	// die just because a caller's Init-scoped context is later cancelled;
	// they get the manager's own background context, cancelled by
	// Terminate.
	if err := m.br.Init(ctx, "devicepool", cfg.ToolPath); err != nil {
		return fmt.Errorf("allocator: bridge init: %w", err)
	}
	if err := m.br.Start(m.bgCtx); err != nil {
		return fmt.Errorf("allocator: bridge start: %w", err)
	}

	if altStatus != AltModeUnavailable {
		m.altMon = altmode.New(m.run, cfg.ToolPath, m.allocatedTracked)
		m.altMon.Start(m.bgCtx)
	}

	if altStatus == AltModeAvailableLegacy {
		m.logger.Log(log.Event{Kind: log.KindAltModeLegacyTool})
	}
	m.logger.Log(log.Event{Kind: log.KindInit, Detail: map[string]string{"alt_mode": altStatus.String()}})
	return nil
}

// AltModeStatus returns the outcome of Init's alt-mode support probe.
// Meaningless before Init has returned.
func (m *Manager) AltModeStatus() AltModeStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.altStatus
}

// probeAltModeSupport runs `<tool> help` once at init. A clean success is
// AltModeAvailable; a usage banner on stderr (an old tool version that
// nonetheless understands the flag) is AltModeAvailableLegacy — alt-mode is
// still started, but the caller is warned the tool version is unconfirmed.
// Any other failure is AltModeUnavailable.
func (m *Manager) probeAltModeSupport(ctx context.Context) AltModeStatus {
	result, err := m.run.Run(ctx, OperationTimeout, m.cfg.ToolPath, "help")
	if err != nil {
		return AltModeUnavailable
	}
	if result.Status == 0 {
		return AltModeAvailable
	}
	if containsUsageBanner(result.Stderr) {
		return AltModeAvailableLegacy
	}
	return AltModeUnavailable
}

func containsUsageBanner(stderr string) bool {
	lower := strings.ToLower(stderr)
	return strings.Contains(lower, "usage")
}

// monitorFor returns the per-device monitor for serial, creating one in
// the given initial state if this is the first time the serial has been
// seen.
func (m *Manager) monitorFor(serial string, initial devicestate.State) *devicestate.Monitor {
	if mon, ok := m.monitors.Get(serial); ok {
		return mon
	}
	mon := devicestate.NewMonitor(initial)
	if err := m.monitors.Add(serial, mon); err != nil {
		if existing, ok := m.monitors.Get(serial); ok {
			return existing
		}
	}
	return mon
}

// admitDevice is the prober's admit callback: it inserts a newly-stable
// device into the available queue.
func (m *Manager) admitDevice(h bridge.Handle) {
	m.available.Add(h)
	m.logger.Log(log.Event{Kind: log.KindProbeAdmit, Serial: h.Serial})
}

func (m *Manager) checkInitialized() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return ErrNotInitialized
	}
	return nil
}

// Allocate blocks until a device matching filt is available, or ctx is
// done. A zero timeout blocks indefinitely; a positive timeout limits the
// wait. Returns (nil, nil) — not an error — on timeout or cancellation.
func (m *Manager) Allocate(ctx context.Context, timeout time.Duration, filt filter.Filter) (*testdevice.Device, error) {
	if err := m.checkInitialized(); err != nil {
		return nil, err
	}
	if filt == nil {
		filt = filter.MatchesAny
	}

	pred := func(h bridge.Handle) bool {
		return filt(ctx, h, m.cfg.Properties)
	}

	var (
		handle bridge.Handle
		found  bool
		err    error
	)
	if timeout <= 0 {
		handle, err = m.available.Take(ctx, pred)
		found = err == nil
	} else {
		handle, found, err = m.available.Poll(ctx, pred, timeout)
	}

	if err != nil {
		m.logger.Log(log.Event{Kind: log.KindAllocateTimeout})
		return nil, nil
	}
	if !found {
		m.logger.Log(log.Event{Kind: log.KindAllocateTimeout})
		return nil, nil
	}

	monitor := m.monitorFor(handle.Serial, handle.State)
	device := testdevice.New(handle, monitor, m)
	device.SetSessionID(uuid.NewString())
	m.logAltModeTransitions(handle.Serial, monitor)

	if m.cfg.LogDir != "" {
		path := filepath.Join(m.cfg.LogDir, handle.Serial+".clog")
		if err := device.StartLogCapture(path); err != nil {
			m.logger.Log(log.Event{Kind: log.KindAllocate, Serial: handle.Serial, Err: err.Error()})
		}
	}

	if err := m.allocated.Add(handle.Serial, device); err != nil {
		// Already allocated (e.g. a stub pre-registered by
		// connectToTcpDevice) — should not happen for a device that
		// just came out of the available queue.
		return nil, fmt.Errorf("allocator: %s already allocated: %w", handle.Serial, err)
	}

	m.logger.Log(log.Event{Kind: log.KindAllocate, Serial: handle.Serial, SessionID: device.SessionID()})
	return device, nil
}

// Free returns device to the pool (or discards it) according to
// postState. Freeing a device whose serial is not in the allocated set is
// tolerated: it is logged as an anomaly and otherwise a no-op.
func (m *Manager) Free(device *testdevice.Device, postState FreeState) error {
	if err := m.checkInitialized(); err != nil {
		return err
	}

	serial := device.Serial()
	device.StopLogCapture()

	removed, err := m.allocated.Remove(serial)
	if err != nil {
		m.logger.Log(log.Event{Kind: log.KindFreeUnallocated, Serial: serial})
		return nil
	}

	switch postState {
	case FreeAvailable, FreeUnresponsive:
		m.available.Add(removed.Handle())
	case FreeUnavailable, FreeIgnore:
		// device is dropped; nothing to re-add
	}

	m.logger.Log(log.Event{Kind: log.KindFree, Serial: serial, SessionID: removed.SessionID()})
	return nil
}

// allocatedTracked adapts the allocated registry to altmode.Tracked for the
// alt-mode monitor's reconciliation cycle.
func (m *Manager) allocatedTracked() []altmode.Tracked {
	devices := m.allocated.All()
	out := make([]altmode.Tracked, 0, len(devices))
	for _, d := range devices {
		out = append(out, d)
	}
	return out
}

// MarkUnavailable implements testdevice.ManagerHandle.
func (m *Manager) MarkUnavailable(serial string) {
	if mon, ok := m.monitors.Get(serial); ok {
		mon.SetState(devicestate.NotAvailable)
	}
}

// RequestFree implements testdevice.ManagerHandle.
func (m *Manager) RequestFree(serial string) {
	if device, ok := m.allocated.Get(serial); ok {
		m.Free(device, FreeIgnore)
	}
}

// Terminate unregisters the listener, stops the bridge, and cancels the
// alt-mode monitor. Idempotent: a second call has no further effect.
func (m *Manager) Terminate(ctx context.Context) error {
	if err := m.checkInitialized(); err != nil {
		return err
	}

	m.terminate.Do(func() {
		m.br.RemoveListener(m.listener)
		m.br.Terminate(ctx)
		if m.altMon != nil {
			m.altMon.Stop()
		}
		m.bgCancel()
		m.mu.Lock()
		m.terminated = true
		m.mu.Unlock()
		m.logger.Log(log.Event{Kind: log.KindTerminate})
	})
	return nil
}

// TerminateHard poisons every currently-allocated device with an abort
// recovery strategy, disconnects the bridge abruptly, then calls
// Terminate.
func (m *Manager) TerminateHard(ctx context.Context) error {
	if err := m.checkInitialized(); err != nil {
		return err
	}

	for _, device := range m.allocated.All() {
		device.SetRecoveryStrategy(testdevice.AbortStrategy{})
	}
	m.br.DisconnectBridge()
	return m.Terminate(ctx)
}

// AddAltModeListener registers l to be notified of alt-mode transitions.
// The alt-mode poll only runs while at least one listener is registered
// (see altmode.Monitor); a manager with none installed never invokes the
// external list-alt-mode-devices command.
func (m *Manager) AddAltModeListener(l altmode.Listener) {
	if m.altMon != nil {
		m.altMon.AddListener(l)
	}
}

// SetWirelessBrowser overrides the mDNS browser reconnectDeviceToTcp falls
// back to when the bridge tool reports no address. Mainly for tests, which
// inject a browser backed by mock connections.
func (m *Manager) SetWirelessBrowser(b *wireless.Browser) {
	m.wireless = b
}

// RemoveAltModeListener unregisters l.
func (m *Manager) RemoveAltModeListener(l altmode.Listener) {
	if m.altMon != nil {
		m.altMon.RemoveListener(l)
	}
}

// logAltModeTransitions wires device-local alt-mode enter/exit logging
// into monitor, independent of whether any consumer alt-mode listener is
// registered.
func (m *Manager) logAltModeTransitions(serial string, monitor *devicestate.Monitor) {
	monitor.OnChange(func(old, new devicestate.State) {
		switch {
		case new == devicestate.Fastboot && old != devicestate.Fastboot:
			m.logger.Log(log.Event{Kind: log.KindAltModeEnter, Serial: serial})
		case old == devicestate.Fastboot && new != devicestate.Fastboot:
			m.logger.Log(log.Event{Kind: log.KindAltModeExit, Serial: serial})
		}
	})
}

var _ testdevice.ManagerHandle = (*Manager)(nil)
