package bridge

import (
	"context"
	"sync"
)

// Fake is a hand-written test double for Bridge. Tests drive it directly
// via Connect/Disconnect/Change instead of going through an external tool.
type Fake struct {
	mu        sync.Mutex
	listeners []Listener
	devices   map[string]Handle

	InitErr      error
	StartErr     error
	TerminateErr error

	Terminated   bool
	Disconnected bool

	// StartCtx records the context Start was called with, so tests can
	// check it outlives a caller-scoped Init context.
	StartCtx context.Context
}

// NewFake creates an empty Fake bridge.
func NewFake() *Fake {
	return &Fake{devices: make(map[string]Handle)}
}

func (f *Fake) Init(ctx context.Context, clientSupport string, binaryPath string) error {
	return f.InitErr
}

func (f *Fake) AddListener(l Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, l)
}

func (f *Fake) RemoveListener(l Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.listeners {
		if existing == l {
			f.listeners = append(f.listeners[:i], f.listeners[i+1:]...)
			return
		}
	}
}

func (f *Fake) Start(ctx context.Context) error {
	f.StartCtx = ctx
	return f.StartErr
}

func (f *Fake) GetDevices(ctx context.Context) ([]Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Handle, 0, len(f.devices))
	for _, h := range f.devices {
		out = append(out, h)
	}
	return out, nil
}

func (f *Fake) Terminate(ctx context.Context) error {
	f.Terminated = true
	return f.TerminateErr
}

func (f *Fake) DisconnectBridge() {
	f.Disconnected = true
}

// Connect simulates the bridge discovering a new device and notifies every
// registered listener.
func (f *Fake) Connect(h Handle) {
	f.mu.Lock()
	f.devices[h.Serial] = h
	listeners := append([]Listener(nil), f.listeners...)
	f.mu.Unlock()

	for _, l := range listeners {
		l.DeviceConnected(h)
	}
}

// Change simulates the bridge reporting a state change for serial.
func (f *Fake) Change(h Handle) {
	f.mu.Lock()
	f.devices[h.Serial] = h
	listeners := append([]Listener(nil), f.listeners...)
	f.mu.Unlock()

	for _, l := range listeners {
		l.DeviceChanged(h, StateChanged)
	}
}

// Disconnect simulates the bridge losing a device.
func (f *Fake) Disconnect(serial string) {
	f.mu.Lock()
	h, existed := f.devices[serial]
	delete(f.devices, serial)
	listeners := append([]Listener(nil), f.listeners...)
	f.mu.Unlock()

	if !existed {
		return
	}
	for _, l := range listeners {
		l.DeviceDisconnected(h)
	}
}

var _ Bridge = (*Fake)(nil)
