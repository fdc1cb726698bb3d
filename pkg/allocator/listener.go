package allocator

import (
	"context"

	"github.com/devicepool/devicepool/pkg/bridge"
	"github.com/devicepool/devicepool/pkg/devicestate"
	"github.com/devicepool/devicepool/pkg/log"
)

// Listener implements bridge.Listener (C8): it classifies connect,
// disconnect, and change callbacks and routes them to the monitor
// registry, the readiness prober, and the allocated set.
//
// The bridge's contract delivers callbacks serially on a single internal
// goroutine, so Listener itself holds no lock beyond what the structures
// it touches already provide.
type Listener struct {
	manager *Manager
}

var _ bridge.Listener = (*Listener)(nil)

func (l *Listener) DeviceConnected(h bridge.Handle) {
	m := l.manager

	if device, ok := m.allocated.Get(h.Serial); ok {
		device.SetHandle(h)
		m.monitorFor(h.Serial, h.State).SetState(h.State)
		m.logger.Log(log.Event{Kind: log.KindBridgeConnected, Serial: h.Serial})
		return
	}

	if !bridge.ValidSerial(h.Serial) {
		return
	}

	if h.State == devicestate.Online {
		monitor := m.monitorFor(h.Serial, h.State)
		m.prober.HandleOnline(context.Background(), h, monitor)
		m.logger.Log(log.Event{Kind: log.KindBridgeConnected, Serial: h.Serial})
		return
	}

	if m.prober.IsChecking(h.Serial) {
		m.monitorFor(h.Serial, h.State).SetState(h.State)
	}
}

func (l *Listener) DeviceChanged(h bridge.Handle, mask bridge.ChangeMask) {
	if !mask.Has(bridge.StateChanged) {
		return
	}
	m := l.manager

	if device, ok := m.allocated.Get(h.Serial); ok {
		device.Monitor().SetState(h.State)
		m.logger.Log(log.Event{Kind: log.KindBridgeChanged, Serial: h.Serial})
		return
	}

	if m.prober.IsChecking(h.Serial) {
		m.monitorFor(h.Serial, h.State).SetState(h.State)
		return
	}

	if h.State == devicestate.Online && !m.availableHasSerial(h.Serial) {
		monitor := m.monitorFor(h.Serial, h.State)
		m.prober.HandleOnline(context.Background(), h, monitor)
	}
}

func (l *Listener) DeviceDisconnected(h bridge.Handle) {
	m := l.manager

	if _, removed := m.available.Remove(func(x bridge.Handle) bool { return x.Serial == h.Serial }); removed {
		m.logger.Log(log.Event{Kind: log.KindBridgeDisconnected, Serial: h.Serial})
	}

	if device, ok := m.allocated.Get(h.Serial); ok {
		device.Monitor().SetState(devicestate.NotAvailable)
		return
	}

	if m.prober.IsChecking(h.Serial) {
		if mon, ok := m.monitors.Get(h.Serial); ok {
			mon.SetState(devicestate.NotAvailable)
		}
	}
}

func (m *Manager) availableHasSerial(serial string) bool {
	for _, h := range m.available.Iterate() {
		if h.Serial == serial {
			return true
		}
	}
	return false
}
