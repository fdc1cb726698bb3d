package allocator

import (
	"context"
	"io"

	"github.com/devicepool/devicepool/pkg/bridge"
	"github.com/devicepool/devicepool/pkg/log"
	"github.com/devicepool/devicepool/pkg/testdevice"
)

// GetAllocatedDevices returns a snapshot of every currently-allocated
// test-device.
func (m *Manager) GetAllocatedDevices() ([]*testdevice.Device, error) {
	if err := m.checkInitialized(); err != nil {
		return nil, err
	}
	devices := m.allocated.All()
	out := make([]*testdevice.Device, 0, len(devices))
	for _, d := range devices {
		out = append(out, d)
	}
	return out, nil
}

// GetAvailableDevices returns a snapshot of available device handles,
// excluding emulator and no-device placeholders.
func (m *Manager) GetAvailableDevices() ([]bridge.Handle, error) {
	if err := m.checkInitialized(); err != nil {
		return nil, err
	}
	var out []bridge.Handle
	for _, h := range m.available.Iterate() {
		if h.Kind == bridge.KindEmulatorPlaceholder || h.Kind == bridge.KindNullPlaceholder {
			continue
		}
		out = append(out, h)
	}
	return out, nil
}

// GetUnavailableDevices returns devices currently visible to the bridge
// that are neither available nor allocated.
func (m *Manager) GetUnavailableDevices(ctx context.Context) ([]bridge.Handle, error) {
	if err := m.checkInitialized(); err != nil {
		return nil, err
	}

	visible, err := m.br.GetDevices(ctx)
	if err != nil {
		return nil, err
	}

	known := make(map[string]struct{})
	for _, h := range m.available.Iterate() {
		known[h.Serial] = struct{}{}
	}
	for _, serial := range m.allocated.Keys() {
		known[serial] = struct{}{}
	}

	var out []bridge.Handle
	for _, h := range visible {
		if _, ok := known[h.Serial]; !ok {
			out = append(out, h)
		}
	}
	return out, nil
}

// ReadDeviceLog replays a per-device capture file written under Config.LogDir
// (see testdevice.Device.StartLogCapture), returning every event matching
// filter. Meant for post-mortem inspection of a past allocation after the
// device has already been freed.
func ReadDeviceLog(path string, filter log.Filter) ([]log.Event, error) {
	r, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var events []log.Event
	for {
		event, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return events, err
		}
		events = append(events, event)
	}
	return events, nil
}
