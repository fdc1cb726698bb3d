package bridge

import (
	"context"
	"sync"
	"testing"

	"github.com/devicepool/devicepool/pkg/devicestate"
)

type recordingListener struct {
	mu           sync.Mutex
	connected    []Handle
	disconnected []Handle
	changed      []Handle
}

func (r *recordingListener) DeviceConnected(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected = append(r.connected, h)
}

func (r *recordingListener) DeviceDisconnected(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnected = append(r.disconnected, h)
}

func (r *recordingListener) DeviceChanged(h Handle, mask ChangeMask) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changed = append(r.changed, h)
}

func TestFakeBridgeConnectNotifiesListeners(t *testing.T) {
	b := NewFake()
	l := &recordingListener{}
	b.AddListener(l)

	b.Connect(Handle{Serial: "SERIAL_A", State: devicestate.Online, Kind: KindReal})

	if len(l.connected) != 1 || l.connected[0].Serial != "SERIAL_A" {
		t.Errorf("connected = %v, want one handle for SERIAL_A", l.connected)
	}
}

func TestFakeBridgeDisconnectOnlyFiresForKnownDevice(t *testing.T) {
	b := NewFake()
	l := &recordingListener{}
	b.AddListener(l)

	b.Disconnect("SERIAL_UNKNOWN")
	if len(l.disconnected) != 0 {
		t.Error("Disconnect fired a callback for a device that was never connected")
	}

	b.Connect(Handle{Serial: "SERIAL_A", State: devicestate.Online})
	b.Disconnect("SERIAL_A")
	if len(l.disconnected) != 1 {
		t.Errorf("disconnected = %v, want one handle for SERIAL_A", l.disconnected)
	}
}

func TestFakeBridgeRemoveListenerStopsNotifications(t *testing.T) {
	b := NewFake()
	l := &recordingListener{}
	b.AddListener(l)
	b.RemoveListener(l)

	b.Connect(Handle{Serial: "SERIAL_A", State: devicestate.Online})
	if len(l.connected) != 0 {
		t.Error("listener was notified after being removed")
	}
}

func TestFakeBridgeGetDevicesSnapshot(t *testing.T) {
	b := NewFake()
	b.Connect(Handle{Serial: "SERIAL_A", State: devicestate.Online})
	b.Connect(Handle{Serial: "SERIAL_B", State: devicestate.Online})

	devices, err := b.GetDevices(context.Background())
	if err != nil {
		t.Fatalf("GetDevices() error = %v", err)
	}
	if len(devices) != 2 {
		t.Errorf("GetDevices() returned %d devices, want 2", len(devices))
	}
}
