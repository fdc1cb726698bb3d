package allocator

import (
	"context"
	"strings"
	"time"

	"github.com/devicepool/devicepool/pkg/bridge"
	"github.com/devicepool/devicepool/pkg/devicestate"
	"github.com/devicepool/devicepool/pkg/log"
	"github.com/devicepool/devicepool/pkg/testdevice"
)

// WirelessDiscoveryTimeout bounds the mDNS fallback lookup in
// reconnectDeviceToTcp when the bridge tool itself reports no address.
const WirelessDiscoveryTimeout = 5 * time.Second

// ConnectToTcpDevice attempts to bring up a secondary-transport (TCP)
// connection to addrPort. A stub handle is pre-registered in the
// allocated set before the first connect attempt, so a bridge
// notification for that serial arriving later does not trigger a
// re-probe. Returns (nil, nil) — not an error — if every attempt fails.
func (m *Manager) ConnectToTcpDevice(ctx context.Context, addrPort string) (*testdevice.Device, error) {
	if err := m.checkInitialized(); err != nil {
		return nil, err
	}

	stub := bridge.Handle{Serial: addrPort, State: devicestate.Online, Kind: bridge.KindRemoteStub}
	monitor := m.monitorFor(addrPort, devicestate.Online)
	device := testdevice.New(stub, monitor, m)

	if err := m.allocated.Add(addrPort, device); err != nil {
		return nil, err
	}

	if !m.tryConnect(ctx, addrPort) {
		m.Free(device, FreeIgnore)
		return nil, nil
	}

	device.SetRecoveryStrategy(testdevice.WaitForOnlineStrategy{
		Monitor: monitor,
		Timeout: devicestate.DefaultRecoveryTimeout,
	})
	if err := device.RecoverDevice(ctx); err != nil {
		m.Free(device, FreeIgnore)
		return nil, nil
	}

	m.logger.Log(log.Event{Kind: log.KindAllocate, Serial: addrPort})
	return device, nil
}

func (m *Manager) tryConnect(ctx context.Context, addrPort string) bool {
	want := "connected to " + addrPort

	for attempt := 0; attempt < TCPConnectRetries; attempt++ {
		result, err := m.run.Run(ctx, OperationTimeout, m.cfg.ToolPath, "connect", addrPort)
		if err == nil && strings.HasPrefix(strings.TrimSpace(result.Stdout), want) {
			return true
		}

		if attempt < TCPConnectRetries-1 {
			if sleepErr := m.run.Sleep(ctx, TCPConnectDelay); sleepErr != nil {
				return false
			}
		}
	}
	return false
}

// ReconnectDeviceToTcp asks usbDevice to switch its transport to
// secondary, then delegates to ConnectToTcpDevice with the address it
// reports. If that fails, it attempts to recover usbDevice's original
// transport through its installed recovery strategy.
func (m *Manager) ReconnectDeviceToTcp(ctx context.Context, usbDevice *testdevice.Device) (*testdevice.Device, error) {
	if err := m.checkInitialized(); err != nil {
		return nil, err
	}

	result, err := m.run.Run(ctx, OperationTimeout, m.cfg.ToolPath, "-s", usbDevice.Serial(), "tcpip", "5555")
	addrPort := strings.TrimSpace(result.Stdout)
	if err != nil || addrPort == "" {
		if m.wireless != nil {
			discoveryCtx, cancel := context.WithTimeout(ctx, WirelessDiscoveryTimeout)
			svc, found := m.wireless.FindBySerial(discoveryCtx, usbDevice.Serial())
			cancel()
			if found {
				addrPort = svc.Addr()
			}
		}
		if addrPort == "" {
			usbDevice.RecoverDevice(ctx)
			return nil, nil
		}
	}

	device, connErr := m.ConnectToTcpDevice(ctx, addrPort)
	if connErr != nil {
		return nil, connErr
	}
	if device == nil {
		usbDevice.RecoverDevice(ctx)
		return nil, nil
	}
	return device, nil
}

// DisconnectFromTcpDevice asks tcpDevice to switch back to the primary
// transport, then frees it with FreeIgnore regardless of the switch
// outcome.
func (m *Manager) DisconnectFromTcpDevice(ctx context.Context, tcpDevice *testdevice.Device) error {
	if err := m.checkInitialized(); err != nil {
		return err
	}

	m.run.Run(ctx, OperationTimeout, m.cfg.ToolPath, "-s", tcpDevice.Serial(), "usb")
	return m.Free(tcpDevice, FreeIgnore)
}
