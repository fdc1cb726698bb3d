package bridge

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/devicepool/devicepool/pkg/devicestate"
	"github.com/devicepool/devicepool/pkg/runner"
)

const (
	// defaultOperationTimeout bounds every bridge command invocation.
	defaultOperationTimeout = 30 * time.Second

	// pollInterval is how often ExecBridge re-lists devices to
	// synthesize connect/disconnect/change callbacks.
	pollInterval = 2 * time.Second
)

// ExecBridge implements Bridge by shelling out to an external debug-bridge
// tool (e.g. `adb`) via a runner.Runner, and polling `<tool> devices -l` on
// an internal loop to synthesize connect/disconnect/change callbacks.
//
// The real bridge protocol this is modeled on delivers native async
// callbacks; this implementation approximates that contract with polling
// since the external tool exposes no push interface, while preserving the
// serial callback-delivery guarantee listeners depend on.
type ExecBridge struct {
	run        runner.Runner
	binaryPath string

	mu        sync.Mutex
	listeners []Listener
	known     map[string]Handle

	cancel context.CancelFunc
	done   chan struct{}
}

// NewExecBridge creates a bridge that will shell out to binaryPath.
func NewExecBridge(run runner.Runner, binaryPath string) *ExecBridge {
	return &ExecBridge{
		run:        run,
		binaryPath: binaryPath,
		known:      make(map[string]Handle),
	}
}

func (b *ExecBridge) Init(ctx context.Context, clientSupport string, binaryPath string) error {
	if binaryPath != "" {
		b.binaryPath = binaryPath
	}
	_, err := b.run.Run(ctx, defaultOperationTimeout, b.binaryPath, "start-server")
	return err
}

func (b *ExecBridge) AddListener(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

func (b *ExecBridge) RemoveListener(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, existing := range b.listeners {
		if existing == l {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			return
		}
	}
}

func (b *ExecBridge) Start(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})

	devices, err := b.GetDevices(loopCtx)
	if err != nil {
		cancel()
		return err
	}
	b.reconcile(devices)

	go b.pollLoop(loopCtx)
	return nil
}

func (b *ExecBridge) pollLoop(ctx context.Context) {
	defer close(b.done)
	for {
		if err := b.run.Sleep(ctx, pollInterval); err != nil {
			return
		}
		devices, err := b.GetDevices(ctx)
		if err != nil {
			continue
		}
		b.reconcile(devices)
	}
}

// reconcile diffs devices against the previously known set and fires
// connected/disconnected/changed callbacks, snapshotting the listener list
// first so a callback cannot deadlock against AddListener/RemoveListener.
func (b *ExecBridge) reconcile(devices []Handle) {
	b.mu.Lock()
	listeners := append([]Listener(nil), b.listeners...)

	seen := make(map[string]bool, len(devices))
	var connected, changed []Handle
	for _, d := range devices {
		seen[d.Serial] = true
		prior, existed := b.known[d.Serial]
		b.known[d.Serial] = d
		if !existed {
			connected = append(connected, d)
		} else if prior.State != d.State {
			changed = append(changed, d)
		}
	}

	var disconnected []Handle
	for serial, prior := range b.known {
		if !seen[serial] {
			disconnected = append(disconnected, prior)
			delete(b.known, serial)
		}
	}
	b.mu.Unlock()

	for _, d := range connected {
		for _, l := range listeners {
			l.DeviceConnected(d)
		}
	}
	for _, d := range changed {
		for _, l := range listeners {
			l.DeviceChanged(d, StateChanged)
		}
	}
	for _, d := range disconnected {
		for _, l := range listeners {
			l.DeviceDisconnected(d)
		}
	}
}

func (b *ExecBridge) GetDevices(ctx context.Context) ([]Handle, error) {
	result, err := b.run.Run(ctx, defaultOperationTimeout, b.binaryPath, "devices", "-l")
	if err != nil {
		return nil, fmt.Errorf("bridge: get devices: %w", err)
	}
	return parseDevicesOutput(result.Stdout), nil
}

// parseDevicesOutput parses lines like:
//
//	SERIAL_A        device product:foo
//	SERIAL_B        offline
//	SERIAL_C        recovery
//
// into Handle values. Malformed lines are skipped.
func parseDevicesOutput(output string) []Handle {
	var handles []Handle
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		serial := fields[0]
		if serial == "List" || !ValidSerial(serial) {
			continue
		}

		var state devicestate.State
		switch fields[1] {
		case "device":
			state = devicestate.Online
		case "offline":
			state = devicestate.Offline
		case "recovery":
			state = devicestate.Recovery
		case "fastboot":
			state = devicestate.Fastboot
		default:
			state = devicestate.NotAvailable
		}

		handles = append(handles, Handle{Serial: serial, State: state, Kind: KindReal})
	}
	return handles
}

func (b *ExecBridge) Terminate(ctx context.Context) error {
	if b.cancel != nil {
		b.cancel()
		<-b.done
	}
	_, err := b.run.Run(ctx, defaultOperationTimeout, b.binaryPath, "kill-server")
	return err
}

func (b *ExecBridge) DisconnectBridge() {
	if b.cancel != nil {
		b.cancel()
	}
}

var _ Bridge = (*ExecBridge)(nil)
