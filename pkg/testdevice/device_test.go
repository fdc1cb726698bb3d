package testdevice

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/devicepool/devicepool/pkg/bridge"
	"github.com/devicepool/devicepool/pkg/devicestate"
	"github.com/devicepool/devicepool/pkg/log"
)

type fakeManager struct {
	unavailable []string
	freed       []string
}

func (f *fakeManager) MarkUnavailable(serial string) { f.unavailable = append(f.unavailable, serial) }
func (f *fakeManager) RequestFree(serial string)     { f.freed = append(f.freed, serial) }

func newTestHandle(serial string) bridge.Handle {
	return bridge.Handle{Serial: serial, State: devicestate.Online, Kind: bridge.KindReal}
}

func TestSetRunnerNameAssignsProvidedValue(t *testing.T) {
	d := New(newTestHandle("SERIAL_A"), devicestate.NewMonitor(devicestate.Online), &fakeManager{})

	d.SetRunnerName("runner-7")

	if got := d.RunnerName(); got != "runner-7" {
		t.Errorf("RunnerName() = %q, want %q (must not be hardcoded to the literal \"runner\")", got, "runner-7")
	}
}

func TestFastbootEnabledToggle(t *testing.T) {
	d := New(newTestHandle("SERIAL_A"), devicestate.NewMonitor(devicestate.Online), &fakeManager{})

	if d.FastbootEnabled() {
		t.Error("FastbootEnabled() default should be false")
	}
	d.SetFastbootEnabled(true)
	if !d.FastbootEnabled() {
		t.Error("FastbootEnabled() should be true after SetFastbootEnabled(true)")
	}
}

func TestSetHandleReplacesWithoutReprobing(t *testing.T) {
	d := New(newTestHandle("SERIAL_A"), devicestate.NewMonitor(devicestate.Online), &fakeManager{})

	newHandle := bridge.Handle{Serial: "SERIAL_A", State: devicestate.Offline, Kind: bridge.KindReal}
	d.SetHandle(newHandle)

	if d.Handle() != newHandle {
		t.Errorf("Handle() = %+v, want %+v", d.Handle(), newHandle)
	}
}

func TestAbortRecoveryStrategy(t *testing.T) {
	d := New(newTestHandle("SERIAL_D"), devicestate.NewMonitor(devicestate.Online), &fakeManager{})
	d.SetRecoveryStrategy(AbortStrategy{})

	err := d.RecoverDevice(context.Background())
	if err != ErrAbortedSession {
		t.Errorf("RecoverDevice() error = %v, want ErrAbortedSession", err)
	}
}

func TestWaitForOnlineRecoverySucceeds(t *testing.T) {
	monitor := devicestate.NewMonitor(devicestate.Offline)
	d := New(newTestHandle("SERIAL_A"), monitor, &fakeManager{})
	d.SetRecoveryStrategy(WaitForOnlineStrategy{Monitor: monitor, Timeout: time.Second})

	go func() {
		time.Sleep(20 * time.Millisecond)
		monitor.SetState(devicestate.Online)
	}()

	if err := d.RecoverDevice(context.Background()); err != nil {
		t.Fatalf("RecoverDevice() error = %v", err)
	}
}

func TestWaitForOnlineRecoveryTimesOut(t *testing.T) {
	monitor := devicestate.NewMonitor(devicestate.Offline)
	strategy := WaitForOnlineStrategy{Monitor: monitor, Timeout: 30 * time.Millisecond}

	if err := strategy.Recover(context.Background()); err == nil {
		t.Error("Recover() should have timed out")
	}
}

func TestLogCaptureLifecycle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "SERIAL_A.clog")

	d := New(newTestHandle("SERIAL_A"), devicestate.NewMonitor(devicestate.Online), &fakeManager{})

	if d.LogCaptureActive() {
		t.Fatal("LogCaptureActive() should be false before StartLogCapture")
	}
	if err := d.StartLogCapture(path); err != nil {
		t.Fatalf("StartLogCapture() error = %v", err)
	}
	if !d.LogCaptureActive() {
		t.Fatal("LogCaptureActive() should be true after StartLogCapture")
	}

	d.Log(log.Event{Kind: log.KindAllocate, Serial: "SERIAL_A"})

	if err := d.StopLogCapture(); err != nil {
		t.Fatalf("StopLogCapture() error = %v", err)
	}
	if d.LogCaptureActive() {
		t.Error("LogCaptureActive() should be false after StopLogCapture")
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected log file at %s: %v", path, err)
	}
}

func TestStopLogCaptureWithoutStartIsNoop(t *testing.T) {
	d := New(newTestHandle("SERIAL_A"), devicestate.NewMonitor(devicestate.Online), &fakeManager{})
	if err := d.StopLogCapture(); err != nil {
		t.Errorf("StopLogCapture() error = %v, want nil", err)
	}
}
