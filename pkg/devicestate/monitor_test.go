package devicestate

import (
	"sync"
	"testing"
	"time"
)

func TestMonitorInitialState(t *testing.T) {
	m := NewMonitor(Online)
	if m.State() != Online {
		t.Errorf("State() = %v, want Online", m.State())
	}
}

func TestMonitorChangedClosesOnSetState(t *testing.T) {
	m := NewMonitor(Online)
	ch := m.Changed()

	select {
	case <-ch:
		t.Fatal("Changed() channel closed before any SetState")
	default:
	}

	m.SetState(Offline)

	select {
	case <-ch:
	default:
		t.Fatal("Changed() channel did not close after SetState")
	}
}

func TestMonitorSetState(t *testing.T) {
	m := NewMonitor(Online)
	m.SetState(Fastboot)
	if m.State() != Fastboot {
		t.Errorf("State() = %v, want Fastboot", m.State())
	}
}

func TestMonitorOnChangeCallback(t *testing.T) {
	m := NewMonitor(Online)

	var mu sync.Mutex
	var oldSeen, newSeen State
	m.OnChange(func(old, new State) {
		mu.Lock()
		defer mu.Unlock()
		oldSeen, newSeen = old, new
	})

	m.SetState(Offline)

	mu.Lock()
	defer mu.Unlock()
	if oldSeen != Online || newSeen != Offline {
		t.Errorf("OnChange saw (%v, %v), want (Online, Offline)", oldSeen, newSeen)
	}
}

func TestWaitForNotAvailableStaysUp(t *testing.T) {
	m := NewMonitor(Online)

	admitted := m.WaitForNotAvailable(50 * time.Millisecond)
	if !admitted {
		t.Error("WaitForNotAvailable() = false, want true (device stayed online)")
	}
}

func TestWaitForNotAvailableAlreadyDown(t *testing.T) {
	m := NewMonitor(Offline)

	admitted := m.WaitForNotAvailable(50 * time.Millisecond)
	if admitted {
		t.Error("WaitForNotAvailable() = true, want false (device already unavailable)")
	}
}

func TestWaitForNotAvailableDropsDuringWindow(t *testing.T) {
	m := NewMonitor(Online)

	go func() {
		time.Sleep(10 * time.Millisecond)
		m.SetState(Offline)
	}()

	admitted := m.WaitForNotAvailable(200 * time.Millisecond)
	if admitted {
		t.Error("WaitForNotAvailable() = true, want false (device dropped mid-window)")
	}
}

func TestWaitForNotAvailableFastbootCountsAsAvailable(t *testing.T) {
	m := NewMonitor(Fastboot)

	admitted := m.WaitForNotAvailable(30 * time.Millisecond)
	if !admitted {
		t.Error("WaitForNotAvailable() = false, want true (Fastboot is available)")
	}
}
