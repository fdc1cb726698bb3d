package testdevice

import (
	"context"
	"errors"
	"time"

	"github.com/devicepool/devicepool/pkg/devicestate"
)

// RecoveryStrategy is invoked when a test-device's underlying connection is
// deemed broken. It either restores the device or returns a terminal
// error.
type RecoveryStrategy interface {
	Recover(ctx context.Context) error
}

// ErrAbortedSession is surfaced by the abort recovery strategy installed by
// terminateHard.
var ErrAbortedSession = errors.New("aborted test session")

// AbortStrategy unconditionally fails recovery. Installed on every
// allocated device by terminateHard so any later recovery attempt poisons
// the session immediately.
type AbortStrategy struct{}

func (AbortStrategy) Recover(ctx context.Context) error {
	return ErrAbortedSession
}

// WaitForOnlineStrategy recovers by waiting for the device's state monitor
// to report Online, up to a timeout.
type WaitForOnlineStrategy struct {
	Monitor *devicestate.Monitor
	Timeout time.Duration
}

func (s WaitForOnlineStrategy) Recover(ctx context.Context) error {
	deadline := time.NewTimer(s.Timeout)
	defer deadline.Stop()

	for {
		if s.Monitor.State() == devicestate.Online {
			return nil
		}
		ch := s.Monitor.Changed()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return errors.New("timed out waiting for device to come online")
		case <-ch:
		}
	}
}

var _ RecoveryStrategy = AbortStrategy{}
var _ RecoveryStrategy = WaitForOnlineStrategy{}
