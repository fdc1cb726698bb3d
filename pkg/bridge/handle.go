package bridge

import (
	"strconv"

	"github.com/devicepool/devicepool/pkg/devicestate"
)

// Kind classifies a device handle's origin.
type Kind uint8

const (
	// KindReal is a physically attached (or emulated-but-bridge-reported)
	// device.
	KindReal Kind = iota
	// KindEmulatorPlaceholder is a synthetic slot reserved for an
	// emulator that has not been spawned yet.
	KindEmulatorPlaceholder
	// KindNullPlaceholder is a synthetic slot for tests that do not need
	// a device at all.
	KindNullPlaceholder
	// KindRemoteStub is a provisional handle created while a
	// secondary-transport (TCP) connect attempt is in flight.
	KindRemoteStub
)

func (k Kind) String() string {
	switch k {
	case KindReal:
		return "REAL"
	case KindEmulatorPlaceholder:
		return "EMULATOR_PLACEHOLDER"
	case KindNullPlaceholder:
		return "NULL_PLACEHOLDER"
	case KindRemoteStub:
		return "REMOTE_STUB"
	default:
		return "UNKNOWN"
	}
}

// Handle is an opaque device identifier: a stable serial, a connectivity
// state, and a kind. It carries no behavior of its own — shell execution
// and property queries belong to the test-device wrapper the manager
// constructs around a Handle.
type Handle struct {
	Serial string
	State  devicestate.State
	Kind   Kind
}

// ValidSerial reports whether s is a well-formed device serial: length > 1
// and no '?' character. Bridge-reported serials failing this check are
// ignored at connect time.
func ValidSerial(s string) bool {
	if len(s) <= 1 {
		return false
	}
	for _, r := range s {
		if r == '?' {
			return false
		}
	}
	return true
}

// EmulatorPlaceholderSerial returns the deterministic serial for the nth
// (0-indexed) emulator placeholder slot: emulator-5554, emulator-5556, ...
func EmulatorPlaceholderSerial(n int) string {
	return "emulator-" + strconv.Itoa(5554+2*n)
}

// NullPlaceholderSerial returns the deterministic serial for the nth
// (0-indexed) no-device placeholder slot.
func NullPlaceholderSerial(n int) string {
	return "null-device-" + strconv.Itoa(n)
}
