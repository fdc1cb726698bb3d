package log

import (
	"log/slog"
	"time"
)

// Event represents a pool lifecycle event captured by the allocation manager
// or one of its background components. CBOR encoding uses integer keys for
// compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// Kind classifies the event.
	Kind Kind `cbor:"2,keyasint"`

	// Serial is the device serial the event concerns, if any.
	Serial string `cbor:"3,keyasint,omitempty"`

	// SessionID is the allocation session ID (set on Allocate/Free events).
	SessionID string `cbor:"4,keyasint,omitempty"`

	// Detail holds kind-specific key/value context (e.g. postState, filter
	// description, retry count). Keep small; this is logged, not stored.
	Detail map[string]string `cbor:"5,keyasint,omitempty"`

	// Err is set when the event reports a failure. Stored as a string since
	// error values don't round-trip through CBOR.
	Err string `cbor:"6,keyasint,omitempty"`
}

// Kind classifies a pool Event.
type Kind uint8

const (
	// KindAllocate is logged when a consumer successfully allocates a device.
	KindAllocate Kind = iota
	// KindAllocateTimeout is logged when allocate returns with no device.
	KindAllocateTimeout
	// KindFree is logged when a consumer frees a device.
	KindFree
	// KindFreeUnallocated is logged when free is called for a serial not
	// present in the allocated map.
	KindFreeUnallocated
	// KindProbeAdmit is logged when the readiness prober admits a device.
	KindProbeAdmit
	// KindProbeDiscard names a readiness-probe discard: a device that
	// dropped offline during the stability window. Nothing in the allocator
	// emits it; the prober drops such devices without logging an event.
	KindProbeDiscard
	// KindAltModeEnter is logged when an allocated device enters alt-mode.
	KindAltModeEnter
	// KindAltModeExit is logged when an allocated device leaves alt-mode.
	KindAltModeExit
	// KindBridgeConnected is logged on a bridge "device connected" callback.
	KindBridgeConnected
	// KindBridgeDisconnected is logged on a bridge "device disconnected" callback.
	KindBridgeDisconnected
	// KindBridgeChanged is logged on a bridge "device changed" callback.
	KindBridgeChanged
	// KindInit is logged once, when the manager finishes initialization.
	KindInit
	// KindTerminate is logged once, by the first Terminate (or
	// TerminateHard) call; later calls log nothing.
	KindTerminate
	// KindAltModeLegacyTool is logged once during Init when the alt-mode
	// probe only found a usage banner on stderr: the bridge tool answers
	// to alt-mode commands but its version could not be confirmed.
	KindAltModeLegacyTool
)

// String returns the event kind name.
func (k Kind) String() string {
	switch k {
	case KindAllocate:
		return "ALLOCATE"
	case KindAllocateTimeout:
		return "ALLOCATE_TIMEOUT"
	case KindFree:
		return "FREE"
	case KindFreeUnallocated:
		return "FREE_UNALLOCATED"
	case KindProbeAdmit:
		return "PROBE_ADMIT"
	case KindProbeDiscard:
		return "PROBE_DISCARD"
	case KindAltModeEnter:
		return "ALT_MODE_ENTER"
	case KindAltModeExit:
		return "ALT_MODE_EXIT"
	case KindBridgeConnected:
		return "BRIDGE_CONNECTED"
	case KindBridgeDisconnected:
		return "BRIDGE_DISCONNECTED"
	case KindBridgeChanged:
		return "BRIDGE_CHANGED"
	case KindInit:
		return "INIT"
	case KindTerminate:
		return "TERMINATE"
	case KindAltModeLegacyTool:
		return "ALT_MODE_LEGACY_TOOL"
	default:
		return "UNKNOWN"
	}
}

// level returns the slog level an adapter should log the event at. Every
// event is debug-register chatter except the legacy-tool warning, which a
// caller should not have to opt into debug logging to see.
func (k Kind) level() slog.Level {
	if k == KindAltModeLegacyTool {
		return slog.LevelWarn
	}
	return slog.LevelDebug
}
