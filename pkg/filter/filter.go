package filter

import (
	"context"
	"time"

	"github.com/devicepool/devicepool/pkg/bridge"
)

// propertyTimeout bounds how long a property-dependent filter will wait for
// Properties to answer, so filter evaluation never blocks allocate() for
// long on a misbehaving device.
const propertyTimeout = 500 * time.Millisecond

// Properties answers device-property questions for filters that need to
// inspect an online device (product type, SDK level, battery). Backed in
// production by the test-device wrapper; the allocation core only sees this
// narrow capability.
type Properties interface {
	// Property returns the value of a named device property and whether
	// it was available. Unavailable (e.g. device offline, property not
	// reported) must return ok=false, not an error — a filter rejects on
	// missing data rather than failing the whole allocate() call.
	Property(ctx context.Context, serial, key string) (value string, ok bool)

	// BatteryLevel returns the device's battery percentage (0-100) and
	// whether it was available.
	BatteryLevel(ctx context.Context, serial string) (percent int, ok bool)
}

// Filter is a predicate over a device handle. Combinators below construct
// Filters recognized by the options enumerated in the allocation core's
// selection-filter contract.
type Filter func(ctx context.Context, h bridge.Handle, props Properties) bool

// MatchesAny is the sentinel filter that accepts every device.
func MatchesAny(ctx context.Context, h bridge.Handle, props Properties) bool {
	return true
}

// BySerial matches a device with exactly the given serial.
func BySerial(serial string) Filter {
	return func(ctx context.Context, h bridge.Handle, props Properties) bool {
		return h.Serial == serial
	}
}

// ExcludeSerial rejects a device with exactly the given serial.
func ExcludeSerial(serial string) Filter {
	return func(ctx context.Context, h bridge.Handle, props Properties) bool {
		return h.Serial != serial
	}
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, propertyTimeout)
}

// ByProductType matches devices whose "product-type" property equals want.
// Rejects if the property is unavailable.
func ByProductType(want string) Filter {
	return byProperty("product-type", want)
}

// ByProductVariant matches devices whose "product-variant" property equals want.
func ByProductVariant(want string) Filter {
	return byProperty("product-variant", want)
}

// BySDKLevel matches devices whose "sdk-level" property equals want.
func BySDKLevel(want string) Filter {
	return byProperty("sdk-level", want)
}

func byProperty(key, want string) Filter {
	return func(ctx context.Context, h bridge.Handle, props Properties) bool {
		if props == nil {
			return false
		}
		qctx, cancel := withTimeout(ctx)
		defer cancel()
		got, ok := props.Property(qctx, h.Serial, key)
		return ok && got == want
	}
}

// EmulatorOnly matches only emulator placeholders.
func EmulatorOnly(ctx context.Context, h bridge.Handle, props Properties) bool {
	return h.Kind == bridge.KindEmulatorPlaceholder
}

// RealOnly matches only real (non-placeholder, non-stub) devices.
func RealOnly(ctx context.Context, h bridge.Handle, props Properties) bool {
	return h.Kind == bridge.KindReal
}

// NullOnly matches only no-device placeholders.
func NullOnly(ctx context.Context, h bridge.Handle, props Properties) bool {
	return h.Kind == bridge.KindNullPlaceholder
}

// MinBattery matches devices reporting a battery level >= percent. Rejects
// if the level is unavailable.
func MinBattery(percent int) Filter {
	return func(ctx context.Context, h bridge.Handle, props Properties) bool {
		if props == nil {
			return false
		}
		qctx, cancel := withTimeout(ctx)
		defer cancel()
		level, ok := props.BatteryLevel(qctx, h.Serial)
		return ok && level >= percent
	}
}

// All combines filters with logical AND. An empty list behaves like
// MatchesAny.
func All(filters ...Filter) Filter {
	return func(ctx context.Context, h bridge.Handle, props Properties) bool {
		for _, f := range filters {
			if !f(ctx, h, props) {
				return false
			}
		}
		return true
	}
}
