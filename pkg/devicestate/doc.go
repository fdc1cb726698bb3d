// Package devicestate defines the device connectivity state enum shared
// across the allocation pool, and a per-device Monitor that observes state
// transitions and exposes a "wait until no longer available" primitive used
// by the readiness prober's stability window.
package devicestate
