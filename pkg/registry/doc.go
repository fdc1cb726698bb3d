// Package registry provides a generic, thread-safe keyed collection with
// add/remove callbacks.
//
// The allocation manager uses one registry per pool bucket it tracks
// concurrently: allocated devices, devices under a readiness check, and
// per-device state monitors. Each bucket needs the same shape — add,
// remove, lookup, snapshot, count — guarded by the same lock discipline, so
// it is factored out once instead of repeated per bucket.
package registry
