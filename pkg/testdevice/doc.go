// Package testdevice implements the test-device wrapper the allocation
// manager hands to consumers: a device handle plus its state monitor, a
// pluggable recovery strategy, a log-capture toggle, and the
// fastboot-enabled flag.
//
// The wrapper never calls back into the manager directly — it holds a
// narrow capability (ManagerHandle) so the allocation core and the device
// wrapper can refer to each other without an import cycle or a dependency
// on the whole manager surface.
package testdevice
