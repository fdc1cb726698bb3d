// Package wireless browses for Android devices advertising wireless
// debugging over mDNS: Android's adb-tls-connect advertisement, used to
// recover a device's current host:port when its last-known address has
// gone stale.
package wireless
