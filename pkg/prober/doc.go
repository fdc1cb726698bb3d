// Package prober implements the readiness prober (C6): when an unknown
// online serial appears, it is held in a "checking" set and watched for a
// fixed stability window before being admitted as available. Devices that
// drop offline during the window are never admitted — newly-connected
// devices churn (reboot, re-enumerate), and admitting one that vanishes
// moments later would blame the consumer for a spurious allocation
// failure.
package prober
