// Package altmode implements the alt-mode monitor (C7): a single
// background task, active only while listeners are registered, that
// periodically lists devices in alt-mode (fastboot) and reconciles that
// set against the allocated devices it is given, flipping each one's
// state monitor to Fastboot or NotAvailable as appropriate, then notifies
// listeners of the transitions.
//
// Polling rather than invoking the external command unconditionally
// avoids wedging a command that can hang when no alt-mode devices are of
// interest; the loop's Start/Stop/mutex/callback shape follows the same
// timer-goroutine discipline used elsewhere in this tree for a background
// task with a cancellable sleep.
package altmode
