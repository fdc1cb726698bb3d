// Package log provides structured event logging for the device allocation
// manager.
//
// This package defines the Logger interface and Event type for capturing
// pool lifecycle events: allocations, frees, readiness-probe outcomes,
// alt-mode transitions, and bridge callbacks. It is separate from the
// manager's own operational diagnostics — this is a machine-readable
// event trace suitable for post-hoc debugging of flaky device pools.
//
// # Basic Usage
//
// Callers configure logging by passing a Logger implementation to
// allocator.New:
//
//	// For development: log to console via slog
//	m := allocator.New(br, run, log.NewSlogAdapter(slog.Default()))
//
//	// For production: write to a binary file
//	fileLogger, _ := log.NewFileLogger("/var/log/devicepool/events.clog")
//	m := allocator.New(br, run, fileLogger)
//
//	// Both: use MultiLogger
//	m := allocator.New(br, run, log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	))
//
// # File Format
//
// Log files use CBOR encoding. Each record is one Event, written as a
// single CBOR item; Reader reads them back one at a time.
package log
