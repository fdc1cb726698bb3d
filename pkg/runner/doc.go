// Package runner provides the command-runner capability consumed by the
// allocation manager: executing an external binary with a timeout and
// collecting its exit status, stdout, and stderr separately.
//
// The alt-mode monitor and the secondary-transport connect path use this to
// invoke "<tool> help", "<tool> list-alt-mode-devices", and
// "<tool> connect host:port"
// without depending on a specific bridge tool directly.
package runner
