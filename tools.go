//go:build tools

package tools

// Tool dependencies were previously tracked here with blank imports.
// mockery is used as an installed binary (not via go run), so no
// import is needed. The bridge and runner fakes are hand-written
// rather than generated, since both interfaces are small and the
// fakes need scripted behavior (queued responses, call recording)
// that a generated mock doesn't give you for free.
