// Package bridge defines the external debug-bridge capability consumed by
// the allocation manager: discovering attached devices and delivering
// asynchronous connect/disconnect/state-change notifications.
//
// The manager never talks to the real bridge tool directly — it depends on
// the Bridge interface here, so tests can substitute Fake for the real
// exec-based implementation.
package bridge
