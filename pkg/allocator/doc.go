// Package allocator implements the allocation manager (C9): the public
// façade over the pool. It owns the available queue, the allocated-device
// registry, the readiness prober, the alt-mode monitor, and the bridge
// listener (C8) that keeps all three consistent, and exposes init,
// allocate/free, the secondary-transport (TCP) connect operations, and
// terminate/terminateHard.
package allocator
