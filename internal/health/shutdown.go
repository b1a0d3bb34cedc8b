package health

import "sync/atomic"

var ready atomic.Bool

// SetReady flips the process-wide readiness gate. main sets it once the
// dependencies are up and clears it when shutdown begins so the load
// balancer drains traffic before connections close.
func SetReady(v bool) {
	ready.Store(v)
}

// Ready reports the current readiness gate state.
func Ready() bool {
	return ready.Load()
}
