package session

import "sync/atomic"

// Guard is a single-assignment completion flag shared by every completion trigger.
type Guard struct {
	fired atomic.Bool
}

// Fire reports true exactly once, for the first caller.
func (g *Guard) Fire() bool {
	return g.fired.CompareAndSwap(false, true)
}

// Fired reports whether a completion was already dispatched.
func (g *Guard) Fired() bool {
	return g.fired.Load()
}
