package market

import "sync/atomic"

// reentrancyGuard serializes the state-mutating entry points against
// nested re-entry. An asset-transfer callback that calls back into the
// engine before the first operation commits finds the token held and is
// rejected rather than deadlocking on the state mutex.
type reentrancyGuard struct {
	locked atomic.Bool
}

func (g *reentrancyGuard) enter() error {
	if !g.locked.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	return nil
}

func (g *reentrancyGuard) exit() {
	g.locked.Store(false)
}
