package vault

import (
	"fmt"
	"sync/atomic"

	"github.com/primevault/rvm/internal/types"
)

// reentrancyGuard rejects nested invocations of guarded operations. Any
// operation that performs an external transfer acquires the guard on entry and
// releases it on every exit path, so a collaborator calling back into the
// vault mid-operation is refused instead of observing half-committed state.
type reentrancyGuard struct {
	busy atomic.Bool
}

func (g *reentrancyGuard) enter(op string) error {
	if !g.busy.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: %s", types.ErrReentrancy, op)
	}
	return nil
}

func (g *reentrancyGuard) exit() {
	g.busy.Store(false)
}
