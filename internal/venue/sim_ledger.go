/*

This file contains the in-process asset ledger used in paper mode and by the
package tests. Transfers are atomic and fail on unknown holders or
insufficient balance, matching the contract of the live transfer primitive.

*/

package venue

import (
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/primevault/rvm/internal/types"
)

// SimLedger is a thread-safe balance book keyed by holder and denom.
type SimLedger struct {
	mu       sync.Mutex
	balances map[string]map[string]sdkmath.Int
}

// NewSimLedger returns an empty ledger.
func NewSimLedger() *SimLedger {
	return &SimLedger{balances: make(map[string]map[string]sdkmath.Int)}
}

// Mint credits a holder out of thin air. Funding helper for sims and tests.
func (l *SimLedger) Mint(holder, denom string, amount sdkmath.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(holder, denom, amount)
}

// Adjust applies a signed delta to a holder's balance, failing if the result
// would go negative. Sim-only drift hook.
func (l *SimLedger) Adjust(holder, denom string, delta sdkmath.Int) error {
	if delta.IsNil() {
		return fmt.Errorf("%w: adjustment delta cannot be nil", types.ErrInvalidInput)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	next := l.balanceLocked(holder, denom).Add(delta)
	if next.IsNegative() {
		return fmt.Errorf("%w: adjustment would leave %s with negative %s", types.ErrInsufficientBalance, holder, denom)
	}
	if _, ok := l.balances[holder]; !ok {
		l.balances[holder] = make(map[string]sdkmath.Int)
	}
	l.balances[holder][denom] = next
	return nil
}

// Transfer moves amount of denom between holders, atomically.
func (l *SimLedger) Transfer(from, to, denom string, amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return fmt.Errorf("%w: transfer amount cannot be negative", types.ErrInvalidInput)
	}
	if from == "" || to == "" {
		return fmt.Errorf("%w: transfer accounts cannot be empty", types.ErrInvalidInput)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	have := l.balanceLocked(from, denom)
	if have.LT(amount) {
		return fmt.Errorf("%w: %s holds %s %s, needs %s", types.ErrInsufficientBalance, from, have, denom, amount)
	}
	l.balances[from][denom] = have.Sub(amount)
	l.credit(to, denom, amount)
	return nil
}

// BalanceOf returns the holder's balance in denom, zero if never funded.
func (l *SimLedger) BalanceOf(holder, denom string) (sdkmath.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balanceLocked(holder, denom), nil
}

func (l *SimLedger) balanceLocked(holder, denom string) sdkmath.Int {
	if denoms, ok := l.balances[holder]; ok {
		if bal, ok := denoms[denom]; ok {
			return bal
		}
	}
	return sdkmath.ZeroInt()
}

func (l *SimLedger) credit(holder, denom string, amount sdkmath.Int) {
	if _, ok := l.balances[holder]; !ok {
		l.balances[holder] = make(map[string]sdkmath.Int)
	}
	l.balances[holder][denom] = l.balanceLocked(holder, denom).Add(amount)
}
