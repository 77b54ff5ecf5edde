/*

This file contains the RoundState ledger: the single mutable aggregate every
vault operation reads and writes. There are no ambient globals; the state is
owned by the Vault and passed explicitly into the lifecycle controller.

*/

package vault

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/primevault/rvm/internal/sharemath"
	"github.com/primevault/rvm/internal/types"
)

// RoundState is the round-indexed accounting ledger. Rounds start at 1 and
// only ever increase. The per-round share price maps are append-only: a price
// is written exactly once, at that round's rollover, and completed withdrawals
// depend on arbitrarily old entries staying put.
type RoundState struct {
	Round uint64

	LockedRisky  sdkmath.Int
	LockedStable sdkmath.Int

	LastLockedRisky  sdkmath.Int
	LastLockedStable sdkmath.Int

	PendingRisky sdkmath.Int

	LastQueuedWithdrawRisky  sdkmath.Int
	LastQueuedWithdrawStable sdkmath.Int

	CurrQueuedWithdrawShares  sdkmath.Int
	TotalQueuedWithdrawShares sdkmath.Int

	ShareSupply sdkmath.Int

	receipts    map[string]types.DepositReceipt
	withdrawals map[string]types.PendingWithdrawal
	priceRisky  map[uint64]sdkmath.Int
	priceStable map[uint64]sdkmath.Int
}

// NewRoundState returns a fresh ledger at round 1 with zeroed balances.
func NewRoundState() *RoundState {
	return &RoundState{
		Round:                     1,
		LockedRisky:               sdkmath.ZeroInt(),
		LockedStable:              sdkmath.ZeroInt(),
		LastLockedRisky:           sdkmath.ZeroInt(),
		LastLockedStable:          sdkmath.ZeroInt(),
		PendingRisky:              sdkmath.ZeroInt(),
		LastQueuedWithdrawRisky:   sdkmath.ZeroInt(),
		LastQueuedWithdrawStable:  sdkmath.ZeroInt(),
		CurrQueuedWithdrawShares:  sdkmath.ZeroInt(),
		TotalQueuedWithdrawShares: sdkmath.ZeroInt(),
		ShareSupply:               sdkmath.ZeroInt(),
		receipts:                  make(map[string]types.DepositReceipt),
		withdrawals:               make(map[string]types.PendingWithdrawal),
		priceRisky:                make(map[uint64]sdkmath.Int),
		priceStable:               make(map[uint64]sdkmath.Int),
	}
}

// Receipt returns the deposit receipt for an account, zeroed if none exists.
func (s *RoundState) Receipt(account string) types.DepositReceipt {
	if r, ok := s.receipts[account]; ok {
		return r
	}
	return types.NewDepositReceipt()
}

// SetReceipt stores the receipt for an account. Receipts are never deleted.
func (s *RoundState) SetReceipt(account string, r types.DepositReceipt) {
	s.receipts[account] = r
}

// Withdrawal returns the pending withdrawal for an account, zeroed if none.
func (s *RoundState) Withdrawal(account string) types.PendingWithdrawal {
	if w, ok := s.withdrawals[account]; ok {
		return w
	}
	return types.PendingWithdrawal{Shares: sdkmath.ZeroInt()}
}

// SetWithdrawal stores the pending withdrawal for an account.
func (s *RoundState) SetWithdrawal(account string, w types.PendingWithdrawal) {
	s.withdrawals[account] = w
}

// RecordRoundPrices appends the settled share prices for a round. Overwriting
// an existing entry is a hard error: settled withdrawals price against these.
func (s *RoundState) RecordRoundPrices(round uint64, priceInRisky, priceInStable sdkmath.Int) error {
	if round == 0 {
		return fmt.Errorf("%w: round zero has no price", types.ErrInvalidInput)
	}
	if _, ok := s.priceRisky[round]; ok {
		return fmt.Errorf("%w: share price for round %d already recorded", types.ErrStateSequence, round)
	}
	if !priceInRisky.IsPositive() || !priceInStable.IsPositive() {
		return fmt.Errorf("%w: share price for round %d must be positive", types.ErrInvalidInput, round)
	}
	s.priceRisky[round] = priceInRisky
	s.priceStable[round] = priceInStable
	return nil
}

// PricesAt looks up the settled share prices of a past round.
func (s *RoundState) PricesAt(round uint64) (priceInRisky, priceInStable sdkmath.Int, err error) {
	r, ok := s.priceRisky[round]
	if !ok {
		return sdkmath.Int{}, sdkmath.Int{}, fmt.Errorf("%w: no share price recorded for round %d", types.ErrStateSequence, round)
	}
	return r, s.priceStable[round], nil
}

// LatestPrices returns the most recently settled share prices, or unit prices
// while no round has rolled over yet.
func (s *RoundState) LatestPrices(shareDecimals uint8) (priceInRisky, priceInStable sdkmath.Int) {
	if s.Round > 1 {
		if r, ok := s.priceRisky[s.Round-1]; ok {
			return r, s.priceStable[s.Round-1]
		}
	}
	unit := sdkmath.NewIntWithDecimal(1, int(shareDecimals))
	return unit, unit
}

// resolvedShares prices an account's receipt against the ledger's history.
func (s *RoundState) resolvedShares(account string, shareDecimals uint8) (sdkmath.Int, error) {
	receipt := s.Receipt(account)
	price := sdkmath.ZeroInt()
	if receipt.Round > 0 && receipt.Round < s.Round {
		r, _, err := s.PricesAt(receipt.Round)
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
		price = r
	}
	return sharemath.ResolveReceiptShares(receipt, s.Round, price, shareDecimals)
}

// MintPendingShares converts every current-round pending deposit into shares
// at the given price and grows the supply by the exact sum of the per-account
// floor conversions. Minting account by account keeps the supply equal to what
// lazy receipt resolution will later hand out, so no dust is ever stranded.
func (s *RoundState) MintPendingShares(priceInRisky sdkmath.Int, shareDecimals uint8) (sdkmath.Int, error) {
	minted := sdkmath.ZeroInt()
	for _, r := range s.receipts {
		if r.Round != s.Round || !r.PendingRisky.IsPositive() {
			continue
		}
		shares, err := sharemath.AssetToShares(r.PendingRisky, priceInRisky, shareDecimals)
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
		minted = minted.Add(shares)
	}
	s.ShareSupply = s.ShareSupply.Add(minted)
	s.PendingRisky = sdkmath.ZeroInt()
	return minted, nil
}

// CheckConservation verifies that resolved shares across all accounts plus all
// queued withdrawal shares equal the total supply. Used by tests and invoked
// after every rollover as a cheap ledger audit.
func (s *RoundState) CheckConservation(shareDecimals uint8) error {
	sum := sdkmath.ZeroInt()
	for account := range s.receipts {
		owned, err := s.resolvedShares(account, shareDecimals)
		if err != nil {
			return err
		}
		sum = sum.Add(owned)
	}
	sum = sum.Add(s.TotalQueuedWithdrawShares).Add(s.CurrQueuedWithdrawShares)
	if !sum.Equal(s.ShareSupply) {
		return fmt.Errorf("share conservation broken: accounts+queued %s != supply %s", sum, s.ShareSupply)
	}
	return nil
}
