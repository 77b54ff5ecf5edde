/*

This file contains the round-indexed accounting types for the vault: deposit
receipts, pending withdrawals, and the per-rollover snapshot that gets persisted
after every round transition.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// DepositReceipt tracks a single account's stake in the vault. PendingRisky
// only ever reflects deposits made in Round; older pending amounts are folded
// into OwnedShares at read time using the share price recorded for Round.
type DepositReceipt struct {
	Round        uint64      `json:"round"`
	PendingRisky sdkmath.Int `json:"pending_risky"`
	OwnedShares  sdkmath.Int `json:"owned_shares"`
}

// NewDepositReceipt returns an empty receipt with zeroed amounts.
func NewDepositReceipt() DepositReceipt {
	return DepositReceipt{
		Round:        0,
		PendingRisky: sdkmath.ZeroInt(),
		OwnedShares:  sdkmath.ZeroInt(),
	}
}

// PendingWithdrawal is an account's outstanding exit request. At most one
// unsettled request exists per account; same-round requests merge by addition.
type PendingWithdrawal struct {
	Round  uint64      `json:"round"`
	Shares sdkmath.Int `json:"shares"`
}

// RoundPrices is the settled share price of one round, denominated separately
// in each vault asset. Written exactly once, at that round's rollover.
type RoundPrices struct {
	Round         uint64      `json:"round"`
	PriceInRisky  sdkmath.Int `json:"price_in_risky"`
	PriceInStable sdkmath.Int `json:"price_in_stable"`
}

// RoundSnapshot captures the outcome of a single rollover for persistence and
// the dashboard. Amounts are base units of the respective asset.
type RoundSnapshot struct {
	SnapshotID           int64     `json:"snapshot_id,omitempty"`
	Round                uint64    `json:"round"`
	Timestamp            time.Time `json:"timestamp"`
	PriceInRisky         string    `json:"price_in_risky"`
	PriceInStable        string    `json:"price_in_stable"`
	ManagementFeeRisky   string    `json:"management_fee_risky"`
	ManagementFeeStable  string    `json:"management_fee_stable"`
	PerformanceFeeRisky  string    `json:"performance_fee_risky"`
	PerformanceFeeStable string    `json:"performance_fee_stable"`
	SharesMinted         string    `json:"shares_minted"`
	WithdrawalShares     string    `json:"withdrawal_shares_settled"`
	LockedRisky          string    `json:"locked_risky"`
	LockedStable         string    `json:"locked_stable"`
	PositionID           string    `json:"position_id,omitempty"`
	Placed               bool      `json:"placed"`
}
