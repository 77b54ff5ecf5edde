/*

This file contains the types for the replication position the vault rotates its
capital into each round, and the parameter bundle that describes one position.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// PoolParams describes one replication position on the pool venue.
type PoolParams struct {
	Strike            sdkmath.Int `json:"strike"`             // oracle-decimal scaled stable per risky
	ImpliedVolatility sdkmath.Int `json:"implied_volatility"` // percent scaled by 1e6
	Maturity          time.Time   `json:"maturity"`
	FeeRate           sdkmath.Int `json:"fee_rate"` // percent scaled by 1e6

	RiskyPerLiquidity  sdkmath.Int `json:"risky_per_liquidity"`  // risky base units per liquidity unit
	StablePerLiquidity sdkmath.Int `json:"stable_per_liquidity"` // stable base units per liquidity unit
}

// IsZero reports whether the params have never been set.
func (p PoolParams) IsZero() bool {
	return p.Maturity.IsZero()
}

// PoolPosition tracks the active position plus the one staged for the next
// round. NextID and NextParams are populated by position preparation and
// promoted to the current slot by rollover.
type PoolPosition struct {
	CurrentID        string      `json:"current_id"`
	NextID           string      `json:"next_id"`
	CurrentLiquidity sdkmath.Int `json:"current_liquidity"`
	CurrentParams    PoolParams  `json:"current_params"`
	NextParams       PoolParams  `json:"next_params"`
	NextReadyAt      time.Time   `json:"next_ready_at"`
}

// NewPoolPosition returns an empty position with zeroed liquidity.
func NewPoolPosition() PoolPosition {
	return PoolPosition{CurrentLiquidity: sdkmath.ZeroInt()}
}
