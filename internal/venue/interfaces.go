package venue

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// PricingManager supplies next-round option parameters, the replication-math
// reserve ratios, and oracle prices. Implementations may be live feeds or the
// in-process simulator; the lifecycle controller treats them identically.
//
// Oracle prices are base-unit ratios scaled by 10^OracleDecimals, e.g. the
// risky-to-stable price is stable base units per risky base unit.
type PricingManager interface {
	// NextStrike returns the strike for the next position, oracle-decimal scaled.
	NextStrike() (sdkmath.Int, error)

	// NextVolatility returns the implied volatility as percent scaled by 1e6.
	NextVolatility() (sdkmath.Int, error)

	// NextFeeRate returns the pool fee rate as percent scaled by 1e6.
	NextFeeRate() (sdkmath.Int, error)

	// RiskyPerLiquidityUnit returns the risky reserve per liquidity unit, in
	// risky base units, for the given spot/strike/vol and time to maturity.
	RiskyPerLiquidityUnit(spot, strike, vol sdkmath.Int, timeToMaturity time.Duration, riskyDecimals, stableDecimals uint8) (sdkmath.Int, error)

	// StablePerLiquidityUnit back-derives the stable reserve per liquidity unit
	// from the pool invariant, in stable base units.
	StablePerLiquidityUnit(invariant, riskyPerLiquidity, strike, vol sdkmath.Int, timeToMaturity time.Duration, riskyDecimals, stableDecimals uint8) (sdkmath.Int, error)

	// OracleRiskyToStablePrice returns the spot price of the risky asset in
	// stable base units per risky base unit, scaled by 10^OracleDecimals.
	OracleRiskyToStablePrice() (sdkmath.Int, error)

	// OracleStableToRiskyPrice returns the inverse spot price.
	OracleStableToRiskyPrice() (sdkmath.Int, error)

	// OracleDecimals returns the scaling precision of the oracle prices.
	OracleDecimals() (uint8, error)
}

// CreatePositionParams carries everything the pool venue needs to open a
// fresh replication position.
type CreatePositionParams struct {
	RiskyDecimals     uint8
	StableDecimals    uint8
	Strike            sdkmath.Int
	ImpliedVolatility sdkmath.Int
	Maturity          time.Time
	FeeRate           sdkmath.Int
	RiskyPerLiquidity sdkmath.Int
	MinLiquidity      sdkmath.Int
}

// PoolVenue is the liquidity venue holding the replication positions. All
// operations are atomic: they either fully succeed or leave no trace.
type PoolVenue interface {
	CreatePosition(params CreatePositionParams) (string, error)
	AddLiquidity(positionID string, risky, stable sdkmath.Int) (sdkmath.Int, error)
	RemoveLiquidity(positionID string, liquidity sdkmath.Int) (risky, stable sdkmath.Int, err error)
	InvariantOf(positionID string) (sdkmath.Int, error)
}

// SwapVenue executes a single slippage-bounded exchange. It fails with a
// slippage error when the achievable output is below minAmountOut.
type SwapVenue interface {
	Swap(tokenIn, tokenOut string, amountIn, minAmountOut sdkmath.Int) (sdkmath.Int, error)
}

// AssetLedger is the asset-transfer primitive. Transfer and BalanceOf fail
// atomically on unknown holders or insufficient balance.
type AssetLedger interface {
	Transfer(from, to, denom string, amount sdkmath.Int) error
	BalanceOf(holder, denom string) (sdkmath.Int, error)
}
