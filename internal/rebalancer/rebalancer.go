/*

This file contains the two-asset inventory rebalancer. Given what the vault
holds and the reserve composition the next replication position wants, it
computes the value-proportional split, executes at most one slippage-bounded
swap to cover the deficit side, and returns the amounts safe to lock.

*/

package rebalancer

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/primevault/rvm/internal/logger"
	"github.com/primevault/rvm/internal/types"
	"github.com/primevault/rvm/internal/vault"
	"github.com/primevault/rvm/internal/venue"
)

// percentDivisor recovers a fraction from a PercentScale percentage.
var percentDivisor = sdkmath.NewInt(100 * vault.PercentScale)

var (
	ErrNilSwapVenue     = errors.New("swap venue cannot be nil")
	ErrZeroOraclePrice  = errors.New("oracle price must be positive")
	ErrZeroTargetRatio  = errors.New("target reserve ratios cannot both be zero")
	ErrInfeasibleTarget = errors.New("rebalance target infeasible for available funds")
)

// Inputs describes one rebalance: current holdings, the target reserve ratio
// of the next position, and the oracle price used to value both sides.
// TargetRiskyPerUnit and TargetStablePerUnit are the per-liquidity-unit
// reserves in base units of each asset; Price is stable base units per risky
// base unit scaled by 10^OracleDecimals.
type Inputs struct {
	RiskyAvailable  sdkmath.Int
	StableAvailable sdkmath.Int

	TargetRiskyPerUnit  sdkmath.Int
	TargetStablePerUnit sdkmath.Int

	Price          sdkmath.Int
	OracleDecimals uint8

	// MaxSlippagePercent loosens the swap's minimum-output bound below the
	// exact shortfall, percent scaled by 1e6. Venue fees and price movement
	// within the tolerance are absorbed; anything beyond fails the swap.
	MaxSlippagePercent sdkmath.Int

	RiskyDenom  string
	StableDenom string
}

// Result is the post-rebalance allocation. RiskyToLock and StableToLock never
// exceed what the vault holds once the swap, if any, has settled.
type Result struct {
	RiskyToLock  sdkmath.Int
	StableToLock sdkmath.Int

	Swapped    bool
	SwapIn     sdkmath.Int
	SwapOut    sdkmath.Int
	SwapDenom  string
}

// Rebalance computes the optimal split of the available inventory against the
// target ratio and executes the covering swap through the venue. A swap venue
// rejection (slippage bound not met) fails the whole rebalance; the caller is
// expected to leave the capital unplaced for the round.
func Rebalance(in Inputs, swapper venue.SwapVenue) (Result, error) {
	rebalanceLogger := logger.GetForComponent("rebalancer")

	if swapper == nil {
		return Result{}, fmt.Errorf("%w: %v", types.ErrInvalidInput, ErrNilSwapVenue)
	}
	if in.Price.IsNil() || !in.Price.IsPositive() {
		return Result{}, fmt.Errorf("%w: %v", types.ErrInvalidInput, ErrZeroOraclePrice)
	}
	if in.RiskyAvailable.IsNil() || in.RiskyAvailable.IsNegative() ||
		in.StableAvailable.IsNil() || in.StableAvailable.IsNegative() {
		return Result{}, fmt.Errorf("%w: available amounts cannot be negative", types.ErrInvalidInput)
	}
	if in.TargetRiskyPerUnit.IsNil() || in.TargetRiskyPerUnit.IsNegative() ||
		in.TargetStablePerUnit.IsNil() || in.TargetStablePerUnit.IsNegative() {
		return Result{}, fmt.Errorf("%w: target ratios cannot be negative", types.ErrInvalidInput)
	}
	slippage := in.MaxSlippagePercent
	if slippage.IsNil() {
		slippage = sdkmath.ZeroInt()
	}
	if slippage.IsNegative() || slippage.GTE(percentDivisor) {
		return Result{}, fmt.Errorf("%w: slippage tolerance must be in [0%%, 100%%)", types.ErrInvalidInput)
	}
	withTolerance := func(minOut sdkmath.Int) sdkmath.Int {
		return minOut.Mul(percentDivisor.Sub(slippage)).Quo(percentDivisor)
	}

	scale := sdkmath.NewIntWithDecimal(1, int(in.OracleDecimals))
	toStable := func(risky sdkmath.Int) sdkmath.Int {
		return risky.Mul(in.Price).Quo(scale)
	}
	toRisky := func(stable sdkmath.Int) sdkmath.Int {
		return stable.Mul(scale).Quo(in.Price)
	}

	// Total portfolio value and the target split, everything in stable terms.
	totalValue := toStable(in.RiskyAvailable).Add(in.StableAvailable)
	weightDenom := toStable(in.TargetRiskyPerUnit).Add(in.TargetStablePerUnit)
	if weightDenom.IsZero() {
		return Result{}, fmt.Errorf("%w: %v", types.ErrExternalComputation, ErrZeroTargetRatio)
	}
	stableTarget := in.TargetStablePerUnit.Mul(totalValue).Quo(weightDenom)
	riskyTarget := toRisky(totalValue.Sub(stableTarget))

	rebalanceLogger.Debug().
		Str("riskyAvailable", in.RiskyAvailable.String()).
		Str("stableAvailable", in.StableAvailable.String()).
		Str("riskyTarget", riskyTarget.String()).
		Str("stableTarget", stableTarget.String()).
		Msg("Computed rebalance targets")

	switch {
	case in.RiskyAvailable.GTE(riskyTarget) && in.StableAvailable.GTE(stableTarget):
		// Sufficient of both sides, lock the targets directly.
		return Result{
			RiskyToLock:  riskyTarget,
			StableToLock: stableTarget,
			SwapIn:       sdkmath.ZeroInt(),
			SwapOut:      sdkmath.ZeroInt(),
		}, nil

	case in.RiskyAvailable.GT(riskyTarget):
		// Risky surplus covers the stable shortfall.
		swapIn := in.RiskyAvailable.Sub(riskyTarget)
		minOut := withTolerance(stableTarget.Sub(in.StableAvailable))
		out, err := swapper.Swap(in.RiskyDenom, in.StableDenom, swapIn, minOut)
		if err != nil {
			return Result{}, fmt.Errorf("swapping %s %s for %s: %w", swapIn, in.RiskyDenom, in.StableDenom, err)
		}
		rebalanceLogger.Info().
			Str("swapIn", swapIn.String()).
			Str("swapOut", out.String()).
			Str("denomIn", in.RiskyDenom).
			Msg("Rebalance swap executed")
		return Result{
			RiskyToLock:  riskyTarget,
			StableToLock: in.StableAvailable.Add(out),
			Swapped:      true,
			SwapIn:       swapIn,
			SwapOut:      out,
			SwapDenom:    in.RiskyDenom,
		}, nil

	case in.StableAvailable.GT(stableTarget):
		// Stable surplus covers the risky shortfall.
		swapIn := in.StableAvailable.Sub(stableTarget)
		minOut := withTolerance(riskyTarget.Sub(in.RiskyAvailable))
		out, err := swapper.Swap(in.StableDenom, in.RiskyDenom, swapIn, minOut)
		if err != nil {
			return Result{}, fmt.Errorf("swapping %s %s for %s: %w", swapIn, in.StableDenom, in.RiskyDenom, err)
		}
		rebalanceLogger.Info().
			Str("swapIn", swapIn.String()).
			Str("swapOut", out.String()).
			Str("denomIn", in.StableDenom).
			Msg("Rebalance swap executed")
		return Result{
			RiskyToLock:  in.RiskyAvailable.Add(out),
			StableToLock: stableTarget,
			Swapped:      true,
			SwapIn:       swapIn,
			SwapOut:      out,
			SwapDenom:    in.StableDenom,
		}, nil

	default:
		// Neither side has a surplus: the target cannot be met with available
		// funds, which means the value or target computation is wrong. Fail
		// loudly instead of masking it.
		return Result{}, fmt.Errorf("%w: %v", types.ErrExternalComputation, ErrInfeasibleTarget)
	}
}
