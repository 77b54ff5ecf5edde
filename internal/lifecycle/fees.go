/*

This file contains the round fee computation. Fees are only ever charged on a
successful round: the management fee on assets under management in each asset,
the performance fee on the round's gain, entirely in the single asset that
recorded it. Deposits are principal and are excluded from the inputs by the
caller, so they can never be fee-able.

*/

package lifecycle

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/primevault/rvm/internal/types"
	"github.com/primevault/rvm/internal/vault"
)

// percentDivisor recovers a fraction from a PercentScale percentage:
// amount * pct / (100 * PercentScale).
var percentDivisor = sdkmath.NewInt(100 * vault.PercentScale)

// FeeInputs are the balances a fee round is judged on. Pre amounts are the
// prior round's locked capital; Post amounts are current balances net of the
// settled withdrawal reserve and of this round's pending deposits. Price is
// the oracle risky-to-stable price scaled by 10^OracleDecimals.
type FeeInputs struct {
	PreRisky   sdkmath.Int
	PreStable  sdkmath.Int
	PostRisky  sdkmath.Int
	PostStable sdkmath.Int

	Price          sdkmath.Int
	OracleDecimals uint8

	Params vault.FeeParams
}

// FeeResult is the fee charge per asset. Success reports whether the vault
// profited this round; when false both charges are zero.
type FeeResult struct {
	Risky   sdkmath.Int
	Stable  sdkmath.Int
	Success bool

	// PerformanceRisky/Stable break out the performance component for the
	// round snapshot; only one of them is ever nonzero.
	PerformanceRisky  sdkmath.Int
	PerformanceStable sdkmath.Int
}

func zeroFees() FeeResult {
	return FeeResult{
		Risky:             sdkmath.ZeroInt(),
		Stable:            sdkmath.ZeroInt(),
		PerformanceRisky:  sdkmath.ZeroInt(),
		PerformanceStable: sdkmath.ZeroInt(),
	}
}

// ComputeFees implements the round fee rules. Success is decided per asset
// first; when one asset grew and the other shrank, both balances are valued in
// the grown asset's units via the oracle and total value decides.
func ComputeFees(in FeeInputs) (FeeResult, error) {
	if in.Price.IsNil() || !in.Price.IsPositive() {
		return FeeResult{}, fmt.Errorf("%w: oracle price must be positive for fee valuation", types.ErrExternalComputation)
	}

	scale := sdkmath.NewIntWithDecimal(1, int(in.OracleDecimals))
	toStable := func(risky sdkmath.Int) sdkmath.Int { return risky.Mul(in.Price).Quo(scale) }
	toRisky := func(stable sdkmath.Int) sdkmath.Int { return stable.Mul(scale).Quo(in.Price) }

	riskyUp := in.PostRisky.GT(in.PreRisky)
	stableUp := in.PostStable.GT(in.PreStable)

	// Post at or below pre in both assets: a losing (or flat) round, no fees.
	if !riskyUp && !stableUp {
		return zeroFees(), nil
	}

	// Pick the asset the performance fee is denominated in. Both up is an
	// unambiguous win; the fee goes entirely to the side with the larger
	// oracle-valued gain, never split.
	winRisky := riskyUp
	if riskyUp && stableUp {
		gainRisky := toStable(in.PostRisky.Sub(in.PreRisky))
		gainStable := in.PostStable.Sub(in.PreStable)
		winRisky = gainRisky.GTE(gainStable)
	}

	var preValue, postValue sdkmath.Int
	if winRisky {
		preValue = in.PreRisky.Add(toRisky(in.PreStable))
		postValue = in.PostRisky.Add(toRisky(in.PostStable))
	} else {
		preValue = toStable(in.PreRisky).Add(in.PreStable)
		postValue = toStable(in.PostRisky).Add(in.PostStable)
	}
	if !postValue.GT(preValue) {
		// More of one asset but less total value: not a success.
		return zeroFees(), nil
	}

	res := zeroFees()
	res.Success = true

	// Management fee on post-round AUM in each asset, regardless of where the
	// profit landed.
	res.Risky = in.PostRisky.Mul(in.Params.ManagementWeekly).Quo(percentDivisor)
	res.Stable = in.PostStable.Mul(in.Params.ManagementWeekly).Quo(percentDivisor)

	perf := postValue.Sub(preValue).Mul(in.Params.Performance).Quo(percentDivisor)
	if winRisky {
		res.PerformanceRisky = perf
		res.Risky = res.Risky.Add(perf)
	} else {
		res.PerformanceStable = perf
		res.Stable = res.Stable.Add(perf)
	}
	return res, nil
}
