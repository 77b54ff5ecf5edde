package venue_test

import (
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/primevault/rvm/internal/types"
	"github.com/primevault/rvm/internal/venue"
)

const (
	decimals = 8

	vaultAcct  = "vault"
	marketAcct = "market"

	riskyDenom  = "ueth"
	stableDenom = "uusdc"
)

func amt(whole int64) sdkmath.Int {
	return sdkmath.NewInt(whole).Mul(sdkmath.NewIntWithDecimal(1, decimals))
}

func newSim(t *testing.T) (*venue.SimLedger, *venue.SimPricing, *venue.SimMarket) {
	t.Helper()
	ledger := venue.NewSimLedger()
	pricing, err := venue.NewSimPricing(venue.SimPricingConfig{
		Spot:           2000,
		Strike:         sdkmath.NewInt(2200).Mul(sdkmath.NewIntWithDecimal(1, decimals)),
		Volatility:     sdkmath.NewInt(80_000_000),
		FeeRate:        sdkmath.NewInt(300_000),
		OracleDecimals: decimals,
		RiskyDecimals:  decimals,
		StableDecimals: decimals,
	})
	require.NoError(t, err)
	market, err := venue.NewSimMarket(ledger, pricing, vaultAcct, marketAcct, riskyDenom, stableDenom)
	require.NoError(t, err)
	return ledger, pricing, market
}

func TestSimLedgerTransfers(t *testing.T) {
	ledger := venue.NewSimLedger()
	ledger.Mint("a", riskyDenom, amt(10))

	require.NoError(t, ledger.Transfer("a", "b", riskyDenom, amt(4)))

	balA, err := ledger.BalanceOf("a", riskyDenom)
	require.NoError(t, err)
	balB, err := ledger.BalanceOf("b", riskyDenom)
	require.NoError(t, err)
	assert.Equal(t, amt(6).String(), balA.String())
	assert.Equal(t, amt(4).String(), balB.String())

	t.Run("overdraft rejected", func(t *testing.T) {
		err := ledger.Transfer("a", "b", riskyDenom, amt(100))
		assert.ErrorIs(t, err, types.ErrInsufficientBalance)
	})

	t.Run("unknown holder reads zero", func(t *testing.T) {
		bal, err := ledger.BalanceOf("nobody", stableDenom)
		require.NoError(t, err)
		assert.True(t, bal.IsZero())
	})

	t.Run("negative adjustment below zero rejected", func(t *testing.T) {
		err := ledger.Adjust("b", riskyDenom, amt(5).Neg())
		assert.ErrorIs(t, err, types.ErrInsufficientBalance)
	})
}

func TestSimPricingReplication(t *testing.T) {
	_, pricing, _ := newSim(t)

	price, err := pricing.OracleRiskyToStablePrice()
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(2000).Mul(sdkmath.NewIntWithDecimal(1, decimals)).String(), price.String())

	strike, err := pricing.NextStrike()
	require.NoError(t, err)
	vol, err := pricing.NextVolatility()
	require.NoError(t, err)

	week := 7 * 24 * time.Hour
	risky, err := pricing.RiskyPerLiquidityUnit(price, strike, vol, week, decimals, decimals)
	require.NoError(t, err)

	unit := sdkmath.NewIntWithDecimal(1, decimals)
	assert.True(t, risky.IsPositive())
	assert.True(t, risky.LT(unit), "risky reserve ratio must be a sub-unit fraction")

	stable, err := pricing.StablePerLiquidityUnit(sdkmath.ZeroInt(), risky, strike, vol, week, decimals, decimals)
	require.NoError(t, err)
	assert.True(t, stable.IsPositive())

	t.Run("deeper out of the money means more risky exposure", func(t *testing.T) {
		higherStrike := sdkmath.NewInt(3000).Mul(sdkmath.NewIntWithDecimal(1, decimals))
		riskyHigher, err := pricing.RiskyPerLiquidityUnit(price, higherStrike, vol, week, decimals, decimals)
		require.NoError(t, err)
		assert.True(t, riskyHigher.GT(risky))
	})
}

func TestSimMarketLiquidity(t *testing.T) {
	ledger, _, market := newSim(t)
	ledger.Mint(vaultAcct, riskyDenom, amt(10))
	ledger.Mint(vaultAcct, stableDenom, amt(1000))

	id, err := market.CreatePosition(venue.CreatePositionParams{
		RiskyDecimals:     decimals,
		StableDecimals:    decimals,
		Strike:            sdkmath.NewInt(2200).Mul(sdkmath.NewIntWithDecimal(1, decimals)),
		ImpliedVolatility: sdkmath.NewInt(80_000_000),
		Maturity:          time.Date(2024, 1, 12, 8, 0, 0, 0, time.UTC),
		FeeRate:           sdkmath.NewInt(300_000),
		RiskyPerLiquidity: sdkmath.NewInt(50_000_000), // 0.5 risky per unit
		MinLiquidity:      sdkmath.NewInt(100),
	})
	require.NoError(t, err)

	liquidity, err := market.AddLiquidity(id, amt(10), amt(1000))
	require.NoError(t, err)
	assert.Equal(t, amt(20).String(), liquidity.String(), "10 risky at 0.5 per unit is 20 liquidity units")

	vaultRisky, err := ledger.BalanceOf(vaultAcct, riskyDenom)
	require.NoError(t, err)
	assert.True(t, vaultRisky.IsZero())

	t.Run("withdrawing more liquidity than held fails", func(t *testing.T) {
		_, _, err := market.RemoveLiquidity(id, amt(21))
		assert.ErrorIs(t, err, types.ErrInsufficientBalance)
	})

	t.Run("partial removal pays pro rata", func(t *testing.T) {
		risky, stable, err := market.RemoveLiquidity(id, amt(10))
		require.NoError(t, err)
		assert.Equal(t, amt(5).String(), risky.String())
		assert.Equal(t, amt(500).String(), stable.String())
	})

	t.Run("drift changes reserves and full removal returns them", func(t *testing.T) {
		require.NoError(t, market.DriftReserves(id, sdkmath.ZeroInt(), amt(100)))
		risky, stable, err := market.RemoveLiquidity(id, amt(10))
		require.NoError(t, err)
		assert.Equal(t, amt(5).String(), risky.String())
		assert.Equal(t, amt(600).String(), stable.String())
	})

	t.Run("unknown position rejected", func(t *testing.T) {
		_, err := market.AddLiquidity("rmm-99", amt(1), amt(1))
		assert.ErrorIs(t, err, types.ErrInvalidInput)
	})
}

func TestSimMarketSwap(t *testing.T) {
	ledger, _, market := newSim(t)
	ledger.Mint(vaultAcct, riskyDenom, amt(1))
	ledger.Mint(marketAcct, stableDenom, amt(10000))

	t.Run("clears at oracle price minus the fee", func(t *testing.T) {
		out, err := market.Swap(riskyDenom, stableDenom, amt(1), sdkmath.ZeroInt())
		require.NoError(t, err)
		// 1 risky -> 2000 stable minus 0.3%.
		want := amt(2000).MulRaw(9970).QuoRaw(10000)
		assert.Equal(t, want.String(), out.String())
	})

	t.Run("minimum output bound enforced", func(t *testing.T) {
		ledger.Mint(vaultAcct, riskyDenom, amt(1))
		_, err := market.Swap(riskyDenom, stableDenom, amt(1), amt(2000))
		assert.ErrorIs(t, err, types.ErrSlippage)

		// The failed swap must not move funds.
		bal, err := ledger.BalanceOf(vaultAcct, riskyDenom)
		require.NoError(t, err)
		assert.Equal(t, amt(1).String(), bal.String())
	})

	t.Run("unsupported pair rejected", func(t *testing.T) {
		_, err := market.Swap(riskyDenom, "uatom", amt(1), sdkmath.ZeroInt())
		assert.ErrorIs(t, err, types.ErrInvalidInput)
	})
}
