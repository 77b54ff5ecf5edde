package lifecycle_test

import (
	"sync"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/primevault/rvm/internal/lifecycle"
	"github.com/primevault/rvm/internal/types"
	"github.com/primevault/rvm/internal/vault"
	"github.com/primevault/rvm/internal/venue"
)

const (
	vaultAcct  = "vault"
	marketAcct = "market"
	feeAcct    = "fees"
	adminAcct  = "admin"
	operator   = "operator"
	alice      = "alice"

	riskyDenom  = "ueth"
	stableDenom = "uusdc"
)

// testClock is a settable clock handed to the controller.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

type fixture struct {
	clock      *testClock
	ledger     *venue.SimLedger
	pricing    *venue.SimPricing
	market     *venue.SimMarket
	vault      *vault.Vault
	controller *lifecycle.Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	// Wednesday, two days before the weekly expiry.
	clock := &testClock{now: time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)}

	ledger := venue.NewSimLedger()
	pricing, err := venue.NewSimPricing(venue.SimPricingConfig{
		Spot:           2000,
		Strike:         sdkmath.NewInt(2200).Mul(sdkmath.NewIntWithDecimal(1, oracleDecimals)),
		Volatility:     sdkmath.NewInt(80_000_000), // 80%
		FeeRate:        sdkmath.NewInt(300_000),    // 0.3%
		OracleDecimals: oracleDecimals,
		RiskyDecimals:  decimals,
		StableDecimals: decimals,
	})
	require.NoError(t, err)

	market, err := venue.NewSimMarket(ledger, pricing, vaultAcct, marketAcct, riskyDenom, stableDenom)
	require.NoError(t, err)
	ledger.Mint(marketAcct, riskyDenom, amt(1_000_000))
	ledger.Mint(marketAcct, stableDenom, amt(1_000_000_000))

	v, err := vault.New(vault.Config{
		VaultAccount:   vaultAcct,
		FeeRecipient:   feeAcct,
		Admin:          adminAcct,
		RiskyDenom:     riskyDenom,
		StableDenom:    stableDenom,
		RiskyDecimals:  decimals,
		StableDecimals: decimals,
		MinLiquidity:   sdkmath.NewInt(100),
		Ledger:         ledger,
	})
	require.NoError(t, err)
	require.NoError(t, v.SetManagementFee(adminAcct, sdkmath.NewInt(2_000_000)))
	require.NoError(t, v.SetPerformanceFee(adminAcct, sdkmath.NewInt(20_000_000)))

	c, err := lifecycle.NewController(lifecycle.Config{
		Vault:        v,
		Pricing:      pricing,
		Pools:        market,
		Swapper:      market,
		Operator:     operator,
		RolloverGate: time.Hour,
		SwapSlippage: sdkmath.NewInt(1_000_000), // 1%
		Now:          clock.Now,
	})
	require.NoError(t, err)

	return &fixture{
		clock:      clock,
		ledger:     ledger,
		pricing:    pricing,
		market:     market,
		vault:      v,
		controller: c,
	}
}

func TestControllerAccessControl(t *testing.T) {
	f := newFixture(t)

	assert.ErrorIs(t, f.controller.PreparePosition(alice), types.ErrInvalidInput)
	assert.ErrorIs(t, f.controller.Rollover(alice), types.ErrInvalidInput)
	assert.ErrorIs(t, f.controller.SetStrike(alice, sdkmath.NewInt(1)), types.ErrInvalidInput)
}

func TestRolloverPreconditions(t *testing.T) {
	f := newFixture(t)

	t.Run("without a prepared position", func(t *testing.T) {
		err := f.controller.Rollover(operator)
		assert.ErrorIs(t, err, types.ErrStateSequence)
	})

	t.Run("before the readiness gate", func(t *testing.T) {
		require.NoError(t, f.controller.PreparePosition(operator))
		err := f.controller.Rollover(operator)
		assert.ErrorIs(t, err, types.ErrStateSequence)

		f.clock.now = f.clock.now.Add(2 * time.Hour)
		assert.NoError(t, f.controller.Rollover(operator))
	})
}

func TestPreparePosition(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.controller.PreparePosition(operator))
	pos := f.controller.Position()

	assert.NotEmpty(t, pos.NextID)
	assert.Equal(t, f.clock.now.Add(time.Hour), pos.NextReadyAt)
	// Friday 08:00 UTC after the Wednesday start.
	assert.Equal(t, time.Date(2024, 1, 12, 8, 0, 0, 0, time.UTC), pos.NextParams.Maturity)

	// The replication ratio is a strict sub-unit fraction of one risky unit.
	unit := sdkmath.NewIntWithDecimal(1, decimals)
	assert.True(t, pos.NextParams.RiskyPerLiquidity.IsPositive())
	assert.True(t, pos.NextParams.RiskyPerLiquidity.LT(unit))
	assert.True(t, pos.NextParams.StablePerLiquidity.IsPositive())
}

func TestManualOverridesApplyForTheirRoundOnly(t *testing.T) {
	f := newFixture(t)

	strike := sdkmath.NewInt(2500).Mul(sdkmath.NewIntWithDecimal(1, oracleDecimals))
	require.NoError(t, f.controller.SetStrike(operator, strike))
	require.NoError(t, f.controller.PreparePosition(operator))
	assert.Equal(t, strike.String(), f.controller.Position().NextParams.Strike.String())

	// Roll into round 2; the stamp from round 1 must no longer apply.
	f.clock.now = f.clock.now.Add(2 * time.Hour)
	require.NoError(t, f.controller.Rollover(operator))
	require.NoError(t, f.controller.PreparePosition(operator))

	want, err := f.pricing.NextStrike()
	require.NoError(t, err)
	assert.Equal(t, want.String(), f.controller.Position().NextParams.Strike.String())
}

func TestFullRoundLifecycle(t *testing.T) {
	f := newFixture(t)
	s := f.vault.State()

	// Round 1: alice deposits ten risky.
	f.ledger.Mint(alice, riskyDenom, amt(10))
	require.NoError(t, f.vault.Deposit(alice, amt(10)))

	require.NoError(t, f.controller.PreparePosition(operator))
	f.clock.now = f.clock.now.Add(2 * time.Hour)
	require.NoError(t, f.controller.Rollover(operator))

	t.Run("first rollover mints at unit price and places capital", func(t *testing.T) {
		assert.Equal(t, uint64(2), s.Round)

		priceRisky, priceStable, err := s.PricesAt(1)
		require.NoError(t, err)
		unit := sdkmath.NewIntWithDecimal(1, decimals)
		assert.Equal(t, unit.String(), priceRisky.String())
		assert.Equal(t, unit.String(), priceStable.String())

		shares, err := f.vault.GetShareBalance(alice)
		require.NoError(t, err)
		assert.Equal(t, amt(10).String(), shares.String())
		assert.Equal(t, amt(10).String(), s.ShareSupply.String())

		pos := f.controller.Position()
		assert.NotEmpty(t, pos.CurrentID)
		assert.True(t, pos.CurrentLiquidity.IsPositive())
		assert.Empty(t, pos.NextID)

		require.NoError(t, s.CheckConservation(f.vault.ShareDecimals()))
	})

	// Round 2: alice queues a partial exit, the position earns premium.
	require.NoError(t, f.vault.RequestWithdraw(alice, amt(4)))
	require.NoError(t, f.controller.PreparePosition(operator))

	posID := f.controller.Position().CurrentID
	require.NoError(t, f.market.DriftReserves(posID, sdkmath.ZeroInt(), amt(200)))

	// Past the position's maturity and the gate.
	f.clock.now = time.Date(2024, 1, 12, 9, 0, 0, 0, time.UTC)
	require.NoError(t, f.controller.Rollover(operator))

	t.Run("second rollover settles the withdrawal queue", func(t *testing.T) {
		assert.Equal(t, uint64(3), s.Round)
		assert.True(t, s.TotalQueuedWithdrawShares.Equal(amt(4)))
		assert.True(t, s.CurrQueuedWithdrawShares.IsZero())
		assert.True(t, s.LastQueuedWithdrawRisky.IsPositive())
		assert.True(t, s.LastQueuedWithdrawStable.IsPositive())

		_, _, err := s.PricesAt(2)
		require.NoError(t, err)

		require.NoError(t, s.CheckConservation(f.vault.ShareDecimals()))
	})

	t.Run("profitable round pays fees", func(t *testing.T) {
		feeStable, err := f.ledger.BalanceOf(feeAcct, stableDenom)
		require.NoError(t, err)
		assert.True(t, feeStable.IsPositive())
	})

	t.Run("withdrawal completes at the settled prices", func(t *testing.T) {
		risky, stable, err := f.vault.CompleteWithdraw(alice)
		require.NoError(t, err)
		assert.True(t, risky.IsPositive())
		assert.True(t, stable.IsPositive())

		assert.Equal(t, amt(6).String(), s.ShareSupply.String())

		aliceStable, err := f.ledger.BalanceOf(alice, stableDenom)
		require.NoError(t, err)
		assert.Equal(t, stable.String(), aliceStable.String())

		require.NoError(t, s.CheckConservation(f.vault.ShareDecimals()))
	})
}

// Exercises the position and summary views concurrently with prepare and
// rollover, the interleaving the HTTP handlers produce against the keeper.
// Run with the race detector.
func TestPositionReadsDuringLifecycle(t *testing.T) {
	f := newFixture(t)
	f.ledger.Mint(alice, riskyDenom, amt(10))
	require.NoError(t, f.vault.Deposit(alice, amt(10)))

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			_ = f.controller.Position()
			_ = f.vault.Summary()
			_, _, _ = f.vault.PricesAtRound(1)
		}
	}()

	require.NoError(t, f.controller.PreparePosition(operator))
	f.clock.now = f.clock.now.Add(2 * time.Hour)
	require.NoError(t, f.controller.Rollover(operator))

	require.NoError(t, f.controller.PreparePosition(operator))
	f.clock.now = time.Date(2024, 1, 12, 9, 0, 0, 0, time.UTC)
	require.NoError(t, f.controller.Rollover(operator))

	close(stop)
	wg.Wait()

	assert.Equal(t, uint64(3), f.vault.Summary().Round)
	assert.True(t, f.controller.Position().CurrentLiquidity.IsPositive())
}
