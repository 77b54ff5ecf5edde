package vault_test

import (
	"sync"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/primevault/rvm/internal/types"
	"github.com/primevault/rvm/internal/vault"
	"github.com/primevault/rvm/internal/venue"
)

const (
	vaultAcct = "vault"
	feeAcct   = "fees"
	adminAcct = "admin"
	alice     = "alice"
	bob       = "bob"

	riskyDenom  = "ueth"
	stableDenom = "uusdc"
)

func newTestVault(t *testing.T) (*vault.Vault, *venue.SimLedger) {
	t.Helper()
	ledger := venue.NewSimLedger()
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
	return v, ledger
}

// settleRound emulates the rollover accounting a controller would commit:
// record the closing round's prices, mint pending deposits, fold this round's
// withdrawal queue, and advance the round counter.
func settleRound(t *testing.T, v *vault.Vault, priceRisky, priceStable, queuedRisky, queuedStable sdkmath.Int) {
	t.Helper()
	s := v.State()
	require.NoError(t, s.RecordRoundPrices(s.Round, priceRisky, priceStable))
	_, err := s.MintPendingShares(priceRisky, v.ShareDecimals())
	require.NoError(t, err)
	s.TotalQueuedWithdrawShares = s.TotalQueuedWithdrawShares.Add(s.CurrQueuedWithdrawShares)
	s.CurrQueuedWithdrawShares = sdkmath.ZeroInt()
	s.LastQueuedWithdrawRisky = s.LastQueuedWithdrawRisky.Add(queuedRisky)
	s.LastQueuedWithdrawStable = s.LastQueuedWithdrawStable.Add(queuedStable)
	s.Round++
}

func TestVaultConfigValidation(t *testing.T) {
	ledger := venue.NewSimLedger()
	base := vault.Config{
		VaultAccount:   vaultAcct,
		FeeRecipient:   feeAcct,
		Admin:          adminAcct,
		RiskyDenom:     riskyDenom,
		StableDenom:    stableDenom,
		RiskyDecimals:  decimals,
		StableDecimals: decimals,
		MinLiquidity:   sdkmath.ZeroInt(),
		Ledger:         ledger,
	}

	t.Run("nil ledger", func(t *testing.T) {
		cfg := base
		cfg.Ledger = nil
		_, err := vault.New(cfg)
		assert.ErrorIs(t, err, types.ErrInvalidInput)
	})

	t.Run("identical denoms", func(t *testing.T) {
		cfg := base
		cfg.StableDenom = cfg.RiskyDenom
		_, err := vault.New(cfg)
		assert.ErrorIs(t, err, types.ErrInvalidInput)
	})

	t.Run("excessive decimals", func(t *testing.T) {
		cfg := base
		cfg.RiskyDecimals = 19
		_, err := vault.New(cfg)
		assert.ErrorIs(t, err, types.ErrInvalidInput)
	})
}

func TestDeposit(t *testing.T) {
	v, ledger := newTestVault(t)
	ledger.Mint(alice, riskyDenom, amt(100))

	t.Run("records pending and pulls funds", func(t *testing.T) {
		require.NoError(t, v.Deposit(alice, amt(60)))

		bal, err := ledger.BalanceOf(vaultAcct, riskyDenom)
		require.NoError(t, err)
		assert.Equal(t, amt(60).String(), bal.String())
		assert.Equal(t, amt(60).String(), v.State().PendingRisky.String())

		// No shares yet: issuance waits for the rollover price.
		shares, err := v.GetShareBalance(alice)
		require.NoError(t, err)
		assert.True(t, shares.IsZero())
	})

	t.Run("same-round deposits merge", func(t *testing.T) {
		require.NoError(t, v.Deposit(alice, amt(40)))
		assert.Equal(t, amt(100).String(), v.State().PendingRisky.String())
		assert.Equal(t, amt(100).String(), v.State().Receipt(alice).PendingRisky.String())
	})

	t.Run("insufficient funds leave state untouched", func(t *testing.T) {
		before := v.State().PendingRisky
		err := v.Deposit(alice, amt(1))
		assert.ErrorIs(t, err, types.ErrInsufficientBalance)
		assert.Equal(t, before.String(), v.State().PendingRisky.String())
		assert.Equal(t, amt(100).String(), v.State().Receipt(alice).PendingRisky.String())
	})

	t.Run("failed pull restores the receipt and stays retryable", func(t *testing.T) {
		err := v.Deposit(bob, amt(5))
		assert.ErrorIs(t, err, types.ErrInsufficientBalance)
		assert.True(t, v.State().Receipt(bob).PendingRisky.IsZero())

		ledger.Mint(bob, riskyDenom, amt(5))
		require.NoError(t, v.Deposit(bob, amt(5)))
		assert.Equal(t, amt(5).String(), v.State().Receipt(bob).PendingRisky.String())
	})

	t.Run("non-positive amounts rejected", func(t *testing.T) {
		assert.ErrorIs(t, v.Deposit(alice, sdkmath.ZeroInt()), types.ErrInvalidInput)
		assert.ErrorIs(t, v.Deposit(alice, sdkmath.NewInt(-5)), types.ErrInvalidInput)
	})
}

func TestFeeSetters(t *testing.T) {
	v, _ := newTestVault(t)

	t.Run("admin only", func(t *testing.T) {
		err := v.SetManagementFee(alice, sdkmath.NewInt(2_000_000))
		assert.ErrorIs(t, err, types.ErrInvalidInput)
	})

	t.Run("annual rate converts to weekly at set time", func(t *testing.T) {
		// 2% annually over 52.142857 weeks.
		require.NoError(t, v.SetManagementFee(adminAcct, sdkmath.NewInt(2_000_000)))
		assert.Equal(t, "38356", v.Fees().ManagementWeekly.String())
	})

	t.Run("performance fee stored as given", func(t *testing.T) {
		require.NoError(t, v.SetPerformanceFee(adminAcct, sdkmath.NewInt(20_000_000)))
		assert.Equal(t, "20000000", v.Fees().Performance.String())
	})

	t.Run("out of range rejected", func(t *testing.T) {
		err := v.SetPerformanceFee(adminAcct, sdkmath.NewInt(100_000_000))
		assert.ErrorIs(t, err, types.ErrInvalidInput)
		err = v.SetManagementFee(adminAcct, sdkmath.NewInt(-1))
		assert.ErrorIs(t, err, types.ErrInvalidInput)
	})
}

func TestReentrancyGuard(t *testing.T) {
	v, ledger := newTestVault(t)
	ledger.Mint(alice, riskyDenom, amt(10))

	require.NoError(t, v.BeginExclusive("test"))
	err := v.Deposit(alice, amt(1))
	assert.ErrorIs(t, err, types.ErrReentrancy)

	v.EndExclusive()
	assert.NoError(t, v.Deposit(alice, amt(1)))
}

func TestWithdrawalLifecycle(t *testing.T) {
	v, ledger := newTestVault(t)
	ledger.Mint(alice, riskyDenom, amt(100))
	require.NoError(t, v.Deposit(alice, amt(100)))

	// Round 1 settles at unit prices; alice's deposit becomes 100 shares.
	settleRound(t, v, amt(1), amt(1), sdkmath.ZeroInt(), sdkmath.ZeroInt())

	shares, err := v.GetShareBalance(alice)
	require.NoError(t, err)
	require.Equal(t, amt(100).String(), shares.String())

	t.Run("requesting more than owned fails", func(t *testing.T) {
		err := v.RequestWithdraw(alice, amt(200))
		assert.ErrorIs(t, err, types.ErrStateSequence)
	})

	t.Run("same-round requests merge", func(t *testing.T) {
		require.NoError(t, v.RequestWithdraw(alice, amt(30)))
		require.NoError(t, v.RequestWithdraw(alice, amt(10)))
		assert.Equal(t, amt(40).String(), v.State().CurrQueuedWithdrawShares.String())
		shares, err := v.GetShareBalance(alice)
		require.NoError(t, err)
		assert.Equal(t, amt(60).String(), shares.String())
	})

	t.Run("completion before settlement fails", func(t *testing.T) {
		_, _, err := v.CompleteWithdraw(alice)
		assert.ErrorIs(t, err, types.ErrStateSequence)
	})

	// Round 2 settles, still at unit prices. The vault earns nothing in
	// stable, so the stable leg of the payout has to be provisioned.
	ledger.Mint(vaultAcct, stableDenom, amt(40))
	settleRound(t, v, amt(1), amt(1), amt(40), amt(40))

	t.Run("request while older one is unsettled fails", func(t *testing.T) {
		err := v.RequestWithdraw(alice, amt(10))
		assert.ErrorIs(t, err, types.ErrStateSequence)
	})

	t.Run("completion pays both assets at the request round's prices", func(t *testing.T) {
		risky, stable, err := v.CompleteWithdraw(alice)
		require.NoError(t, err)
		assert.Equal(t, amt(40).String(), risky.String())
		assert.Equal(t, amt(40).String(), stable.String())

		aliceRisky, err := ledger.BalanceOf(alice, riskyDenom)
		require.NoError(t, err)
		assert.Equal(t, amt(40).String(), aliceRisky.String())

		assert.Equal(t, amt(60).String(), v.State().ShareSupply.String())
		require.NoError(t, v.State().CheckConservation(v.ShareDecimals()))
	})

	t.Run("second completion fails", func(t *testing.T) {
		_, _, err := v.CompleteWithdraw(alice)
		assert.ErrorIs(t, err, types.ErrStateSequence)
	})

	t.Run("stranger has nothing to complete", func(t *testing.T) {
		_, _, err := v.CompleteWithdraw(bob)
		assert.ErrorIs(t, err, types.ErrStateSequence)
	})
}

func TestCompleteWithdrawCompensatesOnFailedLeg(t *testing.T) {
	v, ledger := newTestVault(t)
	ledger.Mint(alice, riskyDenom, amt(10))
	require.NoError(t, v.Deposit(alice, amt(10)))
	settleRound(t, v, amt(1), amt(1), sdkmath.ZeroInt(), sdkmath.ZeroInt())

	require.NoError(t, v.RequestWithdraw(alice, amt(10)))
	// Settle with a stable reserve on the books that the ledger cannot cover.
	settleRound(t, v, amt(1), amt(1), amt(10), amt(10))

	supplyBefore := v.State().ShareSupply
	_, _, err := v.CompleteWithdraw(alice)
	assert.ErrorIs(t, err, types.ErrInsufficientBalance)

	// The failed payout must leave the books unchanged and retryable.
	assert.Equal(t, supplyBefore.String(), v.State().ShareSupply.String())
	assert.Equal(t, amt(10).String(), v.State().Withdrawal(alice).Shares.String())
	assert.Equal(t, amt(10).String(), v.State().LastQueuedWithdrawRisky.String())

	ledger.Mint(vaultAcct, stableDenom, amt(10))
	_, _, err = v.CompleteWithdraw(alice)
	assert.NoError(t, err)
}

// Exercises the read views concurrently with round mutations held under
// BeginExclusive, the same interleaving the HTTP handlers produce against a
// rollover in progress. Run with the race detector.
func TestConcurrentReadsDuringRoundMutation(t *testing.T) {
	v, ledger := newTestVault(t)
	ledger.Mint(alice, riskyDenom, amt(1000))
	require.NoError(t, v.Deposit(alice, amt(10)))

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
			_ = v.Summary()
			v.GetSharePrice()
			_, _, _ = v.PricesAtRound(1)
			_, _, _ = v.GetAccountBalance(alice)
		}
	}()

	unit := amt(1)
	for i := 0; i < 200; i++ {
		require.NoError(t, v.BeginExclusive("round mutation"))
		s := v.State()
		require.NoError(t, s.RecordRoundPrices(s.Round, unit, unit))
		_, err := s.MintPendingShares(unit, v.ShareDecimals())
		require.NoError(t, err)
		s.Round++
		v.EndExclusive()

		require.NoError(t, v.Deposit(alice, amt(1)))
	}
	close(stop)
	wg.Wait()

	sum := v.Summary()
	assert.Equal(t, uint64(201), sum.Round)
	require.NoError(t, v.State().CheckConservation(v.ShareDecimals()))
}
