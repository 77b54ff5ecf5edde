/*

This file contains the user-facing vault operations: deposits, withdrawal
requests, withdrawal completion and the derived balance views. Every operation
that moves assets runs under the reentrancy guard; accounting either commits
fully or is compensated when the ledger transfer fails, so a failed operation
never leaves the books changed.

*/

package vault

import (
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/primevault/rvm/internal/logger"
	"github.com/primevault/rvm/internal/sharemath"
	"github.com/primevault/rvm/internal/types"
	"github.com/primevault/rvm/internal/venue"
)

const (
	// PercentScale is the fixed-point scale of fee percentages: a stored value
	// of 20_000_000 encodes 20%.
	PercentScale = 1_000_000

	// WeeksPerYearScaled is 52.142857 weeks per year at PercentScale, used to
	// derive the weekly management rate once at parameter-set time.
	WeeksPerYearScaled = 52_142_857
)

// FeeParams are the vault's fee rates, percent scaled by PercentScale.
// ManagementWeekly is already the per-round (weekly) rate.
type FeeParams struct {
	ManagementWeekly sdkmath.Int
	Performance      sdkmath.Int
}

// Config holds everything needed to construct a Vault.
type Config struct {
	VaultAccount string
	FeeRecipient string
	Admin        string

	RiskyDenom     string
	StableDenom    string
	RiskyDecimals  uint8
	StableDecimals uint8

	// MinLiquidity is the floor below which amounts are too small to place or
	// pay out as fees, in base units of each asset.
	MinLiquidity sdkmath.Int

	Ledger venue.AssetLedger
}

// Vault owns the RoundState and exposes the depositor-facing operations. The
// round lifecycle controller drives rollovers through the same aggregate.
//
// mu guards the RoundState against the read-only HTTP views: every mutating
// operation holds the write lock (BeginExclusive acquires it for the whole
// lifecycle transition) and the derived views take the read lock. The guard
// still rejects re-entrant mutations; the mutex only fences readers.
type Vault struct {
	cfg    Config
	mu     sync.RWMutex
	state  *RoundState
	fees   FeeParams
	guard  reentrancyGuard
	logger zerolog.Logger
}

// New validates the configuration and returns a vault at round 1.
func New(cfg Config) (*Vault, error) {
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("%w: asset ledger cannot be nil", types.ErrInvalidInput)
	}
	if cfg.VaultAccount == "" || cfg.FeeRecipient == "" || cfg.Admin == "" {
		return nil, fmt.Errorf("%w: vault, fee recipient and admin accounts are required", types.ErrInvalidInput)
	}
	if cfg.RiskyDenom == "" || cfg.StableDenom == "" || cfg.RiskyDenom == cfg.StableDenom {
		return nil, fmt.Errorf("%w: risky and stable denoms must be distinct and non-empty", types.ErrInvalidInput)
	}
	if cfg.RiskyDecimals > sharemath.MaxDecimals || cfg.StableDecimals > sharemath.MaxDecimals {
		return nil, fmt.Errorf("%w: decimals must be at most %d", types.ErrInvalidInput, sharemath.MaxDecimals)
	}
	if cfg.MinLiquidity.IsNil() || cfg.MinLiquidity.IsNegative() {
		return nil, fmt.Errorf("%w: min liquidity cannot be negative", types.ErrInvalidInput)
	}
	return &Vault{
		cfg:   cfg,
		state: NewRoundState(),
		fees: FeeParams{
			ManagementWeekly: sdkmath.ZeroInt(),
			Performance:      sdkmath.ZeroInt(),
		},
		logger: logger.GetForComponent("vault"),
	}, nil
}

// State exposes the ledger to the lifecycle controller. Callers other than
// tests must hold the vault exclusively (BeginExclusive) while touching it.
func (v *Vault) State() *RoundState { return v.state }

// Config returns the vault configuration.
func (v *Vault) Config() Config { return v.cfg }

// Fees returns the current fee parameters.
func (v *Vault) Fees() FeeParams { return v.fees }

// ShareDecimals is the precision of the share token. Shares mirror the risky
// asset's precision, so one whole share and one whole risky unit scale alike.
func (v *Vault) ShareDecimals() uint8 { return v.cfg.RiskyDecimals }

// BeginExclusive acquires the reentrancy guard and the state write lock for a
// lifecycle transition, so depositor operations cannot interleave with a
// rollover in progress and concurrent readers never observe it half-done.
func (v *Vault) BeginExclusive(op string) error {
	if err := v.guard.enter(op); err != nil {
		return err
	}
	v.mu.Lock()
	return nil
}

// EndExclusive releases the lock and the guard.
func (v *Vault) EndExclusive() {
	v.mu.Unlock()
	v.guard.exit()
}

// SetManagementFee sets the management fee from an annual percentage, caller
// must be the admin. The annual rate is converted to the weekly rate here,
// once, not at every rollover.
func (v *Vault) SetManagementFee(caller string, annualPercent sdkmath.Int) error {
	if err := v.requireAdmin(caller); err != nil {
		return err
	}
	if err := validatePercent(annualPercent); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fees.ManagementWeekly = annualPercent.MulRaw(PercentScale).QuoRaw(WeeksPerYearScaled)
	v.logger.Info().
		Str("annualPercent", annualPercent.String()).
		Str("weeklyPercent", v.fees.ManagementWeekly.String()).
		Msg("Management fee updated")
	return nil
}

// SetPerformanceFee sets the per-round performance fee, admin only.
func (v *Vault) SetPerformanceFee(caller string, percent sdkmath.Int) error {
	if err := v.requireAdmin(caller); err != nil {
		return err
	}
	if err := validatePercent(percent); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fees.Performance = percent
	v.logger.Info().Str("percent", percent.String()).Msg("Performance fee updated")
	return nil
}

func (v *Vault) requireAdmin(caller string) error {
	if caller != v.cfg.Admin {
		return fmt.Errorf("%w: caller %q is not the vault admin", types.ErrInvalidInput, caller)
	}
	return nil
}

func validatePercent(p sdkmath.Int) error {
	if p.IsNil() || p.IsNegative() || p.GTE(sdkmath.NewInt(100*PercentScale)) {
		return fmt.Errorf("%w: percent must be in [0%%, 100%%)", types.ErrInvalidInput)
	}
	return nil
}

// Deposit records amount of the risky asset as a pending deposit for account
// and pulls the funds into the vault. A stale pending entry from an older
// round is first resolved into owned shares before the new amount is recorded.
func (v *Vault) Deposit(account string, amount sdkmath.Int) error {
	if err := v.guard.enter("deposit"); err != nil {
		return err
	}
	defer v.guard.exit()
	v.mu.Lock()
	defer v.mu.Unlock()

	if account == "" {
		return fmt.Errorf("%w: account cannot be empty", types.ErrInvalidInput)
	}
	if amount.IsNil() || !amount.IsPositive() {
		return fmt.Errorf("%w: deposit amount must be positive", types.ErrInvalidInput)
	}

	receipt, err := v.refreshedReceipt(account)
	if err != nil {
		return err
	}
	receipt.PendingRisky = receipt.PendingRisky.Add(amount)

	// Commit before the external pull; a failed transfer restores the books.
	prev := v.state.Receipt(account)
	v.state.SetReceipt(account, receipt)
	v.state.PendingRisky = v.state.PendingRisky.Add(amount)

	if err := v.cfg.Ledger.Transfer(account, v.cfg.VaultAccount, v.cfg.RiskyDenom, amount); err != nil {
		v.state.SetReceipt(account, prev)
		v.state.PendingRisky = v.state.PendingRisky.Sub(amount)
		return err
	}

	v.logger.Info().
		Str("account", account).
		Str("amount", amount.String()).
		Uint64("round", v.state.Round).
		Msg("Deposit recorded")
	return nil
}

// RequestWithdraw queues shares of the caller for exit at the next rollover's
// settlement price. A second request in the same round merges; a request while
// an older round's request is still unsettled is rejected.
func (v *Vault) RequestWithdraw(account string, shares sdkmath.Int) error {
	if err := v.guard.enter("request withdraw"); err != nil {
		return err
	}
	defer v.guard.exit()
	v.mu.Lock()
	defer v.mu.Unlock()

	if account == "" {
		return fmt.Errorf("%w: account cannot be empty", types.ErrInvalidInput)
	}
	if shares.IsNil() || !shares.IsPositive() {
		return fmt.Errorf("%w: withdrawal shares must be positive", types.ErrInvalidInput)
	}

	w := v.state.Withdrawal(account)
	if w.Shares.IsPositive() && w.Round < v.state.Round {
		return fmt.Errorf("%w: withdrawal from round %d is still unsettled, complete it first", types.ErrStateSequence, w.Round)
	}

	receipt, err := v.refreshedReceipt(account)
	if err != nil {
		return err
	}
	if receipt.OwnedShares.LT(shares) {
		return fmt.Errorf("%w: requested %s shares but only %s owned", types.ErrStateSequence, shares, receipt.OwnedShares)
	}

	receipt.OwnedShares = receipt.OwnedShares.Sub(shares)
	w.Round = v.state.Round
	w.Shares = w.Shares.Add(shares)

	v.state.SetReceipt(account, receipt)
	v.state.SetWithdrawal(account, w)
	v.state.CurrQueuedWithdrawShares = v.state.CurrQueuedWithdrawShares.Add(shares)

	v.logger.Info().
		Str("account", account).
		Str("shares", shares.String()).
		Uint64("round", v.state.Round).
		Msg("Withdrawal requested")
	return nil
}

// CompleteWithdraw pays out the caller's settled withdrawal at the share price
// permanently recorded for the round the request was made in. Only requests
// from a strictly earlier round are payable.
func (v *Vault) CompleteWithdraw(account string) (risky, stable sdkmath.Int, err error) {
	if err := v.guard.enter("complete withdraw"); err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	defer v.guard.exit()
	v.mu.Lock()
	defer v.mu.Unlock()

	w := v.state.Withdrawal(account)
	if !w.Shares.IsPositive() {
		return sdkmath.Int{}, sdkmath.Int{}, fmt.Errorf("%w: no withdrawal requested", types.ErrStateSequence)
	}
	if w.Round >= v.state.Round {
		return sdkmath.Int{}, sdkmath.Int{}, fmt.Errorf("%w: withdrawal from round %d is not priced until rollover", types.ErrStateSequence, w.Round)
	}

	priceRisky, priceStable, err := v.state.PricesAt(w.Round)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	amtRisky, err := sharemath.SharesToAsset(w.Shares, priceRisky, v.ShareDecimals())
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	amtStable, err := sharemath.SharesToAsset(w.Shares, priceStable, v.ShareDecimals())
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	if amtRisky.GT(v.state.LastQueuedWithdrawRisky) || amtStable.GT(v.state.LastQueuedWithdrawStable) {
		return sdkmath.Int{}, sdkmath.Int{}, fmt.Errorf("%w: payout exceeds withdrawal reserve", types.ErrStateSequence)
	}

	shares := w.Shares
	v.state.SetWithdrawal(account, types.PendingWithdrawal{Shares: sdkmath.ZeroInt()})
	v.state.TotalQueuedWithdrawShares = v.state.TotalQueuedWithdrawShares.Sub(shares)
	v.state.ShareSupply = v.state.ShareSupply.Sub(shares)
	v.state.LastQueuedWithdrawRisky = v.state.LastQueuedWithdrawRisky.Sub(amtRisky)
	v.state.LastQueuedWithdrawStable = v.state.LastQueuedWithdrawStable.Sub(amtStable)

	restore := func() {
		v.state.SetWithdrawal(account, w)
		v.state.TotalQueuedWithdrawShares = v.state.TotalQueuedWithdrawShares.Add(shares)
		v.state.ShareSupply = v.state.ShareSupply.Add(shares)
		v.state.LastQueuedWithdrawRisky = v.state.LastQueuedWithdrawRisky.Add(amtRisky)
		v.state.LastQueuedWithdrawStable = v.state.LastQueuedWithdrawStable.Add(amtStable)
	}

	if amtRisky.IsPositive() {
		if err := v.cfg.Ledger.Transfer(v.cfg.VaultAccount, account, v.cfg.RiskyDenom, amtRisky); err != nil {
			restore()
			return sdkmath.Int{}, sdkmath.Int{}, err
		}
	}
	if amtStable.IsPositive() {
		if err := v.cfg.Ledger.Transfer(v.cfg.VaultAccount, account, v.cfg.StableDenom, amtStable); err != nil {
			// Return the risky leg so the books match the ledger again.
			if amtRisky.IsPositive() {
				if rerr := v.cfg.Ledger.Transfer(account, v.cfg.VaultAccount, v.cfg.RiskyDenom, amtRisky); rerr != nil {
					return sdkmath.Int{}, sdkmath.Int{}, fmt.Errorf("stable payout failed (%v) and risky compensation failed: %w", err, rerr)
				}
			}
			restore()
			return sdkmath.Int{}, sdkmath.Int{}, err
		}
	}

	v.logger.Info().
		Str("account", account).
		Str("shares", shares.String()).
		Uint64("requestRound", w.Round).
		Str("risky", amtRisky.String()).
		Str("stable", amtStable.String()).
		Msg("Withdrawal completed")
	return amtRisky, amtStable, nil
}

// GetAccountBalance is a derived view of an account's claim, valued at the
// most recently settled share prices.
func (v *Vault) GetAccountBalance(account string) (risky, stable sdkmath.Int, err error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	shares, err := v.state.resolvedShares(account, v.ShareDecimals())
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	priceRisky, priceStable := v.state.LatestPrices(v.ShareDecimals())
	risky, err = sharemath.SharesToAsset(shares, priceRisky, v.ShareDecimals())
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	stable, err = sharemath.SharesToAsset(shares, priceStable, v.ShareDecimals())
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	return risky, stable, nil
}

// GetShareBalance returns an account's resolved share count.
func (v *Vault) GetShareBalance(account string) (sdkmath.Int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state.resolvedShares(account, v.ShareDecimals())
}

// GetSharePrice returns the most recently settled prices in both assets.
func (v *Vault) GetSharePrice() (priceInRisky, priceInStable sdkmath.Int) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state.LatestPrices(v.ShareDecimals())
}

// PricesAtRound looks up the settled share prices of a past round.
func (v *Vault) PricesAtRound(round uint64) (priceInRisky, priceInStable sdkmath.Int, err error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state.PricesAt(round)
}

// Summary is a point-in-time copy of the round accounting for read-only views.
type Summary struct {
	Round uint64

	ShareSupply  sdkmath.Int
	LockedRisky  sdkmath.Int
	LockedStable sdkmath.Int
	PendingRisky sdkmath.Int

	CurrQueuedWithdrawShares  sdkmath.Int
	TotalQueuedWithdrawShares sdkmath.Int

	PriceInRisky  sdkmath.Int
	PriceInStable sdkmath.Int
}

// Summary snapshots the ledger under the read lock. The HTTP handlers read
// from the copy, never from the live RoundState.
func (v *Vault) Summary() Summary {
	v.mu.RLock()
	defer v.mu.RUnlock()
	priceInRisky, priceInStable := v.state.LatestPrices(v.ShareDecimals())
	return Summary{
		Round:                     v.state.Round,
		ShareSupply:               v.state.ShareSupply,
		LockedRisky:               v.state.LockedRisky,
		LockedStable:              v.state.LockedStable,
		PendingRisky:              v.state.PendingRisky,
		CurrQueuedWithdrawShares:  v.state.CurrQueuedWithdrawShares,
		TotalQueuedWithdrawShares: v.state.TotalQueuedWithdrawShares,
		PriceInRisky:              priceInRisky,
		PriceInStable:             priceInStable,
	}
}

// refreshedReceipt returns the account's receipt with any stale pending
// deposit from an older round folded into owned shares and the round field
// advanced to the current round. The result is not stored until the enclosing
// operation commits.
func (v *Vault) refreshedReceipt(account string) (types.DepositReceipt, error) {
	receipt := v.state.Receipt(account)
	owned, err := v.state.resolvedShares(account, v.ShareDecimals())
	if err != nil {
		return types.DepositReceipt{}, err
	}
	if receipt.Round < v.state.Round {
		receipt.PendingRisky = sdkmath.ZeroInt()
	}
	receipt.OwnedShares = owned
	receipt.Round = v.state.Round
	return receipt, nil
}
