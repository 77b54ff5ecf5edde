/*

This file contains the round lifecycle controller: the two-phase state machine
that stages the next replication position and then rolls the vault over into
it. PreparePosition and Rollover are operator-only and strictly ordered; a
rollover without a prepared position, or before the readiness gate, fails
without touching state.

Rollover policy on placement failure: the round advance and the permanent
share-price record are committed before capital placement is attempted. If
placement fails the round stays advanced and the capital sits idle in the
vault balance, where the next round's locked calculation sweeps it up.

*/

package lifecycle

import (
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/primevault/rvm/internal/logger"
	"github.com/primevault/rvm/internal/metrics"
	"github.com/primevault/rvm/internal/rebalancer"
	"github.com/primevault/rvm/internal/sharemath"
	"github.com/primevault/rvm/internal/state"
	"github.com/primevault/rvm/internal/types"
	"github.com/primevault/rvm/internal/utils"
	"github.com/primevault/rvm/internal/vault"
	"github.com/primevault/rvm/internal/venue"
)

// reserveRatioBounds clamp the replication ratio to an open interval: a pool
// cannot be created with reserves at exactly 0% or 100% of a liquidity unit.
const (
	reserveRatioMinPercent = 1
	reserveRatioMaxPercent = 99
)

// roundOverride is a manually supplied parameter stamped with the round it was
// set in. It only applies when the position for that exact round is prepared;
// afterwards resolution falls back to the pricing manager.
type roundOverride struct {
	value sdkmath.Int
	round uint64
	set   bool
}

// Config holds the dependencies for creating a Controller.
type Config struct {
	Vault   *vault.Vault
	Pricing venue.PricingManager
	Pools   venue.PoolVenue
	Swapper venue.SwapVenue

	Operator string

	// RolloverGate is the minimum delay between preparing a position and
	// rolling over into it.
	RolloverGate time.Duration

	// SwapSlippage is the rebalance swap's slippage tolerance, percent scaled
	// by 1e6. Nil means zero tolerance.
	SwapSlippage sdkmath.Int

	// Now overrides the clock, nil means time.Now.
	Now func() time.Time
}

// Controller orchestrates round transitions against the vault's RoundState.
type Controller struct {
	vault   *vault.Vault
	pricing venue.PricingManager
	pools   venue.PoolVenue
	swapper venue.SwapVenue

	operator     string
	rolloverGate time.Duration
	swapSlippage sdkmath.Int
	now          func() time.Time

	// posMu fences position against the read-only HTTP views; the lifecycle
	// operations themselves are already serialized by the vault's exclusivity.
	posMu    sync.RWMutex
	position types.PoolPosition

	strikeOverride  roundOverride
	volOverride     roundOverride
	feeRateOverride roundOverride

	logger zerolog.Logger
}

// NewController validates the configuration and returns a controller with no
// position staged.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Vault == nil {
		return nil, fmt.Errorf("%w: vault cannot be nil", types.ErrInvalidInput)
	}
	if cfg.Pricing == nil {
		return nil, fmt.Errorf("%w: pricing manager cannot be nil", types.ErrInvalidInput)
	}
	if cfg.Pools == nil {
		return nil, fmt.Errorf("%w: pool venue cannot be nil", types.ErrInvalidInput)
	}
	if cfg.Swapper == nil {
		return nil, fmt.Errorf("%w: swap venue cannot be nil", types.ErrInvalidInput)
	}
	if cfg.Operator == "" {
		return nil, fmt.Errorf("%w: operator account cannot be empty", types.ErrInvalidInput)
	}
	if cfg.RolloverGate < 0 {
		return nil, fmt.Errorf("%w: rollover gate cannot be negative", types.ErrInvalidInput)
	}
	slippage := cfg.SwapSlippage
	if slippage.IsNil() {
		slippage = sdkmath.ZeroInt()
	}
	if slippage.IsNegative() {
		return nil, fmt.Errorf("%w: swap slippage cannot be negative", types.ErrInvalidInput)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Controller{
		vault:        cfg.Vault,
		pricing:      cfg.Pricing,
		pools:        cfg.Pools,
		swapper:      cfg.Swapper,
		operator:     cfg.Operator,
		rolloverGate: cfg.RolloverGate,
		swapSlippage: slippage,
		now:          now,
		position:     types.NewPoolPosition(),
		logger:       logger.GetForComponent("lifecycle"),
	}, nil
}

// Position returns a copy of the current position bookkeeping.
func (c *Controller) Position() types.PoolPosition {
	c.posMu.RLock()
	defer c.posMu.RUnlock()
	return c.position
}

// setPosition applies a mutation to the position under the write lock.
func (c *Controller) setPosition(mutate func(*types.PoolPosition)) {
	c.posMu.Lock()
	defer c.posMu.Unlock()
	mutate(&c.position)
}

func (c *Controller) requireOperator(caller string) error {
	if caller != c.operator {
		return fmt.Errorf("%w: caller %q is not the operator", types.ErrInvalidInput, caller)
	}
	return nil
}

// SetStrike pins the strike for the position prepared in the current round.
func (c *Controller) SetStrike(caller string, value sdkmath.Int) error {
	return c.setOverride(caller, value, &c.strikeOverride, "strike")
}

// SetVolatility pins the implied volatility for the current round.
func (c *Controller) SetVolatility(caller string, value sdkmath.Int) error {
	return c.setOverride(caller, value, &c.volOverride, "volatility")
}

// SetFeeRate pins the pool fee rate for the current round.
func (c *Controller) SetFeeRate(caller string, value sdkmath.Int) error {
	return c.setOverride(caller, value, &c.feeRateOverride, "fee rate")
}

func (c *Controller) setOverride(caller string, value sdkmath.Int, ov *roundOverride, name string) error {
	if err := c.requireOperator(caller); err != nil {
		return err
	}
	if value.IsNil() || !value.IsPositive() {
		return fmt.Errorf("%w: %s override must be positive", types.ErrInvalidInput, name)
	}
	ov.value = value
	ov.round = c.vault.Summary().Round
	ov.set = true
	c.logger.Info().
		Str("value", value.String()).
		Uint64("round", ov.round).
		Str("parameter", name).
		Msg("Manual override set for this round")
	return nil
}

// resolveParam returns the override if one was stamped for the current round,
// otherwise the pricing manager's value. Zero or negative results abort the
// enclosing preparation.
func (c *Controller) resolveParam(ov roundOverride, fallback func() (sdkmath.Int, error), name string) (sdkmath.Int, error) {
	if ov.set && ov.round == c.vault.State().Round {
		return ov.value, nil
	}
	v, err := fallback()
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("%w: pricing manager failed for %s: %v", types.ErrExternalComputation, name, err)
	}
	if v.IsNil() || !v.IsPositive() {
		return sdkmath.Int{}, fmt.Errorf("%w: %s must be strictly positive, got %s", types.ErrExternalComputation, name, v)
	}
	return v, nil
}

// PreparePosition stages the next round's replication position: resolves the
// option parameters, creates the pool, and records the staged params plus the
// earliest time a rollover may promote them. Nothing is written on failure.
func (c *Controller) PreparePosition(caller string) error {
	if err := c.requireOperator(caller); err != nil {
		return err
	}
	if err := c.vault.BeginExclusive("prepare position"); err != nil {
		return err
	}
	defer c.vault.EndExclusive()

	prepLogger := c.logger.With().
		Str("prepare_id", uuid.New().String()).
		Uint64("round", c.vault.State().Round).
		Logger()

	now := c.now()
	maturity := NextMaturity(now, c.position.CurrentParams.Maturity)

	strike, err := c.resolveParam(c.strikeOverride, c.pricing.NextStrike, "strike")
	if err != nil {
		return err
	}
	vol, err := c.resolveParam(c.volOverride, c.pricing.NextVolatility, "volatility")
	if err != nil {
		return err
	}
	feeRate, err := c.resolveParam(c.feeRateOverride, c.pricing.NextFeeRate, "fee rate")
	if err != nil {
		return err
	}

	spot, err := c.pricing.OracleRiskyToStablePrice()
	if err != nil || !spot.IsPositive() {
		return fmt.Errorf("%w: oracle spot price unavailable: %v", types.ErrExternalComputation, err)
	}

	cfg := c.vault.Config()
	tau := maturity.Sub(now)
	riskyPerLiquidity, err := c.pricing.RiskyPerLiquidityUnit(spot, strike, vol, tau, cfg.RiskyDecimals, cfg.StableDecimals)
	if err != nil {
		return fmt.Errorf("%w: risky reserve ratio: %v", types.ErrExternalComputation, err)
	}
	riskyPerLiquidity = clampReserveRatio(riskyPerLiquidity, cfg.RiskyDecimals)

	positionID, err := c.pools.CreatePosition(venue.CreatePositionParams{
		RiskyDecimals:     cfg.RiskyDecimals,
		StableDecimals:    cfg.StableDecimals,
		Strike:            strike,
		ImpliedVolatility: vol,
		Maturity:          maturity,
		FeeRate:           feeRate,
		RiskyPerLiquidity: riskyPerLiquidity,
		MinLiquidity:      cfg.MinLiquidity,
	})
	if err != nil {
		return fmt.Errorf("%w: pool creation failed: %v", types.ErrExternalComputation, err)
	}

	invariant, err := c.pools.InvariantOf(positionID)
	if err != nil {
		return fmt.Errorf("%w: pool invariant unavailable: %v", types.ErrExternalComputation, err)
	}
	stablePerLiquidity, err := c.pricing.StablePerLiquidityUnit(invariant, riskyPerLiquidity, strike, vol, tau, cfg.RiskyDecimals, cfg.StableDecimals)
	if err != nil {
		return fmt.Errorf("%w: stable reserve ratio: %v", types.ErrExternalComputation, err)
	}
	if stablePerLiquidity.IsNegative() {
		return fmt.Errorf("%w: stable reserve ratio is negative", types.ErrExternalComputation)
	}

	c.setPosition(func(p *types.PoolPosition) {
		p.NextID = positionID
		p.NextParams = types.PoolParams{
			Strike:             strike,
			ImpliedVolatility:  vol,
			Maturity:           maturity,
			FeeRate:            feeRate,
			RiskyPerLiquidity:  riskyPerLiquidity,
			StablePerLiquidity: stablePerLiquidity,
		}
		p.NextReadyAt = now.Add(c.rolloverGate)
	})

	prepLogger.Info().
		Str("positionID", positionID).
		Str("strike", strike.String()).
		Str("volatility", vol.String()).
		Str("feeRate", feeRate.String()).
		Time("maturity", maturity).
		Str("riskyPerLiquidity", riskyPerLiquidity.String()).
		Str("stablePerLiquidity", stablePerLiquidity.String()).
		Time("readyAt", c.position.NextReadyAt).
		Msg("Next position prepared")
	return nil
}

// clampReserveRatio keeps the risky-per-liquidity ratio inside the open
// (1%, 99%) interval of one whole risky unit.
func clampReserveRatio(ratio sdkmath.Int, riskyDecimals uint8) sdkmath.Int {
	unit := sdkmath.NewIntWithDecimal(1, int(riskyDecimals))
	min := unit.MulRaw(reserveRatioMinPercent).QuoRaw(100)
	max := unit.MulRaw(reserveRatioMaxPercent).QuoRaw(100)
	if ratio.LT(min) {
		return min
	}
	if ratio.GT(max) {
		return max
	}
	return ratio
}

// Rollover executes one full round transition: closes the expiring position,
// charges fees, settles this round's withdrawal requests at the new share
// price, mints shares for pending deposits, advances the round, and places the
// remaining capital into the prepared position.
func (c *Controller) Rollover(caller string) error {
	if err := c.requireOperator(caller); err != nil {
		return err
	}
	if err := c.vault.BeginExclusive("rollover"); err != nil {
		return err
	}
	defer c.vault.EndExclusive()

	s := c.vault.State()
	cfg := c.vault.Config()
	ds := c.vault.ShareDecimals()

	if c.position.NextID == "" {
		return fmt.Errorf("%w: no prepared position to roll into", types.ErrStateSequence)
	}
	now := c.now()
	if now.Before(c.position.NextReadyAt) {
		return fmt.Errorf("%w: rollover not ready until %s", types.ErrStateSequence, c.position.NextReadyAt)
	}

	started := time.Now()
	rollLogger := c.logger.With().
		Str("rollover_id", uuid.New().String()).
		Uint64("round", s.Round).
		Logger()
	rollLogger.Info().Msg("--- Starting rollover ---")

	// Close the expiring position so its reserves are back in the balance.
	if c.position.CurrentID != "" && c.position.CurrentLiquidity.IsPositive() {
		recoveredRisky, recoveredStable, err := c.pools.RemoveLiquidity(c.position.CurrentID, c.position.CurrentLiquidity)
		if err != nil {
			return fmt.Errorf("closing position %s: %w", c.position.CurrentID, err)
		}
		c.setPosition(func(p *types.PoolPosition) {
			p.CurrentLiquidity = sdkmath.ZeroInt()
		})
		rollLogger.Info().
			Str("positionID", c.position.CurrentID).
			Str("recoveredRisky", recoveredRisky.String()).
			Str("recoveredStable", recoveredStable.String()).
			Msg("Expiring position closed")
	}

	balRisky, err := cfg.Ledger.BalanceOf(cfg.VaultAccount, cfg.RiskyDenom)
	if err != nil {
		return fmt.Errorf("reading risky balance: %w", err)
	}
	balStable, err := cfg.Ledger.BalanceOf(cfg.VaultAccount, cfg.StableDenom)
	if err != nil {
		return fmt.Errorf("reading stable balance: %w", err)
	}

	price, err := c.pricing.OracleRiskyToStablePrice()
	if err != nil || !price.IsPositive() {
		return fmt.Errorf("%w: oracle price unavailable for rollover: %v", types.ErrExternalComputation, err)
	}
	oracleDecimals, err := c.pricing.OracleDecimals()
	if err != nil {
		return fmt.Errorf("%w: oracle decimals unavailable: %v", types.ErrExternalComputation, err)
	}

	// Fee round: baseline is last round's locked capital, the post figures are
	// current balances net of the settled withdrawal reserve and of pending
	// deposits (principal is never fee-able).
	fees, err := ComputeFees(FeeInputs{
		PreRisky:       s.LastLockedRisky,
		PreStable:      s.LastLockedStable,
		PostRisky:      clampZero(balRisky.Sub(s.LastQueuedWithdrawRisky).Sub(s.PendingRisky)),
		PostStable:     clampZero(balStable.Sub(s.LastQueuedWithdrawStable)),
		Price:          price,
		OracleDecimals: oracleDecimals,
		Params:         c.vault.Fees(),
	})
	if err != nil {
		return err
	}
	workRisky := balRisky.Sub(fees.Risky)
	workStable := balStable.Sub(fees.Stable)

	// New share prices. Outstanding withdrawal claims from earlier rounds do
	// not participate in price discovery; this round's fresh requests do, and
	// settle at exactly the price they helped discover.
	pricingSupply := s.ShareSupply.Sub(s.TotalQueuedWithdrawShares)
	priceInRisky, err := sharemath.SharePrice(pricingSupply, workRisky.Sub(s.LastQueuedWithdrawRisky), s.PendingRisky, ds)
	if err != nil {
		return fmt.Errorf("computing risky share price: %w", err)
	}
	priceInStable, err := sharemath.SharePrice(pricingSupply, workStable.Sub(s.LastQueuedWithdrawStable), sdkmath.ZeroInt(), ds)
	if err != nil {
		return fmt.Errorf("computing stable share price: %w", err)
	}

	settledRisky, err := sharemath.SharesToAsset(s.CurrQueuedWithdrawShares, priceInRisky, ds)
	if err != nil {
		return err
	}
	settledStable, err := sharemath.SharesToAsset(s.CurrQueuedWithdrawShares, priceInStable, ds)
	if err != nil {
		return err
	}
	newQueuedRisky := s.LastQueuedWithdrawRisky.Add(settledRisky)
	newQueuedStable := s.LastQueuedWithdrawStable.Add(settledStable)

	lockedRisky := workRisky.Sub(newQueuedRisky)
	lockedStable := workStable.Sub(newQueuedStable)
	if lockedRisky.IsNegative() || lockedStable.IsNegative() {
		return fmt.Errorf("%w: withdrawal reserve exceeds working balance", types.ErrStateSequence)
	}

	// Pay fees out before committing; amounts at or below the liquidity floor
	// are withheld so the balance never drains under the pool minimum.
	if err := c.payFees(fees, rollLogger); err != nil {
		return err
	}

	// Commit the accounting as one unit.
	closingRound := s.Round
	if err := s.RecordRoundPrices(closingRound, priceInRisky, priceInStable); err != nil {
		return err
	}
	minted, err := s.MintPendingShares(priceInRisky, ds)
	if err != nil {
		return err
	}
	settledShares := s.CurrQueuedWithdrawShares
	s.TotalQueuedWithdrawShares = s.TotalQueuedWithdrawShares.Add(settledShares)
	s.CurrQueuedWithdrawShares = sdkmath.ZeroInt()
	s.LastQueuedWithdrawRisky = newQueuedRisky
	s.LastQueuedWithdrawStable = newQueuedStable
	s.LockedRisky = lockedRisky
	s.LockedStable = lockedStable
	s.LastLockedRisky = lockedRisky
	s.LastLockedStable = lockedStable
	s.Round = closingRound + 1

	params := c.position.NextParams
	c.setPosition(func(p *types.PoolPosition) {
		p.CurrentID = p.NextID
		p.CurrentParams = params
		p.CurrentLiquidity = sdkmath.ZeroInt()
		p.NextID = ""
		p.NextParams = types.PoolParams{}
		p.NextReadyAt = time.Time{}
	})

	rollLogger.Info().
		Uint64("newRound", s.Round).
		Str("priceInRisky", priceInRisky.String()).
		Str("priceInStable", priceInStable.String()).
		Str("sharesMinted", minted.String()).
		Str("withdrawSharesSettled", settledShares.String()).
		Str("feeRisky", fees.Risky.String()).
		Str("feeStable", fees.Stable.String()).
		Str("lockedRisky", lockedRisky.String()).
		Str("lockedStable", lockedStable.String()).
		Msg("Round accounting committed")

	// Place the locked capital. The round is already advanced: a failure here
	// leaves the funds idle, to be swept into the next round automatically.
	placed := c.placeCapital(params, price, oracleDecimals, rollLogger)

	if err := s.CheckConservation(ds); err != nil {
		rollLogger.Error().Err(err).Msg("Post-rollover conservation audit failed")
	}

	c.saveSnapshot(types.RoundSnapshot{
		Round:                closingRound,
		Timestamp:            now,
		PriceInRisky:         priceInRisky.String(),
		PriceInStable:        priceInStable.String(),
		ManagementFeeRisky:   fees.Risky.Sub(fees.PerformanceRisky).String(),
		ManagementFeeStable:  fees.Stable.Sub(fees.PerformanceStable).String(),
		PerformanceFeeRisky:  fees.PerformanceRisky.String(),
		PerformanceFeeStable: fees.PerformanceStable.String(),
		SharesMinted:         minted.String(),
		WithdrawalShares:     settledShares.String(),
		LockedRisky:          s.LockedRisky.String(),
		LockedStable:         s.LockedStable.String(),
		PositionID:           c.position.CurrentID,
		Placed:               placed,
	}, rollLogger)

	c.updateMetrics(fees)
	metrics.RolloversTotal.Inc()
	metrics.RolloverDuration.Observe(time.Since(started).Seconds())

	rollLogger.Info().
		Str("duration", time.Since(started).String()).
		Msg("--- Rollover completed ---")
	return nil
}

func clampZero(v sdkmath.Int) sdkmath.Int {
	if v.IsNegative() {
		return sdkmath.ZeroInt()
	}
	return v
}

// payFees transfers the round fees to the recipient, withholding any leg at or
// below the minimum-liquidity floor.
func (c *Controller) payFees(fees FeeResult, rollLogger zerolog.Logger) error {
	cfg := c.vault.Config()
	pay := func(denom string, amount sdkmath.Int) error {
		if !amount.GT(cfg.MinLiquidity) {
			if amount.IsPositive() {
				rollLogger.Info().
					Str("denom", denom).
					Str("amount", amount.String()).
					Msg("Fee below liquidity floor, withheld")
			}
			return nil
		}
		if err := cfg.Ledger.Transfer(cfg.VaultAccount, cfg.FeeRecipient, denom, amount); err != nil {
			return fmt.Errorf("paying %s fee: %w", denom, err)
		}
		return nil
	}
	if err := pay(cfg.RiskyDenom, fees.Risky); err != nil {
		return err
	}
	return pay(cfg.StableDenom, fees.Stable)
}

// placeCapital rebalances the locked inventory to the position's reserve
// ratio and deposits it, reporting whether the capital actually got placed.
func (c *Controller) placeCapital(params types.PoolParams, price sdkmath.Int, oracleDecimals uint8, rollLogger zerolog.Logger) bool {
	s := c.vault.State()
	cfg := c.vault.Config()

	result, err := rebalancer.Rebalance(rebalancer.Inputs{
		RiskyAvailable:      s.LockedRisky,
		StableAvailable:     s.LockedStable,
		TargetRiskyPerUnit:  params.RiskyPerLiquidity,
		TargetStablePerUnit: params.StablePerLiquidity,
		Price:               price,
		OracleDecimals:      oracleDecimals,
		MaxSlippagePercent:  c.swapSlippage,
		RiskyDenom:          cfg.RiskyDenom,
		StableDenom:         cfg.StableDenom,
	}, c.swapper)
	if err != nil {
		rollLogger.Warn().Err(err).Msg("Rebalance failed, capital stays unplaced this round")
		metrics.PlacementFailures.Inc()
		return false
	}

	if !result.RiskyToLock.GT(cfg.MinLiquidity) || !result.StableToLock.GT(cfg.MinLiquidity) {
		rollLogger.Info().
			Str("riskyToLock", result.RiskyToLock.String()).
			Str("stableToLock", result.StableToLock.String()).
			Msg("Allocation below liquidity floor, staying uninvested this round")
		return false
	}

	liquidity, err := c.pools.AddLiquidity(c.position.CurrentID, result.RiskyToLock, result.StableToLock)
	if err != nil {
		rollLogger.Warn().Err(err).Msg("Liquidity deposit failed, capital stays unplaced this round")
		metrics.PlacementFailures.Inc()
		return false
	}

	c.setPosition(func(p *types.PoolPosition) {
		p.CurrentLiquidity = liquidity
	})
	s.LockedRisky = result.RiskyToLock
	s.LockedStable = result.StableToLock
	s.LastLockedRisky = result.RiskyToLock
	s.LastLockedStable = result.StableToLock

	rollLogger.Info().
		Str("positionID", c.position.CurrentID).
		Str("liquidity", liquidity.String()).
		Str("lockedRisky", result.RiskyToLock.String()).
		Str("lockedStable", result.StableToLock.String()).
		Bool("swapped", result.Swapped).
		Msg("Capital placed into position")
	return true
}

// saveSnapshot persists the round outcome; persistence is write-behind and a
// failure only logs, the in-memory ledger stays authoritative.
func (c *Controller) saveSnapshot(snapshot types.RoundSnapshot, rollLogger zerolog.Logger) {
	if !state.Ready() {
		rollLogger.Debug().Msg("State store not configured, skipping snapshot")
		return
	}
	if err := state.SaveRoundPrices(snapshot.Round, snapshot.PriceInRisky, snapshot.PriceInStable); err != nil {
		rollLogger.Error().Err(err).Msg("Failed to persist round prices")
	}
	if _, err := state.SaveRoundSnapshot(snapshot); err != nil {
		rollLogger.Error().Err(err).Msg("Failed to persist round snapshot")
	}
	if err := state.SetRoundCounter(c.vault.State().Round); err != nil {
		rollLogger.Error().Err(err).Msg("Failed to persist round counter")
	}
}

func (c *Controller) updateMetrics(fees FeeResult) {
	s := c.vault.State()
	cfg := c.vault.Config()
	ds := int(c.vault.ShareDecimals())

	metrics.CurrentRound.Set(float64(s.Round))
	if v, err := utils.IntToFloat64(s.LockedRisky, int(cfg.RiskyDecimals)); err == nil {
		metrics.LockedBalance.WithLabelValues("risky").Set(v)
	}
	if v, err := utils.IntToFloat64(s.LockedStable, int(cfg.StableDecimals)); err == nil {
		metrics.LockedBalance.WithLabelValues("stable").Set(v)
	}
	if v, err := utils.IntToFloat64(s.PendingRisky, int(cfg.RiskyDecimals)); err == nil {
		metrics.PendingDeposits.Set(v)
	}
	if v, err := utils.IntToFloat64(s.TotalQueuedWithdrawShares, ds); err == nil {
		metrics.QueuedWithdrawShares.Set(v)
	}
	if v, err := utils.IntToFloat64(fees.Risky.Sub(fees.PerformanceRisky), int(cfg.RiskyDecimals)); err == nil {
		metrics.FeesCharged.WithLabelValues("risky", "management").Add(v)
	}
	if v, err := utils.IntToFloat64(fees.Stable.Sub(fees.PerformanceStable), int(cfg.StableDecimals)); err == nil {
		metrics.FeesCharged.WithLabelValues("stable", "management").Add(v)
	}
	if v, err := utils.IntToFloat64(fees.PerformanceRisky, int(cfg.RiskyDecimals)); err == nil {
		metrics.FeesCharged.WithLabelValues("risky", "performance").Add(v)
	}
	if v, err := utils.IntToFloat64(fees.PerformanceStable, int(cfg.StableDecimals)); err == nil {
		metrics.FeesCharged.WithLabelValues("stable", "performance").Add(v)
	}
}
