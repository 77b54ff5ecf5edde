/*

This file contains the simulated market: an in-memory pool venue and swap
venue backed by a SimLedger. Positions hold real ledger balances in the
market account, liquidity math follows the replication ratios the position
was created with, and swaps clear at the current oracle price minus the pool
fee. Used as the paper-trading collaborator and as the test substrate.

*/

package venue

import (
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/primevault/rvm/internal/types"
)

// simPosition is one open replication pool.
type simPosition struct {
	id                string
	riskyPerLiquidity sdkmath.Int
	riskyDecimals     uint8
	feeRate           sdkmath.Int
	maturity          time.Time
	invariant         sdkmath.Int

	liquidity     sdkmath.Int
	reserveRisky  sdkmath.Int
	reserveStable sdkmath.Int
}

// SimMarket implements PoolVenue and SwapVenue against a SimLedger. All pool
// reserves and swap inventory live in a single market account; the vault
// account is the sole counterparty.
type SimMarket struct {
	mu sync.Mutex

	ledger        *SimLedger
	pricing       *SimPricing
	vaultAccount  string
	marketAccount string
	riskyDenom    string
	stableDenom   string

	positions map[string]*simPosition
	nextID    uint64
}

// NewSimMarket builds a market over the given ledger. The market account must
// be funded (via SimLedger.Mint) with swap inventory before swaps can clear.
func NewSimMarket(ledger *SimLedger, pricing *SimPricing, vaultAccount, marketAccount, riskyDenom, stableDenom string) (*SimMarket, error) {
	if ledger == nil || pricing == nil {
		return nil, fmt.Errorf("%w: ledger and pricing cannot be nil", types.ErrInvalidInput)
	}
	if vaultAccount == "" || marketAccount == "" || vaultAccount == marketAccount {
		return nil, fmt.Errorf("%w: vault and market accounts must be distinct and non-empty", types.ErrInvalidInput)
	}
	if riskyDenom == "" || stableDenom == "" || riskyDenom == stableDenom {
		return nil, fmt.Errorf("%w: denoms must be distinct and non-empty", types.ErrInvalidInput)
	}
	return &SimMarket{
		ledger:        ledger,
		pricing:       pricing,
		vaultAccount:  vaultAccount,
		marketAccount: marketAccount,
		riskyDenom:    riskyDenom,
		stableDenom:   stableDenom,
		positions:     make(map[string]*simPosition),
		nextID:        1,
	}, nil
}

// CreatePosition registers a fresh pool with the given replication ratios.
// No capital moves until AddLiquidity.
func (m *SimMarket) CreatePosition(params CreatePositionParams) (string, error) {
	if params.RiskyPerLiquidity.IsNil() || !params.RiskyPerLiquidity.IsPositive() {
		return "", fmt.Errorf("%w: risky reserve ratio must be positive", types.ErrInvalidInput)
	}
	if params.Maturity.IsZero() {
		return "", fmt.Errorf("%w: maturity cannot be zero", types.ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := fmt.Sprintf("rmm-%d", m.nextID)
	m.nextID++
	m.positions[id] = &simPosition{
		id:                id,
		riskyPerLiquidity: params.RiskyPerLiquidity,
		riskyDecimals:     params.RiskyDecimals,
		feeRate:           params.FeeRate,
		maturity:          params.Maturity,
		invariant:         sdkmath.ZeroInt(),
		liquidity:         sdkmath.ZeroInt(),
		reserveRisky:      sdkmath.ZeroInt(),
		reserveStable:     sdkmath.ZeroInt(),
	}
	return id, nil
}

// AddLiquidity moves the deposit from the vault into the pool reserves and
// returns the liquidity units minted, risky / riskyPerLiquidity.
func (m *SimMarket) AddLiquidity(positionID string, risky, stable sdkmath.Int) (sdkmath.Int, error) {
	if risky.IsNil() || !risky.IsPositive() || stable.IsNil() || !stable.IsPositive() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: deposit amounts must be positive", types.ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[positionID]
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: unknown position %q", types.ErrInvalidInput, positionID)
	}

	unit := sdkmath.NewIntWithDecimal(1, int(pos.riskyDecimals))
	liquidity := risky.Mul(unit).Quo(pos.riskyPerLiquidity)
	if !liquidity.IsPositive() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: deposit too small for one liquidity unit", types.ErrInvalidInput)
	}

	if err := m.ledger.Transfer(m.vaultAccount, m.marketAccount, m.riskyDenom, risky); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := m.ledger.Transfer(m.vaultAccount, m.marketAccount, m.stableDenom, stable); err != nil {
		// Return the risky leg so a failed deposit leaves no trace.
		if backErr := m.ledger.Transfer(m.marketAccount, m.vaultAccount, m.riskyDenom, risky); backErr != nil {
			return sdkmath.ZeroInt(), fmt.Errorf("stable leg failed (%v) and risky leg stuck: %w", err, backErr)
		}
		return sdkmath.ZeroInt(), err
	}

	pos.liquidity = pos.liquidity.Add(liquidity)
	pos.reserveRisky = pos.reserveRisky.Add(risky)
	pos.reserveStable = pos.reserveStable.Add(stable)
	return liquidity, nil
}

// RemoveLiquidity burns liquidity and pays the vault its pro-rata share of
// both reserves. Past maturity the payout reflects settlement: the pool is
// valued at the current oracle price against the strike.
func (m *SimMarket) RemoveLiquidity(positionID string, liquidity sdkmath.Int) (sdkmath.Int, sdkmath.Int, error) {
	if liquidity.IsNil() || !liquidity.IsPositive() {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), fmt.Errorf("%w: liquidity must be positive", types.ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[positionID]
	if !ok {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), fmt.Errorf("%w: unknown position %q", types.ErrInvalidInput, positionID)
	}
	if liquidity.GT(pos.liquidity) {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), fmt.Errorf("%w: position holds %s liquidity, requested %s", types.ErrInsufficientBalance, pos.liquidity, liquidity)
	}

	outRisky := pos.reserveRisky.Mul(liquidity).Quo(pos.liquidity)
	outStable := pos.reserveStable.Mul(liquidity).Quo(pos.liquidity)

	if err := m.ledger.Transfer(m.marketAccount, m.vaultAccount, m.riskyDenom, outRisky); err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	if err := m.ledger.Transfer(m.marketAccount, m.vaultAccount, m.stableDenom, outStable); err != nil {
		if backErr := m.ledger.Transfer(m.vaultAccount, m.marketAccount, m.riskyDenom, outRisky); backErr != nil {
			return sdkmath.ZeroInt(), sdkmath.ZeroInt(), fmt.Errorf("stable leg failed (%v) and risky leg stuck: %w", err, backErr)
		}
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}

	pos.liquidity = pos.liquidity.Sub(liquidity)
	pos.reserveRisky = pos.reserveRisky.Sub(outRisky)
	pos.reserveStable = pos.reserveStable.Sub(outStable)
	return outRisky, outStable, nil
}

// InvariantOf reports the pool invariant. The simulator pins it at zero so
// the stable reserve ratio comes purely from the replication formula.
func (m *SimMarket) InvariantOf(positionID string) (sdkmath.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.positions[positionID]
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: unknown position %q", types.ErrInvalidInput, positionID)
	}
	return pos.invariant, nil
}

// DriftReserves moves pool reserves without touching liquidity: the test hook
// for simulating a round's trading outcome. Positive deltas mint into the
// market account, negative deltas burn out of it.
func (m *SimMarket) DriftReserves(positionID string, deltaRisky, deltaStable sdkmath.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[positionID]
	if !ok {
		return fmt.Errorf("%w: unknown position %q", types.ErrInvalidInput, positionID)
	}
	newRisky := pos.reserveRisky.Add(deltaRisky)
	newStable := pos.reserveStable.Add(deltaStable)
	if newRisky.IsNegative() || newStable.IsNegative() {
		return fmt.Errorf("%w: drift would leave negative reserves", types.ErrInvalidInput)
	}
	if err := m.ledger.Adjust(m.marketAccount, m.riskyDenom, deltaRisky); err != nil {
		return err
	}
	if err := m.ledger.Adjust(m.marketAccount, m.stableDenom, deltaStable); err != nil {
		return err
	}
	pos.reserveRisky = newRisky
	pos.reserveStable = newStable
	return nil
}

// Swap exchanges amountIn of tokenIn for tokenOut at the current oracle price
// minus the swap fee, clearing against the market account's own inventory.
func (m *SimMarket) Swap(tokenIn, tokenOut string, amountIn, minAmountOut sdkmath.Int) (sdkmath.Int, error) {
	if amountIn.IsNil() || !amountIn.IsPositive() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: swap input must be positive", types.ErrInvalidInput)
	}
	if tokenIn == tokenOut {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: cannot swap %q for itself", types.ErrInvalidInput, tokenIn)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	amountOut, err := m.quote(tokenIn, tokenOut, amountIn)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if !minAmountOut.IsNil() && amountOut.LT(minAmountOut) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: quote %s below minimum %s", types.ErrSlippage, amountOut, minAmountOut)
	}

	if err := m.ledger.Transfer(m.vaultAccount, m.marketAccount, tokenIn, amountIn); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := m.ledger.Transfer(m.marketAccount, m.vaultAccount, tokenOut, amountOut); err != nil {
		if backErr := m.ledger.Transfer(m.marketAccount, m.vaultAccount, tokenIn, amountIn); backErr != nil {
			return sdkmath.ZeroInt(), fmt.Errorf("out leg failed (%v) and in leg stuck: %w", err, backErr)
		}
		return sdkmath.ZeroInt(), err
	}
	return amountOut, nil
}

// quote prices amountIn at the oracle rate with the swap fee taken off the
// output. Fee is percent scaled by 1e6, so the divisor is 100 * 1e6.
func (m *SimMarket) quote(tokenIn, tokenOut string, amountIn sdkmath.Int) (sdkmath.Int, error) {
	var price sdkmath.Int
	var err error
	switch {
	case tokenIn == m.riskyDenom && tokenOut == m.stableDenom:
		price, err = m.pricing.OracleRiskyToStablePrice()
	case tokenIn == m.stableDenom && tokenOut == m.riskyDenom:
		price, err = m.pricing.OracleStableToRiskyPrice()
	default:
		return sdkmath.ZeroInt(), fmt.Errorf("%w: unsupported pair %s/%s", types.ErrInvalidInput, tokenIn, tokenOut)
	}
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: oracle quote failed: %v", types.ErrExternalComputation, err)
	}
	oracleDecimals, err := m.pricing.OracleDecimals()
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: oracle decimals unavailable: %v", types.ErrExternalComputation, err)
	}

	gross := amountIn.Mul(price).Quo(sdkmath.NewIntWithDecimal(1, int(oracleDecimals)))
	feeRate, err := m.pricing.NextFeeRate()
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: fee rate unavailable: %v", types.ErrExternalComputation, err)
	}
	fee := gross.Mul(feeRate).Quo(sdkmath.NewInt(100_000_000))
	return gross.Sub(fee), nil
}
