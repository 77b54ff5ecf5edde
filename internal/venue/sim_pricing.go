/*

This file contains the simulated pricing manager: a covered-call replication
model driving the reserve ratios from spot, strike, volatility and time to
maturity. Float math is confined to this simulator; everything it hands back
is fixed point.

*/

package venue

import (
	"fmt"
	"math"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/primevault/rvm/internal/types"
	"github.com/primevault/rvm/internal/utils"
)

const hoursPerYear = 365 * 24

// SimPricing serves option parameters and oracle prices from configurable
// in-memory values. Safe for concurrent reads and updates.
type SimPricing struct {
	mu sync.RWMutex

	spot    float64 // stable per whole risky, e.g. 2000.0
	strike  sdkmath.Int
	vol     sdkmath.Int
	feeRate sdkmath.Int

	oracleDecimals uint8
	riskyDecimals  uint8
	stableDecimals uint8
}

// SimPricingConfig seeds a SimPricing.
type SimPricingConfig struct {
	Spot           float64     // whole-unit spot price
	Strike         sdkmath.Int // oracle-decimal scaled base ratio
	Volatility     sdkmath.Int // percent scaled by 1e6
	FeeRate        sdkmath.Int // percent scaled by 1e6
	OracleDecimals uint8
	RiskyDecimals  uint8
	StableDecimals uint8
}

// NewSimPricing returns a pricing simulator with the given defaults.
func NewSimPricing(cfg SimPricingConfig) (*SimPricing, error) {
	if cfg.Spot <= 0 {
		return nil, fmt.Errorf("%w: spot must be positive", types.ErrInvalidInput)
	}
	if cfg.Strike.IsNil() || !cfg.Strike.IsPositive() ||
		cfg.Volatility.IsNil() || !cfg.Volatility.IsPositive() ||
		cfg.FeeRate.IsNil() || !cfg.FeeRate.IsPositive() {
		return nil, fmt.Errorf("%w: strike, volatility and fee rate must be positive", types.ErrInvalidInput)
	}
	return &SimPricing{
		spot:           cfg.Spot,
		strike:         cfg.Strike,
		vol:            cfg.Volatility,
		feeRate:        cfg.FeeRate,
		oracleDecimals: cfg.OracleDecimals,
		riskyDecimals:  cfg.RiskyDecimals,
		stableDecimals: cfg.StableDecimals,
	}, nil
}

// SetSpot moves the simulated market.
func (p *SimPricing) SetSpot(spot float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.spot = spot
}

func (p *SimPricing) NextStrike() (sdkmath.Int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.strike, nil
}

func (p *SimPricing) NextVolatility() (sdkmath.Int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.vol, nil
}

func (p *SimPricing) NextFeeRate() (sdkmath.Int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.feeRate, nil
}

func (p *SimPricing) OracleDecimals() (uint8, error) {
	return p.oracleDecimals, nil
}

// OracleRiskyToStablePrice returns stable base units per risky base unit,
// scaled by 10^oracleDecimals.
func (p *SimPricing) OracleRiskyToStablePrice() (sdkmath.Int, error) {
	p.mu.RLock()
	spot := p.spot
	p.mu.RUnlock()
	ratio := spot * math.Pow10(int(p.stableDecimals)) / math.Pow10(int(p.riskyDecimals))
	return utils.Float64ToInt(ratio, int(p.oracleDecimals))
}

func (p *SimPricing) OracleStableToRiskyPrice() (sdkmath.Int, error) {
	p.mu.RLock()
	spot := p.spot
	p.mu.RUnlock()
	ratio := math.Pow10(int(p.riskyDecimals)) / (spot * math.Pow10(int(p.stableDecimals)))
	return utils.Float64ToInt(ratio, int(p.oracleDecimals))
}

// RiskyPerLiquidityUnit computes the covered-call replication ratio
// 1 - N(d1), in risky base units per liquidity unit.
func (p *SimPricing) RiskyPerLiquidityUnit(spot, strike, vol sdkmath.Int, timeToMaturity time.Duration, riskyDecimals, stableDecimals uint8) (sdkmath.Int, error) {
	s, k, sigma, tau, err := p.replicationInputs(spot, strike, vol, timeToMaturity, riskyDecimals, stableDecimals)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	d1 := (math.Log(s/k) + (sigma*sigma/2)*tau) / (sigma * math.Sqrt(tau))
	ratio := 1 - stdNormCDF(d1)
	return utils.Float64ToInt(ratio*math.Pow10(int(riskyDecimals)), 0)
}

// StablePerLiquidityUnit back-derives the stable reserve per liquidity unit
// from the pool invariant: K * N(d2) plus the invariant, in stable base units.
func (p *SimPricing) StablePerLiquidityUnit(invariant, riskyPerLiquidity, strike, vol sdkmath.Int, timeToMaturity time.Duration, riskyDecimals, stableDecimals uint8) (sdkmath.Int, error) {
	riskyRatio, err := utils.IntToFloat64(riskyPerLiquidity, int(riskyDecimals))
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if riskyRatio <= 0 || riskyRatio >= 1 {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: risky reserve ratio %f out of range", types.ErrInvalidInput, riskyRatio)
	}
	k, err := p.strikeWhole(strike, riskyDecimals, stableDecimals)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	sigma := percentToFraction(vol)
	tau := timeToMaturity.Hours() / hoursPerYear
	if sigma <= 0 || tau <= 0 {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: volatility and time to maturity must be positive", types.ErrInvalidInput)
	}

	// Invert 1 - N(d1) to recover d1, then shift by sigma*sqrt(tau).
	d1 := stdNormInverse(1 - riskyRatio)
	d2 := d1 - sigma*math.Sqrt(tau)
	stable, err := utils.Float64ToInt(k*stdNormCDF(d2)*math.Pow10(int(stableDecimals)), 0)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if invariant.IsNil() {
		return stable, nil
	}
	return stable.Add(invariant), nil
}

func (p *SimPricing) replicationInputs(spot, strike, vol sdkmath.Int, timeToMaturity time.Duration, riskyDecimals, stableDecimals uint8) (s, k, sigma, tau float64, err error) {
	s, err = p.priceWhole(spot, riskyDecimals, stableDecimals)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	k, err = p.strikeWhole(strike, riskyDecimals, stableDecimals)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	sigma = percentToFraction(vol)
	tau = timeToMaturity.Hours() / hoursPerYear
	if s <= 0 || k <= 0 || sigma <= 0 || tau <= 0 {
		return 0, 0, 0, 0, fmt.Errorf("%w: replication inputs must be positive", types.ErrInvalidInput)
	}
	return s, k, sigma, tau, nil
}

// priceWhole converts an oracle-scaled base ratio back to a whole-unit price.
func (p *SimPricing) priceWhole(price sdkmath.Int, riskyDecimals, stableDecimals uint8) (float64, error) {
	ratio, err := utils.IntToFloat64(price, int(p.oracleDecimals))
	if err != nil {
		return 0, err
	}
	return ratio * math.Pow10(int(riskyDecimals)) / math.Pow10(int(stableDecimals)), nil
}

func (p *SimPricing) strikeWhole(strike sdkmath.Int, riskyDecimals, stableDecimals uint8) (float64, error) {
	return p.priceWhole(strike, riskyDecimals, stableDecimals)
}

func percentToFraction(pct sdkmath.Int) float64 {
	f, err := utils.IntToFloat64(pct, 6)
	if err != nil {
		return 0
	}
	return f / 100
}

func stdNormCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

// stdNormInverse approximates the standard normal quantile via bisection on
// the CDF; plenty accurate for reserve-ratio derivation.
func stdNormInverse(u float64) float64 {
	lo, hi := -8.0, 8.0
	for i := 0; i < 80; i++ {
		mid := (lo + hi) / 2
		if stdNormCDF(mid) < u {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}
