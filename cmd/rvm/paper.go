package main

import (
	sdkmath "cosmossdk.io/math"

	"github.com/primevault/rvm/internal/config"
	"github.com/primevault/rvm/internal/venue"
)

// paperVenues bundles the simulated collaborators for paper mode.
type paperVenues struct {
	ledger  *venue.SimLedger
	pricing *venue.SimPricing
	market  *venue.SimMarket
}

// buildPaperVenues wires the in-process ledger, pricing simulator and market,
// funding the market account with deep swap inventory on both sides.
func buildPaperVenues() (*paperVenues, error) {
	ledger := venue.NewSimLedger()

	pricing, err := venue.NewSimPricing(venue.SimPricingConfig{
		Spot:           config.SimSpotPrice,
		Strike:         config.SimStrike,
		Volatility:     config.SimVolatility,
		FeeRate:        config.SimPoolFeeRate,
		OracleDecimals: config.SimOracleDecimals,
		RiskyDecimals:  config.RiskyDecimals,
		StableDecimals: config.StableDecimals,
	})
	if err != nil {
		return nil, err
	}

	market, err := venue.NewSimMarket(ledger, pricing,
		config.VaultAccount, config.MarketAccount,
		config.RiskyDenom, config.StableDenom)
	if err != nil {
		return nil, err
	}

	// Deep inventory so paper swaps never fail on the market side.
	ledger.Mint(config.MarketAccount, config.RiskyDenom, sdkmath.NewIntWithDecimal(1, int(config.RiskyDecimals)+9))
	ledger.Mint(config.MarketAccount, config.StableDenom, sdkmath.NewIntWithDecimal(1, int(config.StableDecimals)+12))

	return &paperVenues{ledger: ledger, pricing: pricing, market: market}, nil
}
