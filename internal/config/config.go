package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"
)

// Application configuration loaded from environment variables. These are
// populated at startup by LoadConfig.
var (
	// VaultAccount is the ledger account holding the vault's inventory.
	VaultAccount string
	// FeeRecipient receives management and performance fees.
	FeeRecipient string
	// AdminAccount may change fee parameters.
	AdminAccount string
	// OperatorAccount drives the round lifecycle.
	OperatorAccount string
	// MarketAccount is the counterparty account in paper mode.
	MarketAccount string

	// RiskyDenom is the ledger denom of the risky asset.
	RiskyDenom string
	// StableDenom is the ledger denom of the stable asset.
	StableDenom string
	// RiskyDecimals is the base-unit precision of the risky asset.
	RiskyDecimals uint8
	// StableDecimals is the base-unit precision of the stable asset.
	StableDecimals uint8

	// ManagementFeeAnnualPercent is the annualized management fee, percent
	// scaled by 1e6 (2% -> 2_000_000).
	ManagementFeeAnnualPercent sdkmath.Int
	// PerformanceFeePercent is the performance fee on round gains, percent
	// scaled by 1e6.
	PerformanceFeePercent sdkmath.Int

	// MinLiquidity is the base-unit floor below which amounts are treated as
	// dust and left in the vault.
	MinLiquidity sdkmath.Int

	// SwapSlippagePercent is the rebalance swap's slippage tolerance, percent
	// scaled by 1e6.
	SwapSlippagePercent sdkmath.Int

	// RolloverGate is the minimum delay between preparing a position and
	// rolling into it.
	RolloverGate time.Duration
	// KeeperPollInterval is how often the keeper re-evaluates the schedule.
	KeeperPollInterval time.Duration

	// WebServerPort is the port for the dashboard and metrics endpoints.
	WebServerPort string

	// Simulated market seed parameters, used in paper mode.
	SimSpotPrice      float64
	SimStrike         sdkmath.Int
	SimVolatility     sdkmath.Int
	SimPoolFeeRate    sdkmath.Int
	SimOracleDecimals uint8
)

// LoadConfig loads configuration from environment variables and sets the
// global config vars. All environment variables are required.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	VaultAccount, err = getEnv("RVM_VAULT_ACCOUNT")
	if err != nil {
		return err
	}
	FeeRecipient, err = getEnv("RVM_FEE_RECIPIENT")
	if err != nil {
		return err
	}
	AdminAccount, err = getEnv("RVM_ADMIN_ACCOUNT")
	if err != nil {
		return err
	}
	OperatorAccount, err = getEnv("RVM_OPERATOR_ACCOUNT")
	if err != nil {
		return err
	}
	MarketAccount, err = getEnv("RVM_MARKET_ACCOUNT")
	if err != nil {
		return err
	}

	RiskyDenom, err = getEnv("RVM_RISKY_DENOM")
	if err != nil {
		return err
	}
	StableDenom, err = getEnv("RVM_STABLE_DENOM")
	if err != nil {
		return err
	}
	RiskyDecimals, err = getEnvAsUint8("RVM_RISKY_DECIMALS")
	if err != nil {
		return err
	}
	StableDecimals, err = getEnvAsUint8("RVM_STABLE_DECIMALS")
	if err != nil {
		return err
	}

	ManagementFeeAnnualPercent, err = getEnvAsInt("RVM_MANAGEMENT_FEE_ANNUAL_PERCENT")
	if err != nil {
		return err
	}
	PerformanceFeePercent, err = getEnvAsInt("RVM_PERFORMANCE_FEE_PERCENT")
	if err != nil {
		return err
	}
	MinLiquidity, err = getEnvAsInt("RVM_MIN_LIQUIDITY")
	if err != nil {
		return err
	}
	SwapSlippagePercent, err = getEnvAsInt("RVM_SWAP_SLIPPAGE_PERCENT")
	if err != nil {
		return err
	}

	RolloverGate, err = getEnvAsDuration("RVM_ROLLOVER_GATE")
	if err != nil {
		return err
	}
	KeeperPollInterval, err = getEnvAsDuration("RVM_KEEPER_POLL_INTERVAL")
	if err != nil {
		return err
	}

	WebServerPort, err = getEnv("RVM_WEB_PORT")
	if err != nil {
		return err
	}

	SimSpotPrice, err = getEnvAsFloat64("RVM_SIM_SPOT_PRICE")
	if err != nil {
		return err
	}
	SimStrike, err = getEnvAsInt("RVM_SIM_STRIKE")
	if err != nil {
		return err
	}
	SimVolatility, err = getEnvAsInt("RVM_SIM_VOLATILITY")
	if err != nil {
		return err
	}
	SimPoolFeeRate, err = getEnvAsInt("RVM_SIM_POOL_FEE_RATE")
	if err != nil {
		return err
	}
	SimOracleDecimals, err = getEnvAsUint8("RVM_SIM_ORACLE_DECIMALS")
	if err != nil {
		return err
	}

	// Load the database connection settings alongside.
	if err := loadDBConfig(); err != nil {
		return err
	}

	log.Debug().
		Str("VaultAccount", VaultAccount).
		Str("RiskyDenom", RiskyDenom).
		Str("StableDenom", StableDenom).
		Dur("RolloverGate", RolloverGate).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsUint8 retrieves an environment variable as a uint8.
func getEnvAsUint8(key string) (uint8, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 8)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint8, got: " + valueStr)
	}
	return uint8(value), nil
}

// getEnvAsFloat64 retrieves an environment variable as a float64.
func getEnvAsFloat64(key string) (float64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid float64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsInt retrieves an environment variable as an sdkmath.Int.
func getEnvAsInt(key string) (sdkmath.Int, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return sdkmath.Int{}, err
	}
	value, ok := sdkmath.NewIntFromString(valueStr)
	if !ok {
		return sdkmath.Int{}, errors.New("environment variable " + key + " must be a valid integer, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsDuration retrieves an environment variable as a time.Duration.
func getEnvAsDuration(key string) (time.Duration, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid duration, got: " + valueStr)
	}
	return value, nil
}
