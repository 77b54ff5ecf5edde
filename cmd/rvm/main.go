package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/primevault/rvm/internal/config"
	"github.com/primevault/rvm/internal/keeper"
	"github.com/primevault/rvm/internal/lifecycle"
	"github.com/primevault/rvm/internal/logger"
	"github.com/primevault/rvm/internal/state"
	"github.com/primevault/rvm/internal/vault"
	"github.com/primevault/rvm/internal/web"
)

// main is the entry point for the RVM system.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("RVM Core Logic Starting...")

	// Initialize Database Connection (round history persistence)
	if config.DBEnabled {
		dbCfg := state.DBConfig{
			Host: config.DBHost, Port: config.DBPort,
			User: config.DBUser, Password: config.DBPassword,
			DBName: config.DBName, SSLMode: config.DBSSLMode,
		}
		if err := state.InitDB(dbCfg); err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer state.CloseDB()
		if err := state.EnsureSchema(); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure database schema")
		}
		if lastRound, err := state.GetCurrentRound(); err != nil {
			log.Warn().Err(err).Msg("Could not read persisted round counter")
		} else if lastRound > 0 {
			log.Info().Uint64("last_round", lastRound).Msg("Resuming after previously persisted round")
		}
	} else {
		log.Info().Msg("Running without database persistence.")
	}

	// --- 2. Venue Initialization (with Safety Switch) ---
	rvmMode := os.Getenv("RVM_MODE")
	if rvmMode != "paper" {
		log.Fatal().Msg("RVM_MODE is not set to 'paper'. Live venue adapters are not wired in this build; set RVM_MODE=paper to run against the simulated market.")
	}
	log.Info().Msg("Initializing RVM in PAPER mode. All venues are simulated in-process.")

	venues, err := buildPaperVenues()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize simulated venues")
	}

	// --- 3. Vault and Lifecycle Initialization ---
	v, err := vault.New(vault.Config{
		VaultAccount:   config.VaultAccount,
		FeeRecipient:   config.FeeRecipient,
		Admin:          config.AdminAccount,
		RiskyDenom:     config.RiskyDenom,
		StableDenom:    config.StableDenom,
		RiskyDecimals:  config.RiskyDecimals,
		StableDecimals: config.StableDecimals,
		MinLiquidity:   config.MinLiquidity,
		Ledger:         venues.ledger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize vault")
	}
	if err := v.SetManagementFee(config.AdminAccount, config.ManagementFeeAnnualPercent); err != nil {
		log.Fatal().Err(err).Msg("Failed to set management fee")
	}
	if err := v.SetPerformanceFee(config.AdminAccount, config.PerformanceFeePercent); err != nil {
		log.Fatal().Err(err).Msg("Failed to set performance fee")
	}

	controller, err := lifecycle.NewController(lifecycle.Config{
		Vault:        v,
		Pricing:      venues.pricing,
		Pools:        venues.market,
		Swapper:      venues.market,
		Operator:     config.OperatorAccount,
		RolloverGate: config.RolloverGate,
		SwapSlippage: config.SwapSlippagePercent,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create lifecycle controller")
	}

	k, err := keeper.New(keeper.Config{
		Controller: controller,
		Operator:   config.OperatorAccount,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create keeper")
	}

	// --- 4. Start Web Server ---
	webServer := web.NewWebServer(config.WebServerPort, v, controller)
	go func() {
		log.Info().Str("port", config.WebServerPort).Str("url", "http://localhost:"+config.WebServerPort).Msg("Starting RVM web dashboard")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 5. Start Keeper Loop ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("interval", config.KeeperPollInterval.String()).Msg("Starting keeper loop")
	k.RunLoop(ctx, config.KeeperPollInterval)

	log.Info().Msg("RVM shut down.")
}
