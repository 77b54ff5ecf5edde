package config

import (
	"errors"
	"strconv"

	"github.com/rs/zerolog/log"
)

// Database connection configuration loaded from environment variables.
// Persistence is optional: when RVM_DB_ENABLED is "false" the vault runs on
// its in-memory ledger alone and none of the other DB vars are read.
var (
	// DBEnabled controls whether the PostgreSQL store is attached.
	DBEnabled bool
	// DBHost is the PostgreSQL host.
	DBHost string
	// DBPort is the PostgreSQL port.
	DBPort int
	// DBUser is the PostgreSQL user.
	DBUser string
	// DBPassword is the PostgreSQL password.
	DBPassword string
	// DBName is the database name.
	DBName string
	// DBSSLMode is the sslmode parameter ("disable", "require", ...).
	DBSSLMode string
)

// loadDBConfig loads database configuration from environment variables.
// Called by LoadConfig() in config.go.
func loadDBConfig() error {
	log.Info().Msg("Loading database configuration from environment variables...")

	enabled, err := getEnv("RVM_DB_ENABLED")
	if err != nil {
		return err
	}
	DBEnabled = enabled == "true"
	if !DBEnabled {
		log.Info().Msg("Database persistence disabled; running on the in-memory ledger only.")
		return nil
	}

	DBHost, err = getEnv("RVM_DB_HOST")
	if err != nil {
		return err
	}
	portStr, err := getEnv("RVM_DB_PORT")
	if err != nil {
		return err
	}
	DBPort, err = strconv.Atoi(portStr)
	if err != nil {
		return errors.New("environment variable RVM_DB_PORT must be a valid integer, got: " + portStr)
	}
	DBUser, err = getEnv("RVM_DB_USER")
	if err != nil {
		return err
	}
	DBPassword, err = getEnv("RVM_DB_PASSWORD")
	if err != nil {
		return err
	}
	DBName, err = getEnv("RVM_DB_NAME")
	if err != nil {
		return err
	}
	DBSSLMode, err = getEnv("RVM_DB_SSLMODE")
	if err != nil {
		return err
	}

	log.Debug().
		Str("DBHost", DBHost).
		Int("DBPort", DBPort).
		Str("DBName", DBName).
		Msg("Database configuration loaded successfully.")

	return nil
}
