// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	if err := DB.Ping(); err != nil {
		DB.Close()
		DB = nil
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// Ready reports whether a database connection has been configured. Persistence
// is optional: the in-memory ledger stays authoritative and callers skip the
// write-behind stores when no database is attached.
func Ready() bool {
	return DB != nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
		DB = nil
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		-- Append-only settled share prices, keyed by round. Completed
		-- withdrawals price against arbitrarily old rounds, so rows are
		-- never updated or deleted.
		CREATE TABLE IF NOT EXISTS round_prices (
			round BIGINT PRIMARY KEY,
			price_in_risky NUMERIC(40, 0) NOT NULL,
			price_in_stable NUMERIC(40, 0) NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS round_snapshots (
			snapshot_id SERIAL PRIMARY KEY,
			round BIGINT NOT NULL,
			snapshot_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,

			price_in_risky NUMERIC(40, 0) NOT NULL,
			price_in_stable NUMERIC(40, 0) NOT NULL,

			management_fee_risky NUMERIC(40, 0) NOT NULL,
			management_fee_stable NUMERIC(40, 0) NOT NULL,
			performance_fee_risky NUMERIC(40, 0) NOT NULL,
			performance_fee_stable NUMERIC(40, 0) NOT NULL,

			shares_minted NUMERIC(40, 0) NOT NULL,
			withdrawal_shares_settled NUMERIC(40, 0) NOT NULL,
			locked_risky NUMERIC(40, 0) NOT NULL,
			locked_stable NUMERIC(40, 0) NOT NULL,

			position_id TEXT,
			placed BOOLEAN NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_round_snapshots_round ON round_snapshots(round DESC);
		CREATE INDEX IF NOT EXISTS idx_round_snapshots_timestamp ON round_snapshots(snapshot_timestamp DESC);

		-- Round counter mirror for restart continuity checks.
		CREATE TABLE IF NOT EXISTS round_counter (
			id INTEGER PRIMARY KEY DEFAULT 1,
			current_round BIGINT NOT NULL DEFAULT 1,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT single_row_check CHECK (id = 1)
		);

		INSERT INTO round_counter (id, current_round)
		VALUES (1, 1)
		ON CONFLICT (id) DO NOTHING;
	`
	if _, err := DB.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// TestDBConnection tests if the database connection is healthy.
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
