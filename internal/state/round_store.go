/*

This file manages the durable round records: the append-only share price
history and the round counter mirror. The price history is insert-only by
construction; an attempt to rewrite an existing round's price is rejected at
the database as well as in memory.

*/

package state

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
)

// SaveRoundPrices appends the settled prices for a round. Conflicting with an
// existing round is an error, never an update.
func SaveRoundPrices(round uint64, priceInRisky, priceInStable string) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	insertSQL := `
		INSERT INTO round_prices (round, price_in_risky, price_in_stable)
		VALUES ($1, $2, $3);`

	if _, err := DB.Exec(insertSQL, int64(round), priceInRisky, priceInStable); err != nil {
		return fmt.Errorf("failed to save prices for round %d: %w", round, err)
	}

	log.Debug().Uint64("round", round).Msg("Round prices persisted")
	return nil
}

// GetRoundPrices retrieves the settled prices of a round, as decimal strings.
func GetRoundPrices(round uint64) (priceInRisky, priceInStable string, err error) {
	if DB == nil {
		return "", "", fmt.Errorf("database not initialized")
	}

	query := `SELECT price_in_risky, price_in_stable FROM round_prices WHERE round = $1;`
	row := DB.QueryRow(query, int64(round))
	if err := row.Scan(&priceInRisky, &priceInStable); err != nil {
		if err == sql.ErrNoRows {
			return "", "", fmt.Errorf("no prices recorded for round %d", round)
		}
		return "", "", fmt.Errorf("failed to get prices for round %d: %w", round, err)
	}
	return priceInRisky, priceInStable, nil
}

// GetCurrentRound retrieves the persisted round counter.
func GetCurrentRound() (uint64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `SELECT current_round FROM round_counter WHERE id = 1;`

	var currentRound int64
	row := DB.QueryRow(query)
	if err := row.Scan(&currentRound); err != nil {
		if err == sql.ErrNoRows {
			log.Warn().Msg("No round counter row found, assuming round 1")
			return 1, nil
		}
		return 0, fmt.Errorf("failed to get current round: %w", err)
	}

	log.Debug().Int64("currentRound", currentRound).Msg("Retrieved persisted round counter")
	return uint64(currentRound), nil
}

// SetRoundCounter mirrors the in-memory round counter after a rollover.
func SetRoundCounter(round uint64) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	updateSQL := `
		UPDATE round_counter
		SET current_round = $1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = 1;`

	result, err := DB.Exec(updateSQL, int64(round))
	if err != nil {
		return fmt.Errorf("failed to set round counter to %d: %w", round, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no rows updated when setting round counter")
	}

	log.Debug().Uint64("round", round).Msg("Round counter persisted")
	return nil
}
