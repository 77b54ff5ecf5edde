/*

This file persists the per-rollover snapshots that feed the dashboard and any
after-the-fact round analysis.

*/

package state

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/primevault/rvm/internal/types"
)

// SaveRoundSnapshot stores the outcome of one rollover and returns its ID.
func SaveRoundSnapshot(snapshot types.RoundSnapshot) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	insertSQL := `
		INSERT INTO round_snapshots (
			round, snapshot_timestamp,
			price_in_risky, price_in_stable,
			management_fee_risky, management_fee_stable,
			performance_fee_risky, performance_fee_stable,
			shares_minted, withdrawal_shares_settled,
			locked_risky, locked_stable,
			position_id, placed
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING snapshot_id;`

	var snapshotID int64
	err := DB.QueryRow(insertSQL,
		int64(snapshot.Round), snapshot.Timestamp,
		snapshot.PriceInRisky, snapshot.PriceInStable,
		snapshot.ManagementFeeRisky, snapshot.ManagementFeeStable,
		snapshot.PerformanceFeeRisky, snapshot.PerformanceFeeStable,
		snapshot.SharesMinted, snapshot.WithdrawalShares,
		snapshot.LockedRisky, snapshot.LockedStable,
		snapshot.PositionID, snapshot.Placed,
	).Scan(&snapshotID)
	if err != nil {
		return 0, fmt.Errorf("failed to save round snapshot: %w", err)
	}

	log.Debug().Int64("snapshot_id", snapshotID).Uint64("round", snapshot.Round).Msg("Round snapshot persisted")
	return snapshotID, nil
}

// GetRecentRoundSnapshots returns up to limit snapshots, newest first.
func GetRecentRoundSnapshots(limit int) ([]types.RoundSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT snapshot_id, round, snapshot_timestamp,
		       price_in_risky, price_in_stable,
		       management_fee_risky, management_fee_stable,
		       performance_fee_risky, performance_fee_stable,
		       shares_minted, withdrawal_shares_settled,
		       locked_risky, locked_stable,
		       COALESCE(position_id, ''), placed
		FROM round_snapshots
		ORDER BY round DESC
		LIMIT $1;`

	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query round snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []types.RoundSnapshot
	for rows.Next() {
		var s types.RoundSnapshot
		var round int64
		if err := rows.Scan(
			&s.SnapshotID, &round, &s.Timestamp,
			&s.PriceInRisky, &s.PriceInStable,
			&s.ManagementFeeRisky, &s.ManagementFeeStable,
			&s.PerformanceFeeRisky, &s.PerformanceFeeStable,
			&s.SharesMinted, &s.WithdrawalShares,
			&s.LockedRisky, &s.LockedStable,
			&s.PositionID, &s.Placed,
		); err != nil {
			return nil, fmt.Errorf("failed to scan round snapshot: %w", err)
		}
		s.Round = uint64(round)
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating round snapshots: %w", err)
	}
	return snapshots, nil
}
