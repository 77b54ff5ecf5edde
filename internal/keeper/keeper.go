/*

This file contains the keeper: the scheduler that drives the round lifecycle.
It watches the staged position and the current maturity, prepares the next
position ahead of expiry, and triggers the rollover once the position has
matured and the readiness gate has passed. Transient failures are retried
with exponential backoff; a cycle that still fails is logged and retried on
the next tick.

*/

package keeper

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/primevault/rvm/internal/lifecycle"
	"github.com/primevault/rvm/internal/logger"
	"github.com/primevault/rvm/internal/types"
)

const (
	// defaultPrepareLead is how far ahead of maturity the next position is
	// staged when no explicit lead is configured.
	defaultPrepareLead = 12 * time.Hour

	maxAttemptsPerCycle = 4
)

// Config holds the dependencies for creating a Keeper.
type Config struct {
	Controller *lifecycle.Controller
	Operator   string

	// PrepareLead is how long before maturity the next position is staged.
	// Zero means defaultPrepareLead.
	PrepareLead time.Duration

	// Now overrides the clock, nil means time.Now.
	Now func() time.Time
}

// Keeper drives PreparePosition and Rollover on schedule.
type Keeper struct {
	controller  *lifecycle.Controller
	operator    string
	prepareLead time.Duration
	now         func() time.Time

	cycleCount int
	logger     zerolog.Logger
}

// New validates the configuration and returns a Keeper.
func New(cfg Config) (*Keeper, error) {
	if cfg.Controller == nil {
		return nil, fmt.Errorf("%w: controller cannot be nil", types.ErrInvalidInput)
	}
	if cfg.Operator == "" {
		return nil, fmt.Errorf("%w: operator account cannot be empty", types.ErrInvalidInput)
	}
	if cfg.PrepareLead < 0 {
		return nil, fmt.Errorf("%w: prepare lead cannot be negative", types.ErrInvalidInput)
	}
	lead := cfg.PrepareLead
	if lead == 0 {
		lead = defaultPrepareLead
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Keeper{
		controller:  cfg.Controller,
		operator:    cfg.Operator,
		prepareLead: lead,
		now:         now,
		logger:      logger.GetForComponent("keeper"),
	}, nil
}

// RunLoop starts the keeper loop with the given poll interval, returning when
// the context is cancelled. The first cycle runs immediately.
func (k *Keeper) RunLoop(ctx context.Context, interval time.Duration) {
	k.logger.Info().
		Dur("interval", interval).
		Dur("prepareLead", k.prepareLead).
		Msg("Starting keeper loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	k.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			k.logger.Info().Msg("Keeper loop stopped due to context cancellation")
			return
		case <-ticker.C:
			k.RunCycle(ctx)
		}
	}
}

// RunCycle evaluates the schedule once and executes whichever lifecycle step
// is due. At most one step runs per cycle so a rollover always observes the
// staged position a full gate after its preparation.
func (k *Keeper) RunCycle(ctx context.Context) {
	k.cycleCount++
	cycleLogger := k.logger.With().
		Str("cycle_id", uuid.New().String()).
		Int("cycle", k.cycleCount).
		Logger()

	switch {
	case k.rolloverDue():
		cycleLogger.Info().Msg("Rollover due, executing")
		if err := k.withRetries(ctx, "rollover", func() error {
			return k.controller.Rollover(k.operator)
		}); err != nil {
			cycleLogger.Error().Err(err).Msg("Rollover failed, will retry next cycle")
			return
		}
		cycleLogger.Info().Msg("Rollover executed")

	case k.prepareDue():
		cycleLogger.Info().Msg("Position preparation due, executing")
		if err := k.withRetries(ctx, "prepare position", func() error {
			return k.controller.PreparePosition(k.operator)
		}); err != nil {
			cycleLogger.Error().Err(err).Msg("Preparation failed, will retry next cycle")
			return
		}
		cycleLogger.Info().Msg("Next position prepared")

	default:
		cycleLogger.Debug().Msg("Nothing due this cycle")
	}
}

// prepareDue reports whether the next position should be staged: nothing is
// staged yet, and either no position is live or its maturity is inside the
// prepare lead window.
func (k *Keeper) prepareDue() bool {
	pos := k.controller.Position()
	if pos.NextID != "" {
		return false
	}
	if pos.CurrentParams.IsZero() {
		return true
	}
	return !k.now().Before(pos.CurrentParams.Maturity.Add(-k.prepareLead))
}

// rolloverDue reports whether the staged position can be promoted: the gate
// has passed and the live position, if any, has matured.
func (k *Keeper) rolloverDue() bool {
	pos := k.controller.Position()
	if pos.NextID == "" {
		return false
	}
	now := k.now()
	if now.Before(pos.NextReadyAt) {
		return false
	}
	if pos.CurrentParams.IsZero() {
		return true
	}
	return !now.Before(pos.CurrentParams.Maturity)
}

// withRetries runs op with exponential backoff, bounded per cycle.
func (k *Keeper) withRetries(ctx context.Context, name string, op func() error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxAttemptsPerCycle-1),
		ctx,
	)
	err := backoff.RetryNotify(op, policy, func(err error, next time.Duration) {
		k.logger.Warn().
			Err(err).
			Dur("retryIn", next).
			Str("operation", name).
			Msg("Lifecycle step failed, retrying")
	})
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
