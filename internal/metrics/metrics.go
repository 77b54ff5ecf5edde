// Package metrics provides Prometheus instrumentation for the vault manager.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CurrentRound tracks the vault's round counter.
	CurrentRound = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rvm_current_round",
		Help: "Current vault round number",
	})

	// LockedBalance tracks capital committed to the active position, per asset.
	LockedBalance = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rvm_locked_balance",
		Help: "Capital locked in the replication position, in whole asset units",
	}, []string{"asset"})

	// PendingDeposits tracks risky deposits awaiting conversion to shares.
	PendingDeposits = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rvm_pending_deposits",
		Help: "Pending risky deposits awaiting the next rollover, in whole units",
	})

	// QueuedWithdrawShares tracks unsettled withdrawal shares.
	QueuedWithdrawShares = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rvm_queued_withdraw_shares",
		Help: "Cumulative unsettled withdrawal shares, in whole share units",
	})

	// RolloversTotal counts completed round transitions.
	RolloversTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rvm_rollovers_total",
		Help: "Total completed rollovers",
	})

	// FeesCharged accumulates fees transferred to the recipient, per asset.
	FeesCharged = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rvm_fees_charged_total",
		Help: "Cumulative fees charged, in whole asset units",
	}, []string{"asset", "kind"})

	// PlacementFailures counts rounds whose capital stayed unplaced.
	PlacementFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rvm_placement_failures_total",
		Help: "Rounds where capital placement into the pool failed",
	})

	// RolloverDuration observes how long a full rollover takes.
	RolloverDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rvm_rollover_duration_seconds",
		Help:    "Rollover execution time in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// HTTPRequestsTotal counts dashboard/API requests.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rvm_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
