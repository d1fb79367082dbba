package services

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tbourn/sales-leaderboard-bot/internal/observability"
)

var (
	// ledgerActions counts applied ledger mutations by action
	// (insert, update, delete, undo, duplicate, suppressed).
	ledgerActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: observability.MetricsNamespace,
			Name:      "ledger_actions_total",
			Help:      "Ledger mutations applied, by action.",
		},
		[]string{"action"},
	)

	// summaryRuns counts daily summary runs by outcome
	// (posted, skipped, failed).
	summaryRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: observability.MetricsNamespace,
			Name:      "summary_runs_total",
			Help:      "Daily summary runs, by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(ledgerActions, summaryRuns)
}

func countAction(action string) { ledgerActions.WithLabelValues(action).Inc() }
