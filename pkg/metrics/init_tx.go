package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initTransactionMetrics() {
	r.NestedTransactionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "starter_nested_transactions_total",
			Help: "Nested transaction scopes by outcome (released, discarded, failed)",
		},
		[]string{"outcome"},
	)

	r.NestedTransactionDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "starter_nested_transaction_duration_seconds",
			Help:    "Time spent inside nested transaction callbacks",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 30},
		},
		[]string{"outcome"},
	)

	r.SavepointRollbacksTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "starter_savepoint_rollbacks_total",
			Help: "Rollbacks to savepoint by result (ok, error)",
		},
		[]string{"result"},
	)

	r.ForceCommitsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "starter_force_commits_total",
			Help: "Top-level commits forced from inside a nested transaction",
		},
	)
}
