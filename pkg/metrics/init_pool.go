package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initPoolMetrics() {
	r.PoolTotalConns = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "starter_db_pool_total_conns",
			Help: "Connections currently open in the pool",
		},
	)

	r.PoolIdleConns = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "starter_db_pool_idle_conns",
			Help: "Idle connections in the pool",
		},
	)

	r.PoolAcquiredConns = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "starter_db_pool_acquired_conns",
			Help: "Connections currently checked out of the pool",
		},
	)

	r.PoolMaxConns = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "starter_db_pool_max_conns",
			Help: "Configured maximum pool size",
		},
	)
}

func (r *Registry) initMigrationMetrics() {
	r.MigrationsAppliedTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "starter_migrations_applied_total",
			Help: "Schema migrations applied by this process",
		},
	)

	r.MigrationsPending = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "starter_migrations_pending",
			Help: "Schema migrations found on disk but not yet applied",
		},
	)
}
