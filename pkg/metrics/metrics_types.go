package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the application
type Registry struct {
	// HTTP Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Transaction Metrics
	NestedTransactionsTotal   *prometheus.CounterVec
	NestedTransactionDuration *prometheus.HistogramVec
	SavepointRollbacksTotal   *prometheus.CounterVec
	ForceCommitsTotal         prometheus.Counter

	// Pool Metrics
	PoolTotalConns    prometheus.Gauge
	PoolIdleConns     prometheus.Gauge
	PoolAcquiredConns prometheus.Gauge
	PoolMaxConns      prometheus.Gauge

	// Migration Metrics
	MigrationsAppliedTotal prometheus.Counter
	MigrationsPending      prometheus.Gauge

	// System Metrics
	UptimeSeconds    prometheus.Gauge
	GoRoutines       prometheus.Gauge
	MemoryAllocBytes prometheus.Gauge

	registry  *prometheus.Registry
	startTime time.Time
	mu        sync.Mutex
}

var (
	// Global registry instance
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	r := &Registry{
		registry:  prometheus.NewRegistry(),
		startTime: time.Now(),
	}

	r.initHTTPMetrics()
	r.initTransactionMetrics()
	r.initPoolMetrics()
	r.initMigrationMetrics()
	r.initSystemMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
