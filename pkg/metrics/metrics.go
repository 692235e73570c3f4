package metrics

import (
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/dd0wney/cluso-starter/pkg/database"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ database.Observer = (*Registry)(nil)

// NestedTransactionDone records how a nested transaction scope ended
func (r *Registry) NestedTransactionDone(outcome database.Outcome, duration time.Duration) {
	r.NestedTransactionsTotal.WithLabelValues(string(outcome)).Inc()
	r.NestedTransactionDuration.WithLabelValues(string(outcome)).Observe(duration.Seconds())
}

// SavepointRolledBack records a rollback to savepoint and whether it succeeded
func (r *Registry) SavepointRolledBack(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.SavepointRollbacksTotal.WithLabelValues(result).Inc()
}

// ForceCommitted records a forced top-level commit
func (r *Registry) ForceCommitted() {
	r.ForceCommitsTotal.Inc()
}

// RecordHTTPRequest records an HTTP request with its duration
func (r *Registry) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// UpdatePoolMetrics copies a pool snapshot into the pool gauges
func (r *Registry) UpdatePoolMetrics(stat *pgxpool.Stat) {
	if stat == nil {
		return
	}
	r.PoolTotalConns.Set(float64(stat.TotalConns()))
	r.PoolIdleConns.Set(float64(stat.IdleConns()))
	r.PoolAcquiredConns.Set(float64(stat.AcquiredConns()))
	r.PoolMaxConns.Set(float64(stat.MaxConns()))
}

// RecordMigrations records applied and still-pending migration counts
func (r *Registry) RecordMigrations(applied, pending int) {
	r.MigrationsAppliedTotal.Add(float64(applied))
	r.MigrationsPending.Set(float64(pending))
}

// UpdateSystemMetrics refreshes uptime, goroutine and heap gauges
func (r *Registry) UpdateSystemMetrics() {
	r.mu.Lock()
	defer r.mu.Unlock()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	r.UptimeSeconds.Set(time.Since(r.startTime).Seconds())
	r.GoRoutines.Set(float64(runtime.NumGoroutine()))
	r.MemoryAllocBytes.Set(float64(m.Alloc))
}

// Handler serves the registry in the Prometheus exposition format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Middleware counts and times every request passing through next
func (r *Registry) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.HTTPRequestsInFlight.Inc()
		defer r.HTTPRequestsInFlight.Dec()

		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, req)
		r.RecordHTTPRequest(req.Method, routeLabel(req, rw.status), rw.status, time.Since(start))
	})
}

// routeLabel prefers the ServeMux pattern so path labels stay bounded.
// Unrouted 404s share one label.
func routeLabel(req *http.Request, status int) string {
	if req.Pattern != "" {
		if _, path, ok := strings.Cut(req.Pattern, " "); ok {
			return path
		}
		return req.Pattern
	}
	if status == http.StatusNotFound {
		return "unmatched"
	}
	return req.URL.Path
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
