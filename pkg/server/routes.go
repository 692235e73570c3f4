package server

import (
	"net/http"

	"github.com/dd0wney/cluso-starter/pkg/health"
	"github.com/dd0wney/cluso-starter/pkg/metrics"
)

// Routes mounts the operational endpoints. Every request passes through
// the metrics middleware; metrics may be nil.
func Routes(hc *health.HealthChecker, reg *metrics.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /health", hc.HTTPHandler())
	mux.Handle("GET /health/ready", hc.ReadinessHandler())
	mux.Handle("GET /health/live", hc.LivenessHandler())

	if reg == nil {
		return mux
	}
	mux.Handle("GET /metrics", reg.Handler())
	return reg.Middleware(mux)
}
