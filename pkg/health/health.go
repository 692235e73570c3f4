package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultCheckTimeout bounds a full round of checks
const DefaultCheckTimeout = 5 * time.Second

// NewHealthChecker creates a new health checker
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		checks:      make(map[string]CheckFunc),
		readyChecks: make(map[string]CheckFunc),
		timeout:     DefaultCheckTimeout,
		startTime:   time.Now(),
	}
}

// SetTimeout changes how long a round of checks may take
func (hc *HealthChecker) SetTimeout(d time.Duration) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.timeout = d
}

// RegisterCheck registers a health check
func (hc *HealthChecker) RegisterCheck(name string, check CheckFunc) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks[name] = check
}

// RegisterReadinessCheck registers a readiness check
func (hc *HealthChecker) RegisterReadinessCheck(name string, check CheckFunc) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.readyChecks[name] = check
}

// Check performs all health checks
func (hc *HealthChecker) Check(ctx context.Context) Response {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	return hc.performChecks(ctx, hc.checks)
}

// CheckReadiness performs readiness checks
func (hc *HealthChecker) CheckReadiness(ctx context.Context) Response {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	return hc.performChecks(ctx, hc.readyChecks)
}

// CheckLiveness reports the process as alive. It runs no checks so a slow
// database never gets the process restarted.
func (hc *HealthChecker) CheckLiveness() Response {
	return Response{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Uptime:    time.Since(hc.startTime).Seconds(),
	}
}

func (hc *HealthChecker) performChecks(ctx context.Context, checksMap map[string]CheckFunc) Response {
	ctx, cancel := context.WithTimeout(ctx, hc.timeout)
	defer cancel()

	response := Response{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Checks:    make(map[string]Check, len(checksMap)),
		Uptime:    time.Since(hc.startTime).Seconds(),
	}

	// Checks run concurrently so one slow probe doesn't serialize the rest.
	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	for name, checkFunc := range checksMap {
		g.Go(func() error {
			start := time.Now()
			check := checkFunc(ctx)
			check.Duration = time.Since(start)
			check.LastChecked = start
			if check.Name == "" {
				check.Name = name
			}

			mu.Lock()
			response.Checks[name] = check
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	// Determine overall status (worst status wins)
	for _, check := range response.Checks {
		if check.Status == StatusUnhealthy {
			response.Status = StatusUnhealthy
		} else if check.Status == StatusDegraded && response.Status != StatusUnhealthy {
			response.Status = StatusDegraded
		}
	}

	return response
}
