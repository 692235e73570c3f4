package health

import "context"

// DatabaseCheck creates a health check for database connectivity
func DatabaseCheck(ping func(ctx context.Context) error) CheckFunc {
	return func(ctx context.Context) Check {
		check := Check{
			Name: "database",
		}

		if err := ping(ctx); err != nil {
			check.Status = StatusUnhealthy
			check.Message = err.Error()
		} else {
			check.Status = StatusHealthy
			check.Message = "Connected"
		}

		return check
	}
}

// PoolCheck reports the pool as degraded once every connection is checked out.
func PoolCheck(usage func() (acquired, max int32)) CheckFunc {
	return func(ctx context.Context) Check {
		check := Check{
			Name:    "db_pool",
			Details: make(map[string]any),
		}

		acquired, max := usage()
		check.Details["acquired_conns"] = acquired
		check.Details["max_conns"] = max

		if max > 0 && acquired >= max {
			check.Status = StatusDegraded
			check.Message = "Connection pool exhausted"
		} else {
			check.Status = StatusHealthy
			check.Message = "Connections available"
		}

		return check
	}
}
