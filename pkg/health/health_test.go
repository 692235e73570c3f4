package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func healthy(ctx context.Context) Check   { return Check{Status: StatusHealthy} }
func degraded(ctx context.Context) Check  { return Check{Status: StatusDegraded} }
func unhealthy(ctx context.Context) Check { return Check{Status: StatusUnhealthy} }

func TestNewHealthChecker(t *testing.T) {
	hc := NewHealthChecker()

	if hc == nil {
		t.Fatal("NewHealthChecker returned nil")
	}
	if hc.checks == nil {
		t.Error("checks map not initialized")
	}
	if hc.readyChecks == nil {
		t.Error("readyChecks map not initialized")
	}
	if hc.timeout != DefaultCheckTimeout {
		t.Errorf("timeout = %v, want %v", hc.timeout, DefaultCheckTimeout)
	}
}

func TestCheck_NoChecksIsHealthy(t *testing.T) {
	resp := NewHealthChecker().Check(context.Background())

	if resp.Status != StatusHealthy {
		t.Errorf("Status = %v, want %v", resp.Status, StatusHealthy)
	}
}

func TestCheck_WorstStatusWins(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]CheckFunc
		want   Status
	}{
		{"all healthy", map[string]CheckFunc{"a": healthy, "b": healthy}, StatusHealthy},
		{"one degraded", map[string]CheckFunc{"a": healthy, "b": degraded}, StatusDegraded},
		{"unhealthy beats degraded", map[string]CheckFunc{"a": degraded, "b": unhealthy}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewHealthChecker()
			for name, fn := range tt.checks {
				hc.RegisterCheck(name, fn)
			}

			resp := hc.Check(context.Background())
			if resp.Status != tt.want {
				t.Errorf("Status = %v, want %v", resp.Status, tt.want)
			}
			if len(resp.Checks) != len(tt.checks) {
				t.Errorf("got %d check results, want %d", len(resp.Checks), len(tt.checks))
			}
			for name, c := range resp.Checks {
				if c.Name != name {
					t.Errorf("check %q reported name %q", name, c.Name)
				}
			}
		})
	}
}

func TestCheck_TimeoutReachesChecks(t *testing.T) {
	hc := NewHealthChecker()
	hc.SetTimeout(10 * time.Millisecond)
	hc.RegisterCheck("slow", DatabaseCheck(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	resp := hc.Check(context.Background())
	if resp.Status != StatusUnhealthy {
		t.Errorf("Status = %v, want unhealthy after timeout", resp.Status)
	}
}

func TestDatabaseCheck(t *testing.T) {
	ok := DatabaseCheck(func(ctx context.Context) error { return nil })(context.Background())
	if ok.Status != StatusHealthy || ok.Name != "database" {
		t.Errorf("healthy check = %+v", ok)
	}

	failed := DatabaseCheck(func(ctx context.Context) error { return errors.New("connection refused") })(context.Background())
	if failed.Status != StatusUnhealthy {
		t.Errorf("Status = %v, want unhealthy", failed.Status)
	}
	if failed.Message != "connection refused" {
		t.Errorf("Message = %q, want ping error", failed.Message)
	}
}

func TestPoolCheck(t *testing.T) {
	tests := []struct {
		acquired, max int32
		want          Status
	}{
		{0, 30, StatusHealthy},
		{29, 30, StatusHealthy},
		{30, 30, StatusDegraded},
		{0, 0, StatusHealthy},
	}

	for _, tt := range tests {
		check := PoolCheck(func() (int32, int32) { return tt.acquired, tt.max })(context.Background())
		if check.Status != tt.want {
			t.Errorf("PoolCheck(%d/%d) = %v, want %v", tt.acquired, tt.max, check.Status, tt.want)
		}
	}
}

func TestHTTPHandler(t *testing.T) {
	tests := []struct {
		name       string
		check      CheckFunc
		wantCode   int
		wantStatus Status
	}{
		{"healthy", healthy, http.StatusOK, StatusHealthy},
		{"degraded", degraded, http.StatusOK, StatusDegraded},
		{"unhealthy", unhealthy, http.StatusServiceUnavailable, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewHealthChecker()
			hc.RegisterCheck("component", tt.check)

			rec := httptest.NewRecorder()
			hc.HTTPHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}

			var resp Response
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %v, want %v", resp.Status, tt.wantStatus)
			}
		})
	}
}

func TestReadinessHandler(t *testing.T) {
	hc := NewHealthChecker()
	hc.RegisterReadinessCheck("db", degraded)

	rec := httptest.NewRecorder()
	hc.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("code = %d, want 503 for degraded readiness", rec.Code)
	}
}

func TestLivenessHandler(t *testing.T) {
	hc := NewHealthChecker()
	hc.RegisterCheck("db", unhealthy)

	rec := httptest.NewRecorder()
	hc.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/live", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("code = %d, want 200", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf(`status = %v, want "ok"`, body["status"])
	}
}
