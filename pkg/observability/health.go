package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// readinessTimeout bounds the dependency probes behind /health/ready.
const readinessTimeout = 5 * time.Second

// HealthChecker probes the server's backing dependencies: the Postgres
// catalog store and, when configured, the Redis tenant cache.
type HealthChecker struct {
	db    *sql.DB
	redis *redis.Client
}

// NewHealthChecker wires the health checker. redis may be nil when the
// server runs with the in-memory tenant cache.
func NewHealthChecker(db *sql.DB, redis *redis.Client) *HealthChecker {
	return &HealthChecker{db: db, redis: redis}
}

// HealthStatus is the readiness report.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is the outcome of probing one dependency.
type CheckResult struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// Liveness answers 200 whenever the process is up. No dependency probes:
// a dead catalog store must not get the process restarted.
func (h *HealthChecker) Liveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    StatusHealthy,
		"timestamp": time.Now(),
	})
}

// Readiness probes all dependencies. 503 only when the catalog store is
// unreachable; a tenant cache outage degrades but keeps serving, because
// discovery fails open.
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if status.Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(status)
}

// Check probes every configured dependency and aggregates the result.
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Checks:    make(map[string]CheckResult),
	}

	if h.db != nil {
		result := h.checkCatalogStore(ctx)
		status.Checks["catalog_store"] = result
		switch result.Status {
		case StatusUnhealthy:
			status.Status = StatusUnhealthy
		case StatusDegraded:
			if status.Status == StatusHealthy {
				status.Status = StatusDegraded
			}
		}
	}

	if h.redis != nil {
		result := h.checkTenantCache(ctx)
		status.Checks["tenant_cache"] = result
		if result.Status == StatusUnhealthy && status.Status == StatusHealthy {
			status.Status = StatusDegraded
		}
	}

	return status
}

func (h *HealthChecker) checkCatalogStore(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{Status: StatusHealthy}

	if err := h.db.PingContext(ctx); err != nil {
		result.Status = StatusUnhealthy
		result.Message = err.Error()
		result.LatencyMS = time.Since(start).Milliseconds()
		return result
	}

	var one int
	if err := h.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		result.Status = StatusUnhealthy
		result.Message = "query failed: " + err.Error()
		result.LatencyMS = time.Since(start).Milliseconds()
		return result
	}

	// MaxOpenConnections of 0 means unlimited; only a bounded pool can
	// be exhausted.
	stats := h.db.Stats()
	if stats.MaxOpenConnections > 0 && stats.OpenConnections >= stats.MaxOpenConnections {
		result.Status = StatusDegraded
		result.Message = "connection pool exhausted"
	}

	result.LatencyMS = time.Since(start).Milliseconds()
	return result
}

func (h *HealthChecker) checkTenantCache(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{Status: StatusHealthy}

	if err := h.redis.Ping(ctx).Err(); err != nil {
		result.Status = StatusUnhealthy
		result.Message = err.Error()
	}

	result.LatencyMS = time.Since(start).Milliseconds()
	return result
}

// RegisterHealthRoutes mounts the probe endpoints on the health mux.
func RegisterHealthRoutes(mux *http.ServeMux, checker *HealthChecker) {
	mux.HandleFunc("/health/live", checker.Liveness)
	mux.HandleFunc("/health/ready", checker.Readiness)
}
