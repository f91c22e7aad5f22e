// Package health aggregates dependency checks for the query service.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/ewfx/gaipl-booleans/internal/knowledgebase"
)

type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

type HealthCheck interface {
	Name() string
	Check(ctx context.Context) HealthResult
}

type HealthResult struct {
	Name     string        `json:"name"`
	Status   HealthStatus  `json:"status"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Error    string        `json:"error,omitempty"`
}

type HealthChecker struct {
	checks  []HealthCheck
	timeout time.Duration
	mu      sync.RWMutex
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{checks: make([]HealthCheck, 0), timeout: 10 * time.Second}
}

func (hc *HealthChecker) Register(check HealthCheck) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks = append(hc.checks, check)
}

// Check runs every registered check concurrently.
func (hc *HealthChecker) Check(ctx context.Context) map[string]HealthResult {
	hc.mu.RLock()
	checks := make([]HealthCheck, len(hc.checks))
	copy(checks, hc.checks)
	hc.mu.RUnlock()

	results := make(map[string]HealthResult)
	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, c := range checks {
		wg.Add(1)
		go func(ch HealthCheck) {
			defer wg.Done()
			start := time.Now()
			res := ch.Check(ctx)
			res.Duration = time.Since(start)
			mu.Lock()
			results[ch.Name()] = res
			mu.Unlock()
		}(c)
	}
	wg.Wait()
	return results
}

func (hc *HealthChecker) OverallStatus(results map[string]HealthResult) HealthStatus {
	hasDegraded := false
	for _, r := range results {
		switch r.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			hasDegraded = true
		}
	}
	if hasDegraded {
		return StatusDegraded
	}
	return StatusHealthy
}

// HTTPHandler reports 503 when any check is unhealthy, 200 otherwise.
func (hc *HealthChecker) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), hc.timeout)
		defer cancel()
		results := hc.Check(ctx)
		overall := hc.OverallStatus(results)
		resp := map[string]any{
			"status":    overall,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"checks":    results,
		}
		w.Header().Set("Content-Type", "application/json")
		statusCode := http.StatusOK
		if overall == StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		w.WriteHeader(statusCode)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// pingResult classifies a dependency call by error and latency.
func pingResult(name string, err error, duration, slow time.Duration, what string) HealthResult {
	res := HealthResult{Name: name, Duration: duration}
	switch {
	case err != nil:
		res.Status = StatusUnhealthy
		res.Message = what + " unreachable"
		res.Error = err.Error()
	case duration > slow:
		res.Status = StatusDegraded
		res.Message = what + " responding slowly"
	default:
		res.Status = StatusHealthy
		res.Message = what + " healthy"
	}
	return res
}

// VectorIndexHealthCheck reads index statistics.
type VectorIndexHealthCheck struct {
	Index knowledgebase.VectorIndex
}

func (v *VectorIndexHealthCheck) Name() string { return "vector_index" }
func (v *VectorIndexHealthCheck) Check(ctx context.Context) HealthResult {
	start := time.Now()
	_, err := v.Index.Stats(ctx)
	return pingResult(v.Name(), err, time.Since(start), time.Second, "Vector index")
}

// Pinger is anything with a connectivity probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingHealthCheck wraps a Pinger such as the Kafka topic manager or the embedding cache.
type PingHealthCheck struct {
	CheckName string
	Target    Pinger
	// Critical makes a failure unhealthy instead of degraded.
	Critical bool
}

func (p *PingHealthCheck) Name() string { return p.CheckName }
func (p *PingHealthCheck) Check(ctx context.Context) HealthResult {
	start := time.Now()
	err := p.Target.Ping(ctx)
	res := pingResult(p.CheckName, err, time.Since(start), 500*time.Millisecond, p.CheckName)
	if err != nil && !p.Critical {
		res.Status = StatusDegraded
	}
	return res
}
