package http

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
)

// probeTimeout bounds a single record store ping.
const probeTimeout = 5 * time.Second

// HealthChecker is satisfied by *pgxpool.Pool and *memory.RecordStore.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness, readiness and detailed health probes.
type HealthHandler struct {
	store     HealthChecker
	startTime time.Time
	version   string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store HealthChecker, version string) *HealthHandler {
	return &HealthHandler{
		store:     store,
		startTime: time.Now(),
		version:   version,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string           `json:"status"`
	Timestamp string           `json:"timestamp"`
	Version   string           `json:"version,omitempty"`
	Uptime    string           `json:"uptime,omitempty"`
	Checks    map[string]Check `json:"checks,omitempty"`
}

// Check represents an individual health check result
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// RuntimeStats is the process snapshot included in the detailed probe.
type RuntimeStats struct {
	AllocBytes uint64 `json:"alloc_bytes"`
	SysBytes   uint64 `json:"sys_bytes"`
	NumGC      uint32 `json:"num_gc"`
	Goroutines int    `json:"goroutines"`
}

// DetailedHealthResponse adds runtime statistics to HealthResponse.
type DetailedHealthResponse struct {
	HealthResponse
	Runtime RuntimeStats `json:"runtime"`
}

// HandleLiveness reports that the process is up. It never touches the store.
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:    statusHealthy,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleReadiness answers 503 until the record store responds.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	resp := h.probe(r.Context(), statusUnhealthy)
	WriteJSON(w, statusCodeFor(resp.Status), resp)
}

// HandleHealth is the detailed probe for dashboards and debugging.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := DetailedHealthResponse{HealthResponse: h.probe(r.Context(), statusDegraded)}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	resp.Runtime = RuntimeStats{
		AllocBytes: mem.Alloc,
		SysBytes:   mem.Sys,
		NumGC:      mem.NumGC,
		Goroutines: runtime.NumGoroutine(),
	}

	WriteJSON(w, statusCodeFor(resp.Status), resp)
}

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	statusDegraded  = "degraded"
)

// probe checks the record store; failing sets the overall status to onFailure.
func (h *HealthHandler) probe(ctx context.Context, onFailure string) HealthResponse {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	check := h.checkStore(ctx)
	status := statusHealthy
	if check.Status != statusHealthy {
		status = onFailure
	}

	return HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    map[string]Check{"record_store": check},
	}
}

func (h *HealthHandler) checkStore(ctx context.Context) Check {
	if h.store == nil {
		return Check{Status: statusUnhealthy, Message: "Record store not configured"}
	}

	start := time.Now()
	err := h.store.Ping(ctx)
	latency := time.Since(start).String()
	if err != nil {
		return Check{Status: statusUnhealthy, Message: err.Error(), Latency: latency}
	}
	return Check{Status: statusHealthy, Latency: latency}
}

func statusCodeFor(status string) int {
	if status == statusHealthy {
		return http.StatusOK
	}
	return http.StatusServiceUnavailable
}

// RegisterRoutes registers health check routes
func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HandleHealth)
	r.Get("/health/live", h.HandleLiveness)
	r.Get("/health/ready", h.HandleReadiness)
}
