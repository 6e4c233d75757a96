package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	serviceName = "gitlab-trace"

	// Version is reported by the health endpoint
	Version = "0.3.0"
)

// ProjectProbe reports whether a manager is bound to a GitLab project
type ProjectProbe interface {
	Name() string
	HasValidProjectID() bool
}

// HealthResponse represents the JSON response for health endpoints
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
}

// DependencyStatus is the outcome of probing one dependency
type DependencyStatus struct {
	Healthy        bool   `json:"healthy"`
	Status         string `json:"status,omitempty"`
	Error          string `json:"error,omitempty"`
	ResponseTimeMs int64  `json:"response_time_ms"`
}

// ReadinessResponse represents the JSON response for readiness endpoints.
// Projects is informational: an unbound project does not make the service unready
// since credentials can still be set through the API.
type ReadinessResponse struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Service      string                      `json:"service"`
	Dependencies map[string]DependencyStatus `json:"dependencies"`
	Projects     map[string]bool             `json:"projects,omitempty"`
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	rdb      *redis.Client
	projects []ProjectProbe
}

// NewHealthHandler creates a health handler probing rdb and reporting project bindings
func NewHealthHandler(rdb *redis.Client, projects ...ProjectProbe) *HealthHandler {
	return &HealthHandler{rdb: rdb, projects: projects}
}

// HandleHealth handles the /health endpoint for liveness probes
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeProbe(w, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Service:   serviceName,
		Version:   Version,
	}, http.StatusOK)
}

// HandleReady handles the /ready endpoint for readiness probes
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	redisStatus := h.pingRedis(r.Context())

	response := ReadinessResponse{
		Status:       "ready",
		Timestamp:    time.Now(),
		Service:      serviceName,
		Dependencies: map[string]DependencyStatus{"redis": redisStatus},
	}
	if len(h.projects) > 0 {
		response.Projects = make(map[string]bool, len(h.projects))
		for _, p := range h.projects {
			response.Projects[p.Name()] = p.HasValidProjectID()
		}
	}

	statusCode := http.StatusOK
	if !redisStatus.Healthy {
		response.Status = "not ready"
		statusCode = http.StatusServiceUnavailable
	}
	writeProbe(w, response, statusCode)
}

func writeProbe(w http.ResponseWriter, response any, statusCode int) {
	body, err := json.Marshal(response)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(append(body, '\n'))
}

// pingRedis checks the binding store with a 5-second timeout
func (h *HealthHandler) pingRedis(ctx context.Context) DependencyStatus {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	err := h.rdb.Ping(ctx).Err()
	status := DependencyStatus{ResponseTimeMs: time.Since(start).Milliseconds()}
	if err != nil {
		status.Error = err.Error()
		return status
	}

	status.Healthy = true
	status.Status = "connected"
	return status
}
