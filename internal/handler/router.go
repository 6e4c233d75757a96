package handler

import (
	"net/http"

	"gitlab-trace/internal/config"
	"gitlab-trace/internal/middleware"
	"gitlab-trace/internal/trace"
)

// Handlers groups everything the router mounts
type Handlers struct {
	Health       *HealthHandler
	Requirements *RecordHandler[trace.Requirement]
	Reviews      *RecordHandler[trace.Review]
	Tracker      *TrackerHandler
}

// NewRouter mounts the probes without authentication and the API behind
// authentication, logging and security headers.
func NewRouter(cfg *config.Config, h Handlers) *http.ServeMux {
	mux := http.NewServeMux()

	probe := func(fn http.HandlerFunc) http.Handler {
		return middleware.Chain(fn, middleware.SecurityHeadersMiddleware())
	}
	api := func(fn http.HandlerFunc) http.Handler {
		return middleware.Chain(fn,
			middleware.SecurityHeadersMiddleware(),
			middleware.AuthenticationMiddleware(cfg),
			middleware.LoggingMiddleware(),
		)
	}

	mux.Handle("GET /health", probe(h.Health.HandleHealth))
	mux.Handle("GET /ready", probe(h.Health.HandleReady))

	mux.Handle("GET /requirements", api(h.Requirements.HandleList))
	mux.Handle("POST /requirements", api(h.Requirements.HandleCreate))
	mux.Handle("PATCH /requirements/{iid}", api(h.Requirements.HandleEdit))
	mux.Handle("DELETE /requirements/{iid}", api(h.Requirements.HandleRemove))
	mux.Handle("GET /requirements/selection", api(h.Tracker.HandleGetSelection))
	mux.Handle("PUT /requirements/selection", api(h.Tracker.HandleSetSelection))

	mux.Handle("GET /reviews", api(h.Reviews.HandleList))
	mux.Handle("POST /reviews", api(h.Reviews.HandleCreate))
	mux.Handle("PATCH /reviews/{iid}", api(h.Reviews.HandleEdit))
	mux.Handle("DELETE /reviews/{iid}", api(h.Reviews.HandleRemove))

	mux.Handle("GET /tags", api(h.Tracker.HandleTags))
	mux.Handle("PUT /credentials", api(h.Tracker.HandleCredentials))
	mux.Handle("GET /status", api(h.Tracker.HandleStatus))

	return mux
}
