package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"gitlab-trace/internal/trace"
)

// CredentialsRequest is the body of PUT /credentials
type CredentialsRequest struct {
	URL   string `json:"url"`
	Token string `json:"token"`
}

// CredentialsResponse reports whether a project was resolved
type CredentialsResponse struct {
	Resolved bool `json:"resolved"`
}

// SelectionRequest is the body of PUT /requirements/selection
type SelectionRequest struct {
	IDs []string `json:"ids"`
}

// SelectionResponse lists the checked requirement IDs
type SelectionResponse struct {
	IDs []string `json:"ids"`
}

// TrackerHandler serves credentials, status, tags and the requirement selection
type TrackerHandler struct {
	tracker   TrackerService
	tags      map[string]TagSource
	selection *trace.Selection
	writer    ResponseWriter
}

// NewTrackerHandler creates a tracker handler. tags maps kind names to their source.
func NewTrackerHandler(tracker TrackerService, tags map[string]TagSource, selection *trace.Selection, writer ResponseWriter) *TrackerHandler {
	return &TrackerHandler{
		tracker:   tracker,
		tags:      tags,
		selection: selection,
		writer:    writer,
	}
}

// HandleCredentials points both managers at the project in the request body
func (h *TrackerHandler) HandleCredentials(w http.ResponseWriter, r *http.Request) {
	defer func() { _ = r.Body.Close() }()

	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = h.writer.WriteError(w, "Error parsing JSON payload", http.StatusBadRequest)
		return
	}

	slog.Info("Updating credentials via API", "project_url", req.URL, "token_configured", req.Token != "")
	resolved, err := h.tracker.SetCredentials(r.Context(), req.URL, req.Token)
	if err != nil {
		writeServiceError(h.writer, w, r, err)
		return
	}

	_ = h.writer.WriteJSON(w, CredentialsResponse{Resolved: resolved}, http.StatusOK)
}

// HandleStatus reports both managers
func (h *TrackerHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.tracker.Status(r.Context())
	if err != nil {
		writeServiceError(h.writer, w, r, err)
		return
	}
	_ = h.writer.WriteJSON(w, status, http.StatusOK)
}

// HandleTags replies with the tags of the kind named by ?kind=, requirements by default
func (h *TrackerHandler) HandleTags(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = trace.Requirements.Name
	}

	source, ok := h.tags[kind]
	if !ok {
		_ = h.writer.WriteError(w, "Unknown kind: "+kind, http.StatusBadRequest)
		return
	}

	tags, err := source.FetchTags(r.Context())
	if err != nil {
		writeServiceError(h.writer, w, r, err)
		return
	}
	if tags == nil {
		tags = []string{}
	}
	_ = h.writer.WriteJSON(w, tags, http.StatusOK)
}

// HandleGetSelection lists the checked requirement IDs
func (h *TrackerHandler) HandleGetSelection(w http.ResponseWriter, r *http.Request) {
	_ = h.writer.WriteJSON(w, SelectionResponse{IDs: h.selection.Selected()}, http.StatusOK)
}

// HandleSetSelection replaces the checked requirement IDs
func (h *TrackerHandler) HandleSetSelection(w http.ResponseWriter, r *http.Request) {
	defer func() { _ = r.Body.Close() }()

	var req SelectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = h.writer.WriteError(w, "Error parsing JSON payload", http.StatusBadRequest)
		return
	}

	h.selection.Replace(req.IDs)
	slog.Debug("Selection replaced", "count", len(req.IDs))
	_ = h.writer.WriteJSON(w, SelectionResponse{IDs: h.selection.Selected()}, http.StatusOK)
}
