package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"gitlab-trace/internal/client"
	"gitlab-trace/internal/service"
)

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error string `json:"error"`
}

// ResponseWriterImpl implements ResponseWriter interface
type ResponseWriterImpl struct{}

// NewResponseWriter creates a new response writer instance
func NewResponseWriter() *ResponseWriterImpl {
	return &ResponseWriterImpl{}
}

// WriteJSON writes payload as JSON with the given status code
func (r *ResponseWriterImpl) WriteJSON(w http.ResponseWriter, payload interface{}, statusCode int) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if statusCode == http.StatusNoContent {
		return nil
	}
	return json.NewEncoder(w).Encode(payload)
}

// WriteError writes an error response with appropriate status code
func (r *ResponseWriterImpl) WriteError(w http.ResponseWriter, message string, statusCode int) error {
	return r.WriteJSON(w, ErrorResponse{Error: message}, statusCode)
}

// StatusCode maps service and transport errors to HTTP status codes
func StatusCode(err error) int {
	var connErr *client.ConnectionError
	switch {
	case errors.Is(err, service.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidProject):
		return http.StatusPreconditionFailed
	case errors.Is(err, service.ErrInvalidDraft), errors.Is(err, service.ErrInvalidEdit):
		return http.StatusBadRequest
	case errors.As(err, &connErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError logs err and replies with its mapped status code
func writeServiceError(writer ResponseWriter, w http.ResponseWriter, r *http.Request, err error) {
	status := StatusCode(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "error", err, "method", r.Method, "path", r.URL.Path, "status", status)
	} else {
		slog.Debug("Request rejected", "error", err, "method", r.Method, "path", r.URL.Path, "status", status)
	}
	_ = writer.WriteError(w, err.Error(), status)
}
