package handler

import (
	"context"
	"net/http"

	"gitlab-trace/internal/service"
	"gitlab-trace/internal/trace"
)

// RecordService is the manager behaviour the record endpoints need
type RecordService[T trace.Record] interface {
	// Name returns the kind name used in routes, e.g. "requirements"
	Name() string

	// FetchAll retrieves every record of the kind
	FetchAll(ctx context.Context) ([]T, error)

	// Create submits a new record
	Create(ctx context.Context, draft service.Draft) (T, error)

	// Edit changes fields of the issue behind a record
	Edit(ctx context.Context, issueIID int, edit service.Edit) error

	// CloseIssue closes the issue behind a record
	CloseIssue(ctx context.Context, issueIID int) error

	// FetchTags retrieves the tags usable for the kind
	FetchTags(ctx context.Context) ([]string, error)
}

// TagSource provides the tags of one kind
type TagSource interface {
	FetchTags(ctx context.Context) ([]string, error)
}

// TrackerService covers the operations spanning both kinds
type TrackerService interface {
	// SetCredentials points both managers at a project
	SetCredentials(ctx context.Context, projectURL, token string) (bool, error)

	// Status reports both managers
	Status(ctx context.Context) (map[string]service.KindStatus, error)
}

// ResponseWriter wraps HTTP response writing functionality
type ResponseWriter interface {
	// WriteJSON writes payload as JSON with the given status code
	WriteJSON(w http.ResponseWriter, payload interface{}, statusCode int) error

	// WriteError writes an error response with appropriate status code
	WriteError(w http.ResponseWriter, message string, statusCode int) error
}
