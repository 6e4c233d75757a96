package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"gitlab-trace/internal/service"
	"gitlab-trace/internal/trace"
)

// FilterFunc narrows fetched records by the request query. An error is a bad request.
type FilterFunc[T trace.Record] func(r *http.Request, records []T) (any, error)

// RecordHandler serves list, create and remove for one record kind
type RecordHandler[T trace.Record] struct {
	records RecordService[T]
	filter  FilterFunc[T]
	writer  ResponseWriter
}

// NewRecordHandler creates a handler for records filtered by filter
func NewRecordHandler[T trace.Record](records RecordService[T], filter FilterFunc[T], writer ResponseWriter) *RecordHandler[T] {
	return &RecordHandler[T]{
		records: records,
		filter:  filter,
		writer:  writer,
	}
}

// HandleList fetches all records and replies with the filtered list
func (h *RecordHandler[T]) HandleList(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Listing records", "kind", h.records.Name(), "query", r.URL.RawQuery)

	records, err := h.records.FetchAll(r.Context())
	if err != nil {
		writeServiceError(h.writer, w, r, err)
		return
	}

	payload, err := h.filter(r, records)
	if err != nil {
		_ = h.writer.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	_ = h.writer.WriteJSON(w, payload, http.StatusOK)
}

// HandleCreate decodes a draft and replies with the created record
func (h *RecordHandler[T]) HandleCreate(w http.ResponseWriter, r *http.Request) {
	defer func() { _ = r.Body.Close() }()

	var draft service.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		_ = h.writer.WriteError(w, "Error parsing JSON payload", http.StatusBadRequest)
		return
	}

	record, err := h.records.Create(r.Context(), draft)
	if err != nil {
		writeServiceError(h.writer, w, r, err)
		return
	}

	slog.Info("Record created via API", "kind", h.records.Name(), "id", record.RecordID(), "issue_iid", record.RecordIID())
	_ = h.writer.WriteJSON(w, record, http.StatusCreated)
}

// HandleEdit applies a JSON edit to the issue named by the {iid} path value
func (h *RecordHandler[T]) HandleEdit(w http.ResponseWriter, r *http.Request) {
	defer func() { _ = r.Body.Close() }()

	iid, ok := h.pathIID(w, r)
	if !ok {
		return
	}

	var edit service.Edit
	if err := json.NewDecoder(r.Body).Decode(&edit); err != nil {
		_ = h.writer.WriteError(w, "Error parsing JSON payload", http.StatusBadRequest)
		return
	}

	if err := h.records.Edit(r.Context(), iid, edit); err != nil {
		writeServiceError(h.writer, w, r, err)
		return
	}

	slog.Info("Record edited via API", "kind", h.records.Name(), "issue_iid", iid)
	_ = h.writer.WriteJSON(w, nil, http.StatusNoContent)
}

// HandleRemove closes the issue named by the {iid} path value
func (h *RecordHandler[T]) HandleRemove(w http.ResponseWriter, r *http.Request) {
	iid, ok := h.pathIID(w, r)
	if !ok {
		return
	}

	if err := h.records.CloseIssue(r.Context(), iid); err != nil {
		writeServiceError(h.writer, w, r, err)
		return
	}

	_ = h.writer.WriteJSON(w, nil, http.StatusNoContent)
}

func (h *RecordHandler[T]) pathIID(w http.ResponseWriter, r *http.Request) (int, bool) {
	iid, err := strconv.Atoi(r.PathValue("iid"))
	if err != nil || iid <= 0 {
		_ = h.writer.WriteError(w, "Invalid issue iid", http.StatusBadRequest)
		return 0, false
	}
	return iid, true
}

// queryList returns the values of a repeatable, optionally comma-separated parameter
func queryList(r *http.Request, name string) []string {
	var out []string
	for _, value := range r.URL.Query()[name] {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
