package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gitlab-trace/internal/client"
	"gitlab-trace/internal/repository"
	"gitlab-trace/internal/trace"
)

// Manager runs the fetch, create, edit, close and tag sequences of one record kind.
// At most one sequence is in flight; further calls are rejected with ErrBusy
// without touching the network.
type Manager[T trace.Record] struct {
	kind     trace.Kind[T]
	tracker  client.IssueTracker
	bindings repository.BindingRepository

	mu         sync.Mutex
	state      State
	projectURL string
	token      string
	projectID  int
	tags       []string
	observers  []Observer[T]

	wg sync.WaitGroup
}

// NewManager creates a manager for kind. bindings may be nil.
func NewManager[T trace.Record](kind trace.Kind[T], tracker client.IssueTracker, bindings repository.BindingRepository) *Manager[T] {
	return &Manager[T]{
		kind:      kind,
		tracker:   tracker,
		bindings:  bindings,
		projectID: client.InvalidProjectID,
	}
}

// NewRequirementsManager creates the manager for issues labelled "requirement"
func NewRequirementsManager(tracker client.IssueTracker, bindings repository.BindingRepository) *Manager[trace.Requirement] {
	return NewManager(trace.Requirements, tracker, bindings)
}

// NewReviewsManager creates the manager for issues labelled "review"
func NewReviewsManager(tracker client.IssueTracker, bindings repository.BindingRepository) *Manager[trace.Review] {
	return NewManager(trace.Reviews, tracker, bindings)
}

// Name returns the kind name, e.g. "requirements"
func (m *Manager[T]) Name() string {
	return m.kind.Name
}

// Subscribe registers an observer for all future events
func (m *Manager[T]) Subscribe(o Observer[T]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, o)
}

// State returns a snapshot of the current phase
func (m *Manager[T]) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Busy reports whether a sequence is in flight
func (m *Manager[T]) Busy() bool {
	return m.State().Busy()
}

// ProjectID returns the resolved project ID or client.InvalidProjectID
func (m *Manager[T]) ProjectID() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.projectID
}

// HasValidProjectID reports whether a project ID has been resolved
func (m *Manager[T]) HasValidProjectID() bool {
	return m.ProjectID() != client.InvalidProjectID
}

// ProjectURL returns the project URL last passed to SetCredentials
func (m *Manager[T]) ProjectURL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.projectURL
}

// Tags returns the tags collected by the last completed FetchTags
func (m *Manager[T]) Tags() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.tags...)
}

// Wait blocks until the sequence started by RequestAll has finished
func (m *Manager[T]) Wait() {
	m.wg.Wait()
}

// SetCredentials points the manager at a project. Changed credentials reset the
// project ID and, when both values are present, resolve it again. Unchanged
// credentials are a no-op once a project ID is known; while it is still unknown
// the lookup is retried. The result reports whether a project ID is known.
func (m *Manager[T]) SetCredentials(ctx context.Context, projectURL, token string) (bool, error) {
	m.mu.Lock()
	changed := projectURL != m.projectURL || token != m.token
	resolve := projectURL != "" && token != ""
	if !changed && (m.projectID != client.InvalidProjectID || !resolve) {
		bound := m.projectID != client.InvalidProjectID
		m.mu.Unlock()
		slog.Debug("Credentials unchanged", "kind", m.kind.Name, "project_id_valid", bound)
		return bound, nil
	}
	if m.state.Busy() {
		m.mu.Unlock()
		slog.Debug("Rejecting credential change while busy", "kind", m.kind.Name)
		return false, ErrBusy
	}
	if changed {
		m.projectURL = projectURL
		m.token = token
		m.projectID = client.InvalidProjectID
	}
	if resolve {
		m.state = State{Phase: PhaseSubmitting}
	}
	m.mu.Unlock()

	if changed {
		slog.Info("Credentials changed", "kind", m.kind.Name, "project_url", projectURL)
		m.notify(func(o Observer[T]) { o.CredentialsChanged() })
	} else {
		slog.Info("Retrying project resolution", "kind", m.kind.Name, "project_url", projectURL)
	}

	if !resolve {
		m.notify(func(o Observer[T]) { o.ProjectIDChanged(client.InvalidProjectID) })
		return false, nil
	}
	m.notify(func(o Observer[T]) { o.BusyChanged(true) })

	if err := m.tracker.SetCredentials(projectURL, token); err != nil {
		slog.Error("Failed to apply credentials", "error", err, "kind", m.kind.Name, "project_url", projectURL)
		m.complete(err, nil)
		return false, err
	}

	projectID, err := m.tracker.ProjectID(ctx, projectURL)
	if err != nil {
		slog.Error("Failed to resolve project ID", "error", err, "kind", m.kind.Name, "project_url", projectURL)
		m.complete(err, nil)
		return false, err
	}

	m.mu.Lock()
	m.projectID = projectID
	m.mu.Unlock()

	if projectID != client.InvalidProjectID {
		m.saveBinding(ctx, repository.Binding{ProjectURL: projectURL, ProjectID: projectID})
	}

	m.complete(nil, func(o Observer[T]) { o.ProjectIDChanged(projectID) })
	return projectID != client.InvalidProjectID, nil
}

// FetchAll retrieves every page of records carrying the kind label. Observers
// see FetchStarted, one PageReceived per page and exactly one FetchDone.
func (m *Manager[T]) FetchAll(ctx context.Context) ([]T, error) {
	projectID, err := m.admit(PhaseFetching)
	if err != nil {
		return nil, err
	}
	return m.fetchAll(ctx, projectID)
}

// RequestAll starts FetchAll in the background. Admission is decided before
// returning; results arrive through the observers.
func (m *Manager[T]) RequestAll(ctx context.Context) error {
	projectID, err := m.admit(PhaseFetching)
	if err != nil {
		return err
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		_, _ = m.fetchAll(ctx, projectID)
	}()
	return nil
}

func (m *Manager[T]) fetchAll(ctx context.Context, projectID int) ([]T, error) {
	slog.Debug("Fetching all records", "kind", m.kind.Name, "project_id", projectID)
	m.notify(func(o Observer[T]) { o.FetchStarted() })

	req := client.IssuesPage(client.NewIssueRequestOptions(projectID, m.kind.Label))
	var records []T
	for {
		m.setPage(req.Page())

		result, err := m.tracker.FetchPage(ctx, req)
		if err != nil {
			slog.Error("Failed to fetch page", "error", err, "kind", m.kind.Name, "page", req.Page())
			m.complete(err, func(o Observer[T]) { o.FetchDone(err) })
			return nil, err
		}

		page := m.kind.FromIssues(result.Issues)
		records = append(records, page...)
		pageNumber := req.Page()
		m.notify(func(o Observer[T]) { o.PageReceived(pageNumber, page) })

		if !result.HasNext() {
			break
		}
		req = req.WithPage(req.Page() + 1)
	}

	slog.Info("Fetch completed", "kind", m.kind.Name, "records", len(records), "pages", req.Page())
	m.recordFetch(ctx, len(records))
	m.complete(nil, func(o Observer[T]) { o.FetchDone(nil) })
	return records, nil
}

// Create submits a new issue for draft and returns the record the server created
func (m *Manager[T]) Create(ctx context.Context, draft Draft) (T, error) {
	var zero T
	if err := draft.Validate(); err != nil {
		return zero, err
	}

	projectID, err := m.admit(PhaseSubmitting)
	if err != nil {
		return zero, err
	}

	slog.Debug("Creating record", "kind", m.kind.Name, "id", draft.ID, "project_id", projectID)
	issue, err := m.tracker.CreateIssue(ctx, projectID,
		draft.Title,
		m.kind.Description(draft.ID, draft.Description),
		m.kind.Labels(draft.Classification),
	)
	if err != nil {
		slog.Error("Failed to create record", "error", err, "kind", m.kind.Name, "id", draft.ID)
		m.complete(err, nil)
		return zero, err
	}

	record := m.kind.FromIssue(*issue)
	slog.Info("Record created", "kind", m.kind.Name, "id", record.RecordID(), "issue_iid", record.RecordIID())
	m.complete(nil, func(o Observer[T]) { o.Created(record) })
	return record, nil
}

// Remove closes the issue behind record
func (m *Manager[T]) Remove(ctx context.Context, record T) error {
	return m.CloseIssue(ctx, record.RecordIID())
}

// CloseIssue closes the issue with the given IID
func (m *Manager[T]) CloseIssue(ctx context.Context, issueIID int) error {
	projectID, err := m.admit(PhaseSubmitting)
	if err != nil {
		return err
	}

	slog.Debug("Closing issue", "kind", m.kind.Name, "issue_iid", issueIID, "project_id", projectID)
	if err := m.tracker.CloseIssue(ctx, projectID, issueIID); err != nil {
		slog.Error("Failed to close issue", "error", err, "kind", m.kind.Name, "issue_iid", issueIID)
		m.complete(err, nil)
		return err
	}

	slog.Info("Issue closed", "kind", m.kind.Name, "issue_iid", issueIID)
	m.complete(nil, func(o Observer[T]) { o.Closed(issueIID) })
	return nil
}

// Edit changes the fields of the issue with the given IID that edit sets
func (m *Manager[T]) Edit(ctx context.Context, issueIID int, edit Edit) error {
	if issueIID <= 0 {
		return ErrInvalidEdit
	}
	if err := edit.Validate(); err != nil {
		return err
	}

	projectID, err := m.admit(PhaseSubmitting)
	if err != nil {
		return err
	}

	issueEdit := client.IssueEdit{IID: issueIID, Title: edit.Title, Assignee: edit.Assignee}
	if edit.ID != "" {
		issueEdit.Description = m.kind.Description(edit.ID, edit.Description)
	}
	if edit.Tags != nil {
		issueEdit.Labels = append([]string{m.kind.Label}, trace.TagsWithout(edit.Tags, m.kind.Label)...)
	}

	slog.Debug("Editing issue", "kind", m.kind.Name, "issue_iid", issueIID, "project_id", projectID)
	if err := m.tracker.EditIssue(ctx, projectID, issueEdit); err != nil {
		slog.Error("Failed to edit issue", "error", err, "kind", m.kind.Name, "issue_iid", issueIID)
		m.complete(err, nil)
		return err
	}

	slog.Info("Issue edited", "kind", m.kind.Name, "issue_iid", issueIID)
	m.complete(nil, func(o Observer[T]) { o.Edited(issueIID) })
	return nil
}

// FetchTags collects the project labels usable as tags of this kind across all
// label pages and publishes them once at the end.
func (m *Manager[T]) FetchTags(ctx context.Context) ([]string, error) {
	projectID, err := m.admit(PhaseFetching)
	if err != nil {
		return nil, err
	}

	slog.Debug("Fetching tags", "kind", m.kind.Name, "project_id", projectID)
	var buffer []string
	req := client.LabelsPage(client.LabelsRequestOptions{ProjectID: projectID, Page: 1})
	for {
		m.setPage(req.Page())

		result, err := m.tracker.FetchPage(ctx, req)
		if err != nil {
			slog.Error("Failed to fetch labels", "error", err, "kind", m.kind.Name, "page", req.Page())
			m.complete(err, nil)
			return nil, err
		}
		buffer = append(buffer, m.kind.TagsFromLabels(result.Labels)...)

		if !result.HasNext() {
			break
		}
		req = req.WithPage(req.Page() + 1)
	}

	tags := trace.Dedup(buffer)
	m.mu.Lock()
	m.tags = tags
	m.mu.Unlock()

	slog.Debug("Tags received", "kind", m.kind.Name, "count", len(tags))
	m.complete(nil, func(o Observer[T]) { o.TagsReceived(append([]string(nil), tags...)) })
	return tags, nil
}

// admit moves the manager into phase when it is neither busy nor missing a project
func (m *Manager[T]) admit(phase Phase) (int, error) {
	m.mu.Lock()
	if m.state.Busy() {
		m.mu.Unlock()
		slog.Debug("Rejecting request while busy", "kind", m.kind.Name, "phase", m.state.Phase.String())
		return client.InvalidProjectID, ErrBusy
	}
	if m.projectID == client.InvalidProjectID {
		m.mu.Unlock()
		return client.InvalidProjectID, ErrInvalidProject
	}
	projectID := m.projectID
	m.state = State{Phase: phase}
	m.mu.Unlock()

	m.notify(func(o Observer[T]) { o.BusyChanged(true) })
	return projectID, nil
}

func (m *Manager[T]) setPage(page int) {
	m.mu.Lock()
	m.state.Page = page
	m.mu.Unlock()
}

// complete ends the running sequence. Failures are published as one
// ConnectionError before terminal; busy is released last.
func (m *Manager[T]) complete(err error, terminal func(Observer[T])) {
	if err != nil {
		message := err.Error()
		m.notify(func(o Observer[T]) { o.ConnectionError(message) })
	}
	if terminal != nil {
		m.notify(terminal)
	}

	m.mu.Lock()
	if err != nil {
		m.state = State{Phase: PhaseError, Err: err}
	} else {
		m.state = State{Phase: PhaseIdle}
	}
	m.mu.Unlock()

	m.notify(func(o Observer[T]) { o.BusyChanged(false) })
}

func (m *Manager[T]) notify(fn func(Observer[T])) {
	m.mu.Lock()
	observers := append([]Observer[T](nil), m.observers...)
	m.mu.Unlock()

	for _, o := range observers {
		fn(o)
	}
}

func (m *Manager[T]) saveBinding(ctx context.Context, binding repository.Binding) {
	if m.bindings == nil {
		return
	}

	previous, err := m.bindings.GetBinding(ctx, m.kind.Name)
	if err != nil {
		slog.Warn("Failed to read stored binding", "error", err, "kind", m.kind.Name)
	} else if previous != nil && previous.ProjectURL == binding.ProjectURL && previous.ProjectID != binding.ProjectID {
		slog.Info("Project ID changed since last binding",
			"kind", m.kind.Name,
			"project_url", binding.ProjectURL,
			"previous_project_id", previous.ProjectID,
			"project_id", binding.ProjectID,
		)
	}

	if err := m.bindings.SaveBinding(ctx, m.kind.Name, binding); err != nil {
		slog.Warn("Failed to store binding", "error", err, "kind", m.kind.Name)
	}
}

func (m *Manager[T]) recordFetch(ctx context.Context, count int) {
	if m.bindings == nil {
		return
	}

	total, err := m.bindings.RecordFetch(ctx, m.kind.Name, count, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		slog.Warn("Failed to record fetch", "error", err, "kind", m.kind.Name)
		return
	}
	slog.Debug("Fetch recorded", "kind", m.kind.Name, "fetch_count", total)
}

// Status summarises the manager for reporting
func (m *Manager[T]) Status() KindStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := KindStatus{
		Phase:      m.state.Phase.String(),
		Page:       m.state.Page,
		Busy:       m.state.Busy(),
		ProjectURL: m.projectURL,
		ProjectID:  m.projectID,
	}
	if m.state.Err != nil {
		status.LastError = m.state.Err.Error()
	}
	return status
}

// KindStatus is the reportable state of one manager
type KindStatus struct {
	Phase      string            `json:"phase"`
	Page       int               `json:"page,omitempty"`
	Busy       bool              `json:"busy"`
	ProjectURL string            `json:"projectUrl"`
	ProjectID  int               `json:"projectId"`
	LastError  string            `json:"lastError,omitempty"`
	Stored     map[string]string `json:"stored,omitempty"`
}

func (s KindStatus) String() string {
	return fmt.Sprintf("%s project=%d busy=%t", s.Phase, s.ProjectID, s.Busy)
}
