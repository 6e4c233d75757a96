package service

import (
	"errors"

	"gitlab-trace/internal/trace"
)

var (
	// ErrBusy is returned when a manager already runs a sequence
	ErrBusy = errors.New("request rejected: manager is busy")

	// ErrInvalidProject is returned when no project ID has been resolved
	ErrInvalidProject = errors.New("no valid project id: set credentials first")

	// ErrInvalidDraft is returned when a draft misses its ID or title
	ErrInvalidDraft = errors.New("draft needs an id and a title")

	// ErrInvalidEdit is returned when an edit changes nothing or drops the record ID
	ErrInvalidEdit = errors.New("edit needs at least one field and an id with a description")
)

// Draft is the user input for a new requirement or review
type Draft struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Classification string `json:"classification"`
}

// Validate ensures the draft carries the fields the server needs
func (d Draft) Validate() error {
	if d.ID == "" || d.Title == "" {
		return ErrInvalidDraft
	}
	return nil
}

// Edit lists the fields of an existing record to change. Empty fields are left
// untouched. A new description is stored under ID so the record keeps its
// canonical ID; Tags replace the labels while the type label is kept.
type Edit struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Assignee    string   `json:"assignee"`
	Tags        []string `json:"tags"`
}

// Validate rejects edits that change nothing or would lose the record ID
func (e Edit) Validate() error {
	if e.Description != "" && e.ID == "" {
		return ErrInvalidEdit
	}
	if e.ID == "" && e.Title == "" && e.Assignee == "" && e.Tags == nil {
		return ErrInvalidEdit
	}
	return nil
}

// Phase is the activity of a manager
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseFetching
	PhaseSubmitting
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseFetching:
		return "fetching"
	case PhaseSubmitting:
		return "submitting"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// State is the current phase of a manager. Page is set while fetching and Err
// after a failed sequence.
type State struct {
	Phase Phase
	Page  int
	Err   error
}

// Busy reports whether a sequence is in flight
func (s State) Busy() bool {
	return s.Phase == PhaseFetching || s.Phase == PhaseSubmitting
}

// Observer receives the events of a Manager. Calls happen on the goroutine
// running the sequence, never while the manager holds its lock.
type Observer[T trace.Record] interface {
	BusyChanged(busy bool)
	FetchStarted()
	PageReceived(page int, records []T)
	FetchDone(err error)
	Created(record T)
	Closed(issueIID int)
	Edited(issueIID int)
	TagsReceived(tags []string)
	CredentialsChanged()
	ProjectIDChanged(projectID int)
	ConnectionError(message string)
}

// ObserverFuncs adapts optional callbacks to Observer
type ObserverFuncs[T trace.Record] struct {
	OnBusyChanged        func(bool)
	OnFetchStarted       func()
	OnPageReceived       func(int, []T)
	OnFetchDone          func(error)
	OnCreated            func(T)
	OnClosed             func(int)
	OnEdited             func(int)
	OnTagsReceived       func([]string)
	OnCredentialsChanged func()
	OnProjectIDChanged   func(int)
	OnConnectionError    func(string)
}

func (f ObserverFuncs[T]) BusyChanged(busy bool) {
	if f.OnBusyChanged != nil {
		f.OnBusyChanged(busy)
	}
}

func (f ObserverFuncs[T]) FetchStarted() {
	if f.OnFetchStarted != nil {
		f.OnFetchStarted()
	}
}

func (f ObserverFuncs[T]) PageReceived(page int, records []T) {
	if f.OnPageReceived != nil {
		f.OnPageReceived(page, records)
	}
}

func (f ObserverFuncs[T]) FetchDone(err error) {
	if f.OnFetchDone != nil {
		f.OnFetchDone(err)
	}
}

func (f ObserverFuncs[T]) Created(record T) {
	if f.OnCreated != nil {
		f.OnCreated(record)
	}
}

func (f ObserverFuncs[T]) Closed(issueIID int) {
	if f.OnClosed != nil {
		f.OnClosed(issueIID)
	}
}

func (f ObserverFuncs[T]) Edited(issueIID int) {
	if f.OnEdited != nil {
		f.OnEdited(issueIID)
	}
}

func (f ObserverFuncs[T]) TagsReceived(tags []string) {
	if f.OnTagsReceived != nil {
		f.OnTagsReceived(tags)
	}
}

func (f ObserverFuncs[T]) CredentialsChanged() {
	if f.OnCredentialsChanged != nil {
		f.OnCredentialsChanged()
	}
}

func (f ObserverFuncs[T]) ProjectIDChanged(projectID int) {
	if f.OnProjectIDChanged != nil {
		f.OnProjectIDChanged(projectID)
	}
}

func (f ObserverFuncs[T]) ConnectionError(message string) {
	if f.OnConnectionError != nil {
		f.OnConnectionError(message)
	}
}
