package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gitlab-trace/internal/repository"
	"gitlab-trace/internal/trace"
)

type busyReporter interface {
	Name() string
	Busy() bool
}

// Tracker bundles the requirement and review managers with the checked
// requirement overlay.
type Tracker struct {
	Requirements *Manager[trace.Requirement]
	Reviews      *Manager[trace.Review]
	Selection    *trace.Selection

	bindings repository.BindingRepository
}

// NewTracker creates a tracker over two independent managers. bindings may be nil.
func NewTracker(requirements *Manager[trace.Requirement], reviews *Manager[trace.Review], bindings repository.BindingRepository) *Tracker {
	return &Tracker{
		Requirements: requirements,
		Reviews:      reviews,
		Selection:    trace.NewSelection(),
		bindings:     bindings,
	}
}

// SetCredentials points both managers at the same project. Neither manager is
// touched while the other one is busy, so both stay on the same project. It
// reports whether both resolved a project ID; errors of both managers are joined.
func (t *Tracker) SetCredentials(ctx context.Context, projectURL, token string) (bool, error) {
	slog.Debug("Setting tracker credentials", "project_url", projectURL)

	for _, m := range []busyReporter{t.Requirements, t.Reviews} {
		if m.Busy() {
			slog.Debug("Rejecting credential change while a manager is busy", "kind", m.Name())
			return false, fmt.Errorf("%s: %w", m.Name(), ErrBusy)
		}
	}

	reqOK, reqErr := t.Requirements.SetCredentials(ctx, projectURL, token)
	revOK, revErr := t.Reviews.SetCredentials(ctx, projectURL, token)
	if err := errors.Join(reqErr, revErr); err != nil {
		return false, err
	}
	return reqOK && revOK, nil
}

// Status reports both managers, including the fields stored for each kind
func (t *Tracker) Status(ctx context.Context) (map[string]KindStatus, error) {
	status := map[string]KindStatus{
		t.Requirements.Name(): t.Requirements.Status(),
		t.Reviews.Name():      t.Reviews.Status(),
	}
	if t.bindings == nil {
		return status, nil
	}

	for name, s := range status {
		stored, err := t.bindings.GetStatus(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("error retrieving stored status for %s: %w", name, err)
		}
		s.Stored = stored
		status[name] = s
	}
	return status, nil
}

// Wait blocks until background fetches of both managers have finished
func (t *Tracker) Wait() {
	t.Requirements.Wait()
	t.Reviews.Wait()
}
