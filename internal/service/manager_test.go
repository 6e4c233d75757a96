//go:build unit

package service

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"gitlab-trace/internal/client"
	"gitlab-trace/internal/repository"
	"gitlab-trace/internal/trace"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestManager_FetchAll_Pagination(t *testing.T) {
	tests := []struct {
		name          string
		totalPages    string
		expectedPages int
	}{
		{name: "three pages", totalPages: "3", expectedPages: 3},
		{name: "missing headers stop after one page", totalPages: "", expectedPages: 1},
		{name: "non-numeric headers stop after one page", totalPages: "many", expectedPages: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeGitLab(t)
			f.totalPages = tt.totalPages
			m := newBoundRequirements(t, f)
			events := observe(m)

			records, err := m.FetchAll(context.Background())

			require.NoError(t, err)
			assert.Len(t, records, 2*tt.expectedPages)
			assert.Len(t, f.issueRequests, tt.expectedPages)

			expected := []string{"busy:true", "started"}
			for page := 1; page <= tt.expectedPages; page++ {
				expected = append(expected, "page:"+strconv.Itoa(page)+":2")
			}
			expected = append(expected, "done:true", "busy:false")
			assert.Equal(t, expected, events.list())

			for i, q := range f.issueRequests {
				assert.Equal(t, strconv.Itoa(i+1), q.Get("page"))
				assert.Equal(t, "requirement", q.Get("labels"))
				assert.Equal(t, "80", q.Get("per_page"))
				assert.Equal(t, "opened", q.Get("state"))
			}

			assert.Equal(t, "R-1-1", records[0].ID)
			assert.Equal(t, "12", records[1].ID)
			assert.Equal(t, []string{"unit"}, records[1].Tags)
			assert.Equal(t, PhaseIdle, m.State().Phase)
		})
	}
}

func TestManager_FetchAll_ErrorMidway(t *testing.T) {
	f := newFakeGitLab(t)
	f.totalPages = "3"
	f.failPage = "2"
	m := newBoundRequirements(t, f)
	events := observe(m)

	records, err := m.FetchAll(context.Background())

	require.Error(t, err)
	var connErr *client.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, 500, connErr.StatusCode)
	assert.Nil(t, records)

	assert.Equal(t, []string{"busy:true", "started", "page:1:2", "error", "done:false", "busy:false"}, events.list())
	assert.Equal(t, 1, events.count("busy:false"))

	state := m.State()
	assert.Equal(t, PhaseError, state.Phase)
	assert.False(t, state.Busy())
	assert.Error(t, state.Err)

	f.failPage = ""
	_, err = m.FetchAll(context.Background())
	assert.NoError(t, err)
}

func TestManager_RequestAll(t *testing.T) {
	f := newFakeGitLab(t)
	f.totalPages = "2"
	m := newBoundRequirements(t, f)
	events := observe(m)

	require.NoError(t, m.RequestAll(context.Background()))
	m.Wait()

	assert.Equal(t, []string{"busy:true", "started", "page:1:2", "page:2:2", "done:true", "busy:false"}, events.list())
}

func TestManager_RejectsWhileBusy(t *testing.T) {
	ctx := context.Background()
	tracker := &mockTracker{}
	entered := make(chan struct{})
	release := make(chan struct{})

	tracker.On("SetCredentials", "https://gitlab.example.com/g/p", "tok").Return(nil)
	tracker.On("ProjectID", mock.Anything, "https://gitlab.example.com/g/p").Return(42, nil)
	tracker.On("FetchPage", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(&client.PageResult{Kind: client.IssuesRequest, Page: -1, TotalPages: -1}, nil).
		Once()

	m := NewRequirementsManager(tracker, nil)
	ok, err := m.SetCredentials(ctx, "https://gitlab.example.com/g/p", "tok")
	require.NoError(t, err)
	require.True(t, ok)
	events := observe(m)

	require.NoError(t, m.RequestAll(ctx))
	<-entered

	assert.True(t, m.Busy())
	assert.Equal(t, 1, m.State().Page)

	_, err = m.FetchAll(ctx)
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, m.RequestAll(ctx), ErrBusy)
	_, err = m.Create(ctx, Draft{ID: "X-1", Title: "T"})
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, m.Remove(ctx, trace.Requirement{ID: "X-1", IssueIID: 3}), ErrBusy)
	_, err = m.FetchTags(ctx)
	assert.ErrorIs(t, err, ErrBusy)
	_, err = m.SetCredentials(ctx, "https://gitlab.example.com/g/other", "tok")
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	m.Wait()

	tracker.AssertNumberOfCalls(t, "FetchPage", 1)
	tracker.AssertNotCalled(t, "CreateIssue", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	tracker.AssertNotCalled(t, "CloseIssue", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 1, events.count("busy:true"))
	assert.Equal(t, 1, events.count("busy:false"))
	assert.Equal(t, "https://gitlab.example.com/g/p", m.ProjectURL())
}

func TestManager_InvalidProject(t *testing.T) {
	ctx := context.Background()
	tracker := &mockTracker{}
	m := NewReviewsManager(tracker, nil)
	events := observe(m)

	assert.False(t, m.HasValidProjectID())

	_, err := m.FetchAll(ctx)
	assert.ErrorIs(t, err, ErrInvalidProject)
	_, err = m.FetchTags(ctx)
	assert.ErrorIs(t, err, ErrInvalidProject)
	assert.ErrorIs(t, m.CloseIssue(ctx, 3), ErrInvalidProject)

	assert.Empty(t, events.list())
	tracker.AssertExpectations(t)
}

func TestManager_SetCredentials(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves once and ignores unchanged credentials", func(t *testing.T) {
		f := newFakeGitLab(t)
		m := NewRequirementsManager(f.client(), nil)
		events := observe(m)

		ok, err := m.SetCredentials(ctx, f.projectURL(), testToken)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 42, m.ProjectID())
		assert.Equal(t, []string{"credentials", "busy:true", "project:42", "busy:false"}, events.list())

		ok, err = m.SetCredentials(ctx, f.projectURL(), testToken)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Len(t, events.list(), 4)
	})

	t.Run("unknown project stays invalid", func(t *testing.T) {
		f := newFakeGitLab(t)
		m := NewRequirementsManager(f.client(), nil)

		ok, err := m.SetCredentials(ctx, f.server.URL+"/group/missing", testToken)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.False(t, m.HasValidProjectID())
	})

	t.Run("empty token resets without a request", func(t *testing.T) {
		tracker := &mockTracker{}
		m := NewRequirementsManager(tracker, nil)
		events := observe(m)

		ok, err := m.SetCredentials(ctx, "https://gitlab.example.com/g/p", "")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, []string{"credentials", "project:-1"}, events.list())
		tracker.AssertExpectations(t)
	})

	t.Run("same credentials retry a failed lookup", func(t *testing.T) {
		const projectURL = "https://gitlab.example.com/g/p"
		tracker := &mockTracker{}
		tracker.On("SetCredentials", projectURL, "tok").Return(nil)
		tracker.On("ProjectID", mock.Anything, projectURL).Return(client.InvalidProjectID, errors.New("connection refused")).Once()
		tracker.On("ProjectID", mock.Anything, projectURL).Return(42, nil).Once()
		m := NewRequirementsManager(tracker, nil)
		events := observe(m)

		ok, err := m.SetCredentials(ctx, projectURL, "tok")
		require.Error(t, err)
		assert.False(t, ok)
		assert.Equal(t, ok, m.HasValidProjectID())

		ok, err = m.SetCredentials(ctx, projectURL, "tok")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, ok, m.HasValidProjectID())
		assert.Equal(t, 42, m.ProjectID())

		ok, err = m.SetCredentials(ctx, projectURL, "tok")
		require.NoError(t, err)
		assert.True(t, ok)

		tracker.AssertNumberOfCalls(t, "ProjectID", 2)
		assert.Equal(t, 1, events.count("credentials"))
		assert.Equal(t, 1, events.count("project:42"))
	})

	t.Run("unchanged credentials without a project report false", func(t *testing.T) {
		f := newFakeGitLab(t)
		m := NewRequirementsManager(f.client(), nil)

		for i := 0; i < 2; i++ {
			ok, err := m.SetCredentials(ctx, f.server.URL+"/group/missing", testToken)
			require.NoError(t, err)
			assert.False(t, ok)
		}
		assert.False(t, m.HasValidProjectID())

		ok, err := m.SetCredentials(ctx, "", "")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("rejected token surfaces a connection error", func(t *testing.T) {
		f := newFakeGitLab(t)
		m := NewRequirementsManager(f.client(), nil)
		events := observe(m)

		ok, err := m.SetCredentials(ctx, f.projectURL(), "wrong")
		require.Error(t, err)
		assert.False(t, ok)
		assert.Equal(t, []string{"credentials", "busy:true", "error", "busy:false"}, events.list())
		assert.Equal(t, PhaseError, m.State().Phase)
	})
}

func TestManager_CreateRoundTrip(t *testing.T) {
	f := newFakeGitLab(t)
	m := newBoundRequirements(t, f)
	events := observe(m)

	created, err := m.Create(context.Background(), Draft{ID: "X-1", Title: "T", Classification: "unit"})

	require.NoError(t, err)
	assert.Equal(t, "X-1", created.ID)
	assert.Equal(t, "T", created.Title)
	assert.Equal(t, []string{"unit"}, created.Tags)
	assert.Equal(t, 17, created.IssueIID)

	require.Len(t, f.posts, 1)
	assert.Equal(t, "#reqid X-1\n\n", f.posts[0].Get("description"))
	assert.Equal(t, "requirement,unit", f.posts[0].Get("labels"))
	assert.Equal(t, "42", f.posts[0].Get("id"))
	assert.Equal(t, []string{"busy:true", "created:X-1", "busy:false"}, events.list())
}

func TestManager_CreateRejectsIncompleteDraft(t *testing.T) {
	tracker := &mockTracker{}
	m := NewReviewsManager(tracker, nil)

	_, err := m.Create(context.Background(), Draft{Title: "no id"})

	assert.ErrorIs(t, err, ErrInvalidDraft)
	tracker.AssertExpectations(t)
}

func TestManager_Remove(t *testing.T) {
	f := newFakeGitLab(t)
	m := newBoundRequirements(t, f)
	events := observe(m)

	err := m.Remove(context.Background(), trace.Requirement{ID: "X-1", IssueIID: 17})

	require.NoError(t, err)
	require.Len(t, f.puts, 1)
	assert.Equal(t, "close", f.puts[0].Get("state_event"))
	assert.Equal(t, "17", f.puts[0].Get("path_iid"))
	assert.Equal(t, "17", f.puts[0].Get("issue_iid"))
	assert.Equal(t, 1, events.count("closed:17"))
	assert.Equal(t, []string{"busy:true", "closed:17", "busy:false"}, events.list())
}

func TestManager_Edit(t *testing.T) {
	f := newFakeGitLab(t)
	m := newBoundRequirements(t, f)
	events := observe(m)

	err := m.Edit(context.Background(), 17, Edit{ID: "X-1", Title: "Renamed", Description: "body", Tags: []string{"requirement", "perf"}})

	require.NoError(t, err)
	require.Len(t, f.puts, 1)
	put := f.puts[0]
	assert.Equal(t, "17", put.Get("path_iid"))
	assert.Equal(t, "Renamed", put.Get("title"))
	assert.Equal(t, "#reqid X-1\n\nbody", put.Get("description"))
	assert.Equal(t, []string{"requirement", "perf"}, put["labels"])
	assert.Empty(t, put.Get("state_event"))
	assert.Equal(t, []string{"busy:true", "edited:17", "busy:false"}, events.list())
}

func TestManager_EditRejectsInvalidInput(t *testing.T) {
	tracker := &mockTracker{}
	m := NewReviewsManager(tracker, nil)
	ctx := context.Background()

	assert.ErrorIs(t, m.Edit(ctx, 3, Edit{}), ErrInvalidEdit)
	assert.ErrorIs(t, m.Edit(ctx, 3, Edit{Description: "would drop the id"}), ErrInvalidEdit)
	assert.ErrorIs(t, m.Edit(ctx, 0, Edit{Title: "T"}), ErrInvalidEdit)
	assert.ErrorIs(t, m.Edit(ctx, 3, Edit{Title: "T"}), ErrInvalidProject)

	tracker.AssertNotCalled(t, "EditIssue", mock.Anything, mock.Anything, mock.Anything)
}

func TestManager_FetchTags(t *testing.T) {
	f := newFakeGitLab(t)
	f.labelPages = [][]string{
		{"review", "unit", "major"},
		{"unit", "requirement", "review"},
	}
	m := NewReviewsManager(f.client(), nil)
	_, err := m.SetCredentials(context.Background(), f.projectURL(), testToken)
	require.NoError(t, err)
	events := observe(m)

	tags, err := m.FetchTags(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"unit", "major", "requirement"}, tags)

	again, err := m.FetchTags(context.Background())
	require.NoError(t, err)
	assert.Equal(t, tags, again)
	assert.Equal(t, tags, m.Tags())
	assert.Equal(t, 4, f.labelRequests)

	assert.Equal(t, 2, events.count("tags:unit,major,requirement"))
	assert.Equal(t, 2, events.count("busy:false"))
}

func TestManager_Bindings(t *testing.T) {
	ctx := context.Background()
	f := newFakeGitLab(t)
	bindings := &mockBindings{}
	binding := repository.Binding{ProjectURL: f.projectURL(), ProjectID: 42}

	bindings.On("GetBinding", mock.Anything, "requirements").
		Return(&repository.Binding{ProjectURL: f.projectURL(), ProjectID: 7}, nil)
	bindings.On("SaveBinding", mock.Anything, "requirements", binding).Return(nil)
	bindings.On("RecordFetch", mock.Anything, "requirements", 2, mock.AnythingOfType("string")).Return(1, nil)

	m := NewRequirementsManager(f.client(), bindings)
	_, err := m.SetCredentials(ctx, f.projectURL(), testToken)
	require.NoError(t, err)

	_, err = m.FetchAll(ctx)
	require.NoError(t, err)

	bindings.AssertExpectations(t)
}

func TestManager_BindingFailuresDoNotFailSequences(t *testing.T) {
	ctx := context.Background()
	f := newFakeGitLab(t)
	bindings := &mockBindings{}
	bindings.On("GetBinding", mock.Anything, "reviews").Return(nil, errors.New("redis down"))
	bindings.On("SaveBinding", mock.Anything, "reviews", mock.Anything).Return(errors.New("redis down"))
	bindings.On("RecordFetch", mock.Anything, "reviews", mock.Anything, mock.Anything).Return(0, errors.New("redis down"))

	m := NewReviewsManager(f.client(), bindings)
	ok, err := m.SetCredentials(ctx, f.projectURL(), testToken)
	require.NoError(t, err)
	assert.True(t, ok)

	records, err := m.FetchAll(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, "V-1-2", records[1].ID)
}

func TestTracker(t *testing.T) {
	ctx := context.Background()
	f := newFakeGitLab(t)
	bindings := &mockBindings{}
	bindings.On("GetBinding", mock.Anything, mock.Anything).Return(nil, nil)
	bindings.On("SaveBinding", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	bindings.On("GetStatus", mock.Anything, "requirements").Return(map[string]string{"fetchCount": "3"}, nil)
	bindings.On("GetStatus", mock.Anything, "reviews").Return(map[string]string{}, nil)

	tracker := NewTracker(
		NewRequirementsManager(f.client(), bindings),
		NewReviewsManager(f.client(), bindings),
		bindings,
	)

	ok, err := tracker.SetCredentials(ctx, f.projectURL(), testToken)
	require.NoError(t, err)
	assert.True(t, ok)

	status, err := tracker.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, status["requirements"].ProjectID)
	assert.Equal(t, 42, status["reviews"].ProjectID)
	assert.Equal(t, "idle", status["reviews"].Phase)
	assert.Equal(t, "3", status["requirements"].Stored["fetchCount"])

	_, err = tracker.SetCredentials(ctx, f.projectURL(), "wrong")
	assert.Error(t, err)
}

func TestTracker_SetCredentialsWhileBusy(t *testing.T) {
	ctx := context.Background()
	const projectURL = "https://gitlab.example.com/g/p"
	entered := make(chan struct{})
	release := make(chan struct{})

	reviewsTracker := &mockTracker{}
	reviewsTracker.On("SetCredentials", projectURL, "tok").Return(nil)
	reviewsTracker.On("ProjectID", mock.Anything, projectURL).Return(42, nil)
	reviewsTracker.On("FetchPage", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(&client.PageResult{Kind: client.IssuesRequest, Page: -1, TotalPages: -1}, nil).
		Once()
	requirementsTracker := &mockTracker{}

	tracker := NewTracker(NewRequirementsManager(requirementsTracker, nil), NewReviewsManager(reviewsTracker, nil), nil)
	_, err := tracker.Reviews.SetCredentials(ctx, projectURL, "tok")
	require.NoError(t, err)
	require.NoError(t, tracker.Reviews.RequestAll(ctx))
	<-entered

	ok, err := tracker.SetCredentials(ctx, "https://gitlab.example.com/g/other", "tok")

	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrBusy)
	assert.Contains(t, err.Error(), "reviews")
	assert.Empty(t, tracker.Requirements.ProjectURL())
	assert.Equal(t, projectURL, tracker.Reviews.ProjectURL())

	close(release)
	tracker.Wait()
	requirementsTracker.AssertNotCalled(t, "SetCredentials", mock.Anything, mock.Anything)
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "idle", PhaseIdle.String())
	assert.Equal(t, "fetching", PhaseFetching.String())
	assert.Equal(t, "submitting", PhaseSubmitting.String())
	assert.Equal(t, "error", PhaseError.String())
	assert.Equal(t, "unknown", Phase(9).String())
}
