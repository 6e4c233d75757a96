//go:build unit

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"gitlab-trace/internal/client"
	"gitlab-trace/internal/config"
	"gitlab-trace/internal/repository"
	"gitlab-trace/internal/trace"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testToken = "test-token"

// mockTracker is a testify mock of client.IssueTracker
type mockTracker struct {
	mock.Mock
}

func (m *mockTracker) SetCredentials(projectURL, token string) error {
	args := m.Called(projectURL, token)
	return args.Error(0)
}

func (m *mockTracker) FetchPage(ctx context.Context, req client.PageRequest) (*client.PageResult, error) {
	args := m.Called(ctx, req)
	if result := args.Get(0); result != nil {
		return result.(*client.PageResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTracker) CreateIssue(ctx context.Context, projectID int, title, description string, labels []string) (*client.Issue, error) {
	args := m.Called(ctx, projectID, title, description, labels)
	if issue := args.Get(0); issue != nil {
		return issue.(*client.Issue), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTracker) EditIssue(ctx context.Context, projectID int, edit client.IssueEdit) error {
	args := m.Called(ctx, projectID, edit)
	return args.Error(0)
}

func (m *mockTracker) CloseIssue(ctx context.Context, projectID, issueIID int) error {
	args := m.Called(ctx, projectID, issueIID)
	return args.Error(0)
}

func (m *mockTracker) ProjectID(ctx context.Context, projectURL string) (int, error) {
	args := m.Called(ctx, projectURL)
	return args.Int(0), args.Error(1)
}

// mockBindings is a testify mock of repository.BindingRepository
type mockBindings struct {
	mock.Mock
}

func (m *mockBindings) SaveBinding(ctx context.Context, kind string, binding repository.Binding) error {
	args := m.Called(ctx, kind, binding)
	return args.Error(0)
}

func (m *mockBindings) GetBinding(ctx context.Context, kind string) (*repository.Binding, error) {
	args := m.Called(ctx, kind)
	if binding := args.Get(0); binding != nil {
		return binding.(*repository.Binding), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockBindings) RecordFetch(ctx context.Context, kind string, count int, timestamp string) (int, error) {
	args := m.Called(ctx, kind, count, timestamp)
	return args.Int(0), args.Error(1)
}

func (m *mockBindings) GetStatus(ctx context.Context, kind string) (map[string]string, error) {
	args := m.Called(ctx, kind)
	if status := args.Get(0); status != nil {
		return status.(map[string]string), args.Error(1)
	}
	return nil, args.Error(1)
}

// recorder collects manager events as short strings in arrival order
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) count(event string) int {
	n := 0
	for _, e := range r.list() {
		if e == event {
			n++
		}
	}
	return n
}

func observe[T trace.Record](m *Manager[T]) *recorder {
	r := &recorder{}
	m.Subscribe(ObserverFuncs[T]{
		OnBusyChanged:        func(busy bool) { r.add("busy:%t", busy) },
		OnFetchStarted:       func() { r.add("started") },
		OnPageReceived:       func(page int, records []T) { r.add("page:%d:%d", page, len(records)) },
		OnFetchDone:          func(err error) { r.add("done:%t", err == nil) },
		OnCreated:            func(record T) { r.add("created:%s", record.RecordID()) },
		OnClosed:             func(iid int) { r.add("closed:%d", iid) },
		OnEdited:             func(iid int) { r.add("edited:%d", iid) },
		OnTagsReceived:       func(tags []string) { r.add("tags:%s", strings.Join(tags, ",")) },
		OnCredentialsChanged: func() { r.add("credentials") },
		OnProjectIDChanged:   func(id int) { r.add("project:%d", id) },
		OnConnectionError:    func(string) { r.add("error") },
	})
	return r
}

// fakeGitLab serves the subset of the GitLab API the managers use for project 42
type fakeGitLab struct {
	server *httptest.Server

	mu            sync.Mutex
	totalPages    string
	failPage      string
	labelPages    [][]string
	issueRequests []url.Values
	labelRequests int
	posts         []url.Values
	puts          []url.Values
}

func newFakeGitLab(t *testing.T) *fakeGitLab {
	t.Helper()
	f := &fakeGitLab{}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v4/projects", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("PRIVATE-TOKEN") != testToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, []map[string]any{
			{"id": 7, "web_url": f.server.URL + "/group/project-old"},
			{"id": 42, "web_url": f.server.URL + "/group/project"},
		})
	})
	mux.HandleFunc("GET /api/v4/projects/42/issues", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f.mu.Lock()
		f.issueRequests = append(f.issueRequests, q)
		totalPages, failPage := f.totalPages, f.failPage
		f.mu.Unlock()

		page := q.Get("page")
		if page == failPage {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if totalPages != "" {
			w.Header().Set("x-page", page)
			w.Header().Set("x-total-pages", totalPages)
		}
		n, _ := strconv.Atoi(page)
		writeJSON(w, []map[string]any{
			{"iid": n*10 + 1, "title": "first", "description": fmt.Sprintf("#reqid R-%d-1", n), "labels": []string{q.Get("labels")}},
			{"iid": n*10 + 2, "title": "second", "description": fmt.Sprintf("#revid V-%d-2", n), "labels": []string{q.Get("labels"), "unit"}},
		})
	})
	mux.HandleFunc("POST /api/v4/projects/42/issues", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.posts = append(f.posts, r.PostForm)
		f.mu.Unlock()

		w.WriteHeader(http.StatusCreated)
		writeJSON(w, map[string]any{
			"id":          1017,
			"iid":         17,
			"title":       r.PostForm.Get("title"),
			"description": r.PostForm.Get("description"),
			"labels":      strings.Split(r.PostForm.Get("labels"), ","),
			"author":      map[string]string{"name": "Ada"},
			"web_url":     f.server.URL + "/group/project/-/issues/17",
		})
	})
	mux.HandleFunc("PUT /api/v4/projects/42/issues/{iid}", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		q.Set("path_iid", r.PathValue("iid"))
		f.mu.Lock()
		f.puts = append(f.puts, q)
		f.mu.Unlock()
		writeJSON(w, map[string]any{"iid": 17})
	})
	mux.HandleFunc("GET /api/v4/projects/42/labels", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.labelRequests++
		pages := f.labelPages
		f.mu.Unlock()

		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		w.Header().Set("x-page", strconv.Itoa(page))
		w.Header().Set("x-total-pages", strconv.Itoa(len(pages)))
		labels := []map[string]any{}
		if page >= 1 && page <= len(pages) {
			for i, name := range pages[page-1] {
				labels = append(labels, map[string]any{"id": page*100 + i, "name": name})
			}
		}
		writeJSON(w, labels)
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeGitLab) projectURL() string {
	return f.server.URL + "/group/project"
}

func (f *fakeGitLab) client() *client.GitLabClient {
	return client.NewGitLabClient(&config.Config{GitLabTimeoutSeconds: 5})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// newBoundRequirements returns a requirements manager resolved against the fake server
func newBoundRequirements(t *testing.T, f *fakeGitLab) *Manager[trace.Requirement] {
	t.Helper()
	m := NewRequirementsManager(f.client(), nil)
	ok, err := m.SetCredentials(context.Background(), f.projectURL(), testToken)
	require.NoError(t, err)
	require.True(t, ok)
	return m
}
