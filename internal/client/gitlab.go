package client

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"gitlab-trace/internal/config"
)

const contentType = "application/x-www-form-urlencoded"

// GitLabClient implements IssueTracker against the GitLab REST v4 API.
// It keeps no request state between calls; admission control belongs to the caller.
type GitLabClient struct {
	httpClient *http.Client

	mu      sync.RWMutex
	baseURL string
	token   string
}

// NewGitLabClient creates a new GitLab client instance
func NewGitLabClient(cfg *config.Config) *GitLabClient {
	slog.Debug("Initializing GitLab client",
		"project_url", cfg.GitLabProjectURL,
		"skip_tls", cfg.GitLabSkipTLS,
		"timeout_seconds", cfg.GitLabTimeoutSeconds,
		"token_configured", cfg.GitLabToken != "",
	)

	timeout := time.Duration(cfg.GitLabTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := &http.Client{
		Timeout: timeout,
	}

	if cfg.GitLabSkipTLS {
		slog.Warn("TLS verification disabled for GitLab client")
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true,
			},
		}
	}

	g := &GitLabClient{httpClient: httpClient}
	if cfg.GitLabProjectURL != "" {
		if err := g.SetCredentials(cfg.GitLabProjectURL, cfg.GitLabToken); err != nil {
			slog.Warn("Ignoring invalid GitLab project URL", "error", err, "project_url", cfg.GitLabProjectURL)
		}
	}
	return g
}

// SetCredentials derives the API base URL (scheme://host/api/v4) from a project
// URL and stores the token sent with every request.
func (g *GitLabClient) SetCredentials(projectURL, token string) error {
	base, err := APIBaseURL(projectURL)
	if err != nil {
		return err
	}

	g.mu.Lock()
	g.baseURL = base
	g.token = token
	g.mu.Unlock()

	slog.Info("GitLab credentials updated", "base_url", base, "token_configured", token != "")
	return nil
}

// BaseURL returns the API base URL currently in use
func (g *GitLabClient) BaseURL() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.baseURL
}

// NormalizeProjectURL adds the https scheme to a URL given without one
func NormalizeProjectURL(rawURL string) string {
	if !strings.Contains(rawURL, "://") {
		return "https://" + rawURL
	}
	return rawURL
}

// APIBaseURL returns scheme://host/api/v4 for any URL on a GitLab server.
// A URL without scheme is assumed to be https.
func APIBaseURL(rawURL string) (string, error) {
	rawURL = NormalizeProjectURL(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("error parsing url %q: %w", rawURL, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}
	return u.Scheme + "://" + u.Host + "/api/v4", nil
}

// SendRequest performs one authenticated exchange. GET sends no body, POST sends
// the URL-encoded query as body and PUT is sent with the parameters in the query.
func (g *GitLabClient) SendRequest(ctx context.Context, method, rawURL string) (*http.Response, error) {
	var body io.Reader
	switch method {
	case http.MethodGet, http.MethodPut:
	case http.MethodPost:
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, fmt.Errorf("error parsing url: %w", err)
		}
		body = strings.NewReader(u.RawQuery)
	default:
		slog.Warn("Unknown request method", "method", method, "url", rawURL)
		return nil, fmt.Errorf("unsupported request method: %s", method)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	g.mu.RLock()
	token := g.token
	g.mu.RUnlock()

	req.Header.Set("PRIVATE-TOKEN", token)
	req.Header.Set("Content-Type", contentType)

	slog.Debug("Sending HTTP request to GitLab API", "method", method, "url", rawURL)
	return g.httpClient.Do(req)
}

// exchange sends a request, checks the status and returns the body. With
// requireOK only 200 is a success, otherwise any 2xx is.
func (g *GitLabClient) exchange(ctx context.Context, op, method, rawURL string, requireOK bool) ([]byte, http.Header, error) {
	resp, err := g.SendRequest(ctx, method, rawURL)
	if err != nil {
		slog.Error("Failed to send HTTP request", "error", err, "op", op, "url", rawURL)
		return nil, nil, newConnectionError(op, 0, err.Error(), op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	slog.Debug("Received response from GitLab API", "op", op, "status_code", resp.StatusCode, "url", rawURL)

	ok := resp.StatusCode == http.StatusOK
	if !requireOK {
		ok = resp.StatusCode >= 200 && resp.StatusCode < 300
	}
	if !ok {
		slog.Error("GitLab API returned error status", "op", op, "status_code", resp.StatusCode, "url", rawURL)
		errText := fmt.Sprintf("Error transferring %s - server replied: %s", rawURL, resp.Status)
		return nil, nil, newConnectionError(op, resp.StatusCode, errText, op, nil)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Error("Failed to read GitLab API response", "error", err, "op", op, "url", rawURL)
		return nil, nil, newConnectionError(op, resp.StatusCode, err.Error(), op, err)
	}
	return data, resp.Header, nil
}

func decode(op string, statusCode int, data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		msg := jsonErrorContext(op, err)
		slog.Error("Failed to decode GitLab API response", "error", err, "op", op)
		return newConnectionError(op, statusCode, "", msg, err)
	}
	return nil
}

// FetchPage retrieves one page of issues or labels
func (g *GitLabClient) FetchPage(ctx context.Context, req PageRequest) (*PageResult, error) {
	var (
		op     string
		target string
	)
	switch req.Kind {
	case IssuesRequest:
		op = "requestIssues"
		target = g.endpoint(fmt.Sprintf("/projects/%d/issues", req.Issues.ProjectID), req.Issues.Query())
	case LabelsRequest:
		op = "requestListofLabels"
		target = g.endpoint(fmt.Sprintf("/projects/%d/labels", req.Labels.ProjectID), req.Labels.Query())
	default:
		return nil, fmt.Errorf("unknown page request kind: %d", req.Kind)
	}

	slog.Debug("Fetching page", "kind", req.Kind.String(), "project_id", req.ProjectID(), "page", req.Page())

	data, header, err := g.exchange(ctx, op, http.MethodGet, target, true)
	if err != nil {
		return nil, err
	}

	result := &PageResult{
		Kind:       req.Kind,
		Page:       numberHeader(header, "x-page"),
		TotalPages: numberHeader(header, "x-total-pages"),
	}

	switch req.Kind {
	case IssuesRequest:
		var wire []gitlabIssue
		if err := decode(op, http.StatusOK, data, &wire); err != nil {
			return nil, err
		}
		result.Issues = make([]Issue, 0, len(wire))
		for _, w := range wire {
			result.Issues = append(result.Issues, w.toIssue())
		}
	case LabelsRequest:
		var wire []gitlabLabel
		if err := decode(op, http.StatusOK, data, &wire); err != nil {
			return nil, err
		}
		result.Labels = make([]Label, 0, len(wire))
		for _, w := range wire {
			result.Labels = append(result.Labels, w.toLabel())
		}
	}

	slog.Debug("Page received",
		"kind", req.Kind.String(),
		"page", result.Page,
		"total_pages", result.TotalPages,
		"issues", len(result.Issues),
		"labels", len(result.Labels),
	)
	return result, nil
}

// ListIssues retrieves one page of issues
func (g *GitLabClient) ListIssues(ctx context.Context, opts IssueRequestOptions) (*PageResult, error) {
	return g.FetchPage(ctx, IssuesPage(opts))
}

// ListLabels retrieves one page of labels
func (g *GitLabClient) ListLabels(ctx context.Context, opts LabelsRequestOptions) (*PageResult, error) {
	return g.FetchPage(ctx, LabelsPage(opts))
}

// CreateIssue creates a new GitLab issue and returns the created issue
func (g *GitLabClient) CreateIssue(ctx context.Context, projectID int, title, description string, labels []string) (*Issue, error) {
	slog.Debug("Creating GitLab issue",
		"project_id", projectID,
		"title", title,
		"description_length", len(description),
		"labels", labels,
	)

	q := url.Values{}
	q.Set("id", strconv.Itoa(projectID))
	q.Set("title", title)
	if description != "" {
		q.Set("description", description)
	}
	if len(labels) > 0 {
		q.Set("labels", strings.Join(labels, ","))
	}

	const op = "createIssue"
	target := g.endpoint(fmt.Sprintf("/projects/%d/issues", projectID), q)
	data, _, err := g.exchange(ctx, op, http.MethodPost, target, false)
	if err != nil {
		return nil, err
	}

	var wire gitlabIssue
	if err := decode(op, http.StatusCreated, data, &wire); err != nil {
		return nil, err
	}
	issue := wire.toIssue()

	slog.Info("GitLab issue created", "project_id", projectID, "issue_iid", issue.IID, "web_url", issue.WebURL)
	return &issue, nil
}

// EditIssue updates the non-empty fields of edit on an existing issue
func (g *GitLabClient) EditIssue(ctx context.Context, projectID int, edit IssueEdit) error {
	return g.editIssue(ctx, "editIssue", projectID, edit)
}

// CloseIssue closes a GitLab issue instead of deleting it
func (g *GitLabClient) CloseIssue(ctx context.Context, projectID, issueIID int) error {
	slog.Info("Closing GitLab issue", "project_id", projectID, "issue_iid", issueIID)
	return g.editIssue(ctx, "closeIssue", projectID, IssueEdit{IID: issueIID, StateEvent: StateEventClose})
}

func (g *GitLabClient) editIssue(ctx context.Context, op string, projectID int, edit IssueEdit) error {
	q := url.Values{}
	q.Set("id", strconv.Itoa(projectID))
	q.Set("issue_iid", strconv.Itoa(edit.IID))
	if edit.Title != "" {
		q.Set("title", edit.Title)
	}
	if edit.Description != "" {
		q.Set("description", edit.Description)
	}
	if edit.Assignee != "" {
		q.Set("assignee_ids", edit.Assignee)
	}
	if edit.StateEvent != "" {
		q.Set("state_event", edit.StateEvent)
	}
	for _, label := range edit.Labels {
		q.Add("labels", label)
	}

	target := g.endpoint(fmt.Sprintf("/projects/%d/issues/%d", projectID, edit.IID), q)
	if _, _, err := g.exchange(ctx, op, http.MethodPut, target, true); err != nil {
		return err
	}

	slog.Info("GitLab issue updated", "op", op, "project_id", projectID, "issue_iid", edit.IID)
	return nil
}

// ProjectID resolves the numeric ID of the project whose web_url equals
// projectURL, following the search result pages. InvalidProjectID is returned
// when nothing matches.
func (g *GitLabClient) ProjectID(ctx context.Context, projectURL string) (int, error) {
	const op = "requestProjectId"

	projectURL = NormalizeProjectURL(projectURL)
	name := projectName(projectURL)
	slog.Debug("Resolving project ID", "project_url", projectURL, "search", name)

	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("search", name)
		q.Set("page", strconv.Itoa(page))

		data, header, err := g.exchange(ctx, op, http.MethodGet, g.endpoint("/projects", q), true)
		if err != nil {
			return InvalidProjectID, err
		}

		var projects []gitlabProject
		if err := decode(op, http.StatusOK, data, &projects); err != nil {
			return InvalidProjectID, err
		}

		for _, p := range projects {
			if p.WebURL != "" && p.WebURL == projectURL {
				id, err := p.ID.Int64()
				if err != nil {
					continue
				}
				slog.Info("Project ID resolved", "project_url", projectURL, "project_id", id)
				return int(id), nil
			}
		}

		current := numberHeader(header, "x-page")
		total := numberHeader(header, "x-total-pages")
		if current < 0 || total < 0 || current >= total {
			break
		}
		page = current
	}

	slog.Warn("No project matches url", "project_url", projectURL)
	return InvalidProjectID, nil
}

// GroupID resolves a group's ID by exact name or full path match
func (g *GitLabClient) GroupID(ctx context.Context, groupName string) (string, error) {
	const op = "requestGroupID"

	q := url.Values{}
	q.Set("search", groupName)
	data, _, err := g.exchange(ctx, op, http.MethodGet, g.endpoint("/groups", q), true)
	if err != nil {
		return strconv.Itoa(InvalidProjectID), err
	}

	var groups []gitlabGroup
	if err := decode(op, http.StatusOK, data, &groups); err != nil {
		return strconv.Itoa(InvalidProjectID), err
	}

	for _, grp := range groups {
		if grp.Name == groupName || grp.FullPath == groupName {
			slog.Debug("Group ID resolved", "group", groupName, "group_id", grp.ID.String())
			return grp.ID.String(), nil
		}
	}
	return strconv.Itoa(InvalidProjectID), nil
}

// CreateProject creates a project inside the given namespace
func (g *GitLabClient) CreateProject(ctx context.Context, projectName, namespaceID string) error {
	q := url.Values{}
	q.Set("name", projectName)
	if namespaceID != "" {
		q.Set("namespace_id", namespaceID)
	}

	if _, _, err := g.exchange(ctx, "createProject", http.MethodPost, g.endpoint("/projects", q), false); err != nil {
		return err
	}

	slog.Info("GitLab project created", "name", projectName, "namespace_id", namespaceID)
	return nil
}

func (g *GitLabClient) endpoint(p string, q url.Values) string {
	u := g.BaseURL() + p
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// numberHeader parses a decimal pagination header, -1 when missing or malformed.
func numberHeader(h http.Header, name string) int {
	value := strings.TrimSpace(h.Get(name))
	if value == "" {
		return -1
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return -1
	}
	return n
}

// projectName returns the last path segment of a project URL
func projectName(projectURL string) string {
	u, err := url.Parse(projectURL)
	if err != nil || u.Path == "" {
		return path.Base(strings.TrimRight(projectURL, "/"))
	}
	return path.Base(strings.TrimRight(u.Path, "/"))
}

// GitLab API response types
type gitlabUser struct {
	Name string `json:"name"`
}

type gitlabIssue struct {
	ID             int         `json:"id"`
	IID            int         `json:"iid"`
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	Author         *gitlabUser `json:"author"`
	Assignee       *gitlabUser `json:"assignee"`
	State          string      `json:"state"`
	Labels         []string    `json:"labels"`
	IssueType      string      `json:"issue_type"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	UserNotesCount int         `json:"user_notes_count"`
	WebURL         string      `json:"web_url"`
}

func (w gitlabIssue) toIssue() Issue {
	issue := Issue{
		ID:          w.ID,
		IID:         w.IID,
		Title:       w.Title,
		Description: w.Description,
		State:       w.State,
		IssueType:   w.IssueType,
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
		NotesCount:  w.UserNotesCount,
		WebURL:      w.WebURL,
	}
	if w.Author != nil {
		issue.Author = w.Author.Name
	}
	if w.Assignee != nil {
		issue.Assignee = w.Assignee.Name
	}
	for _, label := range w.Labels {
		if label != "" {
			issue.Labels = append(issue.Labels, label)
		}
	}
	return issue
}

type gitlabLabel struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

func (w gitlabLabel) toLabel() Label {
	return Label{ID: w.ID, Name: w.Name, Description: w.Description, Color: w.Color}
}

type gitlabProject struct {
	ID     json.Number `json:"id"`
	WebURL string      `json:"web_url"`
}

type gitlabGroup struct {
	ID       json.Number `json:"id"`
	Name     string      `json:"name"`
	FullPath string      `json:"full_path"`
}
