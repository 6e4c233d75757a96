package client

import (
	"context"
	"time"
)

// InvalidProjectID marks a project that could not be resolved.
const InvalidProjectID = -1

// Issue represents a GitLab issue
type Issue struct {
	ID          int
	IID         int
	Title       string
	Description string
	Author      string
	Assignee    string
	State       string
	Labels      []string
	IssueType   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	NotesCount  int
	WebURL      string
}

// Label represents a project label
type Label struct {
	ID          int
	Name        string
	Description string
	Color       string
}

// PageResult is one decoded page of a paged listing.
type PageResult struct {
	Kind       RequestKind
	Issues     []Issue
	Labels     []Label
	Page       int
	TotalPages int
}

// HasNext reports whether the server announced a page after this one.
// Missing or malformed pagination headers mean there is none.
func (p *PageResult) HasNext() bool {
	return p.Page >= 0 && p.TotalPages >= 0 && p.Page < p.TotalPages
}

// IssueTracker defines the GitLab operations the collection managers rely on
type IssueTracker interface {
	// SetCredentials points the client at the server of projectURL
	SetCredentials(projectURL, token string) error

	// FetchPage retrieves one page of issues or labels
	FetchPage(ctx context.Context, req PageRequest) (*PageResult, error)

	// CreateIssue creates a new issue and returns it as stored by the server
	CreateIssue(ctx context.Context, projectID int, title, description string, labels []string) (*Issue, error)

	// EditIssue applies changes to an existing issue
	EditIssue(ctx context.Context, projectID int, edit IssueEdit) error

	// CloseIssue transitions an issue to closed
	CloseIssue(ctx context.Context, projectID, issueIID int) error

	// ProjectID resolves the numeric project ID for a project web URL
	ProjectID(ctx context.Context, projectURL string) (int, error)
}

// ProjectAdmin defines project level operations used by the CLI
type ProjectAdmin interface {
	// GroupID resolves a group's ID by name, "-1" when not found
	GroupID(ctx context.Context, groupName string) (string, error)

	// CreateProject creates a project in the given namespace
	CreateProject(ctx context.Context, projectName, namespaceID string) error
}
