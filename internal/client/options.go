package client

import (
	"net/url"
	"strconv"
	"strings"
)

// PerPage is the number of issues requested per page.
const PerPage = 80

// IssueRequestOptions filters an issue listing.
// See https://docs.gitlab.com/ee/api/issues.html
type IssueRequestOptions struct {
	ProjectID int
	Page      int

	Assignee string   // assignee username
	Author   string   // author username
	IIDs     []int    // project-local issue IDs
	Labels   []string // issues must carry all of them
	Scope    string   // "created_by_me", "assigned_to_me" or "all"
	State    string   // "opened", "closed" or "all"
}

// NewIssueRequestOptions returns options for all open issues of a project.
func NewIssueRequestOptions(projectID int, labels ...string) IssueRequestOptions {
	return IssueRequestOptions{
		ProjectID: projectID,
		Page:      1,
		Labels:    labels,
		Scope:     "all",
		State:     "opened",
	}
}

// Query builds the URL query for the options.
func (o IssueRequestOptions) Query() url.Values {
	q := url.Values{}
	if o.Assignee != "" {
		q.Set("assignee_username", o.Assignee)
	}
	if o.Author != "" {
		q.Set("author_username", o.Author)
	}
	for _, iid := range o.IIDs {
		q.Add("iids[]", strconv.Itoa(iid))
	}
	q.Set("page", strconv.Itoa(normalizePage(o.Page)))
	if o.Scope != "" {
		q.Set("scope", o.Scope)
	}
	if o.State != "" {
		q.Set("state", o.State)
	}
	if len(o.Labels) > 0 {
		q.Set("labels", strings.Join(o.Labels, ","))
	}
	q.Set("per_page", strconv.Itoa(PerPage))
	return q
}

// LabelsRequestOptions filters a label listing.
type LabelsRequestOptions struct {
	ProjectID  int
	Page       int
	Search     string
	WithCounts bool
}

// Query builds the URL query for the options.
func (o LabelsRequestOptions) Query() url.Values {
	q := url.Values{}
	if o.Search != "" {
		q.Set("search", o.Search)
	}
	if o.WithCounts {
		q.Set("with_counts", "true")
	}
	q.Set("page", strconv.Itoa(normalizePage(o.Page)))
	return q
}

// RequestKind tags the payload carried by a PageRequest.
type RequestKind int

const (
	IssuesRequest RequestKind = iota
	LabelsRequest
)

func (k RequestKind) String() string {
	switch k {
	case IssuesRequest:
		return "issues"
	case LabelsRequest:
		return "labels"
	default:
		return "unknown"
	}
}

// PageRequest is a request for one page of a paged listing. Exactly one of
// Issues or Labels is meaningful, selected by Kind.
type PageRequest struct {
	Kind   RequestKind
	Issues IssueRequestOptions
	Labels LabelsRequestOptions
}

// IssuesPage wraps issue options in a PageRequest.
func IssuesPage(opts IssueRequestOptions) PageRequest {
	return PageRequest{Kind: IssuesRequest, Issues: opts}
}

// LabelsPage wraps label options in a PageRequest.
func LabelsPage(opts LabelsRequestOptions) PageRequest {
	return PageRequest{Kind: LabelsRequest, Labels: opts}
}

// Page returns the page number the request asks for.
func (r PageRequest) Page() int {
	switch r.Kind {
	case IssuesRequest:
		return normalizePage(r.Issues.Page)
	case LabelsRequest:
		return normalizePage(r.Labels.Page)
	default:
		return 1
	}
}

// ProjectID returns the project the request targets.
func (r PageRequest) ProjectID() int {
	switch r.Kind {
	case IssuesRequest:
		return r.Issues.ProjectID
	case LabelsRequest:
		return r.Labels.ProjectID
	default:
		return InvalidProjectID
	}
}

// WithPage returns a copy of the request asking for page.
func (r PageRequest) WithPage(page int) PageRequest {
	switch r.Kind {
	case IssuesRequest:
		r.Issues.Page = page
	case LabelsRequest:
		r.Labels.Page = page
	}
	return r
}

func normalizePage(page int) int {
	if page > 0 {
		return page
	}
	return 1
}

// IssueEdit describes changes to an existing issue. Empty fields are left untouched.
type IssueEdit struct {
	IID         int
	Title       string
	Description string
	Assignee    string
	StateEvent  string
	Labels      []string
}

// StateEventClose closes an issue when sent as state_event.
const StateEventClose = "close"
