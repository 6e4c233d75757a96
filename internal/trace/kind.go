package trace

import "gitlab-trace/internal/client"

// Record is implemented by Requirement and Review.
type Record interface {
	RecordID() string
	RecordIID() int
	RecordTags() []string
	// SearchFields returns the texts a free-text filter looks at.
	SearchFields() []string
}

func (r Requirement) RecordID() string { return r.ID }
func (r Requirement) RecordIID() int { return r.IssueIID }
func (r Requirement) RecordTags() []string { return r.Tags }
func (r Requirement) SearchFields() []string {
	return []string{r.Description, r.Title}
}

func (r Review) RecordID() string { return r.ID }
func (r Review) RecordIID() int { return r.IssueIID }
func (r Review) RecordTags() []string { return r.Tags }
func (r Review) SearchFields() []string {
	return []string{r.Description, r.Title, r.Author}
}

// Kind binds the type label, ID keyword and mapping functions of one record type.
type Kind[T Record] struct {
	Name           string
	Label          string
	Keyword        string
	FromIssue      func(client.Issue) T
	TagsFromLabels func([]client.Label) []string
}

// FromIssues maps a page of issues.
func (k Kind[T]) FromIssues(issues []client.Issue) []T {
	out := make([]T, 0, len(issues))
	for _, issue := range issues {
		out = append(out, k.FromIssue(issue))
	}
	return out
}

// Description returns the issue description carrying id.
func (k Kind[T]) Description(id, body string) string {
	return ComposeDescription(k.Keyword, id, body)
}

// Labels returns the labels of a new record with the given classification.
func (k Kind[T]) Labels(classification string) []string {
	return CreateLabels(k.Label, classification)
}

var (
	Requirements = Kind[Requirement]{
		Name:           "requirements",
		Label:          RequirementLabel,
		Keyword:        RequirementKeyword,
		FromIssue:      RequirementFromIssue,
		TagsFromLabels: RequirementTagsFromLabels,
	}

	Reviews = Kind[Review]{
		Name:           "reviews",
		Label:          ReviewLabel,
		Keyword:        ReviewKeyword,
		FromIssue:      ReviewFromIssue,
		TagsFromLabels: ReviewTagsFromLabels,
	}
)
