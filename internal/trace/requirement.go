package trace

import "gitlab-trace/internal/client"

// Requirement is the projection of an issue labelled "requirement".
type Requirement struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	IssueIID    int      `json:"issueIid"`
	Tags        []string `json:"tags"`
	Link        string   `json:"link"`
}

// IsValid reports whether the requirement has an ID and a title.
func (r Requirement) IsValid() bool {
	return r.ID != "" && r.Title != ""
}

// Equal compares requirements by canonical ID only.
func (r Requirement) Equal(other Requirement) bool {
	return r.ID == other.ID
}

// RequirementFromIssue maps an issue to a requirement.
func RequirementFromIssue(issue client.Issue) Requirement {
	return Requirement{
		ID:          ParseID(issue.Description, RequirementKeyword, issue.IID),
		Title:       issue.Title,
		Description: issue.Description,
		IssueIID:    issue.IID,
		Tags:        TagsWithout(issue.Labels, RequirementLabel),
		Link:        issue.WebURL,
	}
}

// RequirementsFromIssues maps a page of issues.
func RequirementsFromIssues(issues []client.Issue) []Requirement {
	out := make([]Requirement, 0, len(issues))
	for _, issue := range issues {
		out = append(out, RequirementFromIssue(issue))
	}
	return out
}

// RequirementTagsFromLabels returns the project labels usable as requirement tags.
func RequirementTagsFromLabels(labels []client.Label) []string {
	return TagsWithout(labelNames(labels), RequirementLabel)
}

// FindRequirement returns the requirement with the given canonical ID.
func FindRequirement(requirements []Requirement, id string) (Requirement, bool) {
	for _, r := range requirements {
		if r.ID == id {
			return r, true
		}
	}
	return Requirement{}, false
}

// RequirementIDExists reports whether a requirement with the ID is present.
func RequirementIDExists(requirements []Requirement, id string) bool {
	_, ok := FindRequirement(requirements, id)
	return ok
}
