package trace

import (
	"slices"
	"strings"

	"gitlab-trace/internal/client"
)

// Review is the projection of an issue labelled "review".
type Review struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Author      string   `json:"author"`
	IssueIID    int      `json:"issueIid"`
	Tags        []string `json:"tags"`
	Link        string   `json:"link"`
}

// Review criticalities, in lookup order.
var criticalities = []string{"minor", "major", "editorial"}

// Criticality returns the first known criticality among the tags, or "default".
func (r Review) Criticality() string {
	for _, c := range criticalities {
		for _, tag := range r.Tags {
			if strings.EqualFold(tag, c) {
				return c
			}
		}
	}
	return "default"
}

// IsValid reports whether the review has an ID and a title.
func (r Review) IsValid() bool {
	return r.ID != "" && r.Title != ""
}

// Equal compares every field.
func (r Review) Equal(other Review) bool {
	return r.ID == other.ID &&
		r.Title == other.Title &&
		r.Description == other.Description &&
		r.Author == other.Author &&
		r.IssueIID == other.IssueIID &&
		slices.Equal(r.Tags, other.Tags) &&
		r.Link == other.Link
}

// ReviewFromIssue maps an issue to a review.
func ReviewFromIssue(issue client.Issue) Review {
	return Review{
		ID:          ParseID(issue.Description, ReviewKeyword, issue.IID),
		Title:       issue.Title,
		Description: issue.Description,
		Author:      issue.Author,
		IssueIID:    issue.IID,
		Tags:        Dedup(TagsWithout(issue.Labels, ReviewLabel)),
		Link:        issue.WebURL,
	}
}

// ReviewsFromIssues maps a page of issues.
func ReviewsFromIssues(issues []client.Issue) []Review {
	out := make([]Review, 0, len(issues))
	for _, issue := range issues {
		out = append(out, ReviewFromIssue(issue))
	}
	return out
}

// ReviewTagsFromLabels returns the deduplicated project labels usable as review tags.
func ReviewTagsFromLabels(labels []client.Label) []string {
	return Dedup(TagsWithout(labelNames(labels), ReviewLabel))
}

// ReviewIDExists reports whether a review with the ID is present.
func ReviewIDExists(reviews []Review, id string) bool {
	return slices.ContainsFunc(reviews, func(r Review) bool { return r.ID == id })
}
