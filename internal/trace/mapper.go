// Package trace converts GitLab issues into requirements and reviews.
//
// An issue becomes a requirement or review by carrying a reserved type label.
// Its canonical ID is embedded in the description on a line starting with a
// keyword, e.g.
//
//	#reqid: "ABC-1"
//
// and falls back to the issue IID when no such line exists.
package trace

import (
	"strconv"
	"strings"

	"gitlab-trace/internal/client"
)

const (
	RequirementLabel   = "requirement"
	RequirementKeyword = "#reqid"

	ReviewLabel   = "review"
	ReviewKeyword = "#revid"
)

// ParseID extracts the canonical ID following keyword in description.
func ParseID(description, keyword string, iid int) string {
	for _, line := range strings.Split(description, "\n") {
		id := strings.TrimSpace(line)
		if !strings.HasPrefix(id, keyword) {
			continue
		}
		id = strings.TrimSpace(id[len(keyword):])
		if strings.HasPrefix(id, ":") {
			id = strings.TrimSpace(id[1:])
		}
		id = strings.TrimPrefix(id, `"`)
		id = strings.TrimSuffix(id, `"`)
		return id
	}
	return strconv.Itoa(iid)
}

// TagsWithout returns labels with the first occurrence of marker removed, keeping order.
func TagsWithout(labels []string, marker string) []string {
	tags := make([]string, 0, len(labels))
	removed := false
	for _, label := range labels {
		if !removed && label == marker {
			removed = true
			continue
		}
		tags = append(tags, label)
	}
	return tags
}

// Dedup removes exact duplicates, keeping the first occurrence.
func Dedup(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// ComposeDescription prefixes body with the ID line so the ID survives a round trip through the server.
func ComposeDescription(keyword, id, body string) string {
	return keyword + " " + id + "\n\n" + body
}

// CreateLabels returns the labels sent when creating a record.
func CreateLabels(marker, classification string) []string {
	if classification == "" || classification == marker {
		return []string{marker}
	}
	return []string{marker, classification}
}

func labelNames(labels []client.Label) []string {
	names := make([]string, 0, len(labels))
	for _, label := range labels {
		names = append(names, label.Name)
	}
	return names
}
