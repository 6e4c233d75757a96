package trace

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"sort"
	"sync"
)

// FilterByTags keeps records carrying at least one of tags. No tags keeps everything.
func FilterByTags[T Record](records []T, tags []string) []T {
	if len(tags) == 0 {
		return records
	}
	out := make([]T, 0, len(records))
	for _, r := range records {
		if slices.ContainsFunc(tags, func(tag string) bool { return slices.Contains(r.RecordTags(), tag) }) {
			out = append(out, r)
		}
	}
	return out
}

// FilterByText keeps records where pattern matches any search field,
// case-insensitively. An empty pattern keeps everything.
func FilterByText[T Record](records []T, pattern string) ([]T, error) {
	if pattern == "" {
		return records, nil
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid filter expression: %w", err)
	}
	out := make([]T, 0, len(records))
	for _, r := range records {
		if MatchText(re, r.SearchFields()...) {
			out = append(out, r)
		}
	}
	return out, nil
}

// MatchText reports whether re matches any of fields.
func MatchText(re *regexp.Regexp, fields ...string) bool {
	for _, f := range fields {
		if re.MatchString(f) {
			return true
		}
	}
	return false
}

// FilterByIDs keeps the records whose canonical ID is listed. No IDs keeps everything.
func FilterByIDs[T Record](records []T, ids []string) []T {
	if len(ids) == 0 {
		return records
	}
	out := make([]T, 0, len(records))
	for _, r := range records {
		if slices.Contains(ids, r.RecordID()) {
			out = append(out, r)
		}
	}
	return out
}

// FilterReviewsByIDs is the component review filter
func FilterReviewsByIDs(reviews []Review, ids []string) []Review {
	return FilterByIDs(reviews, ids)
}

// Selection is the client-side set of checked requirement IDs. It is never sent
// to the server and survives refreshes because it is keyed by canonical ID.
type Selection struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewSelection returns a selection holding ids.
func NewSelection(ids ...string) *Selection {
	s := &Selection{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

// Set checks or unchecks id.
func (s *Selection) Set(id string, checked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if checked {
		s.ids[id] = struct{}{}
	} else {
		delete(s.ids, id)
	}
}

// Toggle flips id and returns the new state.
func (s *Selection) Toggle(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// IsSelected reports whether id is checked.
func (s *Selection) IsSelected(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

// Replace swaps the whole selection.
func (s *Selection) Replace(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
}

// Selected returns the checked IDs, sorted.
func (s *Selection) Selected() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// FilterChecked keeps the requirements whose checked state equals checked.
func (s *Selection) FilterChecked(requirements []Requirement, checked bool) []Requirement {
	out := make([]Requirement, 0, len(requirements))
	for _, r := range requirements {
		if s.IsSelected(r.ID) == checked {
			out = append(out, r)
		}
	}
	return out
}

// TokenSettingsURL returns the page where a personal access token can be created
// for the server hosting projectURL.
func TokenSettingsURL(projectURL string) (string, error) {
	u, err := url.Parse(projectURL)
	if err != nil {
		return "", fmt.Errorf("error parsing url %q: %w", projectURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q needs a scheme and host", projectURL)
	}
	u.Path = "/-/user_settings/personal_access_tokens"
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
