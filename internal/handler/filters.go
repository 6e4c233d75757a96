package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"gitlab-trace/internal/trace"
)

// RequirementView is a requirement with its checked state
type RequirementView struct {
	trace.Requirement
	Selected bool `json:"selected"`
}

// ReviewView is a review with its derived criticality
type ReviewView struct {
	trace.Review
	Criticality string `json:"criticality"`
}

// RequirementFilter applies the tag, q and selected query parameters
func RequirementFilter(selection *trace.Selection) FilterFunc[trace.Requirement] {
	return func(r *http.Request, records []trace.Requirement) (any, error) {
		records = trace.FilterByTags(records, queryList(r, "tag"))

		records, err := trace.FilterByText(records, r.URL.Query().Get("q"))
		if err != nil {
			return nil, err
		}

		if raw := r.URL.Query().Get("selected"); raw != "" {
			checked, err := strconv.ParseBool(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid selected value %q", raw)
			}
			records = selection.FilterChecked(records, checked)
		}

		views := make([]RequirementView, 0, len(records))
		for _, req := range records {
			views = append(views, RequirementView{Requirement: req, Selected: selection.IsSelected(req.ID)})
		}
		return views, nil
	}
}

// ReviewFilter applies the tag, q and ids query parameters
func ReviewFilter() FilterFunc[trace.Review] {
	return func(r *http.Request, records []trace.Review) (any, error) {
		records = trace.FilterByTags(records, queryList(r, "tag"))
		records = trace.FilterReviewsByIDs(records, queryList(r, "ids"))

		records, err := trace.FilterByText(records, r.URL.Query().Get("q"))
		if err != nil {
			return nil, err
		}

		views := make([]ReviewView, 0, len(records))
		for _, rev := range records {
			views = append(views, ReviewView{Review: rev, Criticality: rev.Criticality()})
		}
		return views, nil
	}
}
