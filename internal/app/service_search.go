package app

import (
	"context"
	"net/http"
	"strings"

	"omnihub/api/internal/search"
)

// Search runs a project-scoped search. Membership is checked here; the
// search layer trusts its project filter.
func (s *Service) Search(ctx context.Context, userID, projectID, text, filterType string, limit, offset int) (search.Response, error) {
	if s.search == nil {
		return search.Response{}, domainError(http.StatusServiceUnavailable, "SEARCH_UNAVAILABLE", "search is not configured", nil)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return search.Response{}, validationError("search text is required", nil)
	}
	if _, err := s.checker.RequireMember(ctx, projectID, userID); err != nil {
		return search.Response{}, err
	}

	return s.search.Search(search.Query{
		Text:            text,
		FilterType:      search.ResultType(filterType),
		FilterProjectID: projectID,
		Limit:           limit,
		Offset:          offset,
	}), nil
}
