package http

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// =============================================================================
// LINK PAGINATION
// =============================================================================

// LinkPaginator follows `links.next` references from a paged response
// envelope of the form {"data": [...], "page": N, "total": M, "links": {...}}.
type LinkPaginator struct {
	// BasePath is stripped from next-link paths so they can be re-issued
	// relative to the client's base URL (e.g. "/v4").
	BasePath string
}

// linksEnvelope is the subset of the page envelope the paginator reads.
type linksEnvelope struct {
	Links map[string]string `json:"links"`
}

// NextPage returns the request for the next page, or nil when the response
// carries no next link.
func (p *LinkPaginator) NextPage(resp *Response) (*Request, error) {
	var env linksEnvelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		// Non-envelope bodies (bare arrays/objects) are single pages.
		return nil, nil
	}

	next := env.Links["next"]
	if next == "" {
		return nil, nil
	}

	u, err := url.Parse(next)
	if err != nil {
		return nil, err
	}

	path := u.Path
	if p.BasePath != "" {
		path = strings.TrimPrefix(path, strings.TrimSuffix(p.BasePath, "/"))
	}

	return &Request{
		Method: http.MethodGet,
		Path:   path,
		Query:  u.Query(),
	}, nil
}
