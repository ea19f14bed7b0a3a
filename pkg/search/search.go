package search

import (
	"context"
	"errors"
)

// Hit is a single candidate result returned by a provider, before any
// content is fetched. Rank is the provider's relevance order and is
// preserved through the whole pipeline.
type Hit struct {
	Rank    int    `json:"rank"`
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// ErrUnavailable is returned when the provider cannot be reached at all.
// It is the only error that fails a whole run.
var ErrUnavailable = errors.New("search provider unavailable")

// Provider queries an external search service. Zero hits is not an error:
// implementations return an empty slice and nil.
type Provider interface {
	Search(ctx context.Context, query string, maxResults int) ([]Hit, error)
}
