package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resultsPage = `<!DOCTYPE html>
<html><body>
<div class="results">
  <div class="result">
    <a class="result__a" href="https://example.org/first">First Result</a>
    <a class="result__snippet">Snippet about the first result.</a>
  </div>
  <div class="result">
    <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.net%2Fwrapped&amp;rut=abc">Wrapped Result</a>
    <a class="result__snippet">A wrapped redirect link.</a>
  </div>
  <div class="result">
    <a class="result__a" href="https://example.com/third#fragment">Third Result</a>
    <a class="result__snippet">Third snippet.</a>
  </div>
</div>
</body></html>`

func newTestProvider(t *testing.T, handler http.HandlerFunc) *DuckDuckGo {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := NewDuckDuckGo(srv.Client(), "test-agent")
	p.Endpoint = srv.URL
	return p
}

func TestSearchParsesResults(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "test query", r.Form.Get("q"))
		io.WriteString(w, resultsPage)
	})

	hits, err := p.Search(context.Background(), "test query", 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	assert.Equal(t, 0, hits[0].Rank)
	assert.Equal(t, "https://example.org/first", hits[0].URL)
	assert.Equal(t, "First Result", hits[0].Title)
	assert.Equal(t, "Snippet about the first result.", hits[0].Snippet)

	// uddg wrappers unwrap to the target URL.
	assert.Equal(t, "https://example.net/wrapped", hits[1].URL)

	// Normalization drops fragments.
	assert.Equal(t, "https://example.com/third", hits[2].URL)
}

func TestSearchRespectsMaxResults(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, resultsPage)
	})

	hits, err := p.Search(context.Background(), "query", 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestSearchEmptyResultsIsNotAnError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body><div class=\"results\"></div></body></html>")
	})

	hits, err := p.Search(context.Background(), "obscure query", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchUnavailableOnTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	p := NewDuckDuckGo(nil, "test-agent")
	p.Endpoint = srv.URL

	_, err := p.Search(context.Background(), "query", 10)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSearchUnavailableOnBadStatus(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := p.Search(context.Background(), "query", 10)
	assert.ErrorIs(t, err, ErrUnavailable)
}
