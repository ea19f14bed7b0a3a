package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devraulu/deepsearch/pkg/analyze"
	"github.com/devraulu/deepsearch/pkg/credibility"
	"github.com/devraulu/deepsearch/pkg/extract"
	"github.com/devraulu/deepsearch/pkg/fetch"
	"github.com/devraulu/deepsearch/pkg/politeness"
	"github.com/devraulu/deepsearch/pkg/search"
)

type stubProvider struct {
	hits []search.Hit
	err  error
}

func (s stubProvider) Search(_ context.Context, _ string, maxResults int) ([]search.Hit, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.hits) > maxResults {
		return s.hits[:maxResults], nil
	}
	return s.hits, nil
}

type recordingObserver struct {
	mu     sync.Mutex
	states []State
	docs   int
}

func (o *recordingObserver) StateChanged(s State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, s)
}

func (o *recordingObserver) DocumentDone(done, total int, res DocumentResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.docs++
}

func articleBody(topic string) string {
	return fmt.Sprintf(`<html><head><title>%s report</title></head><body><article>
<p>This report covers %s in considerable depth, describing how researchers,
regulators and industry groups have responded over the last decade. The topic
of %s ethics recurs throughout the discussion, because every practical
deployment raises questions about accountability, transparency and consent
that none of the participants can answer alone.</p>
<p>Observers agree that %s ethics will remain the central policy question for
years, and that rushed deployments without review boards tend to erode the
public trust that adoption ultimately depends on.</p>
</article></body></html>`, topic, topic, topic, topic)
}

// newTestServer serves n article pages plus a permissive robots.txt and
// returns the hits pointing at them.
func newTestServer(t *testing.T, n int) (*httptest.Server, []search.Hit) {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/robots.txt", http.NotFound)

	hits := make([]search.Hit, n)
	for i := 0; i < n; i++ {
		path := fmt.Sprintf("/article/%d", i)
		topic := fmt.Sprintf("topic%d", i)
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, articleBody(topic))
		})
		hits[i] = search.Hit{
			Rank:    i,
			URL:     srv.URL + path,
			Title:   fmt.Sprintf("Article %d", i),
			Snippet: "snippet",
		}
	}
	return srv, hits
}

func newTestPipeline(provider search.Provider, opts Options) *Pipeline {
	gate := politeness.NewGate("test-agent", 0, 500*time.Millisecond)
	fetcher := fetch.NewFetcher(gate, "test-agent", time.Second, 10*time.Millisecond)
	extractor := extract.NewExtractor(20)
	analyzer := analyze.NewAnalyzer(credibility.NewScorer(nil), 6)
	return New(provider, fetcher, extractor, analyzer, opts)
}

func TestRunAnalyzesAllHitsInRankOrder(t *testing.T) {
	_, hits := newTestServer(t, 5)
	p := newTestPipeline(stubProvider{hits: hits}, Options{MaxResults: 15, MaxFetch: 5, Workers: 3})

	obs := &recordingObserver{}
	p.SetObserver(obs)

	result, err := p.Run(context.Background(), "artificial intelligence ethics")
	require.NoError(t, err)

	require.Len(t, result.Results, 5)
	for i, res := range result.Results {
		assert.Equal(t, i, res.Outcome.Hit.Rank, "results must stay in search rank order")
		require.NotNil(t, res.Analyzed, "all fetches succeeded, all must be analyzed")
	}
	assert.Empty(t, result.Unfetched)

	assert.GreaterOrEqual(t, result.Insights.OverallCredibility, 0.0)
	assert.LessOrEqual(t, result.Insights.OverallCredibility, 1.0)
	assert.LessOrEqual(t, len(result.Insights.TopSources), 3)

	// "ethics" appears in every article, so it must surface as consensus.
	assert.Contains(t, result.Insights.ConsensusThemes, "ethics")

	assert.Equal(t, 5, obs.docs)
	assert.Equal(t, []State{
		StateQueried, StateSearching, StateFetching,
		StateAnalyzing, StateAggregating, StateDone,
	}, obs.states)
}

func TestRunCapsFetchesAndKeepsRemainderAsHits(t *testing.T) {
	_, hits := newTestServer(t, 8)
	p := newTestPipeline(stubProvider{hits: hits}, Options{MaxResults: 15, MaxFetch: 3, Workers: 2})

	result, err := p.Run(context.Background(), "query")
	require.NoError(t, err)

	assert.Len(t, result.Results, 3)
	require.Len(t, result.Unfetched, 5)
	assert.Equal(t, 3, result.Unfetched[0].Rank)
}

func TestRunDegradesTimedOutDocument(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/robots.txt", http.NotFound)
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(400 * time.Millisecond)
	})
	for i := 0; i < 4; i++ {
		topic := fmt.Sprintf("topic%d", i)
		mux.HandleFunc(fmt.Sprintf("/ok/%d", i), func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, articleBody(topic))
		})
	}

	hits := []search.Hit{
		{Rank: 0, URL: srv.URL + "/ok/0"},
		{Rank: 1, URL: srv.URL + "/slow"},
		{Rank: 2, URL: srv.URL + "/ok/1"},
		{Rank: 3, URL: srv.URL + "/ok/2"},
		{Rank: 4, URL: srv.URL + "/ok/3"},
	}

	gate := politeness.NewGate("test-agent", 0, 500*time.Millisecond)
	fetcher := fetch.NewFetcher(gate, "test-agent", 100*time.Millisecond, 10*time.Millisecond)
	p := New(stubProvider{hits: hits}, fetcher, extract.NewExtractor(20),
		analyze.NewAnalyzer(credibility.NewScorer(nil), 6),
		Options{MaxResults: 15, MaxFetch: 5, Workers: 2})

	result, err := p.Run(context.Background(), "query")
	require.NoError(t, err)
	require.Len(t, result.Results, 5)

	slow := result.Results[1]
	assert.Equal(t, fetch.StatusFailed, slow.Outcome.Status)
	assert.Equal(t, "timeout", slow.Outcome.Reason)
	assert.Nil(t, slow.Analyzed)

	for _, i := range []int{0, 2, 3, 4} {
		assert.NotNil(t, result.Results[i].Analyzed, "entry %d should be analyzed", i)
	}
}

func TestRunUnparseableContentMarkedFailed(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/robots.txt", http.NotFound)
	mux.HandleFunc("/thin", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body><p>too few words</p></body></html>")
	})

	hits := []search.Hit{{Rank: 0, URL: srv.URL + "/thin"}}
	p := newTestPipeline(stubProvider{hits: hits}, Options{MaxFetch: 1})

	result, err := p.Run(context.Background(), "query")
	require.NoError(t, err)
	require.Len(t, result.Results, 1)

	assert.Equal(t, fetch.StatusFailed, result.Results[0].Outcome.Status)
	assert.Equal(t, "unparseable", result.Results[0].Outcome.Reason)
	assert.Nil(t, result.Results[0].Analyzed)
}

func TestRunEmptyProviderResult(t *testing.T) {
	p := newTestPipeline(stubProvider{}, Options{})

	result, err := p.Run(context.Background(), "no hits anywhere")
	require.NoError(t, err)

	assert.Empty(t, result.Results)
	assert.Zero(t, result.Insights.OverallCredibility)
	assert.Empty(t, result.Insights.KeyTopics)
	assert.Empty(t, result.Insights.ConsensusThemes)
}

func TestRunProviderUnavailableFailsRun(t *testing.T) {
	p := newTestPipeline(stubProvider{err: search.ErrUnavailable}, Options{})

	obs := &recordingObserver{}
	p.SetObserver(obs)

	_, err := p.Run(context.Background(), "query")
	assert.ErrorIs(t, err, search.ErrUnavailable)
	assert.Equal(t, StateFailed, obs.states[len(obs.states)-1])
}

func TestRunCancellationMovesPendingToUnfetched(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/robots.txt", http.NotFound)
	for i := 0; i < 6; i++ {
		topic := fmt.Sprintf("topic%d", i)
		mux.HandleFunc(fmt.Sprintf("/p/%d", i), func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(80 * time.Millisecond)
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, articleBody(topic))
		})
	}

	hits := make([]search.Hit, 6)
	for i := range hits {
		hits[i] = search.Hit{Rank: i, URL: srv.URL + fmt.Sprintf("/p/%d", i)}
	}

	p := newTestPipeline(stubProvider{hits: hits}, Options{MaxResults: 15, MaxFetch: 6, Workers: 1})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(120 * time.Millisecond)
		cancel()
	}()

	result, err := p.Run(ctx, "query")
	require.NoError(t, err)

	// Every hit is accounted for exactly once, attempted or not.
	assert.Equal(t, 6, len(result.Results)+len(result.Unfetched))
	assert.NotEmpty(t, result.Unfetched, "cancellation should leave pending hits unfetched")
}

func TestResultJSONContract(t *testing.T) {
	_, hits := newTestServer(t, 2)
	p := newTestPipeline(stubProvider{hits: hits}, Options{MaxFetch: 2})

	result, err := p.Run(context.Background(), "contract check")
	require.NoError(t, err)

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded struct {
		Query     string `json:"query"`
		Timestamp string `json:"timestamp"`
		Results   []struct {
			URL         string      `json:"url"`
			Title       string      `json:"title"`
			Status      string      `json:"status"`
			Credibility float64     `json:"credibility"`
			WordCount   int         `json:"word_count"`
			Keyphrases  [][2]any    `json:"keyphrases"`
			Sentiment   interface{} `json:"sentiment"`
		} `json:"results"`
		Insights struct {
			OverallCredibility   float64        `json:"overall_credibility"`
			KeyTopics            map[string]int `json:"key_topics"`
			TopSources           []string       `json:"top_sources"`
			LanguageDistribution map[string]int `json:"language_distribution"`
			ConsensusThemes      []string       `json:"consensus_themes"`
		} `json:"insights"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "contract check", decoded.Query)
	_, err = time.Parse(time.RFC3339, decoded.Timestamp)
	assert.NoError(t, err, "timestamp must be ISO-8601")

	require.Len(t, decoded.Results, 2)
	assert.Equal(t, "fetched", decoded.Results[0].Status)
	assert.NotEmpty(t, decoded.Results[0].Keyphrases)
	assert.Contains(t, strings.Join(decoded.Insights.ConsensusThemes, " "), "ethics")
	assert.NotEmpty(t, decoded.Insights.TopSources)
}
