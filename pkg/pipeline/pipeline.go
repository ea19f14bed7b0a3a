// Package pipeline sequences search, polite fetching, extraction, analysis
// and aggregation into a single Result per query.
package pipeline

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/devraulu/deepsearch/pkg/analyze"
	"github.com/devraulu/deepsearch/pkg/config"
	"github.com/devraulu/deepsearch/pkg/credibility"
	"github.com/devraulu/deepsearch/pkg/extract"
	"github.com/devraulu/deepsearch/pkg/fetch"
	"github.com/devraulu/deepsearch/pkg/insights"
	"github.com/devraulu/deepsearch/pkg/politeness"
	"github.com/devraulu/deepsearch/pkg/search"
)

type Options struct {
	MaxResults int
	MaxFetch   int
	Workers    int
	Delay      time.Duration
	TopTopics  int
}

func (o Options) normalized() Options {
	if o.MaxResults <= 0 {
		o.MaxResults = 15
	}
	if o.MaxFetch <= 0 {
		o.MaxFetch = 5
	}
	if o.MaxFetch > o.MaxResults {
		o.MaxFetch = o.MaxResults
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.Delay < 0 {
		o.Delay = 0
	}
	return o
}

type RunStats struct {
	StartTime time.Time
	Analyzed  int
	Failed    int
	Skipped   int
}

func (s *RunStats) Elapsed() time.Duration {
	return time.Since(s.StartTime)
}

type Pipeline struct {
	provider  search.Provider
	fetcher   *fetch.Fetcher
	extractor *extract.Extractor
	analyzer  *analyze.Analyzer
	observer  Observer
	opts      Options
	Stats     RunStats
}

func New(provider search.Provider, fetcher *fetch.Fetcher, extractor *extract.Extractor, analyzer *analyze.Analyzer, opts Options) *Pipeline {
	return &Pipeline{
		provider:  provider,
		fetcher:   fetcher,
		extractor: extractor,
		analyzer:  analyzer,
		observer:  noopObserver{},
		opts:      opts.normalized(),
	}
}

// FromConfig wires a pipeline with the default provider and a freshly
// loaded reputation table. The CLI builds through here so flag and
// config handling cannot drift apart.
func FromConfig(cfg *config.Config) (*Pipeline, error) {
	table := credibility.DefaultTable()
	if cfg.Analysis.ReputationFile != "" {
		loaded, err := credibility.LoadTable(cfg.Analysis.ReputationFile)
		if err != nil {
			return nil, err
		}
		table = loaded
	}

	gate := politeness.NewGate(cfg.Search.UserAgent, cfg.Politeness.GetDelay(), cfg.Politeness.GetRobotsTimeout())
	fetcher := fetch.NewFetcher(gate, cfg.Search.UserAgent, cfg.Fetch.GetTimeout(), cfg.Fetch.GetBackoff())
	extractor := extract.NewExtractor(cfg.Analysis.MinWords)
	analyzer := analyze.NewAnalyzer(credibility.NewScorer(table), cfg.Analysis.TopKeyphrases)
	provider := search.NewDuckDuckGo(&http.Client{Timeout: cfg.Fetch.GetTimeout()}, cfg.Search.UserAgent)

	return New(provider, fetcher, extractor, analyzer, Options{
		MaxResults: cfg.Search.MaxResults,
		MaxFetch:   cfg.Fetch.MaxFetch,
		Workers:    cfg.Fetch.Workers,
		Delay:      cfg.Politeness.GetDelay(),
		TopTopics:  cfg.Analysis.TopTopics,
	}), nil
}

// SetObserver attaches a progress observer. A nil observer restores the
// no-op default.
func (p *Pipeline) SetObserver(obs Observer) {
	if obs == nil {
		obs = noopObserver{}
	}
	p.observer = obs
}

// Run executes one query end to end. Only provider unavailability fails
// the run; every later stage degrades per document.
func (p *Pipeline) Run(ctx context.Context, query string) (*Result, error) {
	p.Stats = RunStats{StartTime: time.Now()}
	p.setState(StateQueried)

	result := &Result{
		Query:     query,
		Timestamp: time.Now(),
		Results:   []DocumentResult{},
	}

	p.setState(StateSearching)
	hits, err := p.provider.Search(ctx, query, p.opts.MaxResults)
	if err != nil {
		p.setState(StateFailed)
		return nil, err
	}

	if len(hits) == 0 {
		slog.Info("provider returned no hits", slog.String("query", query))
		result.Insights = insights.Build(nil, p.opts.TopTopics)
		p.setState(StateDone)
		return result, nil
	}

	attempt := hits
	if len(attempt) > p.opts.MaxFetch {
		attempt = hits[:p.opts.MaxFetch]
		result.Unfetched = hits[p.opts.MaxFetch:]
	}

	p.setState(StateFetching)
	result.Results, result.Unfetched = p.runPool(ctx, attempt, result.Unfetched)

	// Analysis already ran inside the workers, document by document, so
	// partial results were available incrementally.
	p.setState(StateAnalyzing)

	p.setState(StateAggregating)
	result.Insights = insights.Build(result.AnalyzedDocuments(), p.opts.TopTopics)

	p.setState(StateDone)
	slog.Info("run complete",
		slog.String("query", query),
		slog.Int("analyzed", p.Stats.Analyzed),
		slog.Int("failed", p.Stats.Failed),
		slog.Int("skipped", p.Stats.Skipped),
		slog.Duration("elapsed", p.Stats.Elapsed()),
	)
	return result, nil
}

// runPool dispatches the fetch-eligible hits to a bounded worker pool and
// collects one DocumentResult per dispatched hit, restored to rank order.
// On cancellation the pending hits are returned as unfetched while
// in-flight work drains.
func (p *Pipeline) runPool(ctx context.Context, attempt []search.Hit, unfetched []search.Hit) ([]DocumentResult, []search.Hit) {
	workers := p.opts.Workers
	if workers > len(attempt) {
		workers = len(attempt)
	}

	jobs := make(chan search.Hit)
	results := make(chan DocumentResult)
	for i := 0; i < workers; i++ {
		go p.worker(ctx, i, jobs, results)
	}

	slot := make(map[int]int, len(attempt))
	for i, hit := range attempt {
		slot[hit.Rank] = i
	}

	collected := make([]DocumentResult, len(attempt))
	pending := attempt
	inFlight := 0
	done := 0
	total := len(attempt)
	cancel := ctx.Done()

	for len(pending) > 0 || inFlight > 0 {
		var jobsCh chan<- search.Hit
		var next search.Hit
		if len(pending) > 0 {
			jobsCh = jobs
			next = pending[0]
		}

		select {
		case jobsCh <- next:
			pending = pending[1:]
			inFlight++

		case res := <-results:
			inFlight--
			done++
			collected[slot[res.Outcome.Hit.Rank]] = res
			p.recordStats(res)
			p.observer.DocumentDone(done, total, res)

		case <-cancel:
			slog.Info("run canceled, draining in-flight fetches",
				slog.Int("pending", len(pending)),
				slog.Int("in_flight", inFlight),
			)
			unfetched = append(unfetched, pending...)
			pending = nil
			cancel = nil
		}
	}
	close(jobs)

	// Drop the slots of hits that were never dispatched.
	out := collected[:0]
	for _, res := range collected {
		if res.Outcome.Status != "" {
			out = append(out, res)
		}
	}
	return out, unfetched
}

func (p *Pipeline) worker(ctx context.Context, id int, jobs <-chan search.Hit, results chan<- DocumentResult) {
	slog.Debug("worker started", slog.Int("id", id))
	for hit := range jobs {
		results <- p.process(ctx, hit)
	}
}

// process fetches one hit and, when content comes back, extracts and
// analyzes it immediately.
func (p *Pipeline) process(ctx context.Context, hit search.Hit) DocumentResult {
	outcome := p.fetcher.Fetch(ctx, hit)
	if outcome.Status != fetch.StatusFetched {
		return DocumentResult{Outcome: outcome}
	}

	doc, err := p.extractor.Extract(hit, outcome.Body)
	outcome.Body = nil // raw bytes are not needed past extraction
	if err != nil {
		slog.Warn("extraction failed", slog.String("url", hit.URL), slog.Any("err", err))
		outcome.Status = fetch.StatusFailed
		outcome.Reason = "unparseable"
		return DocumentResult{Outcome: outcome}
	}

	return DocumentResult{Outcome: outcome, Analyzed: p.analyzer.Analyze(doc)}
}

func (p *Pipeline) recordStats(res DocumentResult) {
	switch {
	case res.Analyzed != nil:
		p.Stats.Analyzed++
	case res.Outcome.Status == fetch.StatusSkipped:
		p.Stats.Skipped++
	default:
		p.Stats.Failed++
	}
}

func (p *Pipeline) setState(state State) {
	slog.Debug("pipeline state", slog.String("state", string(state)))
	p.observer.StateChanged(state)
}
