package pipeline

import (
	"encoding/json"
	"time"

	"github.com/devraulu/deepsearch/pkg/analyze"
	"github.com/devraulu/deepsearch/pkg/fetch"
	"github.com/devraulu/deepsearch/pkg/insights"
	"github.com/devraulu/deepsearch/pkg/search"
)

type State string

const (
	StateQueried     State = "queried"
	StateSearching   State = "searching"
	StateFetching    State = "fetching"
	StateAnalyzing   State = "analyzing"
	StateAggregating State = "aggregating"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Observer receives progress events. The pipeline behaves identically with
// no observer attached.
type Observer interface {
	StateChanged(state State)
	DocumentDone(done, total int, res DocumentResult)
}

type noopObserver struct{}

func (noopObserver) StateChanged(State)                    {}
func (noopObserver) DocumentDone(int, int, DocumentResult) {}

// DocumentResult pairs a fetch outcome with its analysis. Analyzed is nil
// for skipped and failed outcomes; the entry is still listed so the run
// stays transparent about what was and was not evaluated.
type DocumentResult struct {
	Outcome  fetch.Outcome
	Analyzed *analyze.Analyzed
}

func (r DocumentResult) statusString() string {
	if r.Outcome.Reason == "" {
		return string(r.Outcome.Status)
	}
	return string(r.Outcome.Status) + ": " + r.Outcome.Reason
}

func (r DocumentResult) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"url":    r.Outcome.Hit.URL,
		"title":  r.Outcome.Hit.Title,
		"status": r.statusString(),
	}
	if r.Analyzed != nil {
		out["title"] = r.Analyzed.Document.Title
		out["credibility"] = r.Analyzed.Analysis.Credibility
		out["word_count"] = r.Analyzed.Document.WordCount
		out["sentiment"] = r.Analyzed.Analysis.Sentiment
		out["keyphrases"] = r.Analyzed.Analysis.Keyphrases
		out["entities"] = r.Analyzed.Analysis.Entities
	}
	return json.Marshal(out)
}

// Result is the unit returned across the core/presentation boundary.
// Results holds one entry per fetch-attempted hit in original rank order;
// Unfetched carries the raw hits beyond the fetch cap.
type Result struct {
	Query     string             `json:"query"`
	Timestamp time.Time          `json:"timestamp"`
	Results   []DocumentResult   `json:"results"`
	Unfetched []search.Hit       `json:"unfetched,omitempty"`
	Insights  insights.Insights  `json:"insights"`
}

// AnalyzedDocuments returns the successfully analyzed documents in rank order.
func (r *Result) AnalyzedDocuments() []*analyze.Analyzed {
	var docs []*analyze.Analyzed
	for _, res := range r.Results {
		if res.Analyzed != nil {
			docs = append(docs, res.Analyzed)
		}
	}
	return docs
}
