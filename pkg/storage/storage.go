package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/devraulu/deepsearch/pkg/pipeline"
)

// Run is one archived query execution: summary columns for listing plus
// the full Result JSON payload.
type Run struct {
	ID                 string
	Query              string
	Timestamp          time.Time
	Documents          int
	Analyzed           int
	OverallCredibility float64
	Payload            []byte
}

// Document is the per-hit row stored alongside a run.
type Document struct {
	RunID       string
	Rank        int
	URL         string
	Title       string
	Status      string
	Credibility float64
	WordCount   int
	Language    string
}

type RunSummary struct {
	ID                 string
	Query              string
	Timestamp          time.Time
	Documents          int
	OverallCredibility float64
}

type Storage interface {
	SaveRun(ctx context.Context, run Run, docs []Document) error
	SearchRuns(ctx context.Context, query string, limit int) ([]RunSummary, error)
	RecentRuns(ctx context.Context, limit int) ([]RunSummary, error)
	GetRun(ctx context.Context, id string) (*Run, error)
	Close() error
}

// FromResult flattens a pipeline Result into its archive rows.
func FromResult(res *pipeline.Result) (Run, []Document, error) {
	payload, err := json.Marshal(res)
	if err != nil {
		return Run{}, nil, err
	}

	run := Run{
		ID:                 uuid.NewString(),
		Query:              res.Query,
		Timestamp:          res.Timestamp,
		Documents:          len(res.Results),
		OverallCredibility: res.Insights.OverallCredibility,
		Payload:            payload,
	}

	docs := make([]Document, 0, len(res.Results))
	for _, dr := range res.Results {
		doc := Document{
			RunID:  run.ID,
			Rank:   dr.Outcome.Hit.Rank,
			URL:    dr.Outcome.Hit.URL,
			Title:  dr.Outcome.Hit.Title,
			Status: string(dr.Outcome.Status),
		}
		if dr.Outcome.Reason != "" {
			doc.Status += ": " + dr.Outcome.Reason
		}
		if dr.Analyzed != nil {
			run.Analyzed++
			doc.Title = dr.Analyzed.Document.Title
			doc.Credibility = dr.Analyzed.Analysis.Credibility
			doc.WordCount = dr.Analyzed.Document.WordCount
			doc.Language = dr.Analyzed.Document.Language
		}
		docs = append(docs, doc)
	}

	return run, docs, nil
}
