package storage

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devraulu/deepsearch/pkg/analyze"
	"github.com/devraulu/deepsearch/pkg/extract"
	"github.com/devraulu/deepsearch/pkg/fetch"
	"github.com/devraulu/deepsearch/pkg/insights"
	"github.com/devraulu/deepsearch/pkg/pipeline"
	"github.com/devraulu/deepsearch/pkg/search"
)

func sampleResult() *pipeline.Result {
	hit0 := search.Hit{Rank: 0, URL: "https://a.test/", Title: "A"}
	hit1 := search.Hit{Rank: 1, URL: "https://b.test/", Title: "B"}

	return &pipeline.Result{
		Query:     "battery chemistry",
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Results: []pipeline.DocumentResult{
			{
				Outcome: fetch.Outcome{Hit: hit0, Status: fetch.StatusFetched},
				Analyzed: &analyze.Analyzed{
					Document: &extract.Document{Hit: hit0, Title: "A article", WordCount: 240, Language: "eng"},
					Analysis: analyze.Analysis{Credibility: 0.8},
				},
			},
			{
				Outcome: fetch.Outcome{Hit: hit1, Status: fetch.StatusFailed, Reason: "timeout"},
			},
		},
		Insights: insights.Insights{OverallCredibility: 0.8},
	}
}

func TestFromResultFlattensRows(t *testing.T) {
	run, docs, err := FromResult(sampleResult())
	require.NoError(t, err)

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "battery chemistry", run.Query)
	assert.Equal(t, 2, run.Documents)
	assert.Equal(t, 1, run.Analyzed)
	assert.InDelta(t, 0.8, run.OverallCredibility, 0.001)

	require.Len(t, docs, 2)

	assert.Equal(t, run.ID, docs[0].RunID)
	assert.Equal(t, "A article", docs[0].Title)
	assert.Equal(t, "fetched", docs[0].Status)
	assert.Equal(t, 240, docs[0].WordCount)
	assert.Equal(t, "eng", docs[0].Language)

	assert.Equal(t, "failed: timeout", docs[1].Status)
	assert.Zero(t, docs[1].Credibility)
	assert.Equal(t, "B", docs[1].Title)
}

func TestFromResultPayloadIsContractJSON(t *testing.T) {
	run, _, err := FromResult(sampleResult())
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(run.Payload, &payload))

	assert.Equal(t, "battery chemistry", payload["query"])
	results, ok := payload["results"].([]any)
	require.True(t, ok)
	assert.Len(t, results, 2)
}

func TestFromResultAssignsUniqueIDs(t *testing.T) {
	first, _, err := FromResult(sampleResult())
	require.NoError(t, err)
	second, _, err := FromResult(sampleResult())
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
}
