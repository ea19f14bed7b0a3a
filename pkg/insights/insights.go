// Package insights fuses per-document signals into a single cross-document
// summary. Build is pure: identical inputs always produce identical output
// and an empty collection yields empty insights, never an error.
package insights

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/devraulu/deepsearch/pkg/analyze"
)

const maxTopSources = 3

// Source identifies one of the highest-credibility documents. It
// serializes as its URL per the result contract.
type Source struct {
	URL         string
	Title       string
	Credibility float64
	Rank        int
}

func (s Source) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.URL)
}

func (s *Source) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &s.URL)
}

type Insights struct {
	OverallCredibility   float64        `json:"overall_credibility"`
	KeyTopics            map[string]int `json:"key_topics"`
	TopSources           []Source       `json:"top_sources"`
	LanguageDistribution map[string]int `json:"language_distribution"`
	ConsensusThemes      []string       `json:"consensus_themes"`
}

// Build aggregates the full analyzed collection. topTopics caps the
// key-topic map (default 10 when <= 0).
func Build(docs []*analyze.Analyzed, topTopics int) Insights {
	if topTopics <= 0 {
		topTopics = 10
	}

	out := Insights{
		KeyTopics:            map[string]int{},
		LanguageDistribution: map[string]int{},
		ConsensusThemes:      []string{},
	}
	if len(docs) == 0 {
		return out
	}

	out.OverallCredibility = overallCredibility(docs)

	topicCounts := map[string]int{}
	phraseDocs := map[string]int{}
	for _, doc := range docs {
		out.LanguageDistribution[doc.Document.Language]++

		seenHere := map[string]bool{}
		for _, kp := range doc.Analysis.Keyphrases {
			phrase := strings.ToLower(kp.Phrase)
			topicCounts[phrase] += kp.Count
			if !seenHere[phrase] {
				seenHere[phrase] = true
				phraseDocs[phrase]++
			}
		}
	}

	out.KeyTopics = topKByCount(topicCounts, topTopics)
	out.ConsensusThemes = consensusThemes(phraseDocs)
	out.TopSources = topSources(docs)

	return out
}

// overallCredibility is the word-count-weighted mean of the per-document
// scores; uniform weights when every document has zero words.
func overallCredibility(docs []*analyze.Analyzed) float64 {
	var weighted, weights float64
	for _, doc := range docs {
		w := float64(doc.Document.WordCount)
		weighted += w * doc.Analysis.Credibility
		weights += w
	}
	if weights == 0 {
		for _, doc := range docs {
			weighted += doc.Analysis.Credibility
		}
		return weighted / float64(len(docs))
	}
	return weighted / weights
}

func topKByCount(counts map[string]int, k int) map[string]int {
	type entry struct {
		phrase string
		count  int
	}
	entries := make([]entry, 0, len(counts))
	for phrase, count := range counts {
		entries = append(entries, entry{phrase, count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].phrase < entries[j].phrase
	})

	if len(entries) > k {
		entries = entries[:k]
	}
	top := make(map[string]int, len(entries))
	for _, e := range entries {
		top[e.phrase] = e.count
	}
	return top
}

// consensusThemes are case-normalized phrases recurring in the keyphrase
// lists of at least two documents. Exact match only: fuzzy matching would
// cost determinism.
func consensusThemes(phraseDocs map[string]int) []string {
	themes := []string{}
	for phrase, n := range phraseDocs {
		if n >= 2 {
			themes = append(themes, phrase)
		}
	}
	sort.Slice(themes, func(i, j int) bool {
		if phraseDocs[themes[i]] != phraseDocs[themes[j]] {
			return phraseDocs[themes[i]] > phraseDocs[themes[j]]
		}
		return themes[i] < themes[j]
	})
	return themes
}

// topSources ranks by credibility descending with original search rank as
// the tie-break.
func topSources(docs []*analyze.Analyzed) []Source {
	sources := make([]Source, 0, len(docs))
	for _, doc := range docs {
		sources = append(sources, Source{
			URL:         doc.Document.Hit.URL,
			Title:       doc.Document.Title,
			Credibility: doc.Analysis.Credibility,
			Rank:        doc.Document.Hit.Rank,
		})
	}
	sort.Slice(sources, func(i, j int) bool {
		if sources[i].Credibility != sources[j].Credibility {
			return sources[i].Credibility > sources[j].Credibility
		}
		return sources[i].Rank < sources[j].Rank
	})

	if len(sources) > maxTopSources {
		sources = sources[:maxTopSources]
	}
	return sources
}
