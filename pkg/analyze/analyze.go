// Package analyze derives independent per-document signals from normalized
// text. Signals degrade individually: a failing analyzer falls back to its
// documented default instead of dropping the document.
package analyze

import (
	"encoding/json"
	"log/slog"

	"github.com/devraulu/deepsearch/pkg/credibility"
	"github.com/devraulu/deepsearch/pkg/extract"
	"github.com/devraulu/deepsearch/pkg/politeness"
)

const (
	LabelPositive = "Positive"
	LabelNegative = "Negative"
	LabelNeutral  = "Neutral"
)

type Sentiment struct {
	Polarity     float64 `json:"polarity"`
	Subjectivity float64 `json:"subjectivity"`
	Label        string  `json:"label"`
}

type Keyphrase struct {
	Phrase string
	Count  int
}

// Keyphrases serialize as [phrase, count] pairs.
func (k Keyphrase) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{k.Phrase, k.Count})
}

func (k *Keyphrase) UnmarshalJSON(data []byte) error {
	pair := []any{&k.Phrase, &k.Count}
	return json.Unmarshal(data, &pair)
}

type Readability struct {
	AvgSentenceLength float64 `json:"avg_sentence_length"`
	Score             float64 `json:"readability_score"`
}

type Analysis struct {
	Credibility float64             `json:"credibility"`
	Sentiment   Sentiment           `json:"sentiment"`
	Entities    map[string][]string `json:"entities"`
	Keyphrases  []Keyphrase         `json:"keyphrases"`
	Readability Readability         `json:"readability"`
}

// Analyzed pairs a normalized document with its signals. Immutable after
// creation.
type Analyzed struct {
	Document *extract.Document
	Analysis Analysis
}

type Analyzer struct {
	scorer        *credibility.Scorer
	topKeyphrases int
}

func NewAnalyzer(scorer *credibility.Scorer, topKeyphrases int) *Analyzer {
	if topKeyphrases <= 0 {
		topKeyphrases = 6
	}
	return &Analyzer{scorer: scorer, topKeyphrases: topKeyphrases}
}

// Analyze runs every signal over the document. The signals are independent
// and order-insensitive; partial analysis always beats dropping the
// document.
func (a *Analyzer) Analyze(doc *extract.Document) *Analyzed {
	entities := a.entities(doc)

	entityCount := 0
	for _, texts := range entities {
		entityCount += len(texts)
	}

	return &Analyzed{
		Document: doc,
		Analysis: Analysis{
			Credibility: a.scorer.Score(doc.Text, doc.Title, politeness.Host(doc.Hit.URL), entityCount),
			Sentiment:   a.sentiment(doc),
			Entities:    entities,
			Keyphrases:  a.keyphrases(doc),
			Readability: a.readability(doc),
		},
	}
}

// guard runs one signal and substitutes its fallback on panic. Analyzer
// faults must never cross the package boundary.
func guard(url, signal string, fallback func(), fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("signal analyzer fault, using default",
				slog.String("url", url),
				slog.String("signal", signal),
				slog.Any("panic", r),
			)
			fallback()
		}
	}()
	fn()
}
