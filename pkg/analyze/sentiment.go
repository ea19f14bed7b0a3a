package analyze

import (
	"github.com/grassmudhorses/vader-go/lexicon"
	"github.com/grassmudhorses/vader-go/sentitext"

	"github.com/devraulu/deepsearch/pkg/extract"
)

// Sentiment is scored over a bounded prefix; VADER cost grows linearly and
// the opening of a page characterizes its tone well enough.
const sentimentMaxRunes = 4000

func (a *Analyzer) sentiment(doc *extract.Document) Sentiment {
	out := Sentiment{Label: LabelNeutral}
	guard(doc.Hit.URL, "sentiment", func() { out = Sentiment{Label: LabelNeutral} }, func() {
		parsed := sentitext.Parse(truncateRunes(doc.Text, sentimentMaxRunes), lexicon.DefaultLexicon)
		score := sentitext.PolarityScore(parsed)

		out = Sentiment{
			Polarity: score.Compound,
			// VADER has no subjectivity notion; the non-neutral
			// probability mass is a serviceable stand-in.
			Subjectivity: clamp01(score.Positive + score.Negative),
			Label:        sentimentLabel(score.Compound),
		}
	})
	return out
}

func sentimentLabel(polarity float64) string {
	switch {
	case polarity > 0.1:
		return LabelPositive
	case polarity < -0.1:
		return LabelNegative
	default:
		return LabelNeutral
	}
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
