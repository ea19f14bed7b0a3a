// Package credibility scores documents in [0,1] from domain reputation and
// content heuristics. Scoring is a pure function of its inputs so tables
// and formulas stay independently testable.
package credibility

import "strings"

// Phrases whose presence marks promotional or manipulative copy.
var spamPhrases = []string{
	"click here", "buy now", "limited time", "act now", "must see", "fake", "scam",
}

type Scorer struct {
	table *Table
}

func NewScorer(table *Table) *Scorer {
	if table == nil {
		table = DefaultTable()
	}
	return &Scorer{table: table}
}

// Score combines the domain's base reputation with a saturating substance
// bonus and spam penalties, clamped to [0,1].
func (s *Scorer) Score(text, title, domain string, entityCount int) float64 {
	score := s.table.Reputation(domain)

	tokens := strings.Fields(strings.ToLower(text))
	wc := float64(len(tokens))

	// Substance: longer, well-structured content scores higher but the
	// bonus saturates instead of growing without bound.
	score += 0.2 * (wc / (wc + 400))

	if wc > 0 {
		density := float64(entityCount) / wc
		score += 0.1 * min(1, density*50)
	}

	lowered := strings.ToLower(title) + " " + strings.ToLower(text)
	for _, phrase := range spamPhrases {
		if strings.Contains(lowered, phrase) {
			score -= 0.05
		}
	}

	score -= repetitionPenalty(tokens)

	return clamp01(score)
}

// repetitionPenalty punishes keyword stuffing: a single token accounting
// for more than 8% of a non-trivial document costs up to 0.15.
func repetitionPenalty(tokens []string) float64 {
	if len(tokens) < 50 {
		return 0
	}

	counts := make(map[string]int, len(tokens))
	top := 0
	for _, tok := range tokens {
		if len(tok) <= 3 {
			continue
		}
		counts[tok]++
		if counts[tok] > top {
			top = counts[tok]
		}
	}

	ratio := float64(top) / float64(len(tokens))
	if ratio <= 0.08 {
		return 0
	}
	return min(0.15, (ratio-0.08)*2)
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
