package analyze

import (
	"regexp"
	"strings"

	"github.com/devraulu/deepsearch/pkg/extract"
)

var sentenceEnd = regexp.MustCompile(`[.!?]+`)

// readability computes average sentence length and a Flesch-style reading
// ease score in [0,100]. Longer sentences and more complex words both
// lower the score.
func (a *Analyzer) readability(doc *extract.Document) Readability {
	var out Readability
	guard(doc.Hit.URL, "readability", func() { out = Readability{} }, func() {
		words := strings.Fields(doc.Text)
		if len(words) == 0 {
			return
		}

		sentences := 0
		for _, s := range sentenceEnd.Split(doc.Text, -1) {
			if strings.TrimSpace(s) != "" {
				sentences++
			}
		}
		if sentences == 0 {
			sentences = 1
		}

		syllables := 0
		for _, w := range words {
			syllables += countSyllables(w)
		}

		asl := float64(len(words)) / float64(sentences)
		spw := float64(syllables) / float64(len(words))

		out = Readability{
			AvgSentenceLength: asl,
			Score:             clampScore(206.835 - 1.015*asl - 84.6*spw),
		}
	})
	return out
}

// countSyllables estimates syllables as vowel runs, minimum one per word.
func countSyllables(word string) int {
	count := 0
	inVowelRun := false
	for _, r := range strings.ToLower(word) {
		isVowel := strings.ContainsRune("aeiouy", r)
		if isVowel && !inVowelRun {
			count++
		}
		inVowelRun = isVowel
	}
	if count == 0 {
		count = 1
	}
	return count
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
