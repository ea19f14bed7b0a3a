package analyze

import (
	"sort"
	"strings"
	"unicode"

	"github.com/bbalet/stopwords"

	"github.com/devraulu/deepsearch/pkg/extract"
)

const minPhraseLen = 4

// keyphrases ranks the document's content-bearing tokens by frequency,
// stop-words excluded, top-N kept. Ties break alphabetically so repeated
// runs produce identical output.
func (a *Analyzer) keyphrases(doc *extract.Document) []Keyphrase {
	var out []Keyphrase
	guard(doc.Hit.URL, "keyphrases", func() { out = nil }, func() {
		cleaned := stopwords.CleanString(strings.ToLower(doc.Text), iso1Code(doc.Language), false)

		counts := map[string]int{}
		for _, tok := range strings.FieldsFunc(cleaned, notWordRune) {
			if len(tok) < minPhraseLen {
				continue
			}
			counts[tok]++
		}

		phrases := make([]Keyphrase, 0, len(counts))
		for phrase, count := range counts {
			phrases = append(phrases, Keyphrase{Phrase: phrase, Count: count})
		}
		sort.Slice(phrases, func(i, j int) bool {
			if phrases[i].Count != phrases[j].Count {
				return phrases[i].Count > phrases[j].Count
			}
			return phrases[i].Phrase < phrases[j].Phrase
		})

		if len(phrases) > a.topKeyphrases {
			phrases = phrases[:a.topKeyphrases]
		}
		out = phrases
	})
	return out
}

func notWordRune(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// iso1Code maps the detector's ISO 639-3 codes onto the two-letter codes
// the stopword lists are keyed by. Unmapped languages fall back to English.
func iso1Code(iso3 string) string {
	codes := map[string]string{
		"eng": "en", "spa": "es", "fra": "fr", "deu": "de",
		"ita": "it", "por": "pt", "nld": "nl", "rus": "ru",
		"swe": "sv", "nor": "no", "dan": "da", "fin": "fi",
		"pol": "pl", "tur": "tr", "ara": "ar", "jpn": "ja",
	}
	if code, ok := codes[iso3]; ok {
		return code
	}
	return "en"
}
