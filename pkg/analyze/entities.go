package analyze

import (
	"sort"

	prose "github.com/jdkato/prose/v2"

	"github.com/devraulu/deepsearch/pkg/extract"
)

const (
	nerMaxRunes       = 50000
	maxEntitiesPerTyp = 5
)

// entities runs named-entity extraction and groups the mentions by type
// into deduplicated, sorted sets.
func (a *Analyzer) entities(doc *extract.Document) map[string][]string {
	out := map[string][]string{}
	guard(doc.Hit.URL, "entities", func() { out = map[string][]string{} }, func() {
		proseDoc, err := prose.NewDocument(truncateRunes(doc.Text, nerMaxRunes))
		if err != nil {
			return
		}

		seen := map[string]map[string]bool{}
		for _, ent := range proseDoc.Entities() {
			if seen[ent.Label] == nil {
				seen[ent.Label] = map[string]bool{}
			}
			seen[ent.Label][ent.Text] = true
		}

		for label, texts := range seen {
			group := make([]string, 0, len(texts))
			for text := range texts {
				group = append(group, text)
			}
			sort.Strings(group)
			if len(group) > maxEntitiesPerTyp {
				group = group[:maxEntitiesPerTyp]
			}
			out[label] = group
		}
	})
	return out
}
