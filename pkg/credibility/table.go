package credibility

import (
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Table maps domains and top-level suffixes to base reputations in [0,1].
// Lookup order: exact domain match, then suffix match, then Default.
// Tables are plain TOML files so they can be edited without a rebuild.
type Table struct {
	Default  float64            `toml:"default"`
	Domains  map[string]float64 `toml:"domains"`
	Suffixes map[string]float64 `toml:"suffixes"`
}

// DefaultTable is the built-in fallback used when no table file is
// configured.
func DefaultTable() *Table {
	return &Table{
		Default: 0.5,
		Domains: map[string]float64{
			"wikipedia.org": 0.95,
			"bbc.com":       0.90,
			"reuters.com":   0.92,
			"apnews.com":    0.91,
			"nature.com":    0.93,
			"arxiv.org":     0.89,
		},
		Suffixes: map[string]float64{
			"edu": 0.90,
			"gov": 0.88,
		},
	}
}

func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	t := &Table{Default: 0.5}
	if err := toml.Unmarshal(data, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Reputation resolves the base reputation for a host name.
func (t *Table) Reputation(domain string) float64 {
	domain = strings.ToLower(strings.TrimPrefix(domain, "www."))

	if rep, ok := t.Domains[domain]; ok {
		return rep
	}

	// Registrable-domain match: "en.wikipedia.org" hits "wikipedia.org".
	labels := strings.Split(domain, ".")
	for i := 1; i < len(labels)-1; i++ {
		if rep, ok := t.Domains[strings.Join(labels[i:], ".")]; ok {
			return rep
		}
	}

	if len(labels) > 1 {
		if rep, ok := t.Suffixes[labels[len(labels)-1]]; ok {
			return rep
		}
	}

	return t.Default
}
