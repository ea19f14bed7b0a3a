// Package extract turns raw fetched bytes into normalized plain text.
// Extraction is deterministic: no network access, no randomness.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/abadojack/whatlanggo"
	readability "github.com/go-shiori/go-readability"

	"github.com/devraulu/deepsearch/pkg/search"
)

// ErrUnparseable marks content whose extracted text is empty or below the
// minimum word threshold.
var ErrUnparseable = errors.New("unparseable content")

// Document is boilerplate-stripped text plus derived metadata for one hit.
type Document struct {
	Hit       search.Hit
	Title     string
	Text      string
	WordCount int
	Language  string
}

type Extractor struct {
	minWords int
}

func NewExtractor(minWords int) *Extractor {
	if minWords <= 0 {
		minWords = 20
	}
	return &Extractor{minWords: minWords}
}

// Extract strips markup and boilerplate from body. Readability handles the
// article case; pages it cannot parse fall back to a plain text walk of
// the DOM.
func (e *Extractor) Extract(hit search.Hit, body []byte) (*Document, error) {
	pageURL, _ := url.Parse(hit.URL)

	title := hit.Title
	var text string

	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		text = article.TextContent
		if article.Title != "" {
			title = article.Title
		}
	} else {
		text, err = WalkText(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
		}
	}

	// Collapse all whitespace runs to single spaces.
	fields := strings.Fields(text)
	if len(fields) < e.minWords {
		return nil, fmt.Errorf("%w: %d words below threshold %d", ErrUnparseable, len(fields), e.minWords)
	}
	text = strings.Join(fields, " ")

	return &Document{
		Hit:       hit,
		Title:     strings.TrimSpace(title),
		Text:      text,
		WordCount: len(fields),
		Language:  DetectLanguage(text),
	}, nil
}

// DetectLanguage returns the ISO 639-3 code of the dominant language, or
// "unknown" when detection is unreliable.
func DetectLanguage(text string) string {
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return "unknown"
	}
	return whatlanggo.LangToString(info.Lang)
}
