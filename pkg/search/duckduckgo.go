package search

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const defaultEndpoint = "https://html.duckduckgo.com/html/"

// DuckDuckGo scrapes the HTML (non-JS) DuckDuckGo endpoint. No API key,
// results come back in relevance order.
type DuckDuckGo struct {
	Client    *http.Client
	UserAgent string
	Endpoint  string
}

func NewDuckDuckGo(client *http.Client, userAgent string) *DuckDuckGo {
	if client == nil {
		client = http.DefaultClient
	}
	return &DuckDuckGo{
		Client:    client,
		UserAgent: userAgent,
		Endpoint:  defaultEndpoint,
	}
}

func (d *DuckDuckGo) Search(ctx context.Context, query string, maxResults int) ([]Hit, error) {
	form := url.Values{"q": {query}}
	req, err := http.NewRequestWithContext(ctx, "POST", d.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", d.UserAgent)

	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var hits []Hit
	doc.Find("div.result").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if len(hits) >= maxResults {
			return false
		}

		anchor := s.Find("a.result__a").First()
		href, ok := anchor.Attr("href")
		if !ok {
			return true
		}

		resolved := resolveResultURL(href)
		normalized, err := Normalize(resolved)
		if err != nil {
			slog.Debug("skipping unnormalizable result", slog.String("href", href), slog.Any("err", err))
			return true
		}

		hits = append(hits, Hit{
			Rank:    len(hits),
			URL:     normalized,
			Title:   strings.TrimSpace(anchor.Text()),
			Snippet: strings.TrimSpace(s.Find(".result__snippet").First().Text()),
		})
		return true
	})

	slog.Info("search complete", slog.String("query", query), slog.Int("hits", len(hits)))
	return hits, nil
}

// resolveResultURL unwraps DuckDuckGo's /l/?uddg=<target> redirect links.
func resolveResultURL(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" {
		return "https:" + href
	}
	return href
}
