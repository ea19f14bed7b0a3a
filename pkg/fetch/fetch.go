// Package fetch retrieves search hit content under politeness and retry
// bounds.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/devraulu/deepsearch/pkg/politeness"
	"github.com/devraulu/deepsearch/pkg/search"
)

type Status string

const (
	StatusFetched Status = "fetched"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Outcome records one fetch attempt. Exactly one is produced per attempted
// hit and it is terminal once Status is set.
type Outcome struct {
	Hit       search.Hit
	Status    Status
	Reason    string
	Body      []byte
	FinalURL  string
	Duration  time.Duration
	FetchedAt time.Time
}

type Fetcher struct {
	gate      *politeness.Gate
	client    *http.Client
	userAgent string
	backoff   time.Duration
}

func NewFetcher(gate *politeness.Gate, userAgent string, timeout, backoff time.Duration) *Fetcher {
	return &Fetcher{
		gate: gate,
		client: &http.Client{
			Timeout: timeout,
			// One redirect hop at most. The terminus URL is recorded on
			// the outcome; robots is checked against the requested URL
			// only.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) > 1 {
					return errors.New("stopped after one redirect hop")
				}
				return nil
			},
		},
		userAgent: userAgent,
		backoff:   backoff,
	}
}

// Fetch applies the politeness gate, then issues a single GET with one
// retry after a fixed backoff. Disallowed URLs are skipped without any
// network call.
func (f *Fetcher) Fetch(ctx context.Context, hit search.Hit) Outcome {
	out := Outcome{
		Hit:       hit,
		FinalURL:  hit.URL,
		FetchedAt: time.Now(),
	}

	if !f.gate.MayFetch(hit.URL) {
		slog.Info("robots.txt disallowed", slog.String("url", hit.URL))
		out.Status = StatusSkipped
		out.Reason = "robots"
		return out
	}

	host := politeness.Host(hit.URL)
	if host == "" {
		out.Status = StatusFailed
		out.Reason = "bad url"
		return out
	}

	start := time.Now()
	body, finalURL, err := f.get(ctx, hit.URL, host)
	if err != nil {
		select {
		case <-ctx.Done():
		case <-time.After(f.backoff):
			body, finalURL, err = f.get(ctx, hit.URL, host)
		}
	}
	out.Duration = time.Since(start)

	if err != nil {
		slog.Warn("fetch failed", slog.String("url", hit.URL), slog.Any("err", err))
		out.Status = StatusFailed
		out.Reason = failReason(err)
		return out
	}

	out.Status = StatusFetched
	out.Body = body
	if finalURL != "" {
		out.FinalURL = finalURL
	}
	slog.Info("fetch success",
		slog.String("url", hit.URL),
		slog.Int("bytes", len(body)),
		slog.Duration("took", out.Duration),
	)
	return out
}

func (f *Fetcher) get(ctx context.Context, rawurl, host string) ([]byte, string, error) {
	if err := f.gate.WaitSlot(ctx, host); err != nil {
		return nil, "", err
	}

	// The request deliberately does not carry ctx: cancellation is honored
	// between documents, while an in-flight fetch is left to complete or
	// hit the client timeout.
	req, err := http.NewRequest("GET", rawurl, nil)
	if err != nil {
		return nil, "", err
	}

	req.Header.Add("Accept", "text/html")
	req.Header.Add("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, "", &statusError{code: resp.StatusCode}
	}

	if !validateHTMLContentTypeHeader(resp, "text/html") {
		return nil, "", errContentType
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}

	if !validateBodyContentType(body, "text/html") {
		return nil, "", errContentType
	}

	return body, resp.Request.URL.String(), nil
}

var errContentType = errors.New("not html content")

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("http %d", e.code)
}

func failReason(err error) string {
	var se *statusError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &se):
		return se.Error()
	case errors.Is(err, errContentType):
		return "content-type"
	default:
		if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
			return "timeout"
		}
		return "transport"
	}
}

func validateHTMLContentTypeHeader(resp *http.Response, contentType string) bool {
	header := resp.Header.Get("Content-Type")

	return strings.Contains(strings.ToLower(header), contentType)
}

func validateBodyContentType(body []byte, contentType string) bool {
	return strings.HasPrefix(http.DetectContentType(body), contentType)
}
