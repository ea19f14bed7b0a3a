package politeness

import (
	"bytes"
	"io"
	"log/slog"

	"github.com/benjaminestes/robots"
)

// policy wraps a parsed robots.txt. A nil parsed value means the policy
// was unreachable and everything is allowed.
type policy struct {
	parsed *robots.Robots
}

func (p *policy) test(userAgent, rawurl string) bool {
	if p.parsed == nil {
		return true
	}
	return p.parsed.Test(userAgent, rawurl)
}

func (g *Gate) policyFor(rawurl string) *policy {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("panic in robots.txt parsing, assuming allowed", slog.String("url", rawurl), slog.Any("panic", r))
		}
	}()

	robotsURL, err := robots.Locate(rawurl)
	if err != nil {
		return nil
	}

	g.mu.Lock()
	p, ok := g.policies[robotsURL]
	g.mu.Unlock()
	if ok {
		return p
	}

	p = &policy{}
	if parsed, err := g.getRobots(robotsURL); err != nil {
		slog.Warn("failed to fetch robots.txt, assuming allowed", slog.String("url", robotsURL), slog.Any("err", err))
	} else {
		p.parsed = parsed
	}

	g.mu.Lock()
	g.policies[robotsURL] = p
	g.mu.Unlock()
	return p
}

func (g *Gate) getRobots(url string) (*robots.Robots, error) {
	resp, err := g.client.Get(url)
	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	slog.Debug("robots.txt response",
		slog.String("url", url),
		slog.Int("status_code", resp.StatusCode),
		slog.Int("body_length", len(body)),
	)

	return robots.From(resp.StatusCode, bytes.NewReader(body))
}
