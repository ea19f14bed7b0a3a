// Package politeness enforces a host's published crawl policy plus a
// minimum inter-request delay per host.
package politeness

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Gate guards outbound fetches. Robots policies are cached for the gate's
// lifetime; the per-host delay is tracked as a reservation timestamp so
// that concurrent workers never violate the interval while fetches to
// different hosts stay unserialized.
type Gate struct {
	userAgent string
	delay     time.Duration
	client    *http.Client

	mu       sync.Mutex
	policies map[string]*policy
	nextSlot map[string]time.Time
}

func NewGate(userAgent string, delay time.Duration, robotsTimeout time.Duration) *Gate {
	if delay < 0 {
		delay = 0
	}
	return &Gate{
		userAgent: userAgent,
		delay:     delay,
		client:    &http.Client{Timeout: robotsTimeout},
		policies:  make(map[string]*policy),
		nextSlot:  make(map[string]time.Time),
	}
}

// MayFetch reports whether the host's crawl policy allows fetching rawurl.
// A policy that cannot be retrieved or parsed is treated as permissive so
// that one unreachable robots.txt never blocks unrelated work. That is a
// deliberate fail-open: the miss is logged, not hidden.
func (g *Gate) MayFetch(rawurl string) bool {
	p := g.policyFor(rawurl)
	if p == nil {
		return true
	}
	return p.test(g.userAgent, rawurl)
}

// WaitSlot blocks until at least the configured delay has elapsed since the
// previous fetch issued to host. The slot is reserved under the lock and
// slept on outside it.
func (g *Gate) WaitSlot(ctx context.Context, host string) error {
	host = strings.ToLower(host)

	g.mu.Lock()
	now := time.Now()
	at := g.nextSlot[host]
	if at.Before(now) {
		at = now
	}
	g.nextSlot[host] = at.Add(g.delay)
	g.mu.Unlock()

	wait := time.Until(at)
	if wait <= 0 {
		return nil
	}

	slog.Debug("politeness wait", slog.String("host", host), slog.Duration("wait", wait))

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Host extracts the lowercased hostname used as the politeness key.
func Host(rawurl string) string {
	u, err := url.Parse(rawurl)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
