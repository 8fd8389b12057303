// Package util holds small HTTP helpers shared by the Wikidata clients.
package util

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// RobotsChecker answers whether a path on a Wikidata host may be fetched by
// our user agent. robots.txt is fetched once per host and kept for the life
// of the checker.
type RobotsChecker struct {
	rules      map[string]*robotstxt.Group
	mu         sync.RWMutex
	httpClient *http.Client
	userAgent  string
}

// NewRobotsChecker creates a checker. A nil client uses a plain client with
// the given timeout.
func NewRobotsChecker(httpClient *http.Client, userAgent string, timeout time.Duration) *RobotsChecker {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &RobotsChecker{
		rules:      make(map[string]*robotstxt.Group),
		httpClient: httpClient,
		userAgent:  userAgent,
	}
}

// CanFetch reports whether rawURL may be fetched and the crawl delay to
// honour. An unreachable robots.txt allows everything.
func (r *RobotsChecker) CanFetch(ctx context.Context, rawURL string) (bool, time.Duration, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false, 0, fmt.Errorf("parse URL: %w", err)
	}

	group, err := r.group(ctx, parsed)
	if err != nil || group == nil {
		return true, 0, nil
	}

	path := parsed.EscapedPath()
	if parsed.RawQuery != "" {
		path += "?" + parsed.RawQuery
	}
	return group.Test(path), group.CrawlDelay, nil
}

func (r *RobotsChecker) group(ctx context.Context, u *url.URL) (*robotstxt.Group, error) {
	r.mu.RLock()
	group, ok := r.rules[u.Host]
	r.mu.RUnlock()
	if ok {
		return group, nil
	}

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	group = data.FindGroup(r.userAgent)

	r.mu.Lock()
	r.rules[u.Host] = group
	r.mu.Unlock()

	return group, nil
}
