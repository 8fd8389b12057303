// Package wikidata talks to the Wikidata endpoints: the entity data dumps,
// the MediaWiki action API and the SPARQL query service.
package wikidata

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sinaazimii/Wikidata-tools/internal/cache"
	"github.com/sinaazimii/Wikidata-tools/internal/metrics"
	"github.com/sinaazimii/Wikidata-tools/internal/model"
	"github.com/sinaazimii/Wikidata-tools/internal/util"
	"github.com/sinaazimii/Wikidata-tools/internal/worker"
)

// Endpoint labels used in logs and metrics
const (
	EndpointEntityData = "entity_data"
	EndpointAPI        = "api"
	EndpointSPARQL     = "sparql"
)

// fetchSleepFunc is replaced in tests
var fetchSleepFunc = time.Sleep

// Client fetches documents from Wikidata. It is safe for concurrent use;
// concurrent requests for the same revision document share one fetch.
type Client struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	maxRetries int
	endpoints  model.EndpointConfig

	limiter *worker.Limiter
	robots  *util.RobotsChecker
	cache   cache.Cache
	metrics *metrics.Metrics
	logger  *slog.Logger
	curl    bool

	group singleflight.Group
}

// Option configures a Client
type Option func(*Client)

// WithLimiter throttles requests per host
func WithLimiter(l *worker.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithCache caches revision documents. Live feeds are never cached.
func WithCache(cc cache.Cache) Option {
	return func(c *Client) {
		if cc != nil {
			c.cache = cc
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithCurlLog logs every request as an equivalent curl command at debug level
func WithCurlLog(enabled bool) Option {
	return func(c *Client) { c.curl = enabled }
}

// NewClient creates a client from the HTTP and endpoint configuration
func NewClient(cfg model.HTTPConfig, endpoints model.EndpointConfig, opts ...Option) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy)

	httpClient := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return fmt.Errorf("stopped after 3 redirects")
			}
			return nil
		},
	}

	c := &Client{
		httpClient: httpClient,
		userAgent:  cfg.UserAgent,
		maxBytes:   cfg.MaxBodyBytes,
		maxRetries: cfg.MaxRetries,
		endpoints:  endpoints,
		cache:      cache.Disabled{},
		logger:     slog.Default(),
	}
	if c.maxBytes <= 0 {
		c.maxBytes = 50_000_000
	}
	if c.maxRetries <= 0 {
		c.maxRetries = 3
	}
	if cfg.RespectRobots {
		c.robots = util.NewRobotsChecker(httpClient, cfg.UserAgent, cfg.Timeout)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchWithRetry fetches rawURL, retrying server errors, throttling and
// network failures with backoff. Client errors fail at once.
func (c *Client) FetchWithRetry(ctx context.Context, endpoint, rawURL, accept string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			fetchSleepFunc(time.Duration(1<<(attempt-1)) * 500 * time.Millisecond)
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("fetch: %w", err)
			}
		}

		body, err := c.fetch(ctx, endpoint, rawURL, accept)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !isRetryableFetchError(err) {
			return nil, err
		}
		c.logger.Debug("retrying request", "endpoint", endpoint, "attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}

// isRetryableFetchError reports whether err is worth another attempt:
// network errors, 5xx and 429
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if strings.HasPrefix(msg, "fetch: ") {
		return true
	}
	if rest, ok := strings.CutPrefix(msg, "unexpected status: "); ok {
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return false
		}
		code, err := strconv.Atoi(fields[0])
		if err != nil {
			return false
		}
		return code >= 500 || code == http.StatusTooManyRequests
	}
	return false
}

// fetch performs one attempt
func (c *Client) fetch(ctx context.Context, endpoint, rawURL, accept string) ([]byte, error) {
	var delay time.Duration
	if c.robots != nil {
		allowed, crawlDelay, err := c.robots.CanFetch(ctx, rawURL)
		if err == nil && !allowed {
			return nil, fmt.Errorf("robots: %s disallowed for %s", rawURL, c.userAgent)
		}
		delay = crawlDelay
	}
	if c.limiter != nil {
		if err := c.limiter.WaitWithDelay(ctx, rawURL, delay); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	if c.curl {
		c.logger.Debug("request", "endpoint", endpoint, "curl", curlCommand(rawURL, c.userAgent))
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(endpoint, 0, time.Since(start))
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	c.metrics.ObserveRequest(endpoint, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > c.maxBytes {
		return nil, fmt.Errorf("read body: response larger than %d bytes", c.maxBytes)
	}
	return body, nil
}

// cached serves key from the cache or runs fetch once for all concurrent
// callers asking for the same key
func (c *Client) cached(ctx context.Context, key string, fetch func(context.Context) ([]byte, error)) ([]byte, error) {
	if body, ok := c.cache.Get(key); ok {
		c.metrics.ObserveCache(true)
		return body, nil
	}
	c.metrics.ObserveCache(false)

	v, err, _ := c.group.Do(key, func() (any, error) {
		if body, ok := c.cache.Get(key); ok {
			return body, nil
		}
		body, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.cache.Set(key, body, 0); err != nil {
			c.logger.Warn("cache write failed", "key", key, "error", err)
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// curlCommand renders a GET request the way it can be replayed by hand
func curlCommand(rawURL, userAgent string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "curl '" + rawURL + "'"
	}
	query := u.Query()
	u.RawQuery = ""

	var b strings.Builder
	fmt.Fprintf(&b, "curl -G '%s'", u.String())
	if userAgent != "" {
		fmt.Fprintf(&b, " -H 'User-Agent: %s'", userAgent)
	}
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range query[k] {
			fmt.Fprintf(&b, " --data-urlencode '%s=%s'", k, strings.ReplaceAll(v, "'", `'\''`))
		}
	}
	return b.String()
}
