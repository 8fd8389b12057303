package wikidata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sinaazimii/Wikidata-tools/internal/cache"
	"github.com/sinaazimii/Wikidata-tools/internal/model"
)

func newTestClient(server *httptest.Server, opts ...Option) *Client {
	return NewClient(
		model.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "test-agent", MaxBodyBytes: 1 << 20},
		model.EndpointConfig{
			EntityData: server.URL + "/wiki/Special:EntityData",
			API:        server.URL + "/w/api.php",
			SPARQL:     server.URL + "/sparql",
		},
		opts...,
	)
}

func noSleep(t *testing.T) {
	t.Helper()
	orig := fetchSleepFunc
	fetchSleepFunc = func(time.Duration) {}
	t.Cleanup(func() { fetchSleepFunc = orig })
}

func TestFetchWithRetry_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		assert.Equal(t, "text/turtle", r.Header.Get("Accept"))
		_, _ = fmt.Fprint(w, "wd:Q42 wdt:P31 wd:Q5 .")
	}))
	defer server.Close()

	body, err := newTestClient(server).FetchWithRetry(context.Background(), EndpointEntityData, server.URL, "text/turtle")
	require.NoError(t, err)
	assert.Equal(t, "wd:Q42 wdt:P31 wd:Q5 .", string(body))
}

func TestFetchWithRetry_TransientThenSuccess(t *testing.T) {
	noSleep(t)
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = fmt.Fprint(w, "OK")
	}))
	defer server.Close()

	body, err := newTestClient(server).FetchWithRetry(context.Background(), EndpointAPI, server.URL, "")
	require.NoError(t, err)
	assert.Equal(t, "OK", string(body))
	assert.Equal(t, int32(3), attempts.Load())
}

func TestFetchWithRetry_PermanentFailure(t *testing.T) {
	noSleep(t)
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestClient(server).FetchWithRetry(context.Background(), EndpointAPI, server.URL, "")
	require.Error(t, err)
	assert.Equal(t, "unexpected status: 404 404 Not Found", err.Error())
	assert.Equal(t, int32(1), attempts.Load(), "404 is not retried")
}

func TestFetchWithRetry_AllRetriesExhausted(t *testing.T) {
	noSleep(t)
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestClient(server).FetchWithRetry(context.Background(), EndpointAPI, server.URL, "")
	require.Error(t, err)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestFetchWithRetry_429Retried(t *testing.T) {
	noSleep(t)
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = fmt.Fprint(w, "OK")
	}))
	defer server.Close()

	_, err := newTestClient(server).FetchWithRetry(context.Background(), EndpointAPI, server.URL, "")
	require.NoError(t, err)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestFetch_BodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, strings.Repeat("x", 64))
	}))
	defer server.Close()

	c := NewClient(model.HTTPConfig{Timeout: time.Second, MaxBodyBytes: 16}, model.EndpointConfig{})
	_, err := c.FetchWithRetry(context.Background(), EndpointEntityData, server.URL, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "larger than 16 bytes")
}

func TestIsRetryableFetchError(t *testing.T) {
	tests := []struct {
		err       string
		retryable bool
	}{
		{"unexpected status: 503 Service Unavailable", true},
		{"unexpected status: 500 Internal Server Error", true},
		{"unexpected status: 502 Bad Gateway", true},
		{"unexpected status: 429 Too Many Requests", true},
		{"unexpected status: 404 Not Found", false},
		{"unexpected status: 403 Forbidden", false},
		{"fetch: connection refused", true},
		{"fetch: connection reset by peer", true},
		{"create request: invalid URL", false},
		{"read body: unexpected EOF", false},
		{"robots: disallowed", false},
	}

	for _, tt := range tests {
		t.Run(tt.err, func(t *testing.T) {
			assert.Equal(t, tt.retryable, isRetryableFetchError(errors.New(tt.err)))
		})
	}
	assert.False(t, isRetryableFetchError(nil))
}

func TestFetchSnapshot(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/wiki/Special:EntityData/Q42.ttl", r.URL.Path)
		assert.Equal(t, "123", r.URL.Query().Get("revision"))
		assert.Equal(t, "dump", r.URL.Query().Get("flavor"))
		time.Sleep(20 * time.Millisecond)
		_, _ = fmt.Fprint(w, "wd:Q42 a wikibase:Item .")
	}))
	defer server.Close()

	c := newTestClient(server, WithCache(cache.NewMemoryCache(time.Minute, time.Minute)))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body, err := c.FetchSnapshot(context.Background(), "Q42", 123)
			assert.NoError(t, err)
			assert.Equal(t, "wd:Q42 a wikibase:Item .", string(body))
		}()
	}
	wg.Wait()

	_, err := c.FetchSnapshot(context.Background(), "Q42", 123)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load(), "concurrent and repeated fetches share one request")

	cached, ok := c.CachedSnapshot("Q42", 123)
	assert.True(t, ok)
	assert.NotEmpty(t, cached)
}

func TestFetchSnapshot_NewEntity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("revision 0 must not be requested")
	}))
	defer server.Close()

	body, err := newTestClient(server).FetchSnapshot(context.Background(), "Q42", 0)
	require.NoError(t, err)
	assert.Nil(t, body)
}

func TestFetchSnapshot_Unavailable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := newTestClient(server).FetchSnapshot(context.Background(), "Q42", 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrSnapshotUnavailable)
}

func TestCurlCommand(t *testing.T) {
	got := curlCommand("https://www.wikidata.org/w/api.php?action=compare&torev=2&fromrev=1", "wdsync")
	assert.Equal(t,
		"curl -G 'https://www.wikidata.org/w/api.php' -H 'User-Agent: wdsync' --data-urlencode 'action=compare' --data-urlencode 'fromrev=1' --data-urlencode 'torev=2'",
		got)
}
