// Package metrics exposes run counters for revision-pair processing.
//
// A run is short lived, so metrics are not served over HTTP. They can be
// written to a node-exporter textfile at the end of a run.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wdsync"

// Metrics holds the collectors of one process. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	pairs        *prometheus.CounterVec
	pairDuration prometheus.Histogram
	statements   *prometheus.CounterVec
	diagnostics  *prometheus.CounterVec
	resolutions  *prometheus.CounterVec
	requests     *prometheus.CounterVec
	reqDuration  *prometheus.HistogramVec
	cacheLookups *prometheus.CounterVec
}

// New creates the collectors on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		pairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pairs_total",
			Help:      "Revision pairs processed, by outcome.",
		}, []string{"outcome"}),
		pairDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pair_duration_seconds",
			Help:      "Wall time to process one revision pair.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		statements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "statements_total",
			Help:      "Emitted update statements, by operation.",
		}, []string{"op"}),
		diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_total",
			Help:      "Recorded diagnostics, by kind.",
		}, []string{"kind"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Claim and reference slots resolved, by tier.",
		}, []string{"tier"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Requests to Wikidata endpoints, by endpoint and status code.",
		}, []string{"endpoint", "code"}),
		reqDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency of requests to Wikidata endpoints.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Revision document cache lookups, by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		m.pairs, m.pairDuration, m.statements, m.diagnostics,
		m.resolutions, m.requests, m.reqDuration, m.cacheLookups,
	)
	return m
}

// Registry returns the registry holding the collectors
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObservePair records one finished pair. outcome is "ok" or "failed".
func (m *Metrics) ObservePair(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.pairs.WithLabelValues(outcome).Inc()
	m.pairDuration.Observe(d.Seconds())
}

// AddStatements counts emitted statements for op ("DELETE" or "INSERT")
func (m *Metrics) AddStatements(op string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.statements.WithLabelValues(op).Add(float64(n))
}

func (m *Metrics) IncDiagnostic(kind string) {
	if m == nil {
		return
	}
	m.diagnostics.WithLabelValues(kind).Inc()
}

// AddResolutions counts slots resolved at a tier; tier 0 counts misses
func (m *Metrics) AddResolutions(tier int, n int) {
	if m == nil || n == 0 {
		return
	}
	label := strconv.Itoa(tier)
	if tier == 0 {
		label = "miss"
	}
	m.resolutions.WithLabelValues(label).Add(float64(n))
}

// ObserveRequest records one HTTP attempt. code 0 means no response.
func (m *Metrics) ObserveRequest(endpoint string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
	m.reqDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// ObserveCache records a cache lookup
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// WriteTextfile writes all metrics in the text exposition format
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
