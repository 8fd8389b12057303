package pipeline

import (
	"log/slog"

	"github.com/sinaazimii/Wikidata-tools/internal/cache"
	"github.com/sinaazimii/Wikidata-tools/internal/canon"
	"github.com/sinaazimii/Wikidata-tools/internal/emit"
	"github.com/sinaazimii/Wikidata-tools/internal/metrics"
	"github.com/sinaazimii/Wikidata-tools/internal/model"
	"github.com/sinaazimii/Wikidata-tools/internal/reify"
	"github.com/sinaazimii/Wikidata-tools/internal/wikidata"
	"github.com/sinaazimii/Wikidata-tools/internal/worker"
)

// Built is a pipeline wired against the live services, together with the
// client it fetches through
type Built struct {
	*Pipeline
	Client  *wikidata.Client
	Limiter *worker.Limiter
}

// NewFromConfig wires a pipeline from configuration. curl enables the
// debug request log.
func NewFromConfig(cfg *model.Config, mode Mode, logger *slog.Logger, m *metrics.Metrics, curl bool) *Built {
	if logger == nil {
		logger = slog.Default()
	}

	var docCache cache.Cache = cache.Disabled{}
	if cfg.Cache.Enabled {
		docCache = cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
	}

	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
	if !cfg.Resolver.DisableQuery {
		if err := limiter.SetRate(cfg.Endpoints.SPARQL, cfg.RateLimiting.QueryRequestsPerSecond, cfg.RateLimiting.BurstSize); err != nil {
			logger.Warn("query service keeps the default rate", "endpoint", cfg.Endpoints.SPARQL, "error", err)
		}
	}

	client := wikidata.NewClient(cfg.HTTP, cfg.Endpoints,
		wikidata.WithLimiter(limiter),
		wikidata.WithCache(docCache),
		wikidata.WithMetrics(m),
		wikidata.WithLogger(logger),
		wikidata.WithCurlLog(curl),
	)

	c := canon.New(canon.NewTable(cfg.Canon.ExtraPrefixes), append(append([]string(nil), canon.DefaultNoiseMarkers...), cfg.Canon.NoiseMarkers...))
	emitter := emit.New(c.Table())

	var store reify.QueryStore
	if !cfg.Resolver.DisableQuery {
		// the query service lags behind edits; keep answers briefly
		answers := cache.NewMemoryCache(cfg.Resolver.QueryTimeout*6, cfg.Resolver.QueryTimeout*12)
		store = wikidata.NewSPARQLStore(client, emitter, answers, cfg.Resolver.QueryTimeout*6)
	}

	p := New(Options{
		Source:       client,
		Store:        store,
		Canon:        c,
		Emitter:      emitter,
		Mode:         mode,
		QueryTimeout: cfg.Resolver.QueryTimeout,
		Workers:      cfg.Concurrency.Workers,
		Metrics:      m,
		Logger:       logger,
	})
	return &Built{Pipeline: p, Client: client, Limiter: limiter}
}
