package model

import (
	"os"
	"path/filepath"
	"time"
)

// Config is the complete runtime configuration
type Config struct {
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Endpoints    EndpointConfig     `yaml:"endpoints" mapstructure:"endpoints"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Resolver     ResolverConfig     `yaml:"resolver" mapstructure:"resolver"`
	Canon        CanonConfig        `yaml:"canon" mapstructure:"canon"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
	Metrics      MetricsConfig      `yaml:"metrics" mapstructure:"metrics"`
}

// HTTPConfig controls outbound requests to Wikidata
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	MaxRetries    int           `yaml:"max_retries" mapstructure:"max_retries"`
}

// EndpointConfig lists the remote services used by the pipeline
type EndpointConfig struct {
	EntityData string `yaml:"entity_data" mapstructure:"entity_data"` // Special:EntityData base
	API        string `yaml:"api" mapstructure:"api"`                 // MediaWiki api.php
	SPARQL     string `yaml:"sparql" mapstructure:"sparql"`           // query service
}

// CacheConfig controls caching of revision documents. Revisions are immutable,
// so TTLs only bound disk and memory use.
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// ConcurrencyConfig controls the revision-pair worker pool
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// RateLimitingConfig is applied per endpoint host. The query service host
// gets its own, usually lower, rate.
type RateLimitingConfig struct {
	RequestsPerSecond      float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize              int     `yaml:"burst_size" mapstructure:"burst_size"`
	QueryRequestsPerSecond float64 `yaml:"query_requests_per_second" mapstructure:"query_requests_per_second"`
}

// ResolverConfig controls claim/reference resolution
type ResolverConfig struct {
	QueryTimeout time.Duration `yaml:"query_timeout" mapstructure:"query_timeout"`
	// DisableQuery skips the query-service tier; resolution then goes
	// straight from the local block to the document re-fetch.
	DisableQuery bool `yaml:"disable_query" mapstructure:"disable_query"`
}

// CanonConfig extends the built-in prefix table and noise blacklist
type CanonConfig struct {
	ExtraPrefixes map[string]string `yaml:"extra_prefixes,omitempty" mapstructure:"extra_prefixes"`
	NoiseMarkers  []string          `yaml:"noise_markers,omitempty" mapstructure:"noise_markers"`
}

// OutputConfig controls rendering of the emitted statements
type OutputConfig struct {
	File    string `yaml:"file,omitempty" mapstructure:"file"`
	Print   bool   `yaml:"print" mapstructure:"print"`
	Verbose bool   `yaml:"verbose" mapstructure:"verbose"`
}

// MetricsConfig controls prometheus export
type MetricsConfig struct {
	TextFile string `yaml:"textfile,omitempty" mapstructure:"textfile"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	cacheDir := filepath.Join(os.TempDir(), "wdsync-cache")
	if home, err := os.UserHomeDir(); err == nil {
		cacheDir = filepath.Join(home, ".wdsync", "cache")
	}

	return &Config{
		HTTP: HTTPConfig{
			Timeout:      30 * time.Second,
			UserAgent:    "wdsync/0.3 (+https://github.com/sinaazimii/Wikidata-tools)",
			MaxBodyBytes: 50_000_000,
			MaxRetries:   3,
		},
		Endpoints: EndpointConfig{
			EntityData: "https://www.wikidata.org/wiki/Special:EntityData",
			API:        "https://www.wikidata.org/w/api.php",
			SPARQL:     "https://query.wikidata.org/sparql",
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       cacheDir,
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond:      5,
			BurstSize:              5,
			QueryRequestsPerSecond: 1,
		},
		Resolver: ResolverConfig{
			QueryTimeout: 10 * time.Second,
		},
		Output: OutputConfig{
			Print: true,
		},
	}
}
