// Package config provides configuration loading for artindex.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/dshills/artifact-index/internal/logging"
)

// Config is the complete runtime configuration.
type Config struct {
	Database  DatabaseConfig  `koanf:"database" yaml:"database"`
	Embedding EmbeddingConfig `koanf:"embedding" yaml:"embedding"`
	Search    SearchConfig    `koanf:"search" yaml:"search"`
	Logging   logging.Config  `koanf:"logging" yaml:"logging"`
	Metrics   MetricsConfig   `koanf:"metrics" yaml:"metrics"`
	Vault     VaultConfig     `koanf:"vault" yaml:"vault"`
}

// DatabaseConfig selects the embedded engine and its file.
type DatabaseConfig struct {
	// Backend is "sqlite" or "duckdb".
	Backend string `koanf:"backend" yaml:"backend"`
	// Path of the index file. Empty means memory-backed.
	Path string `koanf:"path" yaml:"path"`
}

// EmbeddingConfig configures the model used for semantic search.
type EmbeddingConfig struct {
	// Provider is local, jina, openai or none.
	Provider  string `koanf:"provider" yaml:"provider"`
	Model     string `koanf:"model" yaml:"model"`
	Dimension int    `koanf:"dimension" yaml:"dimension"`
	CacheDir  string `koanf:"cache_dir" yaml:"cache_dir"`
	APIKey    string `koanf:"api_key" yaml:"api_key,omitempty"`
	// Endpoint overrides the embeddings URL of the jina and openai
	// providers, for OpenAI-compatible servers.
	Endpoint  string `koanf:"endpoint" yaml:"endpoint,omitempty"`
	CacheSize int    `koanf:"cache_size" yaml:"cache_size"`
	Workers   int    `koanf:"workers" yaml:"workers"`
}

// SearchConfig tunes search defaults and the hybrid result cache.
type SearchConfig struct {
	DefaultLimit int           `koanf:"default_limit" yaml:"default_limit"`
	CacheSize    int           `koanf:"cache_size" yaml:"cache_size"`
	CacheTTL     time.Duration `koanf:"cache_ttl" yaml:"cache_ttl"`
	RRFK         int           `koanf:"rrf_k" yaml:"rrf_k"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics; empty disables it.
	Addr string `koanf:"addr" yaml:"addr"`
}

// VaultConfig locates the canonical metadata store.
type VaultConfig struct {
	Root  string `koanf:"root" yaml:"root"`
	Watch bool   `koanf:"watch" yaml:"watch"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Backend {
	case "sqlite", "duckdb":
	default:
		errs = append(errs, fmt.Errorf("database.backend must be sqlite or duckdb, got %q", c.Database.Backend))
	}

	switch c.Embedding.Provider {
	case "local", "jina", "openai", "none":
	default:
		errs = append(errs, fmt.Errorf("embedding.provider must be local, jina, openai or none, got %q", c.Embedding.Provider))
	}
	if c.Embedding.Endpoint != "" {
		if c.Embedding.Provider != "jina" && c.Embedding.Provider != "openai" {
			errs = append(errs, fmt.Errorf("embedding.endpoint requires provider jina or openai, got %q", c.Embedding.Provider))
		} else if u, err := url.Parse(c.Embedding.Endpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("embedding.endpoint must be an http(s) URL, got %q", c.Embedding.Endpoint))
		}
	}
	if c.Embedding.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("embedding.dimension must be positive, got %d", c.Embedding.Dimension))
	}
	if c.Embedding.Workers <= 0 {
		errs = append(errs, fmt.Errorf("embedding.workers must be positive, got %d", c.Embedding.Workers))
	}

	if c.Search.DefaultLimit <= 0 {
		errs = append(errs, fmt.Errorf("search.default_limit must be positive, got %d", c.Search.DefaultLimit))
	}
	if c.Search.RRFK <= 0 {
		errs = append(errs, fmt.Errorf("search.rrf_k must be positive, got %d", c.Search.RRFK))
	}
	if c.Search.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("search.cache_ttl cannot be negative"))
	}

	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Database.Backend == "" {
		cfg.Database.Backend = "sqlite"
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "local"
	}
	if cfg.Embedding.Model == "" && cfg.Embedding.Provider == "local" {
		cfg.Embedding.Model = "BAAI/bge-small-en-v1.5"
	}
	if cfg.Embedding.Dimension == 0 {
		cfg.Embedding.Dimension = 384 // bge-small-en-v1.5 dimensions
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.Workers == 0 {
		cfg.Embedding.Workers = 2
	}

	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 20
	}
	if cfg.Search.CacheSize == 0 {
		cfg.Search.CacheSize = 1000
	}
	if cfg.Search.CacheTTL == 0 {
		cfg.Search.CacheTTL = 5 * time.Minute
	}
	if cfg.Search.RRFK == 0 {
		cfg.Search.RRFK = 60
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}
