package embedder

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Config holds embedder configuration
type Config struct {
	Provider  string
	Model     string
	Dimension int // Optional: override the provider's default dimension
	APIKey    string
	CacheDir  string
	CacheSize int
	Endpoint  string // Optional: OpenAI-compatible server for http providers
}

// New creates an embedder with explicit configuration. An empty provider
// is resolved with DetectProvider; "none" returns ErrNoProviderEnabled.
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	provider := strings.ToLower(cfg.Provider)
	if provider == "" {
		provider = DetectProvider()
	}

	switch provider {
	case ProviderJina, ProviderOpenAI:
		var p *HTTPProvider
		var err error
		if provider == ProviderJina {
			p, err = NewJinaProvider(cfg.APIKey, cache)
		} else {
			p, err = NewOpenAIProvider(cfg.APIKey, cache)
		}
		if err != nil {
			return nil, err
		}
		p.WithModel(cfg.Model, cfg.Dimension)
		if cfg.Endpoint != "" {
			p.WithEndpoint(cfg.Endpoint)
		}
		return p, nil
	case ProviderLocal:
		p, err := NewLocalProvider(cfg.Model, cfg.CacheDir, cache)
		if err != nil {
			return nil, err
		}
		return p, nil
	case ProviderNone:
		return nil, ErrNoProviderEnabled
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// NewLoader defers New until the index initializes
func NewLoader(cfg Config) Loader {
	return func(ctx context.Context) (Embedder, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return New(cfg)
	}
}

// DetectProvider returns the provider that would be used based on current environment
func DetectProvider() string {
	if os.Getenv(EnvJinaAPIKey) != "" {
		return ProviderJina
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}
	return ProviderLocal
}
