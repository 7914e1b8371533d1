package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/dshills/artifact-index/internal/config"
	"github.com/dshills/artifact-index/internal/driver"
	"github.com/dshills/artifact-index/internal/embedder"
	"github.com/dshills/artifact-index/internal/index"
	"github.com/dshills/artifact-index/internal/indexer"
	"github.com/dshills/artifact-index/internal/logging"
	"github.com/dshills/artifact-index/internal/metrics"
	"github.com/dshills/artifact-index/internal/searcher"
)

// app holds the components every command works with
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	index    *index.Index
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
}

// loadConfig loads the config file and applies persistent flag overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if backend != "" {
		cfg.Database.Backend = backend
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	if cfg.Database.Path == "" {
		if cfg.Database.Path, err = defaultDBPath(); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaultDBPath returns ~/.artindex/index.db
func defaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".artindex", "index.db"), nil
}

// openApp builds and initializes the index and the components above it
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	var loader embedder.Loader
	if cfg.Embedding.Provider != embedder.ProviderNone {
		loader = embedder.NewLoader(embedderConfig(cfg.Embedding))
	}

	ix, err := index.New(index.Options{
		Path:         cfg.Database.Path,
		Dialect:      driver.Dialect(cfg.Database.Backend),
		Loader:       loader,
		Dimension:    cfg.Embedding.Dimension,
		EmbedWorkers: cfg.Embedding.Workers,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}
	if err := ix.Initialize(ctx); err != nil {
		return nil, err
	}
	metrics.SetEmbeddingsEnabled(ix.EmbeddingsEnabled())

	srch, err := searcher.New(ix, searcher.Config{
		DefaultLimit: cfg.Search.DefaultLimit,
		CacheSize:    cfg.Search.CacheSize,
		CacheTTL:     cfg.Search.CacheTTL,
		RRFK:         float64(cfg.Search.RRFK),
	})
	if err != nil {
		_ = ix.Close(ctx)
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		index:    ix,
		indexer:  indexer.New(ix, logger),
		searcher: srch,
	}, nil
}

// close releases the index and flushes the logger
func (a *app) close() error {
	err := a.index.Close(context.Background())
	_ = a.logger.Sync() // stderr sync fails on some terminals
	return err
}

// vaultRoot picks the vault from args, falling back to the config
func (a *app) vaultRoot(args []string) (string, error) {
	root := a.cfg.Vault.Root
	if len(args) > 0 {
		root = args[0]
	}
	if root == "" {
		return "", errors.New("no vault given: pass a path or set vault.root")
	}
	return filepath.Abs(root)
}

// embedderConfig maps the embedding config section onto the factory config
func embedderConfig(c config.EmbeddingConfig) embedder.Config {
	return embedder.Config{
		Provider:  c.Provider,
		Model:     c.Model,
		Dimension: c.Dimension,
		APIKey:    c.APIKey,
		CacheDir:  c.CacheDir,
		CacheSize: c.CacheSize,
		Endpoint:  c.Endpoint,
	}
}
