package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "sqlite", cfg.Database.Backend)
	assert.Equal(t, 384, cfg.Embedding.Dimension)
	assert.Equal(t, 20, cfg.Search.DefaultLimit)
	assert.Equal(t, 60, cfg.Search.RRFK)
	assert.Equal(t, 5*time.Minute, cfg.Search.CacheTTL)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
database:
  backend: sqlite
  path: /tmp/index.db
embedding:
  provider: none
search:
  default_limit: 5
  cache_ttl: 30s
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("ARTINDEX_DATABASE_PATH", "/var/lib/artindex/index.db")
	t.Setenv("ARTINDEX_SEARCH_RRF_K", "30")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/artindex/index.db", cfg.Database.Path, "env overrides file")
	assert.Equal(t, "none", cfg.Embedding.Provider)
	assert.Empty(t, cfg.Embedding.Model, "no default model for non-local providers")
	assert.Equal(t, 5, cfg.Search.DefaultLimit)
	assert.Equal(t, 30*time.Second, cfg.Search.CacheTTL)
	assert.Equal(t, 30, cfg.Search.RRFK)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_InvalidBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  backend: oracle\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.backend")
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ARTINDEX_DATABASE_PATH", "database.path"},
		{"ARTINDEX_SEARCH_CACHE_TTL", "search.cache_ttl"},
		{"ARTINDEX_EMBEDDING_API_KEY", "embedding.api_key"},
		{"ARTINDEX_DEBUG", "debug"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, envKey(tt.in))
		})
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	require.NoError(t, WriteDefault(path, false))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	err = WriteDefault(path, false)
	assert.ErrorIs(t, err, ErrConfigExists)
	assert.NoError(t, WriteDefault(path, true))
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Database.Backend = "x"
	cfg.Embedding.Provider = "y"
	cfg.Search.RRFK = -1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.backend")
	assert.Contains(t, err.Error(), "embedding.provider")
	assert.Contains(t, err.Error(), "search.rrf_k")
}

func TestLoad_EmbeddingEndpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
embedding:
  provider: openai
  model: nomic-embed-text
  endpoint: http://localhost:11434/v1/embeddings
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:11434/v1/embeddings", cfg.Embedding.Endpoint)
}

func TestValidate_EmbeddingEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		endpoint string
		wantErr  bool
	}{
		{"unset", "local", "", false},
		{"openai compatible", "openai", "https://llm.internal/v1/embeddings", false},
		{"jina", "jina", "http://127.0.0.1:8080/embed", false},
		{"local provider", "local", "http://localhost:8080", true},
		{"not a url", "openai", "localhost", true},
		{"wrong scheme", "openai", "ftp://host/embed", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Embedding.Provider = tt.provider
			cfg.Embedding.Endpoint = tt.endpoint
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorContains(t, err, "embedding.endpoint")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
