//go:build sqlite_vec && !purego

package vector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/artifact-index/internal/embedder/embeddertest"
)

func TestSearch_NativeMatchesFallback(t *testing.T) {
	emb := embeddertest.NewConceptEmbedder()
	e := setupTestEngine(t, Options{Loader: emb.Loader()})
	ctx := context.Background()
	require.True(t, e.client.Features().NativeVector, "sqlite-vec should be registered")

	docs := map[string][2]string{
		"pay":   {"Payment Gateway", "Card checkout and billing"},
		"auth":  {"User Authentication", "Login and sessions"},
		"kafka": {"Kafka ingestion", "Event stream for payments"},
		"ops":   {"Cluster deployment", "Kubernetes release"},
	}
	for id, d := range docs {
		require.NoError(t, e.UpsertVector(ctx, id, d[0], d[1]))
	}

	for _, q := range []string{"billing integration", "password login", "event streaming", "kubernetes"} {
		vec, err := e.Embed(ctx, q, true)
		require.NoError(t, err)

		native, err := e.search(ctx, vec, 2)
		require.NoError(t, err)
		fallback, err := e.searchFallback(ctx, vec, 2)
		require.NoError(t, err)
		assert.Equal(t, fallback, native, "query %q", q)
	}

	assert.Equal(t, "pay", e.Search(ctx, "billing integration", 10)[0])
	assert.Equal(t, []string{"auth"}, e.Search(ctx, "password login", 1))
}
