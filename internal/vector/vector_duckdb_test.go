//go:build duckdb

package vector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dshills/artifact-index/internal/driver"
	"github.com/dshills/artifact-index/internal/embedder/embeddertest"
	"github.com/dshills/artifact-index/internal/schema"
)

func setupDuckDBEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	client, err := driver.New(driver.DialectDuckDB)
	require.NoError(t, err)

	conn, err := client.AcquireConnection(context.Background(), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.DestroyConnection(conn) })

	if err := schema.LoadExtensions(context.Background(), client, conn); err != nil {
		t.Skipf("duckdb extensions unavailable: %v", err)
	}
	require.NoError(t, schema.ApplyMigrations(context.Background(), client, conn))

	opts.Logger = zaptest.NewLogger(t)
	e := New(client, conn, opts)
	require.NoError(t, e.Initialize(context.Background()))
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestDuckDB_UpsertAndSearch(t *testing.T) {
	emb := embeddertest.NewConceptEmbedder()
	e := setupDuckDBEngine(t, Options{Loader: emb.Loader()})
	ctx := context.Background()

	require.NoError(t, e.UpsertVector(ctx, "pay", "Payment Gateway", "Card checkout"))
	require.NoError(t, e.UpsertVector(ctx, "auth", "User Authentication", "Login and sessions"))

	got := e.Search(ctx, "billing integration", 10)
	require.NotEmpty(t, got)
	assert.Equal(t, "pay", got[0])

	// Re-embedding an existing artifact updates its row in place
	require.NoError(t, e.UpsertVector(ctx, "pay", "Kafka ingestion", "Event stream"))
	require.NoError(t, e.UpsertVector(ctx, "pay", "Kafka ingestion", "Event stream"))
	n, err := e.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, []string{"pay"}, e.Search(ctx, "event streaming", 1))

	require.NoError(t, e.RemoveVector(ctx, dbQuerier(e), "pay"))
	assert.Equal(t, []string{"auth"}, e.Search(ctx, "event streaming", 10))
}
