package fts

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dshills/artifact-index/internal/driver"
	"github.com/dshills/artifact-index/internal/metrics"
	"github.com/dshills/artifact-index/internal/schema"
)

func setupTestEngine(t *testing.T) (*Engine, driver.Client, *driver.Conn) {
	t.Helper()
	client, err := driver.New(driver.DialectSQLite)
	require.NoError(t, err)

	conn, err := client.AcquireConnection(context.Background(), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.DestroyConnection(conn) })

	require.NoError(t, schema.EnsureSchema(context.Background(), client, conn))

	e := New(client, conn, zaptest.NewLogger(t))
	require.NoError(t, e.Initialize(context.Background()))
	return e, client, conn
}

func insertRow(t *testing.T, client driver.Client, conn *driver.Conn, id, title, description string) {
	t.Helper()
	_, err := client.Execute(context.Background(), conn.DB, driver.Statement{
		SQL: `INSERT INTO artifact_metadata_index (id, artifact_id, vault_id, metadata_file_path, title, description)
			VALUES (?, ?, 'v1', ?, ?, ?)`,
		Bindings: []any{id, id, "/vault/" + id + ".yaml", title, description},
		Kind:     driver.OpInsert,
	})
	require.NoError(t, err)
}

func TestTerms(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"plain", "Kafka Ingestion", []string{"kafka", "ingestion"}},
		{"operators are just words", "kafka AND NOT ingestion", []string{"kafka", "and", "not", "ingestion"}},
		{"punctuation splits", `title:"payment*" (gateway)`, []string{"title", "payment", "gateway"}},
		{"duplicates dropped", "api API api", []string{"api"}},
		{"unicode letters kept", "café résumé", []string{"café", "résumé"}},
		{"nothing searchable", `"*()"`, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, terms(tt.query))
		})
	}
}

func TestSanitizeQueries(t *testing.T) {
	assert.Equal(t, `"kafka" OR "ingestion"`, sanitizeFTS5Query("kafka ingestion"))
	assert.Equal(t, "", sanitizeFTS5Query("  ** "))
	assert.Equal(t, "kafka ingestion", sanitizeBM25Query("Kafka, ingestion!"))
}

func TestSearch_RanksByRelevance(t *testing.T) {
	e, client, conn := setupTestEngine(t)
	ctx := context.Background()

	insertRow(t, client, conn, "a1", "Kafka ingestion", "Consumer groups for the kafka ingestion pipeline")
	insertRow(t, client, conn, "a2", "Billing service", "Mentions kafka once")
	insertRow(t, client, conn, "a3", "User login", "Session handling")

	got := e.Search(ctx, "kafka ingestion", 10)
	require.Len(t, got, 2)
	assert.Equal(t, "a1", got[0])
	assert.Equal(t, "a2", got[1])

	assert.Equal(t, []string{"a1"}, e.Search(ctx, "kafka ingestion", 1))
	assert.Empty(t, e.Search(ctx, "nonexistent", 10))
}

func TestSearch_HostileQueriesDoNotFail(t *testing.T) {
	e, client, conn := setupTestEngine(t)
	insertRow(t, client, conn, "a1", "Payment gateway", "")

	before := testutil.ToFloat64(metrics.SearchDegradedTotal.WithLabelValues("fts", "query"))

	for _, q := range []string{`payment"`, `payment AND`, `NEAR(payment`, `title:payment`, `payment*`, `-payment`} {
		got := e.Search(context.Background(), q, 10)
		assert.Equal(t, []string{"a1"}, got, "query %q", q)
	}
	assert.Empty(t, e.Search(context.Background(), `"" ** ()`, 10))

	after := testutil.ToFloat64(metrics.SearchDegradedTotal.WithLabelValues("fts", "query"))
	assert.Equal(t, before, after, "no query should have degraded")
}

func TestSearch_NotInitializedDegrades(t *testing.T) {
	client, err := driver.New(driver.DialectSQLite)
	require.NoError(t, err)
	conn, err := client.AcquireConnection(context.Background(), "")
	require.NoError(t, err)
	defer func() { _ = client.DestroyConnection(conn) }()

	e := New(client, conn, nil)
	before := testutil.ToFloat64(metrics.SearchDegradedTotal.WithLabelValues("fts", "not_initialized"))

	got := e.Search(context.Background(), "anything", 5)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.SearchDegradedTotal.WithLabelValues("fts", "not_initialized")))

	assert.ErrorIs(t, e.SyncIndex(context.Background()), ErrNotInitialized)
}

func TestSearch_FollowsUpdatesAndDeletes(t *testing.T) {
	e, client, conn := setupTestEngine(t)
	ctx := context.Background()

	insertRow(t, client, conn, "a1", "Kafka ingestion", "")
	assert.Equal(t, []string{"a1"}, e.Search(ctx, "kafka", 10))

	_, err := client.Execute(ctx, conn.DB, driver.Statement{
		SQL:  `UPDATE artifact_metadata_index SET title = 'Pulsar ingestion' WHERE id = 'a1'`,
		Kind: driver.OpUpdate,
	})
	require.NoError(t, err)
	assert.Empty(t, e.Search(ctx, "kafka", 10))
	assert.Equal(t, []string{"a1"}, e.Search(ctx, "pulsar", 10))

	_, err = client.Execute(ctx, conn.DB, driver.Statement{
		SQL:  `DELETE FROM artifact_metadata_index WHERE id = 'a1'`,
		Kind: driver.OpDelete,
	})
	require.NoError(t, err)
	assert.Empty(t, e.Search(ctx, "pulsar", 10))
}

func TestSyncIndex_Rebuild(t *testing.T) {
	e, client, conn := setupTestEngine(t)
	ctx := context.Background()

	insertRow(t, client, conn, "a1", "Kafka ingestion", "")
	require.NoError(t, e.SyncIndex(ctx))
	require.NoError(t, e.SyncIndex(ctx))

	assert.Equal(t, []string{"a1"}, e.Search(ctx, "kafka", 10))
	assert.True(t, e.Healthy(ctx))
}

func TestDualWriteHooksAreNoOpsWithTriggers(t *testing.T) {
	e, _, conn := setupTestEngine(t)
	assert.False(t, e.DualWrite())

	require.NoError(t, e.Upsert(context.Background(), conn.DB, Entry{ID: "x", ArtifactID: "x", Title: "ghost"}))
	require.NoError(t, e.DeleteArtifact(context.Background(), conn.DB, "x"))
	assert.Empty(t, e.Search(context.Background(), "ghost", 10))
}

func TestInitialize_Idempotent(t *testing.T) {
	e, _, _ := setupTestEngine(t)
	assert.NoError(t, e.Initialize(context.Background()))
}

func TestUniqueIDs(t *testing.T) {
	assert.Equal(t, []string{"b", "a", "c"}, uniqueIDs([]string{"b", "a", "b", "c", "a"}))
}
