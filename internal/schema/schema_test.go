package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/artifact-index/internal/driver"
)

func setupTestDB(t *testing.T) (driver.Client, *driver.Conn) {
	t.Helper()
	client, err := driver.New(driver.DialectSQLite)
	require.NoError(t, err)

	conn, err := client.AcquireConnection(context.Background(), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.DestroyConnection(conn) })
	return client, conn
}

func tableExists(t *testing.T, client driver.Client, conn *driver.Conn, name string) bool {
	t.Helper()
	res, err := client.Execute(context.Background(), conn.DB, driver.Statement{
		SQL:      `SELECT COUNT(*) FROM sqlite_master WHERE name = ?`,
		Bindings: []any{name},
		Kind:     driver.OpCount,
	})
	require.NoError(t, err)
	return res.Count > 0
}

func TestEnsureSchema_CreatesTables(t *testing.T) {
	client, conn := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, EnsureSchema(ctx, client, conn))

	for _, name := range []string{TableIndex, TableLinks, TableFullText, TableSettings, "schema_version"} {
		assert.True(t, tableExists(t, client, conn, name), "table %s should exist", name)
	}

	v, err := CurrentVersion(ctx, client, conn)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v.String())
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	client, conn := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, EnsureSchema(ctx, client, conn))
	require.NoError(t, EnsureSchema(ctx, client, conn))

	res, err := client.Execute(ctx, conn.DB, driver.Statement{
		SQL:  `SELECT COUNT(*) FROM schema_version`,
		Kind: driver.OpCount,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(Migrations(driver.DialectSQLite))), res.Count)

	// Re-running the full-text DDL on its own must not fail either
	require.NoError(t, EnsureFullText(ctx, client, conn))
}

func TestCurrentVersion_FreshDatabase(t *testing.T) {
	client, conn := setupTestDB(t)

	v, err := CurrentVersion(context.Background(), client, conn)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0", v.String())
}

func TestCurrentVersion_ReadFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("unreadable version table", func(t *testing.T) {
		client, conn := setupTestDB(t)
		_, err := client.Execute(ctx, conn.DB, driver.Statement{
			SQL:  `CREATE TABLE schema_version (applied TEXT)`,
			Kind: driver.OpRaw,
		})
		require.NoError(t, err)

		v, err := CurrentVersion(ctx, client, conn)
		assert.Error(t, err)
		assert.Nil(t, v)
		assert.Error(t, ApplyMigrations(ctx, client, conn))
	})

	t.Run("closed connection", func(t *testing.T) {
		client, conn := setupTestDB(t)
		require.NoError(t, conn.DB.Close())

		_, err := CurrentVersion(ctx, client, conn)
		assert.Error(t, err)
	})
}

func TestTableExists(t *testing.T) {
	client, conn := setupTestDB(t)
	ctx := context.Background()

	ok, err := TableExists(ctx, client, conn, "schema_version")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, EnsureSchema(ctx, client, conn))
	ok, err = TableExists(ctx, client, conn, "schema_version")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestApplyMigrations_ResumesFromRecordedVersion(t *testing.T) {
	client, conn := setupTestDB(t)
	ctx := context.Background()

	// Apply only the core migration by hand, as an older binary would
	for _, stmt := range Migrations(driver.DialectSQLite)[0].Up {
		_, err := client.Execute(ctx, conn.DB, driver.Statement{SQL: stmt, Kind: driver.OpRaw})
		require.NoError(t, err)
	}
	_, err := client.Execute(ctx, conn.DB, driver.Statement{
		SQL:  `INSERT INTO schema_version (version, applied_at) VALUES ('1.0.0', '2024-01-01T00:00:00Z')`,
		Kind: driver.OpInsert,
	})
	require.NoError(t, err)
	assert.False(t, tableExists(t, client, conn, TableFullText))

	require.NoError(t, ApplyMigrations(ctx, client, conn))
	assert.True(t, tableExists(t, client, conn, TableFullText))

	v, err := CurrentVersion(ctx, client, conn)
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", v.String())
}

func TestFullTextTriggers(t *testing.T) {
	client, conn := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, EnsureSchema(ctx, client, conn))

	exec := func(sql string, args ...any) {
		_, err := client.Execute(ctx, conn.DB, driver.Statement{SQL: sql, Bindings: args, Kind: driver.OpRaw})
		require.NoError(t, err)
	}
	match := func(term string) int64 {
		res, err := client.Execute(ctx, conn.DB, driver.Statement{
			SQL:      `SELECT COUNT(*) FROM artifact_metadata_fts WHERE artifact_metadata_fts MATCH ?`,
			Bindings: []any{term},
			Kind:     driver.OpCount,
		})
		require.NoError(t, err)
		return res.Count
	}

	exec(`INSERT INTO artifact_metadata_index (id, artifact_id, vault_id, metadata_file_path, title, description)
		VALUES ('a1', 'a1', 'v1', '/v/a1.yaml', 'Kafka ingestion', 'stream consumer')`)
	assert.Equal(t, int64(1), match("kafka"))

	exec(`UPDATE artifact_metadata_index SET title = 'Pulsar ingestion' WHERE id = 'a1'`)
	assert.Equal(t, int64(0), match("kafka"))
	assert.Equal(t, int64(1), match("pulsar"))

	exec(`DELETE FROM artifact_metadata_index WHERE id = 'a1'`)
	assert.Equal(t, int64(0), match("pulsar"))
}

func TestEnsureVectorSchema(t *testing.T) {
	client, conn := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, EnsureSchema(ctx, client, conn))

	require.NoError(t, EnsureVectorSchema(ctx, client, conn, 4))
	assert.True(t, tableExists(t, client, conn, TableVectors))

	dim, err := GetSetting(ctx, client, conn, "vector_dimension")
	require.NoError(t, err)
	assert.Equal(t, "4", dim)

	_, err = client.Execute(ctx, conn.DB, driver.Statement{
		SQL:      `INSERT INTO artifact_vectors (artifact_id, embedding, dimension, updated_at) VALUES (?, ?, ?, ?)`,
		Bindings: []any{"a1", []byte{0, 0, 0, 0}, 4, "2024-01-01T00:00:00Z"},
		Kind:     driver.OpInsert,
	})
	require.NoError(t, err)

	// Same dimension keeps rows
	require.NoError(t, EnsureVectorSchema(ctx, client, conn, 4))
	res, err := client.Execute(ctx, conn.DB, driver.Statement{SQL: `SELECT COUNT(*) FROM artifact_vectors`, Kind: driver.OpCount})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Count)

	// A new dimension starts over
	require.NoError(t, EnsureVectorSchema(ctx, client, conn, 8))
	res, err = client.Execute(ctx, conn.DB, driver.Statement{SQL: `SELECT COUNT(*) FROM artifact_vectors`, Kind: driver.OpCount})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Count)

	assert.Error(t, EnsureVectorSchema(ctx, client, conn, 0))
}

func TestSettings_RoundTrip(t *testing.T) {
	client, conn := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, EnsureSchema(ctx, client, conn))

	v, err := GetSetting(ctx, client, conn, "missing")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, PutSetting(ctx, client, conn, "k", "1"))
	require.NoError(t, PutSetting(ctx, client, conn, "k", "2"))
	v, err = GetSetting(ctx, client, conn, "k")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}
