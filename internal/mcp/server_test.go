package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dshills/artifact-index/internal/embedder/embeddertest"
	"github.com/dshills/artifact-index/internal/index"
	"github.com/dshills/artifact-index/internal/indexer"
	"github.com/dshills/artifact-index/internal/searcher"
)

func setupTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	logger := zaptest.NewLogger(t)

	ix, err := index.New(index.Options{
		Path:   filepath.Join(t.TempDir(), "index.db"),
		Loader: embeddertest.NewConceptEmbedder().Loader(),
		Logger: logger,
	})
	require.NoError(t, err)
	require.NoError(t, ix.Initialize(context.Background()))
	t.Cleanup(func() { _ = ix.Close(context.Background()) })

	srch, err := searcher.New(ix, searcher.Config{})
	require.NoError(t, err)

	vault := t.TempDir()
	s, err := NewServer(Options{
		Index:     ix,
		Indexer:   indexer.New(ix, logger),
		Searcher:  srch,
		VaultRoot: vault,
		Logger:    logger,
	})
	require.NoError(t, err)
	return s, vault
}

func writeDoc(t *testing.T, dir, name, artifactID, title, extra string) {
	t.Helper()
	content := fmt.Sprintf("id: md-%s\nartifactId: %s\nvaultId: main\ntype: design\ntitle: %s\ndescription: about %s\n%s",
		artifactID, artifactID, title, title, extra)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func call(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

// decode unmarshals the JSON text of a tool result
func decode(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)

	var text string
	switch c := result.Content[0].(type) {
	case mcp.TextContent:
		text = c.Text
	case *mcp.TextContent:
		text = c.Text
	default:
		t.Fatalf("unexpected content %T", result.Content[0])
	}

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	return out
}

func requireCode(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, code, mcpErr.Code)
}

func rebuild(t *testing.T, s *Server) map[string]interface{} {
	t.Helper()
	res, err := s.handleRebuildIndex(context.Background(), call(nil))
	require.NoError(t, err)
	return decode(t, res)
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	_, err := NewServer(Options{})
	assert.Error(t, err)
}

func TestRebuildAndQuery(t *testing.T) {
	s, vault := setupTestServer(t)
	ctx := context.Background()

	writeDoc(t, vault, "billing.yaml", "bill", "Billing retries", "tags: [payments]\nlinks: [auth]\n")
	writeDoc(t, vault, "auth.yaml", "auth", "User login flow", "tags: [security]\n")

	out := rebuild(t, s)
	assert.EqualValues(t, 2, out["files_indexed"])
	assert.EqualValues(t, 1, out["links_written"])

	res, err := s.handleQueryIndex(ctx, call(map[string]interface{}{
		"tags": []interface{}{"payments"},
	}))
	require.NoError(t, err)
	out = decode(t, res)
	assert.EqualValues(t, 1, out["count"])
	assert.Equal(t, []interface{}{filepath.Join(vault, "billing.yaml")}, out["paths"])

	res, err = s.handleQueryIndex(ctx, call(map[string]interface{}{
		"order_by": "title; DROP TABLE artifact_metadata_index",
	}))
	assert.Nil(t, res)
	requireCode(t, err, ErrorCodeInvalidParams)
}

func TestSearchTools(t *testing.T) {
	s, vault := setupTestServer(t)
	ctx := context.Background()

	writeDoc(t, vault, "billing.yaml", "bill", "Billing retries", "")
	writeDoc(t, vault, "auth.yaml", "auth", "User login flow", "")
	rebuild(t, s)

	res, err := s.handleTextSearch(ctx, call(map[string]interface{}{"query": "billing"}))
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"bill"}, decode(t, res)["artifact_ids"])

	res, err = s.handleVectorSearch(ctx, call(map[string]interface{}{"query": "password session", "limit": float64(1)}))
	require.NoError(t, err)
	out := decode(t, res)
	assert.Equal(t, []interface{}{"auth"}, out["artifact_ids"])
	assert.Equal(t, true, out["embeddings_enabled"])

	res, err = s.handleHybridSearch(ctx, call(map[string]interface{}{"query": "billing"}))
	require.NoError(t, err)
	out = decode(t, res)
	results, ok := out["results"].([]interface{})
	require.True(t, ok)
	require.NotEmpty(t, results)
	first := results[0].(map[string]interface{})
	assert.Equal(t, "bill", first["artifact_id"])
	assert.Equal(t, "Billing retries", first["title"])
	assert.Equal(t, false, out["cache_hit"])

	res, err = s.handleHybridSearch(ctx, call(map[string]interface{}{"query": "billing"}))
	require.NoError(t, err)
	assert.Equal(t, true, decode(t, res)["cache_hit"])
}

func TestSearchTools_InvalidParams(t *testing.T) {
	s, _ := setupTestServer(t)
	ctx := context.Background()

	_, err := s.handleTextSearch(ctx, call(map[string]interface{}{}))
	requireCode(t, err, ErrorCodeEmptyQuery)

	_, err = s.handleVectorSearch(ctx, call(map[string]interface{}{"query": "x", "limit": float64(500)}))
	requireCode(t, err, ErrorCodeInvalidParams)

	_, err = s.handleHybridSearch(ctx, call(map[string]interface{}{"query": "x", "search_mode": "fuzzy"}))
	requireCode(t, err, ErrorCodeInvalidParams)

	var req mcp.CallToolRequest
	req.Params.Arguments = "not a map"
	_, err = s.handleQueryIndex(ctx, req)
	requireCode(t, err, ErrorCodeInvalidParams)
}

func TestGetLinks(t *testing.T) {
	s, vault := setupTestServer(t)
	ctx := context.Background()

	writeDoc(t, vault, "billing.yaml", "bill", "Billing retries", "links: [auth]\n")
	writeDoc(t, vault, "auth.yaml", "auth", "User login flow", "")
	rebuild(t, s)

	res, err := s.handleGetLinks(ctx, call(map[string]interface{}{"artifact_id": "bill"}))
	require.NoError(t, err)
	assert.EqualValues(t, 1, decode(t, res)["count"])

	res, err = s.handleGetLinks(ctx, call(map[string]interface{}{"artifact_id": "auth", "direction": "incoming"}))
	require.NoError(t, err)
	assert.EqualValues(t, 1, decode(t, res)["count"])

	_, err = s.handleGetLinks(ctx, call(map[string]interface{}{}))
	requireCode(t, err, ErrorCodeInvalidParams)

	_, err = s.handleGetLinks(ctx, call(map[string]interface{}{"artifact_id": "auth", "direction": "sideways"}))
	requireCode(t, err, ErrorCodeInvalidParams)
}

func TestGetStatus(t *testing.T) {
	s, vault := setupTestServer(t)
	ctx := context.Background()

	writeDoc(t, vault, "billing.yaml", "bill", "Billing retries", "")
	rebuild(t, s)

	res, err := s.handleGetStatus(ctx, call(nil))
	require.NoError(t, err)
	out := decode(t, res)
	assert.Equal(t, true, out["ready"])
	assert.Equal(t, "sqlite", out["backend"])

	stats := out["statistics"].(map[string]interface{})
	assert.EqualValues(t, 1, stats["artifacts"])
	assert.EqualValues(t, 1, stats["vectors"])

	health := out["health"].(map[string]interface{})
	assert.Equal(t, true, health["embeddings_enabled"])
	assert.Equal(t, true, health["fulltext_healthy"])
	assert.Equal(t, false, health["rebuild_running"])
}

func TestClosedIndex(t *testing.T) {
	s, _ := setupTestServer(t)
	ctx := context.Background()
	require.NoError(t, s.index.Close(ctx))

	res, err := s.handleGetStatus(ctx, call(nil))
	require.NoError(t, err)
	assert.Equal(t, false, decode(t, res)["ready"])

	_, err = s.handleTextSearch(ctx, call(map[string]interface{}{"query": "billing"}))
	requireCode(t, err, ErrorCodeNotInitialized)
}

func TestRebuildIndex_InvalidPath(t *testing.T) {
	s, vault := setupTestServer(t)
	ctx := context.Background()

	_, err := s.handleRebuildIndex(ctx, call(map[string]interface{}{"path": "relative/vault"}))
	requireCode(t, err, ErrorCodeVaultNotFound)

	_, err = s.handleRebuildIndex(ctx, call(map[string]interface{}{"path": filepath.Join(vault, "missing")}))
	requireCode(t, err, ErrorCodeVaultNotFound)

	s.vaultRoot = ""
	_, err = s.handleRebuildIndex(ctx, call(nil))
	requireCode(t, err, ErrorCodeInvalidParams)
}

func TestRebuildIndex_InvalidatesCache(t *testing.T) {
	s, vault := setupTestServer(t)
	ctx := context.Background()

	writeDoc(t, vault, "billing.yaml", "bill", "Billing retries", "")
	rebuild(t, s)

	_, err := s.handleHybridSearch(ctx, call(map[string]interface{}{"query": "billing"}))
	require.NoError(t, err)
	require.Equal(t, 1, s.searcher.CacheLen())

	rebuild(t, s)
	assert.Zero(t, s.searcher.CacheLen())
}
