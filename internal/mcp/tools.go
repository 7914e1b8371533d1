package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/dshills/artifact-index/internal/index"
	"github.com/dshills/artifact-index/internal/indexer"
	"github.com/dshills/artifact-index/internal/searcher"
	"github.com/dshills/artifact-index/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams     = -32602 // Invalid method parameters
	ErrorCodeInternalError     = -32603 // Internal JSON-RPC error
	ErrorCodeVaultNotFound     = -32001 // Rebuild path is not a readable directory
	ErrorCodeRebuildInProgress = -32002 // Another rebuild is already running
	ErrorCodeNotInitialized    = -32003 // Index is not ready
	ErrorCodeEmptyQuery        = -32004 // Query parameter is empty
)

const maxLimit = 100

// handleQueryIndex handles the query_index tool invocation
func (s *Server) handleQueryIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	filter := types.Filter{
		VaultID:   getStringDefault(args, "vault_id", ""),
		VaultName: getStringDefault(args, "vault_name", ""),
		Type:      getStringDefault(args, "type", ""),
		Category:  getStringDefault(args, "category", ""),
		Tags:      getStringSlice(args, "tags"),
		Limit:     getIntDefault(args, "limit", 0),
		OrderBy:   getStringDefault(args, "order_by", ""),
		OrderDesc: getBoolDefault(args, "order_desc", false),
	}

	paths, err := s.index.QueryIndex(ctx, filter)
	if err != nil {
		return nil, toolError("query failed", err)
	}

	response := map[string]interface{}{
		"paths": paths,
		"count": len(paths),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleTextSearch handles the text_search tool invocation
func (s *Server) handleTextSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, limit, err := searchArgs(request, 20)
	if err != nil {
		return nil, err
	}

	ids, err := s.index.TextSearch(ctx, query, limit)
	if err != nil {
		return nil, toolError("text search failed", err)
	}

	response := map[string]interface{}{
		"query":        query,
		"artifact_ids": ids,
		"count":        len(ids),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleVectorSearch handles the vector_search tool invocation
func (s *Server) handleVectorSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, limit, err := searchArgs(request, 20)
	if err != nil {
		return nil, err
	}

	ids, err := s.index.VectorSearch(ctx, query, limit)
	if err != nil {
		return nil, toolError("vector search failed", err)
	}

	response := map[string]interface{}{
		"query":              query,
		"artifact_ids":       ids,
		"count":              len(ids),
		"embeddings_enabled": s.index.EmbeddingsEnabled(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleHybridSearch handles the hybrid_search tool invocation
func (s *Server) handleHybridSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, limit, err := searchArgs(request, s.searcher.Limit())
	if err != nil {
		return nil, err
	}
	args, _ := arguments(request)

	searchMode := getStringDefault(args, "search_mode", string(searcher.SearchModeHybrid))
	switch searcher.SearchMode(searchMode) {
	case searcher.SearchModeHybrid, searcher.SearchModeVector, searcher.SearchModeKeyword:
	default:
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid search_mode", map[string]interface{}{
			"param":   "search_mode",
			"value":   searchMode,
			"allowed": []string{"hybrid", "vector", "keyword"},
		})
	}

	resp, err := s.searcher.Search(ctx, searcher.SearchRequest{
		Query:    query,
		Limit:    limit,
		Mode:     searcher.SearchMode(searchMode),
		UseCache: getBoolDefault(args, "use_cache", true),
	})
	if err != nil {
		return nil, toolError("search failed", err)
	}

	results := make([]map[string]interface{}, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, map[string]interface{}{
			"rank":               r.Rank,
			"artifact_id":        r.ArtifactID,
			"title":              r.Title,
			"metadata_file_path": r.MetadataFilePath,
			"relevance_score":    r.RelevanceScore,
			"text_rank":          r.TextRank,
			"vector_rank":        r.VectorRank,
		})
	}

	response := map[string]interface{}{
		"results":        results,
		"total_results":  resp.TotalResults,
		"search_mode":    string(resp.SearchMode),
		"text_results":   resp.TextResults,
		"vector_results": resp.VectorResults,
		"cache_hit":      resp.CacheHit,
		"duration_ms":    resp.Duration.Milliseconds(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetLinks handles the get_links tool invocation
func (s *Server) handleGetLinks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	artifactID, ok := args["artifact_id"].(string)
	if !ok || artifactID == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "artifact_id parameter is required", map[string]interface{}{
			"param":  "artifact_id",
			"reason": "missing or empty",
		})
	}

	var links []types.Link
	direction := getStringDefault(args, "direction", "outgoing")
	switch direction {
	case "outgoing":
		links, err = s.index.LinksFrom(ctx, artifactID)
	case "incoming":
		links, err = s.index.Backlinks(ctx, artifactID)
	default:
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid direction", map[string]interface{}{
			"param":   "direction",
			"value":   direction,
			"allowed": []string{"outgoing", "incoming"},
		})
	}
	if err != nil {
		return nil, toolError("failed to load links", err)
	}

	response := map[string]interface{}{
		"artifact_id": artifactID,
		"direction":   direction,
		"links":       links,
		"count":       len(links),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state := s.index.State()
	if state != index.StateReady {
		response := map[string]interface{}{
			"state":   state.String(),
			"ready":   false,
			"message": "Index is not initialized.",
		}
		return mcp.NewToolResultText(formatJSON(response)), nil
	}

	status, err := s.index.Status(ctx)
	if err != nil {
		return nil, toolError("failed to get status", err)
	}

	response := map[string]interface{}{
		"state":   status.State,
		"ready":   true,
		"backend": status.Backend,
		"path":    status.Path,
		"statistics": map[string]interface{}{
			"artifacts":     status.Artifacts,
			"links":         status.Links,
			"vectors":       status.Vectors,
			"cached_search": s.searcher.CacheLen(),
		},
		"health": map[string]interface{}{
			"schema_version":     status.SchemaVersion,
			"embeddings_enabled": status.EmbeddingsEnabled,
			"embedding_model":    status.EmbeddingModel,
			"vector_dimension":   status.VectorDimension,
			"fulltext_healthy":   status.FullTextHealthy,
			"rebuild_running":    s.indexer.Running(),
		},
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleRebuildIndex handles the rebuild_index tool invocation
func (s *Server) handleRebuildIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	path := getStringDefault(args, "path", s.vaultRoot)
	if path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing and no vault root configured",
		})
	}
	if err := validatePath(path); err != nil {
		return nil, newMCPError(ErrorCodeVaultNotFound, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	stats, err := s.indexer.Rebuild(ctx, path, &indexer.Config{
		VaultID: getStringDefault(args, "vault_id", ""),
		NoPrune: getBoolDefault(args, "no_prune", false),
	})
	if err != nil {
		return nil, toolError("rebuild failed", err)
	}
	s.searcher.InvalidateCache()
	s.logger.Info("rebuild via mcp finished", zap.String("path", path), zap.Int("indexed", stats.FilesIndexed))

	response := map[string]interface{}{
		"files_found":       stats.FilesFound,
		"files_indexed":     stats.FilesIndexed,
		"files_failed":      stats.FilesFailed,
		"artifacts_removed": stats.ArtifactsRemoved,
		"links_written":     stats.LinksWritten,
		"duration_ms":       stats.Duration.Milliseconds(),
	}

	if len(stats.ErrorMessages) > 0 {
		// Include first few errors
		errorCount := len(stats.ErrorMessages)
		if errorCount > 5 {
			response["errors"] = stats.ErrorMessages[:5]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// arguments extracts the argument map of a tool call. A call without
// arguments yields an empty map.
func arguments(request mcp.CallToolRequest) (map[string]interface{}, error) {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}, nil
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	return args, nil
}

// searchArgs extracts and validates the query and limit shared by the
// search tools
func searchArgs(request mcp.CallToolRequest, defaultLimit int) (string, int, error) {
	args, err := arguments(request)
	if err != nil {
		return "", 0, err
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return "", 0, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", defaultLimit)
	if limit < 1 || limit > maxLimit {
		return "", 0, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}
	return query, limit, nil
}

// toolError maps index and search errors onto MCP error codes
func toolError(message string, err error) error {
	data := map[string]interface{}{"error": err.Error()}
	switch {
	case errors.Is(err, index.ErrNotInitialized), errors.Is(err, index.ErrClosed):
		return newMCPError(ErrorCodeNotInitialized, "index is not initialized", data)
	case errors.Is(err, indexer.ErrRebuildInProgress):
		return newMCPError(ErrorCodeRebuildInProgress, "rebuild already in progress", data)
	case errors.Is(err, searcher.ErrEmptyQuery):
		return newMCPError(ErrorCodeEmptyQuery, "query cannot be empty", data)
	case errors.Is(err, types.ErrInvalidFilter), errors.Is(err, types.ErrInvalidArtifactID):
		return newMCPError(ErrorCodeInvalidParams, message, data)
	default:
		return newMCPError(ErrorCodeInternalError, message, data)
	}
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks that a vault root exists and is a readable directory
func validatePath(path string) error {
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()
	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok && val != "" {
		return val
	}
	return defaultValue
}

// getStringSlice extracts a string array parameter, skipping non-strings
func getStringSlice(args map[string]interface{}, key string) []string {
	switch val := args[key].(type) {
	case []string:
		return val
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, v := range val {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Validation helpers

var (
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
