package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/artifact-index/pkg/types"
)

// limitProperty describes the shared limit argument
func limitProperty(def int) map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": "Maximum number of results to return (1-100)",
		"default":     def,
		"minimum":     1,
		"maximum":     100,
	}
}

func queryProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Search query (natural language or keywords)",
	}
}

// queryIndexTool returns the tool definition for query_index
func queryIndexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "query_index",
		Description: "List metadata file paths of artifacts matching exact filters",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"vault_id": map[string]interface{}{
					"type":        "string",
					"description": "Only artifacts of this vault",
				},
				"vault_name": map[string]interface{}{
					"type":        "string",
					"description": "Only artifacts of the vault with this name",
				},
				"type": map[string]interface{}{
					"type":        "string",
					"description": "Artifact type, e.g. design or adr",
				},
				"category": map[string]interface{}{
					"type":        "string",
					"description": "Artifact category",
				},
				"tags": map[string]interface{}{
					"type":        "array",
					"description": "Tags the artifact must carry (all of them)",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of paths to return",
					"minimum":     1,
				},
				"order_by": map[string]interface{}{
					"type":        "string",
					"description": "Column to sort on",
					"enum":        types.OrderableColumns,
				},
				"order_desc": map[string]interface{}{
					"type":        "boolean",
					"description": "Sort descending",
					"default":     false,
				},
			},
		},
	}
}

// textSearchTool returns the tool definition for text_search
func textSearchTool() mcp.Tool {
	return mcp.Tool{
		Name:        "text_search",
		Description: "Full-text search over artifact titles and descriptions, best match first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": queryProperty(),
				"limit": limitProperty(20),
			},
			Required: []string{"query"},
		},
	}
}

// vectorSearchTool returns the tool definition for vector_search
func vectorSearchTool() mcp.Tool {
	return mcp.Tool{
		Name:        "vector_search",
		Description: "Semantic search by embedding similarity; empty when no embedding model is loaded",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": queryProperty(),
				"limit": limitProperty(20),
			},
			Required: []string{"query"},
		},
	}
}

// hybridSearchTool returns the tool definition for hybrid_search
func hybridSearchTool() mcp.Tool {
	return mcp.Tool{
		Name:        "hybrid_search",
		Description: "Search artifacts with keyword and semantic search fused by reciprocal rank",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": queryProperty(),
				"limit": limitProperty(10),
				"search_mode": map[string]interface{}{
					"type":        "string",
					"description": "Search strategy: hybrid (vector + keyword), vector (semantic only), or keyword (full-text only)",
					"enum":        []string{"hybrid", "vector", "keyword"},
					"default":     "hybrid",
				},
				"use_cache": map[string]interface{}{
					"type":        "boolean",
					"description": "Serve repeated queries from the result cache",
					"default":     true,
				},
			},
			Required: []string{"query"},
		},
	}
}

// getLinksTool returns the tool definition for get_links
func getLinksTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_links",
		Description: "List outgoing links of an artifact, or backlinks pointing at it",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"artifact_id": map[string]interface{}{
					"type":        "string",
					"description": "Artifact id, or a file path for backlinks",
				},
				"direction": map[string]interface{}{
					"type":        "string",
					"description": "outgoing or incoming",
					"enum":        []string{"outgoing", "incoming"},
					"default":     "outgoing",
				},
			},
			Required: []string{"artifact_id"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report index state, row counts and engine health",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// rebuildIndexTool returns the tool definition for rebuild_index
func rebuildIndexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "rebuild_index",
		Description: "Re-sync every metadata file under a vault directory and drop rows for deleted files",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the vault root (defaults to the configured vault)",
				},
				"vault_id": map[string]interface{}{
					"type":        "string",
					"description": "Restrict pruning to this vault",
				},
				"no_prune": map[string]interface{}{
					"type":        "boolean",
					"description": "Keep rows whose files are gone",
					"default":     false,
				},
			},
		},
	}
}
