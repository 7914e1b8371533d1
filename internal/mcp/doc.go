// Package mcp implements the Model Context Protocol (MCP) server for the
// artifact index.
//
// The server exposes the index to AI assistants as tools:
//   - query_index: exact-filter lookup returning metadata file paths
//   - text_search: full-text search returning artifact ids
//   - vector_search: semantic search returning artifact ids
//   - hybrid_search: both searches fused with Reciprocal Rank Fusion
//   - get_links: outgoing links or backlinks of an artifact
//   - get_status: index state, row counts and engine health
//   - rebuild_index: re-sync a vault directory into the index
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Stdout carries protocol messages only; logs go to stderr.
//
// # Basic Usage
//
// The server is started by the serve command:
//
//	artindex serve --vault ~/vault
//
// # Tool: hybrid_search
//
//	Request:
//	{
//	  "name": "hybrid_search",
//	  "arguments": {
//	    "query": "payment retry design",
//	    "limit": 10,
//	    "search_mode": "hybrid"
//	  }
//	}
//
//	Response:
//	{
//	  "results": [
//	    {
//	      "rank": 1,
//	      "artifact_id": "art-billing",
//	      "title": "Billing retries",
//	      "metadata_file_path": "/vault/billing.yaml",
//	      "relevance_score": 0.0328,
//	      "text_rank": 1,
//	      "vector_rank": 1
//	    }
//	  ],
//	  "search_mode": "hybrid",
//	  "cache_hit": false
//	}
//
// # Tool: query_index
//
//	Request:
//	{
//	  "name": "query_index",
//	  "arguments": {"type": "design", "tags": ["api"], "order_by": "updated_at", "order_desc": true}
//	}
//
//	Response:
//	{"paths": ["/vault/api.yaml"], "count": 1}
//
// # Error Handling
//
// Failures are returned as *MCPError with a JSON-RPC code:
//   - -32602: invalid parameters
//   - -32603: internal error
//   - -32001: rebuild path is not a readable directory
//   - -32002: a rebuild is already running
//   - -32003: the index is not initialized
//   - -32004: empty query
//
// Search engines that fail internally return empty results rather than
// errors; see the index package.
package mcp
