package mcp

import (
	"context"
	"errors"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/dshills/artifact-index/internal/index"
	"github.com/dshills/artifact-index/internal/indexer"
	"github.com/dshills/artifact-index/internal/logging"
	"github.com/dshills/artifact-index/internal/searcher"
)

const (
	// ServerName is the MCP server name
	ServerName = "artifact-index"
	// ServerVersion is the default server version
	ServerVersion = "1.0.0"
)

// Options wires the server to an initialized index
type Options struct {
	Index    *index.Index
	Indexer  *indexer.Indexer
	Searcher *searcher.Searcher
	// VaultRoot is rebuilt when rebuild_index gets no path
	VaultRoot string
	Version   string
	Logger    *zap.Logger
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp       *server.MCPServer
	index     *index.Index
	indexer   *indexer.Indexer
	searcher  *searcher.Searcher
	vaultRoot string
	logger    *zap.Logger
}

// NewServer creates a new MCP server instance
func NewServer(opts Options) (*Server, error) {
	if opts.Index == nil || opts.Indexer == nil || opts.Searcher == nil {
		return nil, errors.New("index, indexer and searcher are required")
	}
	version := opts.Version
	if version == "" {
		version = ServerVersion
	}

	s := &Server{
		mcp:       server.NewMCPServer(ServerName, version),
		index:     opts.Index,
		indexer:   opts.Indexer,
		searcher:  opts.Searcher,
		vaultRoot: opts.VaultRoot,
		logger:    logging.OrNop(opts.Logger).Named("mcp"),
	}

	s.registerTools()
	return s, nil
}

// Serve runs the MCP server on stdio and blocks until the client
// disconnects or ctx is cancelled
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(zap.NewStdLog(s.logger))
	s.logger.Info("mcp server listening on stdio")
	err := stdio.Listen(ctx, os.Stdin, os.Stdout)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(queryIndexTool(), s.handleQueryIndex)
	s.mcp.AddTool(textSearchTool(), s.handleTextSearch)
	s.mcp.AddTool(vectorSearchTool(), s.handleVectorSearch)
	s.mcp.AddTool(hybridSearchTool(), s.handleHybridSearch)
	s.mcp.AddTool(getLinksTool(), s.handleGetLinks)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	s.mcp.AddTool(rebuildIndexTool(), s.handleRebuildIndex)
}
