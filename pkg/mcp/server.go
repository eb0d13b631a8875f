package mcp

import (
	"github.com/gnana997/symdex/pkg/indexer"
	"github.com/gnana997/symdex/pkg/mcplog"
	"github.com/gnana997/symdex/pkg/util"
	"github.com/mark3labs/mcp-go/server"
)

const serverVersion = "0.1.0-dev"

// Server implements the MCP server for symdex, exposing symbol lookup tools
// over a live SymbolIndexer.
type Server struct {
	mcpServer *server.MCPServer
	index     *indexer.SymbolIndexer
	sources   *util.SourceCache // nil disables get_symbol_source
	root      string            // file keys are relative to root
	logger    *mcplog.Logger    // nil disables the call log
}

// NewServer creates a new MCP server over idx. Source text is read through
// sources, resolving file keys against root. logger may be nil.
func NewServer(idx *indexer.SymbolIndexer, sources *util.SourceCache, root string, logger *mcplog.Logger) *Server {
	s := &Server{index: idx, sources: sources, root: root, logger: logger}

	opts := []server.ServerOption{
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	}
	if logger != nil {
		opts = append(opts, server.WithToolHandlerMiddleware(s.loggingMiddleware()))
	}
	s.mcpServer = server.NewMCPServer("symdex", serverVersion, opts...)

	s.mcpServer.AddTools(
		server.ServerTool{Tool: lookupByPathTool(), Handler: s.handleLookupByPath},
		server.ServerTool{Tool: lookupByNameTool(), Handler: s.handleLookupByName},
		server.ServerTool{Tool: lookupByDecoratorTool(), Handler: s.handleLookupByDecorator},
		server.ServerTool{Tool: searchSymbolsTool(), Handler: s.handleSearchSymbols},
		server.ServerTool{Tool: getFileSymbolsTool(), Handler: s.handleGetFileSymbols},
		server.ServerTool{Tool: getSymbolSourceTool(), Handler: s.handleGetSymbolSource},
		server.ServerTool{Tool: indexStatsTool(), Handler: s.handleIndexStats},
	)

	return s
}

// MCPServer exposes the underlying server, mostly for tests.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
