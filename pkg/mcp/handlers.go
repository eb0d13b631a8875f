package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gnana997/symdex/pkg/extractor"
	"github.com/gnana997/symdex/pkg/indexer"
	"github.com/gnana997/symdex/pkg/util"
	"github.com/mark3labs/mcp-go/mcp"
)

// symbolsResponse is the result shape shared by every multi-symbol tool.
type symbolsResponse struct {
	Query         string              `json:"query"`
	Results       []*extractor.Symbol `json:"results"`
	TotalFound    int                 `json:"total_found"`
	TotalReturned int                 `json:"total_returned"`
	TookMs        int64               `json:"took_ms"`
}

type sourceResponse struct {
	ID     string `json:"id"`
	Path   string `json:"path"`
	File   string `json:"file"`
	Lines  string `json:"lines"`
	Source string `json:"source"`
}

type statsResponse struct {
	Index   indexer.SymbolIndexerStats `json:"index"`
	Sources *util.SourceCacheStats     `json:"sources,omitempty"`
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func symbolsResult(query string, found []*extractor.Symbol, limit int, start time.Time) (*mcp.CallToolResult, error) {
	resp := symbolsResponse{
		Query:      query,
		Results:    found,
		TotalFound: len(found),
	}
	if len(resp.Results) > limit {
		resp.Results = resp.Results[:limit]
	}
	if resp.Results == nil {
		resp.Results = []*extractor.Symbol{}
	}
	resp.TotalReturned = len(resp.Results)
	resp.TookMs = time.Since(start).Milliseconds()
	return jsonResult(resp)
}

func (s *Server) handleLookupByPath(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, err := stringArg(args, "path", true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if boolArg(args, "all") {
		all := s.index.LookupAllByPath(path)
		if len(all) == 0 {
			return mcp.NewToolResultError(fmt.Sprintf("no symbol at path %q", path)), nil
		}
		return symbolsResult(path, all, maxLimit, time.Now())
	}

	sym, ok := s.index.LookupByPath(path)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("no symbol at path %q", path)), nil
	}
	return jsonResult(sym)
}

func (s *Server) handleLookupByName(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start := time.Now()
	args := req.GetArguments()
	name, err := stringArg(args, "name", true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return symbolsResult(name, s.index.LookupByName(name), limitArg(args), start)
}

func (s *Server) handleLookupByDecorator(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start := time.Now()
	args := req.GetArguments()
	name, err := stringArg(args, "name", true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return symbolsResult(name, s.index.LookupByDecorator(name), limitArg(args), start)
}

func (s *Server) handleSearchSymbols(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start := time.Now()
	args := req.GetArguments()
	pattern, err := stringArg(args, "pattern", true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind, err := stringArg(args, "kind", false)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if kind != "" && !validKind(extractor.SymbolKind(kind)) {
		return mcp.NewToolResultError(fmt.Sprintf("unknown kind %q", kind)), nil
	}

	found, err := s.index.FindByPattern(pattern)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid pattern: %v", err)), nil
	}
	if kind != "" {
		filtered := found[:0]
		for _, sym := range found {
			if sym.Kind == extractor.SymbolKind(kind) {
				filtered = append(filtered, sym)
			}
		}
		found = filtered
	}
	return symbolsResult(pattern, found, limitArg(args), start)
}

func validKind(k extractor.SymbolKind) bool {
	switch k {
	case extractor.SymbolKindModule, extractor.SymbolKindClass, extractor.SymbolKindNestedClass,
		extractor.SymbolKindFunction, extractor.SymbolKindMethod, extractor.SymbolKindLambda:
		return true
	}
	return false
}

func (s *Server) handleGetFileSymbols(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, err := stringArg(req.GetArguments(), "file", true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fs, ok := s.index.GetFileSymbols(filepath.ToSlash(file))
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("file %q is not indexed", file)), nil
	}
	return jsonResult(fs)
}

func (s *Server) handleGetSymbolSource(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.sources == nil {
		return mcp.NewToolResultError("source access is disabled"), nil
	}
	args := req.GetArguments()
	id, err := stringArg(args, "id", false)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := stringArg(args, "path", false)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var (
		sym *extractor.Symbol
		ok  bool
	)
	switch {
	case id != "":
		sym, ok = s.index.GetSymbol(id)
	case path != "":
		sym, ok = s.index.LookupByPath(path)
	default:
		return mcp.NewToolResultError("either id or path is required"), nil
	}
	if !ok {
		return mcp.NewToolResultError("symbol not found"), nil
	}

	abs := filepath.Join(s.root, filepath.FromSlash(sym.FilePath))
	text, err := s.sources.Slice(abs, sym.Span.StartByte, sym.Span.EndByte)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("reading source: %v", err)), nil
	}

	return jsonResult(sourceResponse{
		ID:     sym.ID,
		Path:   sym.Path(),
		File:   sym.FilePath,
		Lines:  fmt.Sprintf("%d-%d", sym.Span.StartLine, sym.Span.EndLine),
		Source: text,
	})
}

func (s *Server) handleIndexStats(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp := statsResponse{Index: s.index.GetStats()}
	if s.sources != nil {
		st := s.sources.Stats()
		resp.Sources = &st
	}
	return jsonResult(resp)
}
