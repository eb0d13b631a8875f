package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"unsafe"

	ts "github.com/tree-sitter/go-tree-sitter"
	ts_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	ts_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	ts_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	ts_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// ErrManagerClosed is returned by Parse after Close has been called.
var ErrManagerClosed = errors.New("parser manager closed")

// Grammar identifies one tree-sitter grammar: a language plus its dialect.
// TSX is the only dialect today and is ignored for non-TypeScript languages.
type Grammar struct {
	Lang  Language
	IsTSX bool
}

// String returns the grammar name used in logs ("typescript", "tsx", ...).
func (g Grammar) String() string {
	if g.Lang == LanguageTypeScript && g.IsTSX {
		return "tsx"
	}
	return g.Lang.String()
}

func grammarFor(lang Language, isTSX bool) Grammar {
	return Grammar{Lang: lang, IsTSX: isTSX && lang == LanguageTypeScript}
}

// ParserManager manages tree-sitter parsers for every supported grammar with
// lazy initialization and thread-safe concurrent access.
//
// Memory Management:
// - Parser pools are created lazily on first use per grammar
// - ParserManager owns parser pool instances and must be closed via Close()
// - Callers own Tree instances and must call tree.Close() after use
//
// Thread Safety:
// - Multiple goroutines can parse the same grammar simultaneously
// - Pool creation is synchronized with write locks
//
// Example:
//
//	manager := NewParserManager(logger)
//	defer manager.Close()
//
//	tree, err := manager.Parse(ctx, []byte("def f(): pass"), LanguagePython, false)
//	if err != nil {
//	    return err
//	}
//	defer tree.Close()
type ParserManager struct {
	pools  map[Grammar]*parserPool
	mutex  sync.RWMutex
	closed bool

	// poolSize overrides the CPU-derived pool size when > 0
	poolSize int

	logger *slog.Logger

	parsesCalled atomic.Int64
	parseErrors  atomic.Int64
}

// NewParserManager creates a new ParserManager with CPU-derived pool sizes.
//
// The returned manager must be closed via Close() to free resources.
func NewParserManager(logger *slog.Logger) *ParserManager {
	return NewParserManagerWithPoolSize(logger, 0)
}

// NewParserManagerWithPoolSize creates a ParserManager whose pools hold at most
// poolSize parsers each. A poolSize of 0 selects the CPU-derived default.
func NewParserManagerWithPoolSize(logger *slog.Logger, poolSize int) *ParserManager {
	if logger == nil {
		logger = slog.Default()
	}

	return &ParserManager{
		pools:    make(map[Grammar]*parserPool),
		poolSize: poolSize,
		logger:   logger,
	}
}

// Parse parses source code using the grammar for lang.
//
// The isTSX parameter is only relevant for TypeScript - it enables JSX support.
//
// A tree containing syntax errors is still returned; callers decide whether
// ERROR/MISSING nodes are fatal. Returns a Tree that MUST be closed by the caller.
//
// Blocks while every parser of the grammar is busy; ctx cancels the wait.
func (pm *ParserManager) Parse(ctx context.Context, source []byte, lang Language, isTSX bool) (*ts.Tree, error) {
	if lang == LanguageUnknown {
		return nil, fmt.Errorf("cannot parse unknown language")
	}

	pm.parsesCalled.Add(1)

	g := grammarFor(lang, isTSX)
	pool, err := pm.getOrCreatePool(g)
	if err != nil {
		return nil, fmt.Errorf("failed to get pool for %s: %w", g, err)
	}

	parser, err := pool.acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire %s parser: %w", g, err)
	}
	tree := parser.Parse(source, nil)
	pool.release(parser)

	if tree == nil {
		return nil, fmt.Errorf("parser returned nil tree for %s", g)
	}

	if tree.RootNode().HasError() {
		pm.parseErrors.Add(1)
		pm.logger.Debug("parse tree contains errors", "grammar", g.String())
	}

	return tree, nil
}

// ParseFile parses a file by detecting its language from the file path.
//
// Returns a Tree that MUST be closed by the caller via tree.Close().
func (pm *ParserManager) ParseFile(ctx context.Context, source []byte, filePath string) (*ts.Tree, error) {
	lang := DetectLanguage(filePath)
	if lang == LanguageUnknown {
		return nil, fmt.Errorf("unsupported file extension: %s", filePath)
	}

	return pm.Parse(ctx, source, lang, IsTSXFile(filePath))
}

// Close releases all parser pool resources. After Close, Parse returns ErrManagerClosed.
func (pm *ParserManager) Close() error {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	if pm.closed {
		return nil
	}
	pm.closed = true

	pm.logger.Debug("closing ParserManager",
		"pools", len(pm.pools),
		"parses_called", pm.parsesCalled.Load())

	for _, pool := range pm.pools {
		pool.close()
	}
	pm.pools = make(map[Grammar]*parserPool)

	return nil
}

// getOrCreatePool returns an existing parser pool or creates a new one.
// Thread-safe using double-checked locking pattern.
func (pm *ParserManager) getOrCreatePool(g Grammar) (*parserPool, error) {
	pm.mutex.RLock()
	pool, exists := pm.pools[g]
	closed := pm.closed
	pm.mutex.RUnlock()

	if closed {
		return nil, ErrManagerClosed
	}
	if exists {
		return pool, nil
	}

	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	if pm.closed {
		return nil, ErrManagerClosed
	}
	if pool, exists = pm.pools[g]; exists {
		return pool, nil
	}

	langPtr, err := languagePointer(g)
	if err != nil {
		return nil, err
	}

	size := getPoolSize(pm.poolSize)
	pool = newParserPool(g, langPtr, size, pm.logger)
	pm.pools[g] = pool

	pm.logger.Debug("created parser pool", "grammar", g.String(), "max_size", size)

	return pool, nil
}

// languagePointer returns the tree-sitter language grammar for g.
func languagePointer(g Grammar) (unsafe.Pointer, error) {
	switch g.Lang {
	case LanguagePython:
		return ts_python.Language(), nil
	case LanguageTypeScript:
		if g.IsTSX {
			return ts_typescript.LanguageTSX(), nil
		}
		return ts_typescript.LanguageTypescript(), nil
	case LanguageJavaScript:
		return ts_javascript.Language(), nil
	case LanguageGo:
		return ts_go.Language(), nil
	default:
		return nil, fmt.Errorf("unsupported language: %s", g.Lang)
	}
}

// GetStats returns parser usage statistics.
func (pm *ParserManager) GetStats() ParserStats {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()

	created := 0
	for _, pool := range pm.pools {
		created += pool.getCreatedCount()
	}

	return ParserStats{
		ParsersCreated: created,
		ParsesCalled:   int(pm.parsesCalled.Load()),
		TreesWithError: int(pm.parseErrors.Load()),
	}
}

// ParserStats contains parser usage statistics.
type ParserStats struct {
	// ParsersCreated is the total number of parser instances created
	ParsersCreated int

	// ParsesCalled is the total number of Parse() calls
	ParsesCalled int

	// TreesWithError counts parses whose tree contained ERROR or MISSING nodes
	TreesWithError int
}
