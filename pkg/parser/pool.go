package parser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	"github.com/gnana997/symdex/pkg/util"
	ts "github.com/tree-sitter/go-tree-sitter"
)

// parserPool hands out tree-sitter parsers bound to one grammar.
//
// Parsers are created lazily up to maxSize; once that many exist, acquire
// waits on the channel until one is released or the context ends.
type parserPool struct {
	pool    chan *ts.Parser
	langPtr unsafe.Pointer
	grammar Grammar
	maxSize int

	// mutex guards created
	mutex   sync.Mutex
	created int

	logger *slog.Logger
}

func newParserPool(g Grammar, langPtr unsafe.Pointer, maxSize int, logger *slog.Logger) *parserPool {
	return &parserPool{
		pool:    make(chan *ts.Parser, maxSize),
		langPtr: langPtr,
		grammar: g,
		maxSize: maxSize,
		logger:  logger,
	}
}

// acquire returns an idle parser, creates a new one while under maxSize,
// or waits for a release.
func (p *parserPool) acquire(ctx context.Context) (*ts.Parser, error) {
	select {
	case parser, ok := <-p.pool:
		if !ok {
			return nil, ErrManagerClosed
		}
		return parser, nil
	default:
	}

	parser, err := p.tryCreate()
	if err != nil || parser != nil {
		return parser, err
	}

	select {
	case parser, ok := <-p.pool:
		if !ok {
			return nil, ErrManagerClosed
		}
		return parser, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// tryCreate creates a parser if the pool has not reached maxSize.
// It returns (nil, nil) when the pool is full.
func (p *parserPool) tryCreate() (*ts.Parser, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.created >= p.maxSize {
		return nil, nil
	}

	parser := ts.NewParser()
	if parser == nil {
		return nil, fmt.Errorf("failed to create parser")
	}
	if err := parser.SetLanguage(ts.NewLanguage(p.langPtr)); err != nil {
		parser.Close()
		return nil, fmt.Errorf("failed to set language %s: %w", p.grammar, err)
	}

	p.created++
	p.logger.Debug("created parser", "grammar", p.grammar.String(), "pool_size", p.created)

	return parser, nil
}

// release returns a parser to the pool. Never blocks.
func (p *parserPool) release(parser *ts.Parser) {
	if parser == nil {
		return
	}

	defer func() {
		// the channel is closed once the manager shuts down
		if recover() != nil {
			parser.Close()
		}
	}()

	select {
	case p.pool <- parser:
	default:
		parser.Close()
		p.logger.Warn("parser pool full, closing excess parser", "grammar", p.grammar.String())
	}
}

// close releases all idle parsers. Parsers still checked out are closed on release.
func (p *parserPool) close() {
	close(p.pool)

	count := 0
	for parser := range p.pool {
		parser.Close()
		count++
	}

	p.logger.Debug("closed parser pool", "grammar", p.grammar.String(), "parsers_closed", count)
}

func (p *parserPool) getCreatedCount() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.created
}

// getPoolSize returns the pool size to use. An override of 0 selects the
// CPU-derived default, which matches the extraction worker count so workers
// never wait on parsers.
func getPoolSize(override int) int {
	return util.GetOptimalPoolSizeWithOverride(override)
}
