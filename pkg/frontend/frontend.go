// Package frontend turns source text into the generic syntax tree.
//
// Each supported language has a lowering function that maps a tree-sitter
// concrete syntax tree onto syntax.Node values. Lowering functions are plain
// functions registered in a dispatch table keyed by language tag.
package frontend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gnana997/symdex/pkg/parser"
	"github.com/gnana997/symdex/pkg/syntax"
	ts "github.com/tree-sitter/go-tree-sitter"
)

// LowerFunc maps an error-free tree-sitter tree onto the generic syntax tree.
// The returned root must be a syntax.KindModule node.
type LowerFunc func(root *ts.Node, source []byte) (*syntax.Node, error)

func defaultAdapters() map[parser.Language]LowerFunc {
	return map[parser.Language]LowerFunc{
		parser.LanguagePython:     lowerPython,
		parser.LanguageTypeScript: lowerTypeScript,
		parser.LanguageJavaScript: lowerTypeScript,
		parser.LanguageGo:         lowerGo,
	}
}

// Frontend parses source text with pooled tree-sitter parsers and lowers the
// result with the adapter registered for the language.
//
// Thread Safety: safe for concurrent use once adapters are registered.
type Frontend struct {
	parsers  *parser.ParserManager
	mu       sync.RWMutex
	adapters map[parser.Language]LowerFunc
	logger   *slog.Logger
}

// New creates a Frontend with the built-in adapters for every parser.SupportedLanguages entry.
func New(parsers *parser.ParserManager, logger *slog.Logger) *Frontend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Frontend{
		parsers:  parsers,
		adapters: defaultAdapters(),
		logger:   logger,
	}
}

// Register installs or replaces the adapter for lang.
func (f *Frontend) Register(lang parser.Language, fn LowerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adapters[lang] = fn
}

// Supports reports whether an adapter is registered for lang.
func (f *Frontend) Supports(lang parser.Language) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.adapters[lang]
	return ok
}

// Parse produces the generic syntax tree for source.
//
// Malformed source yields a *syntax.ParseError locating the first syntax
// error in the tree. Other errors (unknown language, parser shutdown) are
// returned wrapped.
func (f *Frontend) Parse(ctx context.Context, source []byte, lang parser.Language, isTSX bool) (*syntax.Node, error) {
	f.mu.RLock()
	lower, ok := f.adapters[lang]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no front-end adapter for language %q", lang)
	}

	tree, err := f.parsers.Parse(ctx, source, lang, isTSX)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		pe := firstSyntaxError(root, source)
		f.logger.Debug("syntax error", "language", lang.String(), "line", pe.Line, "column", pe.Column)
		return nil, pe
	}

	return lower(root, source)
}

// firstSyntaxError returns the first ERROR or MISSING node in pre-order.
func firstSyntaxError(root *ts.Node, source []byte) *syntax.ParseError {
	var found *ts.Node
	var visit func(n *ts.Node)
	visit = func(n *ts.Node) {
		if found != nil || n == nil {
			return
		}
		if n.IsError() || n.IsMissing() {
			found = n
			return
		}
		if !n.HasError() {
			return
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			visit(n.Child(i))
		}
	}
	visit(root)

	if found == nil {
		// HasError was set but no node carries it; report the root.
		return &syntax.ParseError{Line: 1, Column: 1, Message: "syntax error"}
	}

	pos := found.StartPosition()
	pe := &syntax.ParseError{Line: int(pos.Row) + 1, Column: int(pos.Column) + 1}
	if found.IsMissing() {
		pe.Message = fmt.Sprintf("missing %s", found.Kind())
	} else {
		pe.Message = fmt.Sprintf("syntax error near %q", snippet(found.Utf8Text(source)))
	}
	return pe
}

func snippet(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	const max = 24
	if len(text) > max {
		text = text[:max] + "..."
	}
	return strings.TrimSpace(text)
}

func spanOf(n *ts.Node) syntax.Span {
	start, end := n.StartPosition(), n.EndPosition()
	return syntax.Span{
		StartLine:   int(start.Row) + 1,
		StartColumn: int(start.Column) + 1,
		EndLine:     int(end.Row) + 1,
		EndColumn:   int(end.Column) + 1,
		StartByte:   int(n.StartByte()),
		EndByte:     int(n.EndByte()),
	}
}

func nodeText(n *ts.Node, source []byte) string {
	if n == nil {
		return ""
	}
	return n.Utf8Text(source)
}

func hasAnonymousChild(n *ts.Node, kind string) bool {
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		if c != nil && !c.IsNamed() && c.Kind() == kind {
			return true
		}
	}
	return false
}

// nested wraps declarations found beneath a non-declaration construct.
func nested(n *ts.Node, children []*syntax.Node) []*syntax.Node {
	if len(children) == 0 {
		return nil
	}
	return []*syntax.Node{{Kind: syntax.KindNestedBlock, Span: spanOf(n), Children: children}}
}

// assignment builds the Assignment for name = <value>. A lambda value bound
// to a plain identifier becomes the assignment's only, direct child; any
// other value with nested declarations is wrapped in a NestedBlock.
func assignment(n *ts.Node, name string, value *ts.Node, isLambda bool, lowered []*syntax.Node) []*syntax.Node {
	if len(lowered) == 0 {
		return nil
	}
	assign := &syntax.Node{Kind: syntax.KindAssignment, Span: spanOf(n), Name: name}
	if isLambda && name != "" && len(lowered) == 1 && lowered[0].Kind == syntax.KindLambda {
		assign.Children = lowered
	} else if len(lowered) == 1 && lowered[0].Kind == syntax.KindNestedBlock {
		assign.Children = lowered
	} else {
		assign.Children = nested(value, lowered)
	}
	return []*syntax.Node{assign}
}
