// Package extractor turns one file's syntax tree into a flat, ordered set of
// symbols: classes, functions, methods, nested classes and lambdas, with
// their decorators, bases, parameters and qualified paths.
package extractor

import (
	"fmt"
	"strings"
	"time"

	"github.com/gnana997/symdex/pkg/parser"
	"github.com/gnana997/symdex/pkg/syntax"
)

// FileResult is the outcome of one extraction pass over one file.
//
// Symbols are in declaration (pre-order) order; the module symbol is first.
// A FileResult is never mutated after Extract returns.
type FileResult struct {
	FilePath    string          `json:"file_path"`
	Language    parser.Language `json:"language"`
	PassID      string          `json:"pass_id"`
	ContentHash string          `json:"content_hash"`
	ExtractedAt time.Time       `json:"extracted_at"`
	Symbols     []*Symbol       `json:"symbols"`
}

// Module returns the module root symbol.
func (r *FileResult) Module() *Symbol {
	if len(r.Symbols) == 0 {
		return nil
	}
	return r.Symbols[0]
}

// SymbolKind identifies the type of symbol.
type SymbolKind string

const (
	SymbolKindModule      SymbolKind = "module"
	SymbolKindClass       SymbolKind = "class"
	SymbolKindNestedClass SymbolKind = "nested_class"
	SymbolKindFunction    SymbolKind = "function"
	SymbolKindMethod      SymbolKind = "method"
	SymbolKindLambda      SymbolKind = "lambda"
)

// IsClass reports whether k is a class or nested class.
func (k SymbolKind) IsClass() bool {
	return k == SymbolKindClass || k == SymbolKindNestedClass
}

// AnnotationKind says what an annotation is attached to.
type AnnotationKind string

const (
	AnnotationDecorator AnnotationKind = "decorator"
	AnnotationParameter AnnotationKind = "parameter"
	AnnotationReturn    AnnotationKind = "return"
)

// Annotation is a decorator or type hint kept as text.
//
// For decorators Name is the dotted callable and RawArgs the text between
// the call parentheses. For type hints Name is the whitespace-canonical
// hint text. Malformed marks text that could not be read even syntactically.
type Annotation struct {
	Name      string         `json:"name"`
	Kind      AnnotationKind `json:"kind"`
	RawArgs   string         `json:"raw_args,omitempty"`
	Raw       string         `json:"raw"`
	Malformed bool           `json:"malformed,omitempty"`
}

// Parameter is one declared parameter of a function, method or lambda.
type Parameter struct {
	Name           string      `json:"name"`
	DefaultExpr    string      `json:"default_expr,omitempty"`
	TypeAnnotation *Annotation `json:"type_annotation,omitempty"`
}

// QualifiedPath is the ancestor-name sequence of a symbol, starting with
// its module name.
type QualifiedPath []string

// String joins the path with dots.
func (p QualifiedPath) String() string {
	return strings.Join(p, ".")
}

// Relative drops the module element: pkg.models.User.save -> User.save.
func (p QualifiedPath) Relative() QualifiedPath {
	if len(p) <= 1 {
		return QualifiedPath{}
	}
	return p[1:]
}

// Extends reports whether p is parent extended by exactly one name.
func (p QualifiedPath) Extends(parent QualifiedPath) bool {
	if len(p) != len(parent)+1 {
		return false
	}
	for i := range parent {
		if p[i] != parent[i] {
			return false
		}
	}
	return true
}

// Symbol is one extracted declaration.
type Symbol struct {
	ID            string          `json:"id"`
	Kind          SymbolKind      `json:"kind"`
	Name          string          `json:"name"`
	Alias         string          `json:"alias,omitempty"`
	QualifiedPath QualifiedPath   `json:"qualified_path"`
	ParentID      string          `json:"parent_id,omitempty"`
	FilePath      string          `json:"file_path"`
	Language      parser.Language `json:"language"`

	Decorators       []Annotation `json:"decorators,omitempty"`
	Bases            []string     `json:"bases,omitempty"`
	IsAsync          bool         `json:"is_async"`
	Parameters       []Parameter  `json:"parameters,omitempty"`
	ReturnAnnotation *Annotation  `json:"return_annotation,omitempty"`

	// Shadowed is set on an earlier declaration whose path is declared
	// again later in the same file.
	Shadowed bool `json:"shadowed,omitempty"`

	Span syntax.Span `json:"span"`

	// depth is the scope depth recorded during traversal; the resolver
	// turns it into ParentID and QualifiedPath.
	depth int
}

// Path returns the dotted qualified path.
func (s *Symbol) Path() string {
	return s.QualifiedPath.String()
}

// Key is unique within a file: the path, or path@line:col for a shadowed
// redeclaration.
func (s *Symbol) Key() string {
	if s.Shadowed {
		return fmt.Sprintf("%s@%d:%d", s.Path(), s.Span.StartLine, s.Span.StartColumn)
	}
	return s.Path()
}

// DecoratorNames returns decorator names in source order.
func (s *Symbol) DecoratorNames() []string {
	names := make([]string, 0, len(s.Decorators))
	for _, d := range s.Decorators {
		names = append(names, d.Name)
	}
	return names
}

// HasDecorator reports whether the symbol carries a decorator named name.
func (s *Symbol) HasDecorator(name string) bool {
	for _, d := range s.Decorators {
		if d.Name == name {
			return true
		}
	}
	return false
}
