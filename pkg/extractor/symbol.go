package extractor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/gnana997/symdex/pkg/parser"
	"github.com/gnana997/symdex/pkg/syntax"
)

// walker performs the single pre-order traversal of one syntax tree and
// emits symbols with depth markers. It does not compute parents or paths.
type walker struct {
	file string
	lang parser.Language
	out  []*Symbol
}

func (w *walker) emit(s *Symbol) {
	s.FilePath = w.file
	s.Language = w.lang
	w.out = append(w.out, s)
}

func (w *walker) module(root *syntax.Node) {
	name := root.Name
	if name == "" {
		name = ModuleName(w.file)
	}
	w.emit(&Symbol{Kind: SymbolKindModule, Name: name, Span: root.Span})
	w.body(root.Children, 1, SymbolKindModule)
}

// body walks the nodes of one scope. depth is the depth given to
// declarations found here and owner is the kind of the enclosing symbol.
func (w *walker) body(nodes []*syntax.Node, depth int, owner SymbolKind) {
	var decorators []Annotation
	for _, n := range nodes {
		switch n.Kind {
		case syntax.KindDecorator:
			decorators = append(decorators, Annotation{Kind: AnnotationDecorator, Raw: n.Text})
			continue
		case syntax.KindClassDef:
			w.class(n, depth, owner, decorators)
		case syntax.KindFunctionDef:
			w.function(n, depth, owner, decorators)
		case syntax.KindLambda:
			w.lambda(n, depth, "")
		case syntax.KindAssignment:
			if len(n.Children) == 1 && n.Children[0].Kind == syntax.KindLambda && n.Name != "" {
				w.lambda(n.Children[0], depth, n.Name)
			} else {
				w.body(n.Children, depth, owner)
			}
		case syntax.KindNestedBlock, syntax.KindParameter:
			// transparent: declarations inside belong to the current scope
			w.body(n.Children, depth, owner)
		}
		decorators = nil
	}
}

func (w *walker) class(n *syntax.Node, depth int, owner SymbolKind, decorators []Annotation) {
	kind := SymbolKindClass
	if owner != SymbolKindModule {
		kind = SymbolKindNestedClass
	}
	w.emit(&Symbol{
		Kind:       kind,
		Name:       n.Name,
		Decorators: decorators,
		Bases:      append([]string(nil), n.Bases...),
		Span:       n.Span,
		depth:      depth,
	})
	w.body(n.Children, depth+1, kind)
}

func (w *walker) function(n *syntax.Node, depth int, owner SymbolKind, decorators []Annotation) {
	kind := SymbolKindFunction
	if owner.IsClass() {
		kind = SymbolKindMethod
	}
	sym := &Symbol{
		Kind:       kind,
		Name:       n.Name,
		Decorators: decorators,
		IsAsync:    n.Async,
		Span:       n.Span,
		depth:      depth,
	}
	if n.Annotation != "" {
		sym.ReturnAnnotation = &Annotation{Kind: AnnotationReturn, Raw: n.Annotation}
	}
	sym.Parameters = parameters(n.Children)
	w.emit(sym)
	w.body(n.Children, depth+1, kind)
}

// lambda emits a Lambda symbol. alias is the bound name for name = lambda,
// empty for inline lambdas, which get a span-derived name.
func (w *walker) lambda(n *syntax.Node, depth int, alias string) {
	name := alias
	if name == "" {
		name = LambdaName(n.Span)
	}
	sym := &Symbol{
		Kind:       SymbolKindLambda,
		Name:       name,
		Alias:      alias,
		IsAsync:    n.Async,
		Parameters: parameters(n.Children),
		Span:       n.Span,
		depth:      depth,
	}
	if n.Annotation != "" {
		sym.ReturnAnnotation = &Annotation{Kind: AnnotationReturn, Raw: n.Annotation}
	}
	w.emit(sym)
	w.body(n.Children, depth+1, SymbolKindLambda)
}

func parameters(children []*syntax.Node) []Parameter {
	var params []Parameter
	for _, c := range children {
		if c.Kind != syntax.KindParameter {
			break
		}
		p := Parameter{Name: c.Name, DefaultExpr: c.Default}
		if c.Annotation != "" {
			p.TypeAnnotation = &Annotation{Kind: AnnotationParameter, Raw: c.Annotation}
		}
		params = append(params, p)
	}
	return params
}

// LambdaName is the synthetic name of an anonymous lambda: <lambda@line:col>.
func LambdaName(span syntax.Span) string {
	return fmt.Sprintf("<lambda@%d:%d>", span.StartLine, span.StartColumn)
}

// ModuleName derives a dotted module name from a file path:
// pkg/models.py -> pkg.models, pkg/__init__.py -> pkg, src/index.ts -> src.index.
func ModuleName(filePath string) string {
	p := path.Clean(filepath.ToSlash(filePath))
	p = strings.TrimPrefix(p, "./")
	p = strings.TrimLeft(p, "/")
	p = strings.TrimSuffix(p, path.Ext(p))

	if base := path.Base(p); base == "__init__" {
		p = path.Dir(p)
	}
	if p == "" || p == "." {
		return "__main__"
	}
	return strings.ReplaceAll(p, "/", ".")
}

// symbolID derives an identifier from the file, the qualified path and the span.
func symbolID(s *Symbol) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d:%d-%d:%d",
		s.FilePath, s.Path(),
		s.Span.StartLine, s.Span.StartColumn, s.Span.EndLine, s.Span.EndColumn)
	return "sym:" + hex.EncodeToString(h.Sum(nil))[:32]
}
