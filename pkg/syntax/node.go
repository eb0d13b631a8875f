// Package syntax defines the language-neutral tree produced by front-end
// adapters and consumed by the symbol extractor.
//
// A Node is a tagged union: Kind selects which of the optional fields are
// meaningful. Trees are immutable once an adapter returns them.
package syntax

import "fmt"

// NodeKind discriminates syntax nodes.
type NodeKind int

const (
	KindModule NodeKind = iota
	KindClassDef
	KindFunctionDef
	KindDecorator
	KindParameter
	KindAssignment
	KindLambda
	KindNestedBlock
)

var kindNames = [...]string{
	KindModule:      "Module",
	KindClassDef:    "ClassDef",
	KindFunctionDef: "FunctionDef",
	KindDecorator:   "Decorator",
	KindParameter:   "Parameter",
	KindAssignment:  "Assignment",
	KindLambda:      "Lambda",
	KindNestedBlock: "NestedBlock",
}

func (k NodeKind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("NodeKind(%d)", int(k))
}

// Valid reports whether k is one of the closed set of node kinds.
func (k NodeKind) Valid() bool {
	return k >= KindModule && k <= KindNestedBlock
}

// Span is a source range. Lines and columns are 1-based, byte offsets 0-based.
type Span struct {
	StartLine   int `json:"start_line"`
	StartColumn int `json:"start_column"`
	EndLine     int `json:"end_line"`
	EndColumn   int `json:"end_column"`
	StartByte   int `json:"start_byte"`
	EndByte     int `json:"end_byte"`
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d-%d:%d", s.StartLine, s.StartColumn, s.EndLine, s.EndColumn)
}

// Node is one node of the generic syntax tree.
//
// Field use by kind:
//
//	Module       Name (module name), Children
//	ClassDef     Name, Bases, Children (body)
//	FunctionDef  Name, Async, Annotation (return), Children (parameters, then body)
//	Decorator    Text (expression after '@')
//	Parameter    Name, Default, Annotation (type), Children (declarations in the default)
//	Assignment   Name (single identifier target, else empty), Children
//	Lambda       Async, Children (parameters, then body)
//	NestedBlock  Children
type Node struct {
	Kind NodeKind
	Span Span

	// Text is the raw source text of the node, or of the decorator expression.
	Text string

	Name       string
	Bases      []string
	Async      bool
	Default    string
	Annotation string

	Children []*Node
}

// Walk visits n and its descendants in pre-order. Returning false from fn
// skips the children of the current node.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		Walk(c, fn)
	}
}

// IsDeclaration reports whether k produces a symbol.
func (k NodeKind) IsDeclaration() bool {
	return k == KindClassDef || k == KindFunctionDef || k == KindLambda
}
