package frontend

import (
	"github.com/gnana997/symdex/pkg/syntax"
	ts "github.com/tree-sitter/go-tree-sitter"
)

// lowerGo maps tree-sitter-go trees onto the generic syntax tree.
//
// Named types become ClassDefs whose bases are the embedded struct fields
// or embedded interfaces. A method is lowered into the ClassDef of its
// receiver type when that type is declared in the same file, and stays at
// module level otherwise.
func lowerGo(root *ts.Node, source []byte) (*syntax.Node, error) {
	l := goLowerer{src: source}

	type method struct {
		receiver string
		fn       *syntax.Node
	}
	var (
		children []*syntax.Node
		methods  []method
		types    = make(map[string]*syntax.Node)
	)
	for i := uint(0); i < root.NamedChildCount(); i++ {
		c := root.NamedChild(i)
		switch c.Kind() {
		case "method_declaration":
			methods = append(methods, method{receiver: l.receiverType(c), fn: l.function(c)})
		case "type_declaration":
			for _, n := range l.typeDeclaration(c) {
				types[n.Name] = n
				children = append(children, n)
			}
		default:
			children = append(children, l.lower(c)...)
		}
	}

	for _, m := range methods {
		if cls, ok := types[m.receiver]; ok {
			cls.Children = append(cls.Children, m.fn)
			continue
		}
		children = append(children, m.fn)
	}

	return &syntax.Node{
		Kind:     syntax.KindModule,
		Span:     spanOf(root),
		Children: children,
	}, nil
}

type goLowerer struct {
	src []byte
}

func (l goLowerer) text(n *ts.Node) string { return nodeText(n, l.src) }

func isGoDeclaration(kind string) bool {
	switch kind {
	case "function_declaration", "method_declaration", "func_literal", "type_declaration",
		"short_var_declaration", "assignment_statement", "var_spec":
		return true
	}
	return false
}

func (l goLowerer) lower(n *ts.Node) []*syntax.Node {
	if n == nil {
		return nil
	}
	switch n.Kind() {
	case "function_declaration", "method_declaration":
		return []*syntax.Node{l.function(n)}
	case "func_literal":
		return []*syntax.Node{l.lambda(n)}
	case "type_declaration":
		return l.typeDeclaration(n)
	case "short_var_declaration", "assignment_statement":
		return l.binding(n, l.identifiers(n.ChildByFieldName("left")), n.ChildByFieldName("right"))
	case "var_spec":
		return l.binding(n, l.identifiers(n), n.ChildByFieldName("value"))
	case "comment", "package_clause", "import_declaration", "const_declaration",
		"identifier", "interpreted_string_literal", "raw_string_literal", "int_literal":
		return nil
	default:
		return nested(n, l.collect(n))
	}
}

func (l goLowerer) collect(n *ts.Node) []*syntax.Node {
	if n == nil {
		return nil
	}
	var out []*syntax.Node
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		if isGoDeclaration(c.Kind()) {
			out = append(out, l.lower(c)...)
		} else {
			out = append(out, l.collect(c)...)
		}
	}
	return out
}

// typeDeclaration lowers each type_spec of a possibly grouped declaration.
// Aliases declare no new type and are skipped.
func (l goLowerer) typeDeclaration(n *ts.Node) []*syntax.Node {
	var out []*syntax.Node
	for i := uint(0); i < n.NamedChildCount(); i++ {
		if c := n.NamedChild(i); c.Kind() == "type_spec" {
			out = append(out, l.typeSpec(c))
		}
	}
	return out
}

func (l goLowerer) typeSpec(n *ts.Node) *syntax.Node {
	cls := &syntax.Node{
		Kind: syntax.KindClassDef,
		Span: spanOf(n),
		Name: l.text(n.ChildByFieldName("name")),
	}
	t := n.ChildByFieldName("type")
	if t == nil {
		return cls
	}
	switch t.Kind() {
	case "struct_type":
		cls.Bases = l.embeddedFields(t)
	case "interface_type":
		for i := uint(0); i < t.NamedChildCount(); i++ {
			c := t.NamedChild(i)
			switch c.Kind() {
			case "method_elem":
				cls.Children = append(cls.Children, l.function(c))
			case "type_elem":
				// a union is a constraint, not an embedding
				if c.NamedChildCount() == 1 {
					cls.Bases = append(cls.Bases, l.text(c.NamedChild(0)))
				}
			}
		}
	}
	return cls
}

func (l goLowerer) embeddedFields(structType *ts.Node) []string {
	var bases []string
	for i := uint(0); i < structType.NamedChildCount(); i++ {
		list := structType.NamedChild(i)
		if list.Kind() != "field_declaration_list" {
			continue
		}
		for j := uint(0); j < list.NamedChildCount(); j++ {
			f := list.NamedChild(j)
			if f.Kind() == "field_declaration" && f.ChildByFieldName("name") == nil {
				bases = append(bases, l.text(f.ChildByFieldName("type")))
			}
		}
	}
	return bases
}

// receiverType returns the bare type name of a method receiver:
// (s *Stack[T]) -> Stack.
func (l goLowerer) receiverType(n *ts.Node) string {
	recv := n.ChildByFieldName("receiver")
	if recv == nil || recv.NamedChildCount() == 0 {
		return ""
	}
	t := recv.NamedChild(0).ChildByFieldName("type")
	for t != nil {
		switch t.Kind() {
		case "pointer_type", "parenthesized_type":
			t = t.NamedChild(0)
		case "generic_type":
			t = t.ChildByFieldName("type")
		default:
			return l.text(t)
		}
	}
	return ""
}

// function lowers function and method declarations and interface method
// elements. The receiver is not a parameter.
func (l goLowerer) function(n *ts.Node) *syntax.Node {
	fn := &syntax.Node{
		Kind:       syntax.KindFunctionDef,
		Span:       spanOf(n),
		Name:       l.text(n.ChildByFieldName("name")),
		Annotation: l.text(n.ChildByFieldName("result")),
	}
	fn.Children = append(l.parameters(n.ChildByFieldName("parameters")), l.collect(n.ChildByFieldName("body"))...)
	return fn
}

func (l goLowerer) lambda(n *ts.Node) *syntax.Node {
	lam := &syntax.Node{
		Kind:       syntax.KindLambda,
		Span:       spanOf(n),
		Text:       l.text(n),
		Annotation: l.text(n.ChildByFieldName("result")),
	}
	lam.Children = append(l.parameters(n.ChildByFieldName("parameters")), l.collect(n.ChildByFieldName("body"))...)
	return lam
}

// parameters emits one Parameter per declared name. Unnamed parameters,
// as in interface methods, are named "_".
func (l goLowerer) parameters(n *ts.Node) []*syntax.Node {
	if n == nil {
		return nil
	}
	var out []*syntax.Node
	for i := uint(0); i < n.NamedChildCount(); i++ {
		p := n.NamedChild(i)
		typ := l.text(p.ChildByFieldName("type"))
		switch p.Kind() {
		case "parameter_declaration":
			names := l.identifiers(p)
			if len(names) == 0 {
				names = []string{"_"}
			}
			for _, name := range names {
				out = append(out, &syntax.Node{
					Kind:       syntax.KindParameter,
					Span:       spanOf(p),
					Text:       l.text(p),
					Name:       name,
					Annotation: typ,
				})
			}
		case "variadic_parameter_declaration":
			name := l.text(p.ChildByFieldName("name"))
			if name == "" {
				name = "_"
			}
			out = append(out, &syntax.Node{
				Kind:       syntax.KindParameter,
				Span:       spanOf(p),
				Text:       l.text(p),
				Name:       name,
				Annotation: "..." + typ,
			})
		}
	}
	return out
}

// identifiers returns the texts of n's identifier children, or nil when any
// named child is something else (a selector or index target).
func (l goLowerer) identifiers(n *ts.Node) []string {
	if n == nil {
		return nil
	}
	var names []string
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		switch c.Kind() {
		case "identifier":
			names = append(names, l.text(c))
		case "expression_list", "comment":
		default:
			if n.Kind() == "expression_list" {
				return nil
			}
		}
	}
	return names
}

// binding lowers names := values. A single name bound to a single
// func literal produces the alias form.
func (l goLowerer) binding(n *ts.Node, names []string, values *ts.Node) []*syntax.Node {
	if values == nil {
		return nil
	}
	if len(names) == 1 && values.NamedChildCount() == 1 {
		value := values.NamedChild(0)
		return assignment(n, names[0], value, value.Kind() == "func_literal", l.lower(value))
	}
	return assignment(n, "", values, false, l.collect(values))
}
