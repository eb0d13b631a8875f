package frontend

import (
	"github.com/gnana997/symdex/pkg/syntax"
	ts "github.com/tree-sitter/go-tree-sitter"
)

// lowerPython maps a tree-sitter-python tree onto the generic syntax tree.
func lowerPython(root *ts.Node, source []byte) (*syntax.Node, error) {
	l := pyLowerer{src: source}
	return &syntax.Node{
		Kind:     syntax.KindModule,
		Span:     spanOf(root),
		Children: l.block(root),
	}, nil
}

type pyLowerer struct {
	src []byte
}

func (l pyLowerer) text(n *ts.Node) string { return nodeText(n, l.src) }

// block lowers each statement of a module or block in order.
func (l pyLowerer) block(n *ts.Node) []*syntax.Node {
	if n == nil {
		return nil
	}
	var out []*syntax.Node
	for i := uint(0); i < n.NamedChildCount(); i++ {
		out = append(out, l.lower(n.NamedChild(i))...)
	}
	return out
}

func (l pyLowerer) lower(n *ts.Node) []*syntax.Node {
	if n == nil {
		return nil
	}
	switch n.Kind() {
	case "decorated_definition":
		return l.decorated(n)
	case "class_definition":
		return []*syntax.Node{l.class(n)}
	case "function_definition":
		return []*syntax.Node{l.function(n)}
	case "lambda":
		return []*syntax.Node{l.lambda(n)}
	case "assignment":
		return l.assignment(n)
	case "comment", "identifier", "string", "integer", "float", "true", "false", "none":
		return nil
	default:
		return nested(n, l.collect(n))
	}
}

// collect gathers declarations below a non-declaration node without adding
// a NestedBlock per intermediate level.
func (l pyLowerer) collect(n *ts.Node) []*syntax.Node {
	var out []*syntax.Node
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		switch c.Kind() {
		case "decorated_definition", "class_definition", "function_definition", "lambda", "assignment":
			out = append(out, l.lower(c)...)
		default:
			out = append(out, l.collect(c)...)
		}
	}
	return out
}

func (l pyLowerer) decorated(n *ts.Node) []*syntax.Node {
	var out []*syntax.Node
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		if c.Kind() != "decorator" {
			continue
		}
		expr := c.NamedChild(0)
		out = append(out, &syntax.Node{
			Kind: syntax.KindDecorator,
			Span: spanOf(c),
			Text: l.text(expr),
		})
	}
	def := n.ChildByFieldName("definition")
	if def == nil {
		return out
	}
	return append(out, l.lower(def)...)
}

func (l pyLowerer) class(n *ts.Node) *syntax.Node {
	cls := &syntax.Node{
		Kind: syntax.KindClassDef,
		Span: spanOf(n),
		Name: l.text(n.ChildByFieldName("name")),
	}
	if supers := n.ChildByFieldName("superclasses"); supers != nil {
		for i := uint(0); i < supers.NamedChildCount(); i++ {
			base := supers.NamedChild(i)
			switch base.Kind() {
			case "keyword_argument", "comment":
				// metaclass=... and friends are not bases
			default:
				cls.Bases = append(cls.Bases, l.text(base))
			}
		}
	}
	cls.Children = l.block(n.ChildByFieldName("body"))
	return cls
}

func (l pyLowerer) function(n *ts.Node) *syntax.Node {
	fn := &syntax.Node{
		Kind:  syntax.KindFunctionDef,
		Span:  spanOf(n),
		Name:  l.text(n.ChildByFieldName("name")),
		Async: hasAnonymousChild(n, "async"),
	}
	if ret := n.ChildByFieldName("return_type"); ret != nil {
		fn.Annotation = l.text(ret)
	}
	fn.Children = append(l.parameters(n.ChildByFieldName("parameters")), l.block(n.ChildByFieldName("body"))...)
	return fn
}

func (l pyLowerer) lambda(n *ts.Node) *syntax.Node {
	lam := &syntax.Node{
		Kind: syntax.KindLambda,
		Span: spanOf(n),
		Text: l.text(n),
	}
	lam.Children = append(l.parameters(n.ChildByFieldName("parameters")), l.lower(n.ChildByFieldName("body"))...)
	return lam
}

func (l pyLowerer) assignment(n *ts.Node) []*syntax.Node {
	right := n.ChildByFieldName("right")
	if right == nil {
		return nil
	}
	name := ""
	if left := n.ChildByFieldName("left"); left != nil && left.Kind() == "identifier" {
		name = l.text(left)
	}
	return assignment(n, name, right, right.Kind() == "lambda", l.lower(right))
}

// parameters lowers a parameters or lambda_parameters node.
func (l pyLowerer) parameters(n *ts.Node) []*syntax.Node {
	if n == nil {
		return nil
	}
	var out []*syntax.Node
	for i := uint(0); i < n.NamedChildCount(); i++ {
		p := n.NamedChild(i)
		param := &syntax.Node{Kind: syntax.KindParameter, Span: spanOf(p), Text: l.text(p)}

		switch p.Kind() {
		case "identifier", "list_splat_pattern", "dictionary_splat_pattern", "tuple_pattern":
			param.Name = l.text(p)
		case "typed_parameter":
			param.Name = l.text(p.NamedChild(0))
			param.Annotation = l.text(p.ChildByFieldName("type"))
		case "default_parameter", "typed_default_parameter":
			param.Name = l.text(p.ChildByFieldName("name"))
			param.Annotation = l.text(p.ChildByFieldName("type"))
			if value := p.ChildByFieldName("value"); value != nil {
				param.Default = l.text(value)
				param.Children = l.lower(value)
			}
		default:
			// keyword_separator (*) and positional_separator (/) carry no name
			continue
		}
		out = append(out, param)
	}
	return out
}
