package frontend

import (
	"fmt"
	"strings"

	"github.com/gnana997/symdex/pkg/syntax"
	ts "github.com/tree-sitter/go-tree-sitter"
)

// lowerTypeScript maps tree-sitter-typescript and tree-sitter-javascript
// trees onto the generic syntax tree. The two grammars share node names for
// every construct lowered here.
func lowerTypeScript(root *ts.Node, source []byte) (*syntax.Node, error) {
	l := tsLowerer{src: source}
	return &syntax.Node{
		Kind:     syntax.KindModule,
		Span:     spanOf(root),
		Children: l.block(root),
	}, nil
}

type tsLowerer struct {
	src []byte
}

func (l tsLowerer) text(n *ts.Node) string { return nodeText(n, l.src) }

func (l tsLowerer) block(n *ts.Node) []*syntax.Node {
	if n == nil {
		return nil
	}
	var out []*syntax.Node
	for i := uint(0); i < n.NamedChildCount(); i++ {
		out = append(out, l.lower(n.NamedChild(i))...)
	}
	return out
}

func isTSDeclaration(kind string) bool {
	switch kind {
	case "class_declaration", "abstract_class_declaration", "class",
		"function_declaration", "generator_function_declaration", "function_signature",
		"arrow_function", "function_expression", "function", "generator_function",
		"lexical_declaration", "variable_declaration", "assignment_expression",
		"export_statement":
		return true
	}
	return false
}

func (l tsLowerer) lower(n *ts.Node) []*syntax.Node {
	if n == nil {
		return nil
	}
	switch n.Kind() {
	case "export_statement":
		return l.export(n)
	case "class_declaration", "abstract_class_declaration", "class":
		return l.class(n)
	case "function_declaration", "generator_function_declaration", "function_signature":
		return []*syntax.Node{l.function(n)}
	case "arrow_function", "function_expression", "function", "generator_function":
		return []*syntax.Node{l.lambda(n)}
	case "lexical_declaration", "variable_declaration":
		var out []*syntax.Node
		for i := uint(0); i < n.NamedChildCount(); i++ {
			d := n.NamedChild(i)
			if d.Kind() == "variable_declarator" {
				out = append(out, l.binding(d, d.ChildByFieldName("name"), d.ChildByFieldName("value"))...)
			}
		}
		return out
	case "assignment_expression":
		return l.binding(n, n.ChildByFieldName("left"), n.ChildByFieldName("right"))
	case "object":
		return nested(n, l.object(n))
	case "comment", "identifier", "string", "number", "template_string", "import_statement":
		return nil
	default:
		return nested(n, l.collect(n))
	}
}

func (l tsLowerer) collect(n *ts.Node) []*syntax.Node {
	var out []*syntax.Node
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		if isTSDeclaration(c.Kind()) {
			out = append(out, l.lower(c)...)
		} else {
			out = append(out, l.collect(c)...)
		}
	}
	return out
}

// export handles `export class ...` and `@dec export class ...`, where the
// decorators hang off the export statement rather than the class.
func (l tsLowerer) export(n *ts.Node) []*syntax.Node {
	var out []*syntax.Node
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		if c.Kind() == "decorator" {
			out = append(out, l.decorator(c))
			continue
		}
		out = append(out, l.lower(c)...)
	}
	// decorators with nothing to attach to are dropped
	for len(out) > 0 && out[len(out)-1].Kind == syntax.KindDecorator {
		out = out[:len(out)-1]
	}
	return out
}

func (l tsLowerer) decorator(n *ts.Node) *syntax.Node {
	return &syntax.Node{
		Kind: syntax.KindDecorator,
		Span: spanOf(n),
		Text: l.text(n.NamedChild(0)),
	}
}

func (l tsLowerer) class(n *ts.Node) []*syntax.Node {
	var out []*syntax.Node
	cls := &syntax.Node{
		Kind: syntax.KindClassDef,
		Span: spanOf(n),
		Name: l.text(n.ChildByFieldName("name")),
	}
	if cls.Name == "" {
		cls.Name = syntheticName("class", cls.Span)
	}

	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		switch c.Kind() {
		case "decorator":
			out = append(out, l.decorator(c))
		case "class_heritage":
			cls.Bases = l.heritage(c)
		}
	}

	cls.Children = l.classBody(n.ChildByFieldName("body"))
	return append(out, cls)
}

// heritage returns extends targets followed by implemented interfaces.
func (l tsLowerer) heritage(n *ts.Node) []string {
	var bases []string
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		switch c.Kind() {
		case "extends_clause", "implements_clause":
			for j := uint(0); j < c.NamedChildCount(); j++ {
				t := c.NamedChild(j)
				if t.Kind() != "type_arguments" {
					bases = append(bases, l.text(t))
				}
			}
		default:
			// JavaScript: class_heritage holds the expression directly
			bases = append(bases, l.text(c))
		}
	}
	return bases
}

func (l tsLowerer) classBody(n *ts.Node) []*syntax.Node {
	if n == nil {
		return nil
	}
	var out []*syntax.Node
	var pending []*syntax.Node
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		switch c.Kind() {
		case "decorator":
			pending = append(pending, l.decorator(c))
		case "method_definition", "method_signature", "abstract_method_signature":
			// JavaScript keeps method decorators inside the method node
			for j := uint(0); j < c.NamedChildCount(); j++ {
				if d := c.NamedChild(j); d.Kind() == "decorator" {
					pending = append(pending, l.decorator(d))
				}
			}
			out = append(out, pending...)
			pending = nil
			out = append(out, l.function(c))
		case "public_field_definition", "field_definition":
			pending = nil
			name := c.ChildByFieldName("name")
			if name == nil {
				name = c.ChildByFieldName("property")
			}
			value := c.ChildByFieldName("value")
			if value != nil {
				out = append(out, l.binding(c, name, value)...)
			}
		case "comment":
		default:
			pending = nil
			out = append(out, l.lower(c)...)
		}
	}
	return out
}

// object lowers the members of an object literal: shorthand methods and
// properties holding a function become FunctionDefs named by their key.
func (l tsLowerer) object(n *ts.Node) []*syntax.Node {
	var out []*syntax.Node
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		switch c.Kind() {
		case "method_definition":
			out = append(out, l.function(c))
		case "pair":
			value := c.ChildByFieldName("value")
			name := propertyName(l.text(c.ChildByFieldName("key")))
			if isTSFunctionValue(value) && name != "" {
				fn := l.lambda(value)
				fn.Kind = syntax.KindFunctionDef
				fn.Name = name
				fn.Text = ""
				fn.Span = spanOf(c)
				out = append(out, fn)
				continue
			}
			out = append(out, l.lower(value)...)
		default:
			out = append(out, l.collect(c)...)
		}
	}
	return out
}

func isTSFunctionValue(n *ts.Node) bool {
	if n == nil {
		return false
	}
	switch n.Kind() {
	case "arrow_function", "function_expression", "function", "generator_function":
		return true
	}
	return false
}

// propertyName strips the quotes from a string key; computed keys keep
// their brackets.
func propertyName(key string) string {
	if len(key) >= 2 && strings.ContainsRune(`'"`, rune(key[0])) && key[len(key)-1] == key[0] {
		return key[1 : len(key)-1]
	}
	return key
}

func (l tsLowerer) function(n *ts.Node) *syntax.Node {
	fn := &syntax.Node{
		Kind:  syntax.KindFunctionDef,
		Span:  spanOf(n),
		Name:  l.text(n.ChildByFieldName("name")),
		Async: hasAnonymousChild(n, "async"),
	}
	if fn.Name == "" {
		fn.Name = syntheticName("function", fn.Span)
	}
	fn.Annotation = l.typeAnnotation(n.ChildByFieldName("return_type"))
	fn.Children = append(l.parameters(n.ChildByFieldName("parameters")), l.block(n.ChildByFieldName("body"))...)
	return fn
}

func (l tsLowerer) lambda(n *ts.Node) *syntax.Node {
	lam := &syntax.Node{
		Kind:       syntax.KindLambda,
		Span:       spanOf(n),
		Text:       l.text(n),
		Async:      hasAnonymousChild(n, "async"),
		Annotation: l.typeAnnotation(n.ChildByFieldName("return_type")),
	}
	if single := n.ChildByFieldName("parameter"); single != nil {
		lam.Children = append(lam.Children, &syntax.Node{
			Kind: syntax.KindParameter,
			Span: spanOf(single),
			Text: l.text(single),
			Name: l.text(single),
		})
	} else {
		lam.Children = l.parameters(n.ChildByFieldName("parameters"))
	}

	body := n.ChildByFieldName("body")
	if body != nil && body.Kind() == "statement_block" {
		lam.Children = append(lam.Children, l.block(body)...)
	} else {
		lam.Children = append(lam.Children, l.lower(body)...)
	}
	return lam
}

func (l tsLowerer) binding(n, target, value *ts.Node) []*syntax.Node {
	if value == nil {
		return nil
	}
	name := ""
	if target != nil {
		switch target.Kind() {
		case "identifier", "property_identifier", "private_property_identifier":
			name = l.text(target)
		}
	}
	return assignment(n, name, value, isTSFunctionValue(value), l.lower(value))
}

func (l tsLowerer) parameters(n *ts.Node) []*syntax.Node {
	if n == nil {
		return nil
	}
	var out []*syntax.Node
	for i := uint(0); i < n.NamedChildCount(); i++ {
		p := n.NamedChild(i)
		param := &syntax.Node{Kind: syntax.KindParameter, Span: spanOf(p), Text: l.text(p)}

		var value *ts.Node
		switch p.Kind() {
		case "required_parameter", "optional_parameter":
			param.Name = l.text(p.ChildByFieldName("pattern"))
			if p.Kind() == "optional_parameter" {
				param.Name += "?"
			}
			param.Annotation = l.typeAnnotation(p.ChildByFieldName("type"))
			value = p.ChildByFieldName("value")
		case "assignment_pattern":
			param.Name = l.text(p.ChildByFieldName("left"))
			value = p.ChildByFieldName("right")
		case "identifier", "rest_pattern", "object_pattern", "array_pattern":
			param.Name = l.text(p)
		default:
			continue
		}
		if value != nil {
			param.Default = l.text(value)
			param.Children = l.lower(value)
		}
		out = append(out, param)
	}
	return out
}

// typeAnnotation returns the type text of a type_annotation node without its colon.
func (l tsLowerer) typeAnnotation(n *ts.Node) string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(l.text(n)), ":"))
}

func syntheticName(kind string, span syntax.Span) string {
	return fmt.Sprintf("<%s@%d:%d>", kind, span.StartLine, span.StartColumn)
}
