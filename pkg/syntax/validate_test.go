package syntax

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func module(children ...*Node) *Node {
	return &Node{Kind: KindModule, Name: "m", Children: children}
}

func TestValidateAcceptsWellFormedTree(t *testing.T) {
	root := module(
		&Node{Kind: KindDecorator, Text: "a"},
		&Node{Kind: KindDecorator, Text: "b"},
		&Node{Kind: KindFunctionDef, Name: "f", Children: []*Node{
			{Kind: KindParameter, Name: "x", Default: "lambda: 1", Children: []*Node{{Kind: KindLambda}}},
			{Kind: KindNestedBlock, Children: []*Node{{Kind: KindClassDef, Name: "C"}}},
		}},
		&Node{Kind: KindAssignment, Name: "double", Children: []*Node{
			{Kind: KindLambda, Children: []*Node{{Kind: KindParameter, Name: "x"}}},
		}},
	)

	assert.NoError(t, Validate(root))
}

func TestValidateRejectsContractViolations(t *testing.T) {
	tests := []struct {
		name string
		root *Node
	}{
		{"nil root", nil},
		{"non-module root", &Node{Kind: KindClassDef, Name: "C"}},
		{"nested module", module(&Node{Kind: KindModule})},
		{"unnamed class", module(&Node{Kind: KindClassDef})},
		{"unknown kind", module(&Node{Kind: NodeKind(42)})},
		{"dangling decorator", module(&Node{Kind: KindDecorator, Text: "a"})},
		{"decorator before block", module(&Node{Kind: KindDecorator, Text: "a"}, &Node{Kind: KindNestedBlock})},
		{"parameter in class", module(&Node{Kind: KindClassDef, Name: "C", Children: []*Node{{Kind: KindParameter, Name: "x"}}})},
		{"parameter after body", module(&Node{Kind: KindFunctionDef, Name: "f", Children: []*Node{
			{Kind: KindNestedBlock},
			{Kind: KindParameter, Name: "x"},
		}})},
		{"bound lambda with siblings", module(&Node{Kind: KindAssignment, Name: "x", Children: []*Node{
			{Kind: KindLambda},
			{Kind: KindNestedBlock},
		}})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.root)
			require.Error(t, err)

			var ce *ContractError
			assert.True(t, errors.As(err, &ce))
		})
	}
}

func TestWalkPreOrder(t *testing.T) {
	root := module(
		&Node{Kind: KindClassDef, Name: "A", Children: []*Node{{Kind: KindFunctionDef, Name: "m"}}},
		&Node{Kind: KindFunctionDef, Name: "f"},
	)

	var names []string
	Walk(root, func(n *Node) bool {
		names = append(names, n.Name)
		return true
	})
	assert.Equal(t, []string{"m", "A", "m", "f"}, names)

	names = nil
	Walk(root, func(n *Node) bool {
		names = append(names, n.Name)
		return n.Kind == KindModule
	})
	assert.Equal(t, []string{"m", "A", "f"}, names, "returning false prunes children")
}

func TestErrorMessages(t *testing.T) {
	pe := &ParseError{File: "a.py", Line: 3, Column: 7, Message: "unexpected token"}
	assert.Equal(t, "a.py:3:7: unexpected token", pe.Error())

	ce := &ContractError{Kind: KindDecorator, Span: Span{StartLine: 1, StartColumn: 1, EndLine: 1, EndColumn: 5}, Reason: "x"}
	assert.Contains(t, ce.Error(), "Decorator")
	assert.Contains(t, ce.Error(), "1:1-1:5")
	assert.Equal(t, "NodeKind(42)", NodeKind(42).String())
}
