package frontend

import (
	"context"
	"errors"
	"testing"

	"github.com/gnana997/symdex/pkg/parser"
	"github.com/gnana997/symdex/pkg/syntax"
	"github.com/gnana997/symdex/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ts "github.com/tree-sitter/go-tree-sitter"
)

func setupFrontend(t *testing.T) *Frontend {
	t.Helper()
	logger := util.NewLogger(util.DefaultLoggerConfig())
	pm := parser.NewParserManager(logger)
	t.Cleanup(func() { pm.Close() })
	return New(pm, logger)
}

func parse(t *testing.T, f *Frontend, lang parser.Language, src string) *syntax.Node {
	t.Helper()
	root, err := f.Parse(context.Background(), []byte(src), lang, false)
	require.NoError(t, err)
	require.NoError(t, syntax.Validate(root), "adapter output must satisfy the contract")
	return root
}

func find(root *syntax.Node, kind syntax.NodeKind, name string) *syntax.Node {
	var found *syntax.Node
	syntax.Walk(root, func(n *syntax.Node) bool {
		if found == nil && n.Kind == kind && n.Name == name {
			found = n
		}
		return found == nil
	})
	return found
}

func childKinds(n *syntax.Node) []syntax.NodeKind {
	var kinds []syntax.NodeKind
	for _, c := range n.Children {
		kinds = append(kinds, c.Kind)
	}
	return kinds
}

func TestPythonDecoratorsPrecedeDefinition(t *testing.T) {
	f := setupFrontend(t)
	root := parse(t, f, parser.LanguagePython, "@a\n@b.c(1, key='v')\ndef f():\n    pass\n")

	require.Len(t, root.Children, 3)
	assert.Equal(t, []syntax.NodeKind{syntax.KindDecorator, syntax.KindDecorator, syntax.KindFunctionDef}, childKinds(root))
	assert.Equal(t, "a", root.Children[0].Text)
	assert.Equal(t, "b.c(1, key='v')", root.Children[1].Text)
	assert.Equal(t, 1, root.Children[0].Span.StartLine)
}

func TestPythonFunctionSignature(t *testing.T) {
	f := setupFrontend(t)
	src := "async def fetch(url: str, retries: int = 3, *args, **kwargs) -> dict:\n    return {}\n"
	root := parse(t, f, parser.LanguagePython, src)

	fn := find(root, syntax.KindFunctionDef, "fetch")
	require.NotNil(t, fn)
	assert.True(t, fn.Async)
	assert.Equal(t, "dict", fn.Annotation)

	require.Len(t, fn.Children, 4)
	url, retries, args, kwargs := fn.Children[0], fn.Children[1], fn.Children[2], fn.Children[3]
	assert.Equal(t, "url", url.Name)
	assert.Equal(t, "str", url.Annotation)
	assert.Equal(t, "retries", retries.Name)
	assert.Equal(t, "int", retries.Annotation)
	assert.Equal(t, "3", retries.Default)
	assert.Equal(t, "*args", args.Name)
	assert.Equal(t, "**kwargs", kwargs.Name)
}

func TestPythonSyncFunctionIsNotAsync(t *testing.T) {
	f := setupFrontend(t)
	root := parse(t, f, parser.LanguagePython, "def run():\n    await_result = 1\n")

	fn := find(root, syntax.KindFunctionDef, "run")
	require.NotNil(t, fn)
	assert.False(t, fn.Async)
}

func TestPythonClassBases(t *testing.T) {
	f := setupFrontend(t)
	root := parse(t, f, parser.LanguagePython, "class Dog(Animal, Pet, metaclass=Meta):\n    def bark(self):\n        pass\n")

	cls := find(root, syntax.KindClassDef, "Dog")
	require.NotNil(t, cls)
	assert.Equal(t, []string{"Animal", "Pet"}, cls.Bases)
	require.NotNil(t, find(cls, syntax.KindFunctionDef, "bark"))
}

func TestPythonLambdaBindings(t *testing.T) {
	f := setupFrontend(t)
	src := "double = lambda x: x * 2\n\ndef apply(op=lambda a, b: a + b):\n    return op\n\nitems = sorted(xs, key=lambda x: -x)\n"
	root := parse(t, f, parser.LanguagePython, src)

	bound := find(root, syntax.KindAssignment, "double")
	require.NotNil(t, bound)
	require.Len(t, bound.Children, 1)
	assert.Equal(t, syntax.KindLambda, bound.Children[0].Kind, "directly bound lambda is the only child")

	apply := find(root, syntax.KindFunctionDef, "apply")
	require.NotNil(t, apply)
	op := apply.Children[0]
	assert.Equal(t, syntax.KindParameter, op.Kind)
	assert.Equal(t, "lambda a, b: a + b", op.Default)
	require.Len(t, op.Children, 1)
	assert.Equal(t, syntax.KindLambda, op.Children[0].Kind)

	items := find(root, syntax.KindAssignment, "items")
	require.NotNil(t, items)
	require.Len(t, items.Children, 1)
	assert.Equal(t, syntax.KindNestedBlock, items.Children[0].Kind, "inline lambda is not directly bound")
}

func TestPythonNestedDeclarationsInBlocks(t *testing.T) {
	f := setupFrontend(t)
	src := "def outer():\n    if True:\n        class Local:\n            pass\n    return 1\n"
	root := parse(t, f, parser.LanguagePython, src)

	outer := find(root, syntax.KindFunctionDef, "outer")
	require.NotNil(t, outer)
	require.Len(t, outer.Children, 1)
	assert.Equal(t, syntax.KindNestedBlock, outer.Children[0].Kind)
	assert.NotNil(t, find(outer, syntax.KindClassDef, "Local"))
}

func TestPythonSyntaxError(t *testing.T) {
	f := setupFrontend(t)

	_, err := f.Parse(context.Background(), []byte("x = 1\ndef broken(:\n    pass\n"), parser.LanguagePython, false)
	require.Error(t, err)

	var pe *syntax.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 2, pe.Line)
	assert.NotEmpty(t, pe.Message)
}

func TestTypeScriptClassLowering(t *testing.T) {
	f := setupFrontend(t)
	src := `@Component({selector: 'app'})
export class Widget extends Base implements Renderable {
  @HostListener('click')
  async onClick(e: Event, count?: number): Promise<void> {}

  render(): string { return '' }
}
const double = (x: number): number => x * 2;
`
	root := parse(t, f, parser.LanguageTypeScript, src)

	require.GreaterOrEqual(t, len(root.Children), 2)
	assert.Equal(t, syntax.KindDecorator, root.Children[0].Kind)
	assert.Equal(t, "Component({selector: 'app'})", root.Children[0].Text)

	cls := find(root, syntax.KindClassDef, "Widget")
	require.NotNil(t, cls)
	assert.Equal(t, []string{"Base", "Renderable"}, cls.Bases)

	onClick := find(cls, syntax.KindFunctionDef, "onClick")
	require.NotNil(t, onClick)
	assert.True(t, onClick.Async)
	assert.Equal(t, "Promise<void>", onClick.Annotation)
	require.GreaterOrEqual(t, len(onClick.Children), 2)
	assert.Equal(t, "e", onClick.Children[0].Name)
	assert.Equal(t, "Event", onClick.Children[0].Annotation)
	assert.Equal(t, "count?", onClick.Children[1].Name)

	idx := -1
	for i, c := range cls.Children {
		if c == onClick {
			idx = i
		}
	}
	require.Greater(t, idx, 0)
	assert.Equal(t, "HostListener('click')", cls.Children[idx-1].Text)

	render := find(cls, syntax.KindFunctionDef, "render")
	require.NotNil(t, render)
	assert.False(t, render.Async)

	double := find(root, syntax.KindAssignment, "double")
	require.NotNil(t, double)
	require.Len(t, double.Children, 1)
	assert.Equal(t, syntax.KindLambda, double.Children[0].Kind)
}

func TestJavaScriptLowering(t *testing.T) {
	f := setupFrontend(t)
	src := "class A extends B {\n  m(cb = () => 0) { return [1].map(x => x) }\n}\nasync function load(url) {}\n"
	root := parse(t, f, parser.LanguageJavaScript, src)

	cls := find(root, syntax.KindClassDef, "A")
	require.NotNil(t, cls)
	assert.Equal(t, []string{"B"}, cls.Bases)

	m := find(cls, syntax.KindFunctionDef, "m")
	require.NotNil(t, m)
	require.NotEmpty(t, m.Children)
	assert.Equal(t, "cb", m.Children[0].Name)
	assert.Equal(t, "() => 0", m.Children[0].Default)

	load := find(root, syntax.KindFunctionDef, "load")
	require.NotNil(t, load)
	assert.True(t, load.Async)
}

func TestTypeScriptObjectLiteralMethods(t *testing.T) {
	f := setupFrontend(t)
	src := `const api = {
  async get(id: string): Promise<Item> {
    const inner = () => id;
    return inner();
  },
  post: function (body) {},
  "remove": (id: string) => id,
  version: 2,
};
`
	root := parse(t, f, parser.LanguageTypeScript, src)

	api := find(root, syntax.KindAssignment, "api")
	require.NotNil(t, api)
	require.Len(t, api.Children, 1)
	block := api.Children[0]
	assert.Equal(t, syntax.KindNestedBlock, block.Kind)
	assert.Equal(t, []syntax.NodeKind{syntax.KindFunctionDef, syntax.KindFunctionDef, syntax.KindFunctionDef}, childKinds(block))

	get := block.Children[0]
	assert.Equal(t, "get", get.Name)
	assert.True(t, get.Async)
	assert.Equal(t, "Promise<Item>", get.Annotation)
	require.NotNil(t, find(get, syntax.KindAssignment, "inner"), "nested declarations stay inside the method")

	post := block.Children[1]
	assert.Equal(t, "post", post.Name)
	require.NotEmpty(t, post.Children)
	assert.Equal(t, "body", post.Children[0].Name)

	remove := block.Children[2]
	assert.Equal(t, "remove", remove.Name)
	assert.Equal(t, 7, remove.Span.StartLine)
}

func TestGoLowering(t *testing.T) {
	f := setupFrontend(t)
	src := `package store

import "io"

type Reader interface {
	io.Closer
	Read(p []byte) (int, error)
}

type (
	Cache struct {
		*Base
		sync.Mutex
		size int
	}
	ID = string
)

func (c *Cache) Get(ctx context.Context, keys ...string) (string, bool) {
	hit := func(k string) bool { return k != "" }
	return "", hit(keys[0])
}

func (ext External) Close() error { return nil }

func New(a, b int) *Cache {
	go func() {}()
	return nil
}
`
	root := parse(t, f, parser.LanguageGo, src)

	reader := find(root, syntax.KindClassDef, "Reader")
	require.NotNil(t, reader)
	assert.Equal(t, []string{"io.Closer"}, reader.Bases)
	read := find(reader, syntax.KindFunctionDef, "Read")
	require.NotNil(t, read)
	assert.Equal(t, "(int, error)", read.Annotation)
	require.Len(t, read.Children, 1)
	assert.Equal(t, "p", read.Children[0].Name)
	assert.Equal(t, "[]byte", read.Children[0].Annotation)

	cache := find(root, syntax.KindClassDef, "Cache")
	require.NotNil(t, cache)
	assert.Equal(t, []string{"Base", "sync.Mutex"}, cache.Bases)
	assert.Nil(t, find(root, syntax.KindClassDef, "ID"), "aliases declare no type")

	get := find(cache, syntax.KindFunctionDef, "Get")
	require.NotNil(t, get, "methods nest under their receiver type")
	require.GreaterOrEqual(t, len(get.Children), 3)
	assert.Equal(t, "ctx", get.Children[0].Name)
	assert.Equal(t, "context.Context", get.Children[0].Annotation)
	assert.Equal(t, "keys", get.Children[1].Name)
	assert.Equal(t, "...string", get.Children[1].Annotation)
	hit := find(get, syntax.KindAssignment, "hit")
	require.NotNil(t, hit)
	require.Len(t, hit.Children, 1)
	assert.Equal(t, syntax.KindLambda, hit.Children[0].Kind)

	closeFn := find(root, syntax.KindFunctionDef, "Close")
	require.NotNil(t, closeFn)
	assert.Contains(t, root.Children, closeFn, "a method on a type from another file stays at module level")
	assert.Equal(t, "error", closeFn.Annotation)

	newFn := find(root, syntax.KindFunctionDef, "New")
	require.NotNil(t, newFn)
	assert.Equal(t, "a", newFn.Children[0].Name)
	assert.Equal(t, "b", newFn.Children[1].Name)
	assert.Equal(t, "int", newFn.Children[1].Annotation)
	assert.NotNil(t, find(newFn, syntax.KindLambda, ""), "goroutine literal is a lambda")
}

func TestGoSyntaxError(t *testing.T) {
	f := setupFrontend(t)
	_, err := f.Parse(context.Background(), []byte("package x\n\nfunc broken( {\n"), parser.LanguageGo, false)
	var pe *syntax.ParseError
	require.True(t, errors.As(err, &pe), "got %v", err)
	assert.GreaterOrEqual(t, pe.Line, 3)
	assert.NotEmpty(t, pe.Message)
}

func TestRegisterAdapter(t *testing.T) {
	f := setupFrontend(t)
	assert.True(t, f.Supports(parser.LanguagePython))
	assert.False(t, f.Supports(parser.LanguageUnknown))

	f.Register(parser.LanguagePython, func(root *ts.Node, source []byte) (*syntax.Node, error) {
		return &syntax.Node{Kind: syntax.KindModule, Name: "stub"}, nil
	})
	root, err := f.Parse(context.Background(), []byte("x = 1\n"), parser.LanguagePython, false)
	require.NoError(t, err)
	assert.Equal(t, "stub", root.Name)

	_, err = f.Parse(context.Background(), []byte("x"), parser.LanguageUnknown, false)
	assert.Error(t, err)
}
