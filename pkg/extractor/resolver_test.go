package extractor

import (
	"errors"
	"testing"

	"github.com/gnana997/symdex/pkg/syntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sym(name string, kind SymbolKind, depth, line int) *Symbol {
	return &Symbol{
		Name:     name,
		Kind:     kind,
		FilePath: "m.py",
		Span:     syntax.Span{StartLine: line, StartColumn: 1, EndLine: line, EndColumn: 10},
		depth:    depth,
	}
}

func TestResolveScopesUsesDepthStack(t *testing.T) {
	symbols := []*Symbol{
		sym("m", SymbolKindModule, 0, 1),
		sym("A", SymbolKindClass, 1, 1),
		sym("B", SymbolKindNestedClass, 2, 2),
		sym("run", SymbolKindMethod, 3, 3),
		sym("helper", SymbolKindMethod, 2, 5),
		sym("main", SymbolKindFunction, 1, 8),
	}

	require.NoError(t, resolveScopes(symbols))

	paths := make([]string, len(symbols))
	for i, s := range symbols {
		paths[i] = s.Path()
	}
	assert.Equal(t, []string{"m", "m.A", "m.A.B", "m.A.B.run", "m.A.helper", "m.main"}, paths)

	assert.Empty(t, symbols[0].ParentID)
	assert.Equal(t, symbols[0].ID, symbols[1].ParentID)
	assert.Equal(t, symbols[2].ID, symbols[3].ParentID)
	assert.Equal(t, symbols[1].ID, symbols[4].ParentID, "popping back to the class scope")
	assert.Equal(t, symbols[0].ID, symbols[5].ParentID)
}

func TestResolveScopesRejectsSkippedDepth(t *testing.T) {
	symbols := []*Symbol{
		sym("m", SymbolKindModule, 0, 1),
		sym("deep", SymbolKindFunction, 2, 2),
	}
	err := resolveScopes(symbols)
	assert.True(t, errors.Is(err, ErrScopeDepth))
}

func TestResolveScopesRecomputesPaths(t *testing.T) {
	symbols := []*Symbol{
		sym("m", SymbolKindModule, 0, 1),
		sym("f", SymbolKindFunction, 1, 2),
	}
	symbols[1].QualifiedPath = QualifiedPath{"stale", "path"}

	require.NoError(t, resolveScopes(symbols))
	assert.Equal(t, QualifiedPath{"m", "f"}, symbols[1].QualifiedPath)
}

func TestMarkShadowedKeepsLastDeclaration(t *testing.T) {
	symbols := []*Symbol{
		sym("m", SymbolKindModule, 0, 1),
		sym("C", SymbolKindClass, 1, 1),
		sym("f", SymbolKindMethod, 2, 2),
		sym("inner", SymbolKindFunction, 3, 3),
		sym("f", SymbolKindMethod, 2, 5),
		sym("inner", SymbolKindFunction, 3, 6),
	}
	require.NoError(t, resolveScopes(symbols))

	assert.True(t, symbols[2].Shadowed)
	assert.True(t, symbols[3].Shadowed, "children of a shadowed declaration are shadowed too")
	assert.False(t, symbols[4].Shadowed)
	assert.False(t, symbols[5].Shadowed)
	assert.Equal(t, "m.C.f@2:1", symbols[2].Key())
	assert.NotEqual(t, symbols[2].ID, symbols[4].ID)
}

func TestModuleName(t *testing.T) {
	tests := map[string]string{
		"models.py":            "models",
		"./pkg/models.py":      "pkg.models",
		"pkg/sub/__init__.py":  "pkg.sub",
		"/abs/src/index.ts":    "abs.src.index",
		"src/components/a.tsx": "src.components.a",
		"__init__.py":          "__main__",
	}
	for in, want := range tests {
		assert.Equal(t, want, ModuleName(in), in)
	}
}

func TestQualifiedPathHelpers(t *testing.T) {
	p := QualifiedPath{"pkg.models", "User", "save"}
	assert.Equal(t, "pkg.models.User.save", p.String())
	assert.Equal(t, QualifiedPath{"User", "save"}, p.Relative())
	assert.True(t, p.Extends(QualifiedPath{"pkg.models", "User"}))
	assert.False(t, p.Extends(QualifiedPath{"pkg.models"}))
	assert.False(t, p.Extends(QualifiedPath{"other", "User"}))
	assert.Empty(t, QualifiedPath{"m"}.Relative())
}
