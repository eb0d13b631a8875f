package extractor

import (
	"errors"
	"fmt"
)

// ErrScopeDepth is returned when traversal depth markers skip a level,
// which would leave a symbol without an enclosing scope.
var ErrScopeDepth = errors.New("scope depth skips a level")

// resolveScopes assigns ParentID, QualifiedPath and ID to every symbol.
//
// Symbols arrive in pre-order with depth markers. A stack mirrors the open
// scopes: entering a symbol at depth d closes every scope deeper than d,
// takes the top of the stack as parent and pushes itself.
func resolveScopes(symbols []*Symbol) error {
	stack := make([]*Symbol, 0, 8)
	for _, s := range symbols {
		if s.depth > len(stack) {
			return fmt.Errorf("%w: %q at depth %d with %d open scopes", ErrScopeDepth, s.Name, s.depth, len(stack))
		}
		stack = stack[:s.depth]

		if len(stack) == 0 {
			s.ParentID = ""
			s.QualifiedPath = QualifiedPath{s.Name}
		} else {
			parent := stack[len(stack)-1]
			s.ParentID = parent.ID
			path := make(QualifiedPath, len(parent.QualifiedPath), len(parent.QualifiedPath)+1)
			copy(path, parent.QualifiedPath)
			s.QualifiedPath = append(path, s.Name)
		}
		s.ID = symbolID(s)
		stack = append(stack, s)
	}

	markShadowed(symbols)
	return nil
}

// markShadowed flags every declaration whose path is declared again later.
// The last declaration of a path stays unflagged and is the one lookups by
// path return.
func markShadowed(symbols []*Symbol) {
	last := make(map[string]int, len(symbols))
	for i, s := range symbols {
		last[s.Path()] = i
	}
	for i, s := range symbols {
		s.Shadowed = last[s.Path()] != i
	}
}
