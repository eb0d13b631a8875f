package extractor

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dominikbraun/graph"
)

// Forest is the containment hierarchy of a symbol set: one tree per module.
type Forest struct {
	g        graph.Graph[string, *Symbol]
	children map[string][]*Symbol
	roots    []*Symbol
}

// BuildForest links symbols by ParentID into a directed, acyclic graph and
// verifies that each non-module symbol has exactly one parent present in
// the set and that every tree is rooted at a module.
func BuildForest(symbols []*Symbol) (*Forest, error) {
	g := graph.New(func(s *Symbol) string { return s.ID }, graph.Directed(), graph.PreventCycles())
	f := &Forest{g: g, children: make(map[string][]*Symbol)}

	for _, s := range symbols {
		if err := g.AddVertex(s); err != nil {
			return nil, fmt.Errorf("symbol %s (%s): %w", s.Path(), s.ID, err)
		}
	}

	for _, s := range symbols {
		if s.ParentID == "" {
			if s.Kind != SymbolKindModule {
				return nil, fmt.Errorf("symbol %s has no parent but is a %s", s.Path(), s.Kind)
			}
			f.roots = append(f.roots, s)
			continue
		}
		if err := g.AddEdge(s.ParentID, s.ID); err != nil {
			if errors.Is(err, graph.ErrEdgeCreatesCycle) {
				return nil, fmt.Errorf("symbol %s closes a containment cycle: %w", s.Path(), err)
			}
			return nil, fmt.Errorf("symbol %s: parent %s: %w", s.Path(), s.ParentID, err)
		}
		f.children[s.ParentID] = append(f.children[s.ParentID], s)
	}

	preds, err := g.PredecessorMap()
	if err != nil {
		return nil, err
	}
	for id, in := range preds {
		if len(in) > 1 {
			return nil, fmt.Errorf("symbol %s has %d parents", id, len(in))
		}
	}

	for _, kids := range f.children {
		sort.SliceStable(kids, func(i, j int) bool { return kids[i].Span.StartByte < kids[j].Span.StartByte })
	}
	return f, nil
}

// Roots returns the module symbols.
func (f *Forest) Roots() []*Symbol {
	return f.roots
}

// Children returns the direct children of id in source order.
func (f *Forest) Children(id string) []*Symbol {
	return f.children[id]
}

// Descendants returns every symbol below id, in no particular order.
func (f *Forest) Descendants(id string) ([]*Symbol, error) {
	var out []*Symbol
	err := graph.DFS(f.g, id, func(v string) bool {
		if v != id {
			s, err := f.g.Vertex(v)
			if err == nil {
				out = append(out, s)
			}
		}
		return false
	})
	return out, err
}

// Walk visits every tree in pre-order, children in source order.
func (f *Forest) Walk(fn func(s *Symbol, depth int)) {
	var visit func(s *Symbol, depth int)
	visit = func(s *Symbol, depth int) {
		fn(s, depth)
		for _, c := range f.children[s.ID] {
			visit(c, depth+1)
		}
	}
	for _, r := range f.roots {
		visit(r, 0)
	}
}
