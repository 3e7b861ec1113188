// Package graph materializes a repo's symbols and edges into the
// adjacency maps the beam search traverses: one snapshot per request,
// borrowed read-only for the lifetime of that request.
package graph

import (
	"context"

	"slicecore/internal/model"
	"slicecore/internal/store"
)

// Graph is an immutable, per-request adjacency snapshot. Empty slices
// are present for every indexed symbol so lookups never need a
// presence check.
type Graph struct {
	RepoID  string
	Symbols map[string]model.Symbol
	AdjOut  map[string][]model.Edge
	AdjIn   map[string][]model.Edge

	// DanglingOut/DanglingIn count edges whose referenced endpoint was
	// never indexed; kept for graph-wide metrics, never traversed.
	DanglingOut int
	DanglingIn  int
}

// Load builds a Graph for repoID from s. An unknown repo yields an
// empty, non-nil Graph rather than an error — the loader's job is to
// materialize what's there; §7-level errors are the orchestrator's concern.
func Load(ctx context.Context, s store.Store, repoID string) (*Graph, error) {
	symbols, err := s.GetSymbolsByRepo(ctx, repoID)
	if err != nil {
		return nil, err
	}
	edges, err := s.GetEdgesByRepo(ctx, repoID)
	if err != nil {
		return nil, err
	}

	g := &Graph{
		RepoID:  repoID,
		Symbols: make(map[string]model.Symbol, len(symbols)),
		AdjOut:  make(map[string][]model.Edge, len(symbols)),
		AdjIn:   make(map[string][]model.Edge, len(symbols)),
	}
	for _, sym := range symbols {
		g.Symbols[sym.SymbolID] = sym
		if g.AdjOut[sym.SymbolID] == nil {
			g.AdjOut[sym.SymbolID] = []model.Edge{}
		}
		if g.AdjIn[sym.SymbolID] == nil {
			g.AdjIn[sym.SymbolID] = []model.Edge{}
		}
	}
	for _, e := range edges {
		if _, ok := g.Symbols[e.FromSymbolID]; ok {
			g.AdjOut[e.FromSymbolID] = append(g.AdjOut[e.FromSymbolID], e)
		} else {
			g.DanglingOut++
		}
		if _, ok := g.Symbols[e.ToSymbolID]; ok {
			g.AdjIn[e.ToSymbolID] = append(g.AdjIn[e.ToSymbolID], e)
		} else {
			g.DanglingIn++
		}
	}
	return g, nil
}

// Empty reports whether the graph has no indexed symbols.
func (g *Graph) Empty() bool {
	return len(g.Symbols) == 0
}

// OutEdges returns the (possibly empty, never nil) out-edges of symbolID.
// Edges whose target is not indexed are included here (the "referencing
// side" keeps them per §4.A) but TraversableOutEdges filters them out.
func (g *Graph) OutEdges(symbolID string) []model.Edge {
	return g.AdjOut[symbolID]
}

// TraversableOutEdges returns symbolID's out-edges whose target symbol
// is indexed in this graph, i.e. the edges the beam search may follow.
func (g *Graph) TraversableOutEdges(symbolID string) []model.Edge {
	edges := g.AdjOut[symbolID]
	out := make([]model.Edge, 0, len(edges))
	for _, e := range edges {
		if _, ok := g.Symbols[e.ToSymbolID]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Stats summarizes a graph for logging/diagnostics.
type Stats struct {
	SymbolCount int
	EdgeCount   int
	DanglingOut int
	DanglingIn  int
}

// Stats computes summary counters over the graph.
func (g *Graph) Stats() Stats {
	edgeCount := 0
	for _, edges := range g.AdjOut {
		edgeCount += len(edges)
	}
	return Stats{
		SymbolCount: len(g.Symbols),
		EdgeCount:   edgeCount,
		DanglingOut: g.DanglingOut,
		DanglingIn:  g.DanglingIn,
	}
}
