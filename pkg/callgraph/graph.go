package callgraph

import (
	"io"
	"sort"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
	"github.com/pkg/errors"

	"github.com/maxgio92/privtrace/pkg/registry"
)

func idHash(id registry.ID) registry.ID {
	return id
}

// Graph returns the call graph aggregated over every invocation: an edge
// caller -> callee weighted by the total number of calls.
func (r *Recorder) Graph() (graph.Graph[registry.ID, registry.ID], error) {
	g := graph.New(idHash, graph.Directed(), graph.Weighted())

	totals := make(map[[2]registry.ID]uint64)
	for caller, hs := range r.histories {
		for _, h := range hs {
			for callee, n := range h.calls {
				totals[[2]registry.ID{caller, callee}] += n
			}
		}
	}
	edges := make([][2]registry.ID, 0, len(totals))
	for e := range totals {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i][0] != edges[j][0] {
			return edges[i][0] < edges[j][0]
		}
		return edges[i][1] < edges[j][1]
	})

	for _, e := range edges {
		for _, id := range e {
			if err := r.addVertex(g, id); err != nil {
				return nil, err
			}
		}
		if err := g.AddEdge(e[0], e[1], graph.EdgeWeight(int(totals[e]))); err != nil {
			return nil, errors.Wrapf(err, "failed to add call edge %d -> %d", e[0], e[1])
		}
	}

	return g, nil
}

func (r *Recorder) addVertex(g graph.Graph[registry.ID, registry.ID], id registry.ID) error {
	fn := r.regs.Get(id)
	err := g.AddVertex(id, graph.VertexAttribute("label", fn.Name))
	if err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
		return errors.Wrapf(err, "failed to add function %d", id)
	}
	return nil
}

// WriteDOT renders the aggregated call graph in Graphviz DOT format.
func (r *Recorder) WriteDOT(w io.Writer) error {
	g, err := r.Graph()
	if err != nil {
		return err
	}
	if err := draw.DOT(g, w); err != nil {
		return errors.Wrap(err, "failed to render call graph")
	}
	return nil
}
