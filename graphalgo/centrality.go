package graphalgo

import (
	"sort"

	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/topo"
)

// Betweenness computes betweenness centrality for every node in the
// unweighted projection via Brandes' algorithm, delegated to
// gonum.org/v1/gonum/graph/network.
func Betweenness(p *Projection) map[string]float64 {
	scores := network.Betweenness(p.g)
	out := make(map[string]float64, len(scores))
	for id, score := range scores {
		if uri, ok := p.uriOf[id]; ok {
			out[uri] = score
		}
	}
	return out
}

// ConnectedComponents partitions the projection via union-find-equivalent
// traversal (delegated to gonum.org/v1/gonum/graph/topo), returning each
// component as a URI list sorted lexicographically; components themselves
// are ordered by their lexicographically-smallest member for determinism
//.
func ConnectedComponents(p *Projection) [][]string {
	components := topo.ConnectedComponents(p.g)
	out := make([][]string, 0, len(components))
	for _, comp := range components {
		uris := make([]string, 0, len(comp))
		for _, n := range comp {
			if uri, ok := p.uriOf[n.ID()]; ok {
				uris = append(uris, uri)
			}
		}
		sort.Strings(uris)
		out = append(out, uris)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) == 0 || len(out[j]) == 0 {
			return len(out[i]) > len(out[j])
		}
		return out[i][0] < out[j][0]
	})
	return out
}
