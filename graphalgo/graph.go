// Package graphalgo implements the Graph Algorithms:
// k-core decomposition, betweenness centrality, connected components,
// Leiden community detection, and Personalized PageRank, all operating on
// a single-graph projection where Relationship nodes collapse to edges
// between their endpoint Entities.
//
// Connected components and betweenness are grounded on
// gonum.org/v1/gonum/graph's topo/network packages, present across the
// pack's manifests; k-core, Leiden, and PPR have no ready-made gonum
// equivalent matching the deterministic tie-break and refinement
// requirements, so they are hand-rolled over the same gonum graph
// representation.
package graphalgo

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"
)

// Projection is the unweighted/weighted view over Entity URIs that every
// algorithm in this package operates on: Relationship nodes are collapsed
// to edges between their endpoint Entities.
type Projection struct {
	g        *simple.WeightedUndirectedGraph
	idOf     map[string]int64
	uriOf    map[int64]string
	adjacent map[string]map[string]float64
}

// RelationshipEdge is the minimal shape this package needs from a
// Relationship element.
type RelationshipEdge struct {
	SourceURI string
	TargetURI string
	Weight    float64
}

// BuildProjection constructs a Projection from a flat Entity URI list and
// the Relationship edges between them. Missing weights should already
// default to ragno.DefaultRelationshipWeight by the caller.
func BuildProjection(entityURIs []string, edges []RelationshipEdge) *Projection {
	sorted := append([]string(nil), entityURIs...)
	sort.Strings(sorted)

	p := &Projection{
		g:        simple.NewWeightedUndirectedGraph(0, 0),
		idOf:     make(map[string]int64, len(sorted)),
		uriOf:    make(map[int64]string, len(sorted)),
		adjacent: make(map[string]map[string]float64),
	}
	for i, uri := range sorted {
		id := int64(i)
		p.idOf[uri] = id
		p.uriOf[id] = uri
		p.g.AddNode(simple.Node(id))
		p.adjacent[uri] = make(map[string]float64)
	}
	for _, e := range edges {
		srcID, ok1 := p.idOf[e.SourceURI]
		dstID, ok2 := p.idOf[e.TargetURI]
		if !ok1 || !ok2 || srcID == dstID {
			continue
		}
		w := e.Weight
		if existing := p.g.WeightedEdge(srcID, dstID); existing != nil {
			w += existing.Weight()
		}
		p.g.SetWeightedEdge(simple.WeightedEdge{F: simple.Node(srcID), T: simple.Node(dstID), W: w})
		p.adjacent[e.SourceURI][e.TargetURI] += e.Weight
		p.adjacent[e.TargetURI][e.SourceURI] += e.Weight
	}
	return p
}

// URIs returns the entity URIs in the projection, sorted lexicographically.
func (p *Projection) URIs() []string {
	out := make([]string, 0, len(p.idOf))
	for uri := range p.idOf {
		out = append(out, uri)
	}
	sort.Strings(out)
	return out
}

// Neighbors returns uri's neighbor URIs sorted lexicographically.
func (p *Projection) Neighbors(uri string) []string {
	nbrs := p.adjacent[uri]
	out := make([]string, 0, len(nbrs))
	for n := range nbrs {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Weight returns the edge weight between a and b, or 0 if absent.
func (p *Projection) Weight(a, b string) float64 {
	return p.adjacent[a][b]
}

// Degree returns uri's unweighted degree.
func (p *Projection) Degree(uri string) int {
	return len(p.adjacent[uri])
}

// Result wraps an algorithm's output with the termination flag required by
// : "on cap hit they return the best result so far flagged
// converged=false."
type Result[T any] struct {
	Value     T
	Converged bool
	Iteration int
}
