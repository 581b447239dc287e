// Package store implements the Graph Store abstraction: a
// durable, named-graph triple store with in-memory, file-backed, and
// remote SPARQL variants behind one interface.
//
// The capability-set interface shape and per-resource mutex discipline are
// grounded on the teacher's repository layer
// (domain/core/entities + infrastructure/persistence), generalized from
// Node/Edge storage to arbitrary RDF triples.
package store

import (
	"context"

	"semem/ragno"
)

// Pattern is a triple pattern for query/delete: empty fields are wildcards.
type Pattern struct {
	Subject   string
	Predicate string
	Object    *ragno.Value
}

// Binding is one row of a query result: the variable bindings that
// satisfied the pattern. Since Pattern has at most three wildcard slots,
// bindings are keyed by "subject"/"predicate"/"object".
type Binding map[string]ragno.Value

// Stats summarizes a graph's contents.
type Stats struct {
	TripleCount int
	NodeCount   int
	EdgeCount   int
}

// Store is the Graph Store capability set. All three variants (in-memory,
// file-backed, SPARQL) implement it identically so callers never branch on
// backend.
type Store interface {
	Insert(ctx context.Context, graph string, triples []ragno.Triple) error
	Delete(ctx context.Context, graph string, pattern Pattern) error
	Replace(ctx context.Context, graph, subject string, triples []ragno.Triple) error
	Query(ctx context.Context, graph string, pattern Pattern) ([]Binding, error)
	Clear(ctx context.Context, graph string) error
	Stats(ctx context.Context, graph string) (Stats, error)
}

func matches(t ragno.Triple, p Pattern) bool {
	if p.Subject != "" && t.Subject != p.Subject {
		return false
	}
	if p.Predicate != "" && t.Predicate != p.Predicate {
		return false
	}
	if p.Object != nil && t.Object != *p.Object {
		return false
	}
	return true
}

func bindingFor(t ragno.Triple) Binding {
	return Binding{
		"subject":   ragno.URIVal(t.Subject),
		"predicate": ragno.Lit(t.Predicate),
		"object":    t.Object,
	}
}

func computeStats(triples []ragno.Triple) Stats {
	nodes := map[string]struct{}{}
	edges := 0
	for _, t := range triples {
		nodes[t.Subject] = struct{}{}
		if t.Object.IsURI {
			nodes[t.Object.Literal] = struct{}{}
			if t.Predicate != "rdf:type" {
				edges++
			}
		}
	}
	return Stats{TripleCount: len(triples), NodeCount: len(nodes), EdgeCount: edges}
}
