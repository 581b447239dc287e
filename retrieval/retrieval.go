// Package retrieval implements the Dual Retriever:
// combining exact label matching, vector similarity, and Personalized
// PageRank into one ranked, typed, deduplicated result set with
// provenance.
package retrieval

import (
	"context"
	"sort"

	"semem/concepts"
	"semem/graphalgo"
	"semem/ragno"
	"semem/vectorindex"
)

// Mode selects which signal(s) contribute to the ranking.
type Mode string

const (
	ModeExact      Mode = "exact"
	ModeSimilarity Mode = "similarity"
	ModeDual       Mode = "dual"
)

// Stage names a contributing signal, recorded in a Candidate's provenance.
type Stage string

const (
	StageExact      Stage = "exact"
	StageSimilarity Stage = "similarity"
	StagePPR        Stage = "ppr"
)

// Candidate is one ranked retrieval result.
type Candidate struct {
	URI          string
	Type         ragno.Type
	ExactScore   float64
	SimScore     float64
	PPRScore     float64
	FinalScore   float64
	Provenance   []Stage
}

// Weights configures the final-score blend ( step 5, default
// 0.4/0.4/0.2).
type Weights struct {
	Exact      float64
	Similarity float64
	PPR        float64
}

// DefaultWeights matches the stated defaults.
var DefaultWeights = Weights{Exact: 0.4, Similarity: 0.4, PPR: 0.2}

// LabeledEntity is the minimal shape the Dual Retriever needs from the
// Ragno Entity/Attribute population to perform exact-match lookup,
// without importing the Graph Store directly.
type LabeledEntity struct {
	URI    string
	Type   ragno.Type
	Labels []string
}

// VectorIndex is the subset of vectorindex.Index this package depends on.
type VectorIndex interface {
	Search(vector []float32, k int, typeFilter []ragno.Type, threshold float64) []vectorindex.Match
}

// Retriever combines exact label matching, vector similarity, and
// Personalized PageRank into one ranked result set.
type Retriever struct {
	index     VectorIndex
	extractor interface {
		Extract(ctx context.Context, text string) concepts.Result
	}
	weights       Weights
	combinedLimit int
}

// Option configures a Retriever at construction.
type Option func(*Retriever)

func WithWeights(w Weights) Option      { return func(r *Retriever) { r.weights = w } }
func WithCombinedLimit(n int) Option    { return func(r *Retriever) { r.combinedLimit = n } }

// New constructs a Retriever.
func New(index VectorIndex, extractor interface {
	Extract(ctx context.Context, text string) concepts.Result
}, opts ...Option) *Retriever {
	r := &Retriever{index: index, extractor: extractor, weights: DefaultWeights, combinedLimit: 50}
	for _, o := range opts {
		o(r)
	}
	return r
}

// exactMatch performs case-insensitive, punctuation-stripped label
// matching against extracted query tokens.
func exactMatch(tokens []string, population []LabeledEntity) map[string]*Candidate {
	out := make(map[string]*Candidate)
	for _, entity := range population {
		var best float64
		for _, token := range tokens {
			for _, label := range entity.Labels {
				if concepts.ValidatePair(token, label) {
					best = 1.0
				}
			}
		}
		if best > 0 {
			out[entity.URI] = &Candidate{URI: entity.URI, Type: entity.Type, ExactScore: best, Provenance: []Stage{StageExact}}
		}
	}
	return out
}

// Query runs the dual-retrieval procedure: exact match, vector
// similarity, and PPR signals merged into one ranked, deduplicated,
// typed candidate list.
func (r *Retriever) Query(ctx context.Context, query string, queryVector []float32, population []LabeledEntity, typeFilter []ragno.Type, mode Mode, k int, threshold float64, ppr func(seeds []string) []graphalgo.PPRScore) []Candidate {
	merged := make(map[string]*Candidate)

	var seeds []string
	if mode == ModeExact || mode == ModeDual {
		extraction := r.extractor.Extract(ctx, query)
		exact := exactMatch(extraction.Concepts, population)
		for uri, c := range exact {
			merged[uri] = c
			seeds = append(seeds, uri)
		}
	}

	if mode == ModeSimilarity || mode == ModeDual {
		matches := r.index.Search(queryVector, k, typeFilter, threshold)
		for _, m := range matches {
			if c, ok := merged[m.ID]; ok {
				c.SimScore = m.Score
				c.Provenance = append(c.Provenance, StageSimilarity)
			} else {
				merged[m.ID] = &Candidate{URI: m.ID, SimScore: m.Score, Provenance: []Stage{StageSimilarity}}
				seeds = append(seeds, m.ID)
			}
		}
	}

	if mode == ModeDual && ppr != nil && len(seeds) > 0 {
		pprScores := ppr(seeds)
		byType := make(map[ragno.Type][]graphalgo.PPRScore)
		for _, s := range pprScores {
			if c, ok := merged[s.URI]; ok {
				byType[c.Type] = append(byType[c.Type], s)
			}
		}
		for _, s := range pprScores {
			if c, ok := merged[s.URI]; ok {
				c.PPRScore = s.Score
				c.Provenance = append(c.Provenance, StagePPR)
			}
		}
	}

	out := make([]Candidate, 0, len(merged))
	for _, c := range merged {
		c.FinalScore = r.weights.Exact*c.ExactScore + r.weights.Similarity*c.SimScore + r.weights.PPR*c.PPRScore
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FinalScore != out[j].FinalScore {
			return out[i].FinalScore > out[j].FinalScore
		}
		return out[i].URI < out[j].URI
	})
	if len(out) > r.combinedLimit {
		out = out[:r.combinedLimit]
	}
	return out
}
