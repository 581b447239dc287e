package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semem/concepts"
	"semem/graphalgo"
	"semem/ragno"
	"semem/vectorindex"
)

type fakeExtractor struct{ tokens []string }

func (f fakeExtractor) Extract(ctx context.Context, text string) concepts.Result {
	return concepts.Result{Concepts: f.tokens}
}

type fakeVectorIndex struct{ matches []vectorindex.Match }

func (f fakeVectorIndex) Search(vector []float32, k int, typeFilter []ragno.Type, threshold float64) []vectorindex.Match {
	return f.matches
}

func TestQueryExactModeOnlyUsesLabelMatch(t *testing.T) {
	r := New(fakeVectorIndex{}, fakeExtractor{tokens: []string{"golang"}})
	population := []LabeledEntity{{URI: "urn:a", Type: ragno.TypeEntity, Labels: []string{"Golang"}}}

	results := r.Query(context.Background(), "golang", nil, population, nil, ModeExact, 5, 0, nil)
	require.Len(t, results, 1)
	assert.Equal(t, "urn:a", results[0].URI)
	assert.Contains(t, results[0].Provenance, StageExact)
}

func TestQuerySimilarityModeOnlyUsesVectorIndex(t *testing.T) {
	r := New(fakeVectorIndex{matches: []vectorindex.Match{{ID: "urn:b", Score: 0.9}}}, fakeExtractor{})
	results := r.Query(context.Background(), "anything", []float32{1, 0}, nil, nil, ModeSimilarity, 5, 0, nil)
	require.Len(t, results, 1)
	assert.Equal(t, "urn:b", results[0].URI)
	assert.Contains(t, results[0].Provenance, StageSimilarity)
}

func TestQueryDualModeMergesAndWeighsSignals(t *testing.T) {
	index := fakeVectorIndex{matches: []vectorindex.Match{{ID: "urn:a", Score: 0.8}, {ID: "urn:c", Score: 0.5}}}
	extractor := fakeExtractor{tokens: []string{"golang"}}
	population := []LabeledEntity{{URI: "urn:a", Type: ragno.TypeEntity, Labels: []string{"Golang"}}}
	r := New(index, extractor, WithWeights(Weights{Exact: 0.4, Similarity: 0.4, PPR: 0.2}))

	ppr := func(seeds []string) []graphalgo.PPRScore {
		return []graphalgo.PPRScore{{URI: "urn:a", Score: 1.0}}
	}

	results := r.Query(context.Background(), "golang", []float32{1, 0}, population, nil, ModeDual, 5, 0, ppr)
	require.NotEmpty(t, results)

	var a *Candidate
	for i := range results {
		if results[i].URI == "urn:a" {
			a = &results[i]
		}
	}
	require.NotNil(t, a)
	assert.InDelta(t, 0.4*1.0+0.4*0.8+0.2*1.0, a.FinalScore, 1e-9)
	assert.ElementsMatch(t, []Stage{StageExact, StageSimilarity, StagePPR}, a.Provenance)
}

func TestQueryDeduplicatesByURI(t *testing.T) {
	index := fakeVectorIndex{matches: []vectorindex.Match{{ID: "urn:a", Score: 0.9}}}
	population := []LabeledEntity{{URI: "urn:a", Type: ragno.TypeEntity, Labels: []string{"Golang"}}}
	r := New(index, fakeExtractor{tokens: []string{"golang"}})

	results := r.Query(context.Background(), "golang", []float32{1, 0}, population, nil, ModeDual, 5, 0, nil)
	count := 0
	for _, c := range results {
		if c.URI == "urn:a" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestQueryRespectsCombinedLimit(t *testing.T) {
	matches := []vectorindex.Match{{ID: "urn:a", Score: 0.9}, {ID: "urn:b", Score: 0.8}, {ID: "urn:c", Score: 0.7}}
	r := New(fakeVectorIndex{matches: matches}, fakeExtractor{}, WithCombinedLimit(2))
	results := r.Query(context.Background(), "q", []float32{1, 0}, nil, nil, ModeSimilarity, 5, 0, nil)
	assert.Len(t, results, 2)
}
