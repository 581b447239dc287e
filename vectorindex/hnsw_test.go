package vectorindex

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semem/ragno"
	"semem/store"
)

func randomVector(r *rand.Rand, d int) []float32 {
	v := make([]float32, d)
	for i := range v {
		v[i] = r.Float32()*2 - 1
	}
	return v
}

func TestSearchReturnsExactMatchWithHighScore(t *testing.T) {
	idx := New(Config{Seed: 1})
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		idx.Add(string(rune('a'+i%26))+string(rune(i)), randomVector(r, 16), ragno.TypeSemanticUnit)
	}
	target := randomVector(r, 16)
	idx.Add("target", target, ragno.TypeSemanticUnit)

	matches := idx.Search(target, 1, nil, -1)
	require.Len(t, matches, 1)
	assert.Equal(t, "target", matches[0].ID)
	assert.GreaterOrEqual(t, matches[0].Score, 1-0.01)
}

func TestSearchRespectsTypeFilter(t *testing.T) {
	idx := New(Config{Seed: 2})
	r := rand.New(rand.NewSource(7))
	v := randomVector(r, 8)
	idx.Add("entity-1", v, ragno.TypeEntity)
	idx.Add("unit-1", v, ragno.TypeSemanticUnit)

	matches := idx.Search(v, 5, []ragno.Type{ragno.TypeEntity}, -1)
	require.Len(t, matches, 1)
	assert.Equal(t, "entity-1", matches[0].ID)
}

func TestSearchAppliesThreshold(t *testing.T) {
	idx := New(Config{Seed: 3})
	idx.Add("a", []float32{1, 0}, ragno.TypeEntity)
	idx.Add("b", []float32{-1, 0}, ragno.TypeEntity)

	matches := idx.Search([]float32{1, 0}, 5, nil, 0.5)
	for _, m := range matches {
		assert.GreaterOrEqual(t, m.Score, 0.5)
	}
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	assert.Contains(t, ids, "a")
	assert.NotContains(t, ids, "b")
}

func TestRemoveThenSearchExcludesNode(t *testing.T) {
	idx := New(Config{Seed: 4})
	idx.Add("a", []float32{1, 0}, ragno.TypeEntity)
	idx.Add("b", []float32{0, 1}, ragno.TypeEntity)
	idx.Remove("a")

	matches := idx.Search([]float32{1, 0}, 5, nil, -1)
	for _, m := range matches {
		assert.NotEqual(t, "a", m.ID)
	}
	assert.Equal(t, 1, idx.Size())
}

func TestRebuildFromStoreReadsEmbeddingTriples(t *testing.T) {
	s := store.NewInMemoryStore()
	ctx := context.Background()
	vec := []float32{0.1, 0.2, 0.3}
	require.NoError(t, s.Insert(ctx, "g1", []ragno.Triple{
		{Subject: "urn:a", Predicate: "rdf:type", Object: ragno.Lit(string(ragno.TypeSemanticUnit))},
		{Subject: "urn:a", Predicate: "ragno:embedding", Object: ragno.Lit(EncodeEmbedding(vec))},
	}))

	idx, err := RebuildFromStore(ctx, s, "g1", Config{Seed: 5})
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Size())

	matches := idx.Search(vec, 1, nil, -1)
	require.Len(t, matches, 1)
	assert.Equal(t, "urn:a", matches[0].ID)
}
