package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semem/ragno"
	"semem/store"
)

// fakeLLM returns canned responses keyed by a substring match on the
// prompt, mirroring the fakeProvider test doubles used elsewhere in the
// module (e.g. memstore_test.go's fakeIndex).
type fakeLLM struct {
	calls int
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	f.calls++
	switch {
	case strings.Contains(prompt, "Split the following text"):
		return `[{"content":"Go routines are lightweight threads.","offsetStart":0,"offsetEnd":38},` +
			`{"content":"Channels coordinate goroutines.","offsetStart":39,"offsetEnd":70}]`, nil
	case strings.Contains(prompt, "Extract the key concepts"):
		return `{"concepts":["goroutines","channels"],"relations":[{"subject":"goroutines","predicate":"uses","object":"channels"}]}`, nil
	case strings.Contains(prompt, "Summarize this entity's role"):
		return "A concurrency primitive central to Go programs.", nil
	case strings.Contains(prompt, "Summarize what these related concepts"):
		return "Concurrency primitives.", nil
	default:
		return "", nil
	}
}

// fakeEmbedder returns a deterministic low-dimensional vector derived from
// the content length and first rune, enough to exercise enrich's
// similarity-threshold logic without a real embedding provider.
type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text, model string) ([]float32, error) {
	if text == "" {
		return []float32{0, 0}, nil
	}
	return []float32{float32(len(text)), float32(text[0])}, nil
}

type fakeIndex struct {
	added map[string]ragno.Type
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{added: map[string]ragno.Type{}}
}

func (f *fakeIndex) Add(id string, vector []float32, typ ragno.Type) {
	f.added[id] = typ
}

func newPipeline(t *testing.T) (*Pipeline, *fakeLLM, store.Store) {
	t.Helper()
	s := store.NewInMemoryStore()
	llm := &fakeLLM{}
	p := New("http://example.org/", "default", s, llm, fakeEmbedder{}, newFakeIndex(), "test-model",
		WithBatchSize(50), WithKCoreThreshold(1), WithSimilarityThreshold(0.99))
	return p, llm, s
}

func TestDecomposeCreatesUnitsEntitiesAndRelationships(t *testing.T) {
	p, _, _ := newPipeline(t)
	ctx := context.Background()

	result, err := p.Decompose(ctx, "doc-1", []string{"Go routines are lightweight threads. Channels coordinate goroutines."})
	require.NoError(t, err)

	assert.Len(t, result.UnitURIs, 2)
	assert.ElementsMatch(t, []string{"goroutines", "channels"}, labelsOf(t, p, result.EntityURIs))
	assert.Len(t, result.RelationshipURIs, 2, "both units mention both concepts, so both produce the uses(goroutines,channels) relation")
}

func labelsOf(t *testing.T, p *Pipeline, uris []string) []string {
	t.Helper()
	out := make([]string, 0, len(uris))
	for _, uri := range uris {
		label, err := p.labelOf(context.Background(), uri)
		require.NoError(t, err)
		out = append(out, label)
	}
	return out
}

func TestDecomposeIsIdempotentOnRepeatedContent(t *testing.T) {
	p, _, s := newPipeline(t)
	ctx := context.Background()
	chunk := "Go routines are lightweight threads. Channels coordinate goroutines."

	_, err := p.Decompose(ctx, "doc-1", []string{chunk})
	require.NoError(t, err)
	statsBefore, err := s.Stats(ctx, "default")
	require.NoError(t, err)

	result, err := p.Decompose(ctx, "doc-1", []string{chunk})
	require.NoError(t, err)
	statsAfter, err := s.Stats(ctx, "default")
	require.NoError(t, err)

	assert.Empty(t, result.UnitURIs, "a repeated chunk (same content hash) must not be re-decomposed")
	assert.Equal(t, statsBefore.TripleCount, statsAfter.TripleCount, "re-running decompose on identical input must not grow the graph")
}

func TestDecomposeDedupesEntitiesAcrossChunks(t *testing.T) {
	p, _, _ := newPipeline(t)
	ctx := context.Background()

	first, err := p.Decompose(ctx, "doc-1", []string{"Go routines are lightweight threads."})
	require.NoError(t, err)
	require.Contains(t, labelsOf(t, p, first.EntityURIs), "goroutines")

	second, err := p.Decompose(ctx, "doc-1", []string{"Channels coordinate goroutines."})
	require.NoError(t, err)

	assert.NotContains(t, labelsOf(t, p, second.EntityURIs), "goroutines",
		"goroutines was already created by the first chunk and must be reused, not duplicated")
}

func TestAugmentSummarizesEntitiesAtOrAboveKCoreThreshold(t *testing.T) {
	p, llm, _ := newPipeline(t)
	ctx := context.Background()

	_, err := p.Decompose(ctx, "doc-1", []string{"Go routines are lightweight threads. Channels coordinate goroutines."})
	require.NoError(t, err)

	before := llm.calls
	attributeURIs, err := p.Augment(ctx)
	require.NoError(t, err)

	assert.NotEmpty(t, attributeURIs)
	assert.Greater(t, llm.calls, before, "augment must prompt the LLM for at least one entity summary")
}

func TestAggregateCreatesCommunityElementsFromLeidenCommunities(t *testing.T) {
	p, _, _ := newPipeline(t)
	ctx := context.Background()

	_, err := p.Decompose(ctx, "doc-1", []string{"Go routines are lightweight threads. Channels coordinate goroutines."})
	require.NoError(t, err)

	communityURIs, err := p.Aggregate(ctx, 1.0, 1, 50)
	require.NoError(t, err)
	assert.NotEmpty(t, communityURIs)
}

func TestEnrichEmbedsRetrievableElementsAndIndexesThem(t *testing.T) {
	p, _, _ := newPipeline(t)
	ctx := context.Background()

	_, err := p.Decompose(ctx, "doc-1", []string{"Go routines are lightweight threads. Channels coordinate goroutines."})
	require.NoError(t, err)

	result, err := p.Enrich(ctx)
	require.NoError(t, err)
	assert.Greater(t, result.EmbeddedCount, 0)

	index := p.index.(*fakeIndex)
	assert.Len(t, index.added, result.EmbeddedCount)
}

func TestEnrichDerivesSimilarityRelationshipsAboveThreshold(t *testing.T) {
	s := store.NewInMemoryStore()
	llm := &fakeLLM{}
	// Two Units of identical length and leading byte embed to the exact
	// same fake vector, so cosine similarity is 1.0 and clears any
	// threshold below that.
	p := New("http://example.org/", "default", s, llm, fakeEmbedder{}, newFakeIndex(), "test-model",
		WithSimilarityThreshold(0.5))
	ctx := context.Background()

	unitA, err := ragno.NewSemanticUnit("http://example.org/", "default", "identical length!", "doc-1", 0, 10)
	require.NoError(t, err)
	unitB, err := ragno.NewSemanticUnit("http://example.org/", "default", "identical length!", "doc-1", 10, 20)
	require.NoError(t, err)
	require.NoError(t, s.Insert(ctx, "default", unitA.Triples()))
	require.NoError(t, s.Insert(ctx, "default", unitB.Triples()))

	result, err := p.Enrich(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, result.SimilarityRelationships, "identical content must embed to the same vector and clear the similarity threshold")
}

func TestContentHashIsStableAndSensitiveToContent(t *testing.T) {
	a := ContentHash("hello world")
	b := ContentHash("hello world")
	c := ContentHash("hello there")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestNormalizeLabelFoldsCaseAndPunctuation(t *testing.T) {
	assert.Equal(t, normalizeLabel("Go-Routines!"), normalizeLabel("go routines"))
}

func TestPipelineOptionsOverrideDefaults(t *testing.T) {
	s := store.NewInMemoryStore()
	p := New("http://example.org/", "default", s, &fakeLLM{}, fakeEmbedder{}, newFakeIndex(), "m",
		WithBatchSize(7), WithKCoreThreshold(3), WithSimilarityThreshold(0.42))
	assert.Equal(t, 7, p.batchSize)
	assert.Equal(t, 3, p.kCoreThreshold)
	assert.Equal(t, 0.42, p.similarityThreshold)
}
