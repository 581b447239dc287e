package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semem/ragno"
)

func sampleTriples(subj string) []ragno.Triple {
	return []ragno.Triple{
		{Subject: subj, Predicate: "rdf:type", Object: ragno.Lit("Entity")},
		{Subject: subj, Predicate: "ragno:prefLabel", Object: ragno.Lit("Golang")},
	}
}

func TestInMemoryStoreInsertAndQuery(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, "g1", sampleTriples("urn:a")))

	bindings, err := s.Query(ctx, "g1", Pattern{Subject: "urn:a"})
	require.NoError(t, err)
	assert.Len(t, bindings, 2)

	stats, err := s.Stats(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TripleCount)
}

func TestInMemoryStoreDeleteByPattern(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, "g1", sampleTriples("urn:a")))
	require.NoError(t, s.Delete(ctx, "g1", Pattern{Predicate: "ragno:prefLabel"}))

	bindings, err := s.Query(ctx, "g1", Pattern{Subject: "urn:a"})
	require.NoError(t, err)
	assert.Len(t, bindings, 1)
}

func TestInMemoryStoreReplaceIsAtomicPerSubject(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, "g1", sampleTriples("urn:a")))
	require.NoError(t, s.Replace(ctx, "g1", "urn:a", []ragno.Triple{
		{Subject: "urn:a", Predicate: "ragno:prefLabel", Object: ragno.Lit("Go")},
	}))

	bindings, err := s.Query(ctx, "g1", Pattern{Subject: "urn:a"})
	require.NoError(t, err)
	require.Len(t, bindings, 1)
	assert.Equal(t, "Go", bindings[0]["object"].Literal)
}

func TestInMemoryStoreGraphsAreIndependent(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, "g1", sampleTriples("urn:a")))
	require.NoError(t, s.Insert(ctx, "g2", sampleTriples("urn:b")))

	statsG1, _ := s.Stats(ctx, "g1")
	statsG2, _ := s.Stats(ctx, "g2")
	assert.Equal(t, 2, statsG1.TripleCount)
	assert.Equal(t, 2, statsG2.TripleCount)
}

func TestInMemoryStoreRespectsCancellation(t *testing.T) {
	s := NewInMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Insert(ctx, "g1", sampleTriples("urn:a"))
	assert.Error(t, err)
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")
	ctx := context.Background()

	fs1, err := OpenFileStore(path)
	require.NoError(t, err)
	require.NoError(t, fs1.Insert(ctx, "g1", sampleTriples("urn:a")))

	_, err = os.Stat(path)
	require.NoError(t, err)

	fs2, err := OpenFileStore(path)
	require.NoError(t, err)
	bindings, err := fs2.Query(ctx, "g1", Pattern{Subject: "urn:a"})
	require.NoError(t, err)
	assert.Len(t, bindings, 2)
}

func TestCachedStoreServesFromCacheUntilInvalidated(t *testing.T) {
	inner := NewInMemoryStore()
	ctx := context.Background()
	require.NoError(t, inner.Insert(ctx, "g1", sampleTriples("urn:a")))

	cached, err := NewCachedStore(inner, 16, time.Minute)
	require.NoError(t, err)

	first, err := cached.Query(ctx, "g1", Pattern{Subject: "urn:a"})
	require.NoError(t, err)
	assert.Len(t, first, 2)

	// Mutate the inner store directly; the cache should still return the
	// stale snapshot until a write goes through CachedStore itself.
	require.NoError(t, inner.Insert(ctx, "g1", []ragno.Triple{
		{Subject: "urn:a", Predicate: "ragno:altLabel", Object: ragno.Lit("Go")},
	}))
	stale, err := cached.Query(ctx, "g1", Pattern{Subject: "urn:a"})
	require.NoError(t, err)
	assert.Len(t, stale, 2)

	require.NoError(t, cached.Insert(ctx, "g1", []ragno.Triple{
		{Subject: "urn:a", Predicate: "ragno:altLabel", Object: ragno.Lit("GoLang")},
	}))
	fresh, err := cached.Query(ctx, "g1", Pattern{Subject: "urn:a"})
	require.NoError(t, err)
	assert.Len(t, fresh, 4)
}

func TestCachedStoreTTLExpires(t *testing.T) {
	inner := NewInMemoryStore()
	ctx := context.Background()
	require.NoError(t, inner.Insert(ctx, "g1", sampleTriples("urn:a")))

	cached, err := NewCachedStore(inner, 16, time.Millisecond)
	require.NoError(t, err)

	_, err = cached.Query(ctx, "g1", Pattern{Subject: "urn:a"})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	require.NoError(t, inner.Insert(ctx, "g1", []ragno.Triple{
		{Subject: "urn:a", Predicate: "ragno:altLabel", Object: ragno.Lit("Go")},
	}))
	refreshed, err := cached.Query(ctx, "g1", Pattern{Subject: "urn:a"})
	require.NoError(t, err)
	assert.Len(t, refreshed, 3)
}
