package embedding

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semem/internal/xerrors"
)

type fakeProvider struct {
	name     string
	priority int
	caps     []Capability
	calls    int64
	vector   []float32
	err      error
}

func (f *fakeProvider) Name() string               { return f.name }
func (f *fakeProvider) Priority() int               { return f.priority }
func (f *fakeProvider) Capabilities() []Capability { return f.caps }
func (f *fakeProvider) Embed(ctx context.Context, text, model string) ([]float32, error) {
	atomic.AddInt64(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return append([]float32(nil), f.vector...), nil
}

func TestCacheEmbedHitsProviderOnceThenCaches(t *testing.T) {
	p := &fakeProvider{name: "local", priority: 1, caps: []Capability{CapEmbed}, vector: []float32{3, 4}}
	c, err := NewCache(16, []Provider{p}, WithMetric(MetricDot))
	require.NoError(t, err)

	v1, err := c.Embed(context.Background(), "hello", "m1")
	require.NoError(t, err)
	v2, err := c.Embed(context.Background(), "hello", "m1")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.EqualValues(t, 1, p.calls)
}

func TestCacheEmbedNormalizesForCosine(t *testing.T) {
	p := &fakeProvider{name: "local", priority: 1, caps: []Capability{CapEmbed}, vector: []float32{3, 4}}
	c, err := NewCache(16, []Provider{p}, WithMetric(MetricCosine))
	require.NoError(t, err)

	v, err := c.Embed(context.Background(), "hello", "m1")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, float64(v[0]*v[0]+v[1]*v[1]), 1e-6)
}

func TestCacheSkipsProvidersWithoutEmbedCapability(t *testing.T) {
	chatOnly := &fakeProvider{name: "chat", priority: 10, caps: []Capability{CapChat}}
	embedder := &fakeProvider{name: "embedder", priority: 1, caps: []Capability{CapEmbed}, vector: []float32{1, 0}}
	c, err := NewCache(16, []Provider{chatOnly, embedder}, WithMetric(MetricDot))
	require.NoError(t, err)

	v, err := c.Embed(context.Background(), "hello", "m1")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, v)
}

func TestCacheEmbedRetriesThenFailsAsProviderUnavailable(t *testing.T) {
	boom := errors.New("upstream exploded")
	p := &fakeProvider{name: "flaky", priority: 1, caps: []Capability{CapEmbed}, err: boom}
	c, err := NewCache(16, []Provider{p}, WithMaxRetry(1), WithBackoffBase(time.Millisecond))
	require.NoError(t, err)

	_, err = c.Embed(context.Background(), "hello", "m1")
	require.Error(t, err)
	assert.True(t, xerrors.Is(err, xerrors.KindProviderUnavailable))
}

func TestCosineSimilarityIdenticalVectorsIsOne(t *testing.T) {
	v := []float32{1, 2, 3}
	assert.InDelta(t, 1.0, CosineSimilarity(v, v), 1e-9)
}

func TestCosineSimilarityOrthogonalIsZero(t *testing.T) {
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
}
