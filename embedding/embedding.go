// Package embedding implements the Embedding Cache & Provider Adapter:
// a deterministic cached mapping text→vector over one or
// more pluggable providers, grounded on the teacher's
// internal/service/llm package (provider adapter shape) and
// pkg/observability (cache metrics naming) plus the embedding-cache
// doc-comment pattern from the pack's developer-mesh example.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sony/gobreaker"

	"semem/internal/xerrors"
)

// Metric selects the distance function used for vector comparison;
// Cosine triggers L2 normalization on every embedded vector.
type Metric string

const (
	MetricCosine Metric = "cosine"
	MetricDot    Metric = "dot"
)

// Capability is one function a Provider may support.
type Capability string

const (
	CapEmbed    Capability = "embed"
	CapChat     Capability = "chat"
	CapStream   Capability = "stream"
	CapTokenize Capability = "tokenize"
)

// Provider is implemented by every embedding/LLM backend (local or remote
// HTTP) behind one contract.
type Provider interface {
	Name() string
	Priority() int
	Capabilities() []Capability
	Embed(ctx context.Context, text, model string) ([]float32, error)
}

func hasCapability(p Provider, c Capability) bool {
	for _, have := range p.Capabilities() {
		if have == c {
			return true
		}
	}
	return false
}

// entry is one cached embedding.
type entry struct {
	vector    []float32
	expiresAt time.Time
}

// Cache adapts a pool of Providers behind its contract: an LRU,
// TTL-bounded mapping hash(model‖text)→vector, with retried, circuit-broken
// provider calls on miss.
type Cache struct {
	mu        sync.Mutex
	store     *lru.Cache[string, entry]
	ttl       time.Duration
	providers []Provider
	metric    Metric
	dim       int
	breakers  map[string]*gobreaker.CircuitBreaker[any]
	maxRetry  int
	backoff   time.Duration
}

// Option configures a Cache at construction.
type Option func(*Cache)

func WithTTL(ttl time.Duration) Option       { return func(c *Cache) { c.ttl = ttl } }
func WithMetric(m Metric) Option             { return func(c *Cache) { c.metric = m } }
func WithDimension(d int) Option             { return func(c *Cache) { c.dim = d } }
func WithMaxRetry(n int) Option              { return func(c *Cache) { c.maxRetry = n } }
func WithBackoffBase(d time.Duration) Option { return func(c *Cache) { c.backoff = d } }

// NewCache builds a Cache over the given providers, sorted by descending
// priority so Embed() tries the most-preferred capable provider first.
func NewCache(capacity int, providers []Provider, opts ...Option) (*Cache, error) {
	l, err := lru.New[string, entry](capacity)
	if err != nil {
		return nil, err
	}
	sorted := append([]Provider(nil), providers...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority() > sorted[j].Priority() })

	c := &Cache{
		store:     l,
		ttl:       time.Hour,
		providers: sorted,
		metric:    MetricCosine,
		dim:       1536,
		breakers:  make(map[string]*gobreaker.CircuitBreaker[any]),
		maxRetry:  3,
		backoff:   100 * time.Millisecond,
	}
	for _, o := range opts {
		o(c)
	}
	for _, p := range c.providers {
		c.breakers[p.Name()] = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
			Name:        "embedding-" + p.Name(),
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= 5 },
		})
	}
	return c, nil
}

func cacheKey(model, text string) string {
	h := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(h[:])
}

// Embed returns the cached vector for (model, text), computing and
// caching it via the first capable provider (in priority order) on a
// cache miss. Provider failures propagate as ProviderUnavailable after
// bounded retry with exponential backoff.
func (c *Cache) Embed(ctx context.Context, text, model string) ([]float32, error) {
	key := cacheKey(model, text)

	c.mu.Lock()
	if e, ok := c.store.Get(key); ok && time.Now().Before(e.expiresAt) {
		c.mu.Unlock()
		return e.vector, nil
	}
	c.mu.Unlock()

	vector, err := c.embedUncached(ctx, text, model)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.store.Add(key, entry{vector: vector, expiresAt: time.Now().Add(c.ttl)})
	c.mu.Unlock()
	return vector, nil
}

func (c *Cache) embedUncached(ctx context.Context, text, model string) ([]float32, error) {
	var lastErr error
	for _, p := range c.providers {
		if !hasCapability(p, CapEmbed) {
			continue
		}
		vector, err := c.callWithRetry(ctx, p, text, model)
		if err == nil {
			if c.metric == MetricCosine {
				normalizeL2(vector)
			}
			return vector, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no provider capable of embed")
	}
	return nil, xerrors.NewProviderUnavailable("all embedding providers failed", lastErr)
}

func (c *Cache) callWithRetry(ctx context.Context, p Provider, text, model string) ([]float32, error) {
	breaker := c.breakers[p.Name()]
	var lastErr error
	for attempt := 0; attempt <= c.maxRetry; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff * time.Duration(1<<uint(attempt-1))):
			}
		}
		result, err := breaker.Execute(func() (any, error) {
			return p.Embed(ctx, text, model)
		})
		if err == nil {
			return result.([]float32), nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func normalizeL2(v []float32) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return
	}
	norm := math.Sqrt(sumSq)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}

// CosineSimilarity computes cosine similarity between two equal-length
// vectors, used throughout retrieval and vector search.
func CosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
