package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"semem/ragno"
)

// cacheEntry pairs a cached query result with its expiry and the pattern
// that produced it, so writes can invalidate by pattern intersection.
type cacheEntry struct {
	graph     string
	pattern   Pattern
	bindings  []Binding
	expiresAt time.Time
}

// CachedStore wraps a remote-ish Store with a read-through LRU keyed by the
// parameter hash of (graph, pattern), used in front of SPARQLStore to
// absorb read-heavy workloads.
type CachedStore struct {
	inner Store
	cache *lru.Cache[string, cacheEntry]
	ttl   time.Duration
	mu    sync.Mutex
}

// NewCachedStore wraps inner with an LRU of the given size and per-entry
// TTL.
func NewCachedStore(inner Store, size int, ttl time.Duration) (*CachedStore, error) {
	c, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &CachedStore{inner: inner, cache: c, ttl: ttl}, nil
}

func parameterHash(graph string, p Pattern) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|", graph, p.Subject, p.Predicate)
	if p.Object != nil {
		fmt.Fprintf(h, "%v|%t|%s", p.Object.Literal, p.Object.IsURI, p.Object.DataType)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (c *CachedStore) Query(ctx context.Context, graph string, pattern Pattern) ([]Binding, error) {
	key := parameterHash(graph, pattern)
	c.mu.Lock()
	if entry, ok := c.cache.Get(key); ok && time.Now().Before(entry.expiresAt) {
		c.mu.Unlock()
		return entry.bindings, nil
	}
	c.mu.Unlock()

	bindings, err := c.inner.Query(ctx, graph, pattern)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.cache.Add(key, cacheEntry{graph: graph, pattern: pattern, bindings: bindings, expiresAt: time.Now().Add(c.ttl)})
	c.mu.Unlock()
	return bindings, nil
}

// invalidateOverlapping drops every cache entry whose pattern could
// overlap a write to (graph, writePattern): same graph and a subject or
// predicate in common (or either is a wildcard).
func (c *CachedStore) invalidateOverlapping(graph string, writePattern Pattern) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range c.cache.Keys() {
		entry, ok := c.cache.Peek(key)
		if !ok || entry.graph != graph {
			continue
		}
		if patternsOverlap(entry.pattern, writePattern) {
			c.cache.Remove(key)
		}
	}
}

func patternsOverlap(a, b Pattern) bool {
	if a.Subject != "" && b.Subject != "" && a.Subject != b.Subject {
		return false
	}
	if a.Predicate != "" && b.Predicate != "" && a.Predicate != b.Predicate {
		return false
	}
	if a.Object != nil && b.Object != nil && *a.Object != *b.Object {
		return false
	}
	return true
}

func (c *CachedStore) Insert(ctx context.Context, graph string, triples []ragno.Triple) error {
	if err := c.inner.Insert(ctx, graph, triples); err != nil {
		return err
	}
	for _, t := range triples {
		c.invalidateOverlapping(graph, Pattern{Subject: t.Subject, Predicate: t.Predicate})
	}
	return nil
}

func (c *CachedStore) Delete(ctx context.Context, graph string, pattern Pattern) error {
	if err := c.inner.Delete(ctx, graph, pattern); err != nil {
		return err
	}
	c.invalidateOverlapping(graph, pattern)
	return nil
}

func (c *CachedStore) Replace(ctx context.Context, graph, subject string, triples []ragno.Triple) error {
	if err := c.inner.Replace(ctx, graph, subject, triples); err != nil {
		return err
	}
	c.invalidateOverlapping(graph, Pattern{Subject: subject})
	return nil
}

func (c *CachedStore) Clear(ctx context.Context, graph string) error {
	if err := c.inner.Clear(ctx, graph); err != nil {
		return err
	}
	c.mu.Lock()
	for _, key := range c.cache.Keys() {
		if entry, ok := c.cache.Peek(key); ok && entry.graph == graph {
			c.cache.Remove(key)
		}
	}
	c.mu.Unlock()
	return nil
}

func (c *CachedStore) Stats(ctx context.Context, graph string) (Stats, error) {
	return c.inner.Stats(ctx, graph)
}
