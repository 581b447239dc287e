// Package vectorindex implements the Vector Index: an
// HNSW (hierarchical navigable small world) approximate nearest-neighbor
// index over element embeddings, partitioned by Ragno element type and
// rebuildable offline from the Graph Store.
//
// There is no HNSW library anywhere in the reference corpus, so this is a
// hand-rolled implementation of the standard Malkov/Yashunin algorithm,
// written in the teacher's struct-plus-mutex style (internal/repository
// in-memory adapters).
package vectorindex

import (
	"math"
	"math/rand"
	"sort"
	"sync"

	"semem/embedding"
	"semem/ragno"
)

// Metric is the distance function used to rank candidates.
type Metric string

const (
	MetricCosine Metric = "cosine"
	MetricDot    Metric = "dot"
)

// Match is one scored result from Search.
type Match struct {
	ID    string
	Score float64
}

type node struct {
	id        string
	vector    []float32
	typ       ragno.Type
	level     int
	neighbors [][]string // neighbors[level] = neighbor ids at that level
}

// Index is a single HNSW graph plus a type→id partition index used to
// restrict search to "retrievable" types or to {Entity}.
type Index struct {
	mu             sync.RWMutex
	nodes          map[string]*node
	entryPoint     string
	maxLevel       int
	m              int
	efConstruction int
	efSearch       int
	metric         Metric
	levelMult      float64
	rng            *rand.Rand
	byType         map[ragno.Type]map[string]struct{}
}

// Config configures HNSW construction parameters.
type Config struct {
	M              int
	EfConstruction int
	EfSearch       int
	Metric         Metric
	Seed           int64
}

// New builds an empty index with the given configuration, defaulting
// M=16, efConstruction=200, efSearch=50, metric=cosine per common HNSW
// practice and the "cosine default".
func New(cfg Config) *Index {
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfConstruction == 0 {
		cfg.EfConstruction = 200
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 50
	}
	if cfg.Metric == "" {
		cfg.Metric = MetricCosine
	}
	return &Index{
		nodes:          make(map[string]*node),
		m:              cfg.M,
		efConstruction: cfg.EfConstruction,
		efSearch:       cfg.EfSearch,
		metric:         cfg.Metric,
		levelMult:      1 / math.Log(float64(cfg.M)),
		rng:            rand.New(rand.NewSource(cfg.Seed)),
		byType:         make(map[ragno.Type]map[string]struct{}),
	}
}

func (ix *Index) distance(a, b []float32) float64 {
	if ix.metric == MetricDot {
		var dot float64
		for i := range a {
			dot += float64(a[i]) * float64(b[i])
		}
		return -dot
	}
	return -embedding.CosineSimilarity(a, b)
}

func (ix *Index) randomLevel() int {
	level := int(math.Floor(-math.Log(ix.rng.Float64()+1e-12) * ix.levelMult))
	return level
}

// Add inserts or replaces the vector for id under the given element type.
func (ix *Index) Add(id string, vector []float32, typ ragno.Type) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if existing, ok := ix.nodes[id]; ok {
		ix.unlinkLocked(existing)
		delete(ix.byType[existing.typ], id)
	}

	level := ix.randomLevel()
	n := &node{id: id, vector: append([]float32(nil), vector...), typ: typ, level: level, neighbors: make([][]string, level+1)}
	ix.nodes[id] = n
	if ix.byType[typ] == nil {
		ix.byType[typ] = make(map[string]struct{})
	}
	ix.byType[typ][id] = struct{}{}

	if ix.entryPoint == "" {
		ix.entryPoint = id
		ix.maxLevel = level
		return
	}

	ix.insertLocked(n)
	if level > ix.maxLevel {
		ix.maxLevel = level
		ix.entryPoint = id
	}
}

func (ix *Index) insertLocked(n *node) {
	cur := ix.entryPoint
	for lc := ix.maxLevel; lc > n.level; lc-- {
		cur = ix.greedyClosestLocked(cur, n.vector, lc)
	}
	for lc := min(n.level, ix.maxLevel); lc >= 0; lc-- {
		candidates := ix.searchLayerLocked(n.vector, cur, ix.efConstruction, lc)
		selected := ix.selectNeighborsLocked(candidates, ix.m)
		n.neighbors[lc] = selected
		for _, nbrID := range selected {
			nbr := ix.nodes[nbrID]
			if lc >= len(nbr.neighbors) {
				continue
			}
			nbr.neighbors[lc] = append(nbr.neighbors[lc], n.id)
			if len(nbr.neighbors[lc]) > ix.m {
				nbr.neighbors[lc] = ix.selectNeighborsLocked(ix.idsToCandidates(nbr.vector, nbr.neighbors[lc]), ix.m)
			}
		}
		if len(candidates) > 0 {
			cur = candidates[0].ID
		}
	}
}

func (ix *Index) idsToCandidates(from []float32, ids []string) []Match {
	out := make([]Match, 0, len(ids))
	for _, id := range ids {
		n := ix.nodes[id]
		out = append(out, Match{ID: id, Score: -ix.distance(from, n.vector)})
	}
	return out
}

func (ix *Index) greedyClosestLocked(from string, target []float32, level int) string {
	cur := from
	curDist := ix.distance(target, ix.nodes[cur].vector)
	for {
		improved := false
		n := ix.nodes[cur]
		if level < len(n.neighbors) {
			for _, nbrID := range n.neighbors[level] {
				d := ix.distance(target, ix.nodes[nbrID].vector)
				if d < curDist {
					curDist = d
					cur = nbrID
					improved = true
				}
			}
		}
		if !improved {
			return cur
		}
	}
}

// searchLayerLocked performs a best-first search at one layer, returning
// up to ef candidates sorted by ascending distance (best score first).
func (ix *Index) searchLayerLocked(target []float32, entry string, ef, level int) []Match {
	visited := map[string]bool{entry: true}
	entryDist := ix.distance(target, ix.nodes[entry].vector)
	candidates := []Match{{ID: entry, Score: -entryDist}}
	results := []Match{{ID: entry, Score: -entryDist}}

	for len(candidates) > 0 {
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
		best := candidates[0]
		candidates = candidates[1:]

		sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
		worst := results[len(results)-1]
		if -best.Score > -worst.Score && len(results) >= ef {
			break
		}

		n := ix.nodes[best.ID]
		if level >= len(n.neighbors) {
			continue
		}
		for _, nbrID := range n.neighbors[level] {
			if visited[nbrID] {
				continue
			}
			visited[nbrID] = true
			d := ix.distance(target, ix.nodes[nbrID].vector)
			if len(results) < ef || d < -results[len(results)-1].Score {
				candidates = append(candidates, Match{ID: nbrID, Score: -d})
				results = append(results, Match{ID: nbrID, Score: -d})
				sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
				if len(results) > ef {
					results = results[:ef]
				}
			}
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}

func (ix *Index) selectNeighborsLocked(candidates []Match, m int) []string {
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	if len(candidates) > m {
		candidates = candidates[:m]
	}
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.ID
	}
	return out
}

func (ix *Index) unlinkLocked(n *node) {
	for level, nbrs := range n.neighbors {
		for _, nbrID := range nbrs {
			nbr, ok := ix.nodes[nbrID]
			if !ok || level >= len(nbr.neighbors) {
				continue
			}
			filtered := nbr.neighbors[level][:0]
			for _, id := range nbr.neighbors[level] {
				if id != n.id {
					filtered = append(filtered, id)
				}
			}
			nbr.neighbors[level] = filtered
		}
	}
	delete(ix.nodes, n.id)
	if ix.entryPoint == n.id {
		ix.entryPoint = ""
		ix.maxLevel = 0
		for id, other := range ix.nodes {
			ix.entryPoint = id
			ix.maxLevel = other.level
			break
		}
	}
}

// Remove deletes id from the index.
func (ix *Index) Remove(id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	n, ok := ix.nodes[id]
	if !ok {
		return
	}
	ix.unlinkLocked(n)
	if set, ok := ix.byType[n.typ]; ok {
		delete(set, id)
	}
}

// Search returns up to k nearest matches to vector, optionally restricted
// to typeFilter and a minimum score threshold.
func (ix *Index) Search(vector []float32, k int, typeFilter []ragno.Type, threshold float64) []Match {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.entryPoint == "" {
		return nil
	}
	allowed := ix.allowedSetLocked(typeFilter)

	ef := ix.efSearch
	if ef < k {
		ef = k
	}
	cur := ix.entryPoint
	for lc := ix.maxLevel; lc > 0; lc-- {
		cur = ix.greedyClosestLocked(cur, vector, lc)
	}
	candidates := ix.searchLayerLocked(vector, cur, max(ef, k*4), 0)

	out := make([]Match, 0, k)
	for _, c := range candidates {
		if allowed != nil {
			if _, ok := allowed[c.ID]; !ok {
				continue
			}
		}
		if c.Score < threshold {
			continue
		}
		out = append(out, c)
		if len(out) == k {
			break
		}
	}
	return out
}

func (ix *Index) allowedSetLocked(typeFilter []ragno.Type) map[string]struct{} {
	if len(typeFilter) == 0 {
		return nil
	}
	allowed := make(map[string]struct{})
	for _, t := range typeFilter {
		for id := range ix.byType[t] {
			allowed[id] = struct{}{}
		}
	}
	return allowed
}

// Size returns the number of indexed vectors.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.nodes)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
