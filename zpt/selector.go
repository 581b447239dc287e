package zpt

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"semem/graphalgo"
	"semem/ragno"
	"semem/vectorindex"
)

// Item is the minimal shape the Selector needs from a Ragno Element,
// decoupled from the Graph Store/Vector Index so this package stays free
// of a direct dependency on either (its capability-set guidance).
type Item struct {
	URI       string
	Type      ragno.Type
	Label     string
	Summary   string
	Content   string
	Timestamp time.Time
	Embedding []float32
	HasGeo    bool
	Lat, Lon  float64
}

// VectorIndex is the subset of vectorindex.Index the embedding tilt needs.
type VectorIndex interface {
	Search(vector []float32, k int, typeFilter []ragno.Type, threshold float64) []vectorindex.Match
}

// SelectedItem is one item surviving the selection pipeline, with its
// combined score.
type SelectedItem struct {
	Item
	Score float64
}

// Diagnostics reports the tilt, counts, and cache info for one selection.
type Diagnostics struct {
	TilStage      Tilt
	CandidateCount int
	SelectedCount  int
	CacheHit       bool
}

// SelectionResult is the output of the selection pipeline.
type SelectionResult struct {
	Items             []SelectedItem
	NavigationContext Normalized
	Diagnostics       Diagnostics
}

// Selector runs its selection pipeline over a candidate pool.
type Selector struct {
	cache *SelectionCache
	index VectorIndex
	ppr   func(seeds []string) []graphalgo.PPRScore
}

// NewSelector constructs a Selector. index and ppr may be nil if the
// embedding/graph tilts are never exercised by the caller.
func NewSelector(cache *SelectionCache, index VectorIndex, ppr func(seeds []string) []graphalgo.PPRScore) *Selector {
	return &Selector{cache: cache, index: index, ppr: ppr}
}

func typeForZoom(z Zoom) ragno.Type {
	switch z {
	case ZoomEntity:
		return ragno.TypeEntity
	case ZoomUnit:
		return ragno.TypeSemanticUnit
	case ZoomText:
		return ragno.TypeTextElement
	case ZoomCommunity:
		return ragno.TypeCommunityElement
	default:
		return ragno.TypeSemanticUnit
	}
}

// Select runs the full selection pipeline: fingerprint/cache check,
// criteria build, tilt-specific sub-selection, post-processing.
func (s *Selector) Select(ctx context.Context, n Normalized, pool []Item, queryVector []float32) SelectionResult {
	if cached, ok := s.cache.Get(n.Fingerprint); ok {
		cached.Diagnostics.CacheHit = true
		return cached
	}

	filtered := applyPan(pool, n.Pan, typeForZoom(n.Zoom), n.Zoom)

	var scored []SelectedItem
	switch n.Tilt {
	case TiltKeywords:
		scored = s.selectByKeywords(filtered, n.Pan.Topic)
	case TiltEmbedding:
		scored = s.selectByEmbedding(filtered, queryVector, typeForZoom(n.Zoom), n.Threshold())
	case TiltGraph:
		scored = s.selectByGraph(filtered, n.Pan)
	case TiltTemporal:
		scored = s.selectByTemporal(filtered)
	default:
		scored = s.selectByKeywords(filtered, n.Pan.Topic)
	}

	scored = dedupeByURI(scored)
	scored = capPerType(scored, n.MaxResultsPerType)

	result := SelectionResult{
		Items:             scored,
		NavigationContext: n,
		Diagnostics: Diagnostics{
			TilStage:       n.Tilt,
			CandidateCount: len(filtered),
			SelectedCount:  len(scored),
		},
	}
	s.cache.Put(n.Fingerprint, result)
	return result
}

// Threshold is a placeholder accessor kept on Normalized's call site for
// readability; ZPT has no user-facing threshold field distinct from the
// tilt-specific scoring, so it returns 0 (accept everything) by default.
func (n Normalized) Threshold() float64 { return 0 }

func applyPan(pool []Item, pan Pan, zoomType ragno.Type, zoom Zoom) []Item {
	var out []Item
	for _, item := range pool {
		if zoom != ZoomCorpus && item.Type != zoomType {
			continue
		}
		if pan.Topic != "" && !matchesTopic(item, pan.Topic) {
			continue
		}
		if len(pan.EntityRefs) > 0 && !matchesEntityRefs(item, pan.EntityRefs) {
			continue
		}
		if pan.Temporal != nil && !withinTemporal(item, *pan.Temporal) {
			continue
		}
		if pan.Geographic != nil && !withinGeographic(item, *pan.Geographic) {
			continue
		}
		out = append(out, item)
	}
	return out
}

func matchesTopic(item Item, topic string) bool {
	needle := strings.ToLower(topic)
	return strings.Contains(strings.ToLower(item.Label), needle) ||
		strings.Contains(strings.ToLower(item.Summary), needle) ||
		strings.Contains(strings.ToLower(item.Content), needle)
}

func matchesEntityRefs(item Item, refs []string) bool {
	for _, ref := range refs {
		if item.URI == ref || item.Label == ref {
			return true
		}
	}
	return false
}

func withinTemporal(item Item, r TemporalRange) bool {
	if item.Timestamp.IsZero() {
		return false
	}
	return !item.Timestamp.Before(r.Start) && !item.Timestamp.After(r.End)
}

// withinGeographic treats any Element lacking spatial metadata as a
// non-match, per the explicit Open Question resolution.
func withinGeographic(item Item, g GeographicFilter) bool {
	if !item.HasGeo {
		return false
	}
	if g.HasBBox {
		w, s, e, n := g.BBox[0], g.BBox[1], g.BBox[2], g.BBox[3]
		return item.Lon >= w && item.Lon <= e && item.Lat >= s && item.Lat <= n
	}
	if g.HasPoint {
		return haversineKM(item.Lat, item.Lon, g.PointLat, g.PointLon) <= g.RadiusKM
	}
	return false
}

func haversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKM = 6371.0
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKM * c
}

// selectByKeywords scores items by TF-IDF over label/summary/content,
// with naive stopword filtering ( tilt=keywords).
func (s *Selector) selectByKeywords(items []Item, topic string) []SelectedItem {
	docs := make([][]string, len(items))
	for i, item := range items {
		docs[i] = tokenize(item.Label + " " + item.Summary + " " + item.Content)
	}
	idf := computeIDF(docs)

	queryTerms := tokenize(topic)
	out := make([]SelectedItem, 0, len(items))
	for i, item := range items {
		score := tfidfScore(docs[i], queryTerms, idf)
		out = append(out, SelectedItem{Item: item, Score: score})
	}
	sortByScore(out)
	return out
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "and": true, "or": true,
	"in": true, "on": true, "is": true, "to": true, "for": true, "with": true,
}

func tokenize(s string) []string {
	var out []string
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		tok = strings.Trim(tok, ".,;:!?\"'()[]{}")
		if tok == "" || stopwords[tok] {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func computeIDF(docs [][]string) map[string]float64 {
	df := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]bool)
		for _, term := range doc {
			if !seen[term] {
				df[term]++
				seen[term] = true
			}
		}
	}
	idf := make(map[string]float64, len(df))
	n := float64(len(docs))
	for term, count := range df {
		idf[term] = math.Log(1 + n/float64(count))
	}
	return idf
}

func tfidfScore(doc, queryTerms []string, idf map[string]float64) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	tf := make(map[string]int)
	for _, term := range doc {
		tf[term]++
	}
	var score float64
	for _, qt := range queryTerms {
		score += float64(tf[qt]) * idf[qt]
	}
	return score
}

// selectByEmbedding scores items via Vector Index cosine similarity.
func (s *Selector) selectByEmbedding(items []Item, queryVector []float32, typ ragno.Type, threshold float64) []SelectedItem {
	if s.index == nil || queryVector == nil {
		return nil
	}
	matches := s.index.Search(queryVector, len(items)+1, []ragno.Type{typ}, threshold)
	scoreByID := make(map[string]float64, len(matches))
	for _, m := range matches {
		scoreByID[m.ID] = m.Score
	}
	out := make([]SelectedItem, 0, len(items))
	for _, item := range items {
		if score, ok := scoreByID[item.URI]; ok {
			out = append(out, SelectedItem{Item: item, Score: score})
		}
	}
	sortByScore(out)
	return out
}

// selectByGraph ranks items by PPR score, seeded by matching entities or
// (if none match) a deterministic sample of the pool.
func (s *Selector) selectByGraph(items []Item, pan Pan) []SelectedItem {
	if s.ppr == nil {
		return nil
	}
	seeds := pan.EntityRefs
	if len(seeds) == 0 {
		seeds = sampleSeeds(items, 5)
	}
	scores := s.ppr(seeds)
	scoreByURI := make(map[string]float64, len(scores))
	for _, sc := range scores {
		scoreByURI[sc.URI] = sc.Score
	}
	out := make([]SelectedItem, 0, len(items))
	for _, item := range items {
		out = append(out, SelectedItem{Item: item, Score: scoreByURI[item.URI]})
	}
	sortByScore(out)
	return out
}

// sampleSeeds deterministically samples up to n URIs (sorted, so the same
// pool always yields the same seed set — no randomness per the
// determinism expectations around caching).
func sampleSeeds(items []Item, n int) []string {
	uris := make([]string, len(items))
	for i, item := range items {
		uris[i] = item.URI
	}
	sort.Strings(uris)
	if len(uris) > n {
		uris = uris[:n]
	}
	return uris
}

// selectByTemporal orders items chronologically with recency weighting.
func (s *Selector) selectByTemporal(items []Item) []SelectedItem {
	out := make([]SelectedItem, 0, len(items))
	now := time.Now()
	for _, item := range items {
		ageSeconds := now.Sub(item.Timestamp).Seconds()
		if ageSeconds < 0 {
			ageSeconds = 0
		}
		score := 1 / (1 + ageSeconds/86400)
		out = append(out, SelectedItem{Item: item, Score: score})
	}
	sortByScore(out)
	return out
}

func sortByScore(items []SelectedItem) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].URI < items[j].URI
	})
}

func dedupeByURI(items []SelectedItem) []SelectedItem {
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, item := range items {
		if seen[item.URI] {
			continue
		}
		seen[item.URI] = true
		out = append(out, item)
	}
	return out
}

func capPerType(items []SelectedItem, limitPerType int) []SelectedItem {
	if limitPerType <= 0 {
		return items
	}
	counts := make(map[ragno.Type]int)
	out := items[:0]
	for _, item := range items {
		if counts[item.Type] >= limitPerType {
			continue
		}
		counts[item.Type]++
		out = append(out, item)
	}
	return out
}
