package graphalgo

import "sort"

// PPRScore pairs a node URI with its personalized PageRank mass.
type PPRScore struct {
	URI   string
	Score float64
}

// PersonalizedPageRank runs power iteration with teleportation
// concentrated on seeds . alpha is the teleport probability
// (probability mass returning to the seed set each step); iterations
// defaults to 2 for the "shallow" variant used in retrieval.
func PersonalizedPageRank(p *Projection, seeds []string, alpha float64, iterations, iterationCap int) Result[[]PPRScore] {
	uris := p.URIs()
	n := len(uris)
	if n == 0 {
		return Result[[]PPRScore]{Converged: true}
	}

	seedSet := make(map[string]bool, len(seeds))
	for _, s := range seeds {
		seedSet[s] = true
	}
	teleport := make(map[string]float64, n)
	if len(seedSet) > 0 {
		mass := 1.0 / float64(len(seedSet))
		for s := range seedSet {
			teleport[s] = mass
		}
	} else {
		for _, uri := range uris {
			teleport[uri] = 1.0 / float64(n)
		}
	}

	rank := make(map[string]float64, n)
	for uri, mass := range teleport {
		rank[uri] = mass
	}

	degree := make(map[string]float64, n)
	for _, uri := range uris {
		var d float64
		for _, nbr := range p.Neighbors(uri) {
			d += p.Weight(uri, nbr)
		}
		degree[uri] = d
	}

	if iterations <= 0 {
		iterations = 2
	}
	effectiveIterations := iterations
	if effectiveIterations > iterationCap {
		effectiveIterations = iterationCap
	}

	for step := 0; step < effectiveIterations; step++ {
		next := make(map[string]float64, n)
		for _, uri := range uris {
			next[uri] = alpha * teleport[uri]
		}
		for _, uri := range uris {
			if degree[uri] == 0 {
				continue
			}
			share := rank[uri] / degree[uri]
			for _, nbr := range p.Neighbors(uri) {
				next[nbr] += (1 - alpha) * share * p.Weight(uri, nbr)
			}
		}
		rank = next
	}

	out := make([]PPRScore, 0, n)
	for uri, score := range rank {
		out = append(out, PPRScore{URI: uri, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].URI < out[j].URI
	})
	return Result[[]PPRScore]{Value: out, Converged: iterations <= iterationCap, Iteration: effectiveIterations}
}

// TopKPerType restricts scores to the URIs present in allowedByType and
// returns the top k per element type.
func TopKPerType(scores []PPRScore, allowedByType map[string][]string, k int) map[string][]PPRScore {
	uriType := make(map[string]string)
	for typ, uris := range allowedByType {
		for _, uri := range uris {
			uriType[uri] = typ
		}
	}
	byType := make(map[string][]PPRScore)
	for _, s := range scores {
		typ, ok := uriType[s.URI]
		if !ok {
			continue
		}
		if len(byType[typ]) < k {
			byType[typ] = append(byType[typ], s)
		}
	}
	return byType
}
