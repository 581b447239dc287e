package graphalgo

import "sort"

// KCore computes the core number of every node in the projection via
// iterative degree peeling, ties broken by URI lexicographic order
//.
func KCore(p *Projection, iterationCap int) Result[map[string]int] {
	coreNumber := make(map[string]int, len(p.idOf))
	degree := make(map[string]int, len(p.idOf))
	removed := make(map[string]bool, len(p.idOf))

	uris := p.URIs()
	for _, uri := range uris {
		degree[uri] = p.Degree(uri)
	}

	remaining := len(uris)
	iteration := 0
	k := 0
	for remaining > 0 {
		if iteration >= iterationCap {
			return Result[map[string]int]{Value: coreNumber, Converged: false, Iteration: iteration}
		}
		iteration++

		minDegree := -1
		for _, uri := range uris {
			if removed[uri] {
				continue
			}
			if minDegree == -1 || degree[uri] < minDegree {
				minDegree = degree[uri]
			}
		}
		if minDegree > k {
			k = minDegree
		}

		var toRemove []string
		for _, uri := range uris {
			if !removed[uri] && degree[uri] == minDegree {
				toRemove = append(toRemove, uri)
			}
		}
		sort.Strings(toRemove)

		for _, uri := range toRemove {
			coreNumber[uri] = k
			removed[uri] = true
			remaining--
			for _, nbr := range p.Neighbors(uri) {
				if !removed[nbr] {
					degree[nbr]--
				}
			}
		}
	}
	return Result[map[string]int]{Value: coreNumber, Converged: true, Iteration: iteration}
}
