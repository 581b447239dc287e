package graphalgo

import "sort"

// Community is one detected cluster: a set of member URIs plus a
// deterministic representative (its lexicographically-smallest member,
// used for tie-breaking between equally-scored moves).
type Community struct {
	ID      int
	Members []string
}

// totalWeight sums all edge weights in the projection (counted once per
// edge) plus returns per-node weighted degree.
func totalWeight(p *Projection) (total float64, degree map[string]float64) {
	degree = make(map[string]float64, len(p.idOf))
	for _, uri := range p.URIs() {
		var d float64
		for _, nbr := range p.Neighbors(uri) {
			d += p.Weight(uri, nbr)
		}
		degree[uri] = d
		total += d
	}
	return total / 2, degree
}

// Leiden performs modularity optimization: a Louvain-style local-moving
// phase over nodes in URI-lexicographic order, followed by refine, which
// groups the final assignment into communities with stable IDs. The
// found communities are not split or re-examined after local moving.
// minCommunitySize filters out communities smaller than the configured
// minimum, folding each into the neighboring community reached by its
// heaviest single edge (or leaving it as-is if it has no neighbors).
func Leiden(p *Projection, resolution float64, minCommunitySize, iterationCap int) Result[[]Community] {
	m, degree := totalWeight(p)
	if m == 0 {
		return singletonResult(p)
	}

	assignment := make(map[string]int, len(p.idOf))
	uris := p.URIs()
	for i, uri := range uris {
		assignment[uri] = i
	}

	converged := true
	iteration := 0
	improved := true
	for improved {
		improved = false
		if iteration >= iterationCap {
			converged = false
			break
		}
		iteration++
		for _, uri := range uris {
			bestComm, bestGain := assignment[uri], 0.0
			currentComm := assignment[uri]
			neighborComms := map[int]bool{currentComm: true}
			for _, nbr := range p.Neighbors(uri) {
				neighborComms[assignment[nbr]] = true
			}
			candidates := make([]int, 0, len(neighborComms))
			for c := range neighborComms {
				candidates = append(candidates, c)
			}
			sort.Ints(candidates)

			for _, comm := range candidates {
				gain := modularityGain(p, assignment, uri, comm, degree, m, resolution)
				if gain > bestGain+1e-12 {
					bestGain = gain
					bestComm = comm
				}
			}
			if bestComm != currentComm {
				assignment[uri] = bestComm
				improved = true
			}
		}
	}

	communities := refine(p, assignment)
	communities = applyMinSize(p, communities, minCommunitySize)
	return Result[[]Community]{Value: communities, Converged: converged, Iteration: iteration}
}

func singletonResult(p *Projection) Result[[]Community] {
	uris := p.URIs()
	out := make([]Community, len(uris))
	for i, uri := range uris {
		out[i] = Community{ID: i, Members: []string{uri}}
	}
	return Result[[]Community]{Value: out, Converged: true}
}

func modularityGain(p *Projection, assignment map[string]int, uri string, targetComm int, degree map[string]float64, m, resolution float64) float64 {
	var sumIn float64
	for _, nbr := range p.Neighbors(uri) {
		if assignment[nbr] == targetComm {
			sumIn += p.Weight(uri, nbr)
		}
	}
	var sumTot float64
	for other, comm := range assignment {
		if other != uri && comm == targetComm {
			sumTot += degree[other]
		}
	}
	ki := degree[uri]
	return sumIn/m - resolution*(sumTot*ki)/(2*m*m)
}

// refine groups URIs by their final community id, assigning stable
// sequential IDs ordered by each community's lexicographically-smallest
// member (the deterministic tie-break requirement).
func refine(p *Projection, assignment map[string]int) []Community {
	byComm := make(map[int][]string)
	for uri, comm := range assignment {
		byComm[comm] = append(byComm[comm], uri)
	}
	raw := make([]Community, 0, len(byComm))
	for _, members := range byComm {
		sort.Strings(members)
		raw = append(raw, Community{Members: members})
	}
	sort.Slice(raw, func(i, j int) bool { return raw[i].Members[0] < raw[j].Members[0] })
	for i := range raw {
		raw[i].ID = i
	}
	return raw
}

// applyMinSize folds communities smaller than minSize into the
// neighboring community reached by their heaviest single edge (ties go
// to the lower community ID), or leaves them as-is if isolated.
func applyMinSize(p *Projection, communities []Community, minSize int) []Community {
	if minSize <= 1 {
		return communities
	}
	memberOf := make(map[string]int)
	for _, c := range communities {
		for _, uri := range c.Members {
			memberOf[uri] = c.ID
		}
	}
	byID := make(map[int]*Community, len(communities))
	for i := range communities {
		byID[communities[i].ID] = &communities[i]
	}

	for _, c := range communities {
		if len(c.Members) >= minSize {
			continue
		}
		target, bestWeight := -1, 0.0
		for _, uri := range c.Members {
			for _, nbr := range p.Neighbors(uri) {
				nbrComm := memberOf[nbr]
				if nbrComm == c.ID {
					continue
				}
				w := p.Weight(uri, nbr)
				if w > bestWeight || (w == bestWeight && target != -1 && nbrComm < target) {
					bestWeight = w
					target = nbrComm
				}
			}
		}
		if target == -1 {
			continue
		}
		dest := byID[target]
		dest.Members = append(dest.Members, c.Members...)
		sort.Strings(dest.Members)
		for _, uri := range c.Members {
			memberOf[uri] = target
		}
		byID[c.ID].Members = nil
	}

	out := make([]Community, 0, len(communities))
	for _, c := range communities {
		if len(c.Members) > 0 {
			out = append(out, *byID[c.ID])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Members[0] < out[j].Members[0] })
	return out
}
