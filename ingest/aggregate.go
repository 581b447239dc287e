package ingest

import (
	"context"
	"fmt"

	"semem/graphalgo"
	"semem/ragno"
)

var communityPromptTemplate = "Summarize what these related concepts have in common, in one sentence.\n\nConcepts:\n%s"

// Aggregate implements its aggregate(graph): runs Leiden over
// the Entity projection, then creates one CommunityElement per detected
// community with an LLM-generated summary and member references.
func (p *Pipeline) Aggregate(ctx context.Context, resolution float64, minCommunitySize, iterationCap int) ([]string, error) {
	entityURIs, err := p.loadEntityURIs(ctx)
	if err != nil {
		return nil, err
	}
	edges, err := p.loadRelationshipEdges(ctx)
	if err != nil {
		return nil, err
	}
	projection := graphalgo.BuildProjection(entityURIs, edges)
	result := graphalgo.Leiden(projection, resolution, minCommunitySize, iterationCap)

	var communityURIs []string
	var triples []ragno.Triple
	for _, community := range result.Value {
		labels, err := p.labelsFor(ctx, community.Members)
		if err != nil {
			return nil, err
		}
		prompt := fmt.Sprintf(communityPromptTemplate, joinLabels(labels))
		summary, err := p.llm.Complete(ctx, prompt)
		if err != nil {
			summary = ""
		}

		el, err := ragno.NewCommunityElement(p.base, p.graph, summary, community.Members)
		if err != nil {
			continue
		}
		communityURIs = append(communityURIs, el.URI())
		triples = append(triples, el.Triples()...)
	}

	if err := p.insertBatched(ctx, triples); err != nil {
		return nil, err
	}
	return communityURIs, nil
}

func (p *Pipeline) labelsFor(ctx context.Context, uris []string) ([]string, error) {
	out := make([]string, 0, len(uris))
	for _, uri := range uris {
		label, err := p.labelOf(ctx, uri)
		if err != nil {
			return nil, err
		}
		if label != "" {
			out = append(out, label)
		}
	}
	return out, nil
}

func joinLabels(labels []string) string {
	out := ""
	for i, l := range labels {
		if i > 0 {
			out += ", "
		}
		out += l
	}
	return out
}
