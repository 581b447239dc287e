package ingest

import (
	"context"

	"semem/embedding"
	"semem/internal/xerrors"
	"semem/ragno"
	"semem/store"
)

// retrievableURIsByType returns every Element URI of typ in the target
// graph, for the Retrievable types enumerated in ragno.RetrievableTypes.
func (p *Pipeline) retrievableURIsByType(ctx context.Context, typ ragno.Type) ([]string, error) {
	obj := ragno.Lit(string(typ))
	bindings, err := p.store.Query(ctx, p.graph, store.Pattern{Predicate: "rdf:type", Object: &obj})
	if err != nil {
		return nil, xerrors.NewStorage("ingest: loading retrievable elements failed", err)
	}
	out := make([]string, 0, len(bindings))
	for _, b := range bindings {
		out = append(out, b["subject"].Literal)
	}
	return out, nil
}

func (p *Pipeline) contentOf(ctx context.Context, uri string) (string, error) {
	bindings, err := p.store.Query(ctx, p.graph, store.Pattern{Subject: uri, Predicate: "ragno:content"})
	if err != nil {
		return "", xerrors.NewStorage("ingest: loading element content failed", err)
	}
	if len(bindings) > 0 {
		return bindings[0]["object"].Literal, nil
	}
	// CommunityElements and Attributes without a ragno:content triple fall
	// back to their summary, the other text-bearing predicate emitted by
	// Triples().
	summaryBindings, err := p.store.Query(ctx, p.graph, store.Pattern{Subject: uri, Predicate: "ragno:summary"})
	if err != nil {
		return "", xerrors.NewStorage("ingest: loading element summary failed", err)
	}
	if len(summaryBindings) > 0 {
		return summaryBindings[0]["object"].Literal, nil
	}
	return "", nil
}

// EnrichResult reports what enrich embedded and the similarity edges it
// derived.
type EnrichResult struct {
	EmbeddedCount        int
	SimilarityRelationships []string
}

// Enrich implements its enrich(graph): embeds all retrievable
// elements via the Embedding Cache, inserts them into the Vector Index,
// and persists similarity Relationships above the configured threshold.
func (p *Pipeline) Enrich(ctx context.Context) (EnrichResult, error) {
	type embedded struct {
		uri    string
		typ    ragno.Type
		vector []float32
	}
	var all []embedded

	for _, typ := range ragno.RetrievableTypes {
		uris, err := p.retrievableURIsByType(ctx, typ)
		if err != nil {
			return EnrichResult{}, err
		}
		for _, uri := range uris {
			content, err := p.contentOf(ctx, uri)
			if err != nil {
				return EnrichResult{}, err
			}
			if content == "" {
				continue
			}
			vector, err := p.embedder.Embed(ctx, content, p.model)
			if err != nil {
				continue
			}
			p.index.Add(uri, vector, typ)
			all = append(all, embedded{uri: uri, typ: typ, vector: vector})
		}
	}

	var triples []ragno.Triple
	var similarityURIs []string
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			sim := embedding.CosineSimilarity(all[i].vector, all[j].vector)
			if sim < p.similarityThreshold {
				continue
			}
			rel, err := ragno.NewRelationship(p.base, p.graph, all[i].uri, all[j].uri, "similar")
			if err != nil {
				continue
			}
			if err := rel.SetWeight(sim); err != nil {
				continue
			}
			similarityURIs = append(similarityURIs, rel.URI())
			triples = append(triples, rel.Triples()...)
		}
	}

	if err := p.insertBatched(ctx, triples); err != nil {
		return EnrichResult{}, err
	}
	return EnrichResult{EmbeddedCount: len(all), SimilarityRelationships: similarityURIs}, nil
}
