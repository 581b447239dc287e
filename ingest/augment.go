package ingest

import (
	"context"
	"fmt"
	"strconv"

	"semem/graphalgo"
	"semem/internal/xerrors"
	"semem/ragno"
	"semem/store"
)

// loadEntityURIs returns every Entity URI currently in the target graph.
func (p *Pipeline) loadEntityURIs(ctx context.Context) ([]string, error) {
	typ := ragno.Lit(string(ragno.TypeEntity))
	bindings, err := p.store.Query(ctx, p.graph, store.Pattern{Predicate: "rdf:type", Object: &typ})
	if err != nil {
		return nil, xerrors.NewStorage("ingest: loading entities failed", err)
	}
	out := make([]string, 0, len(bindings))
	for _, b := range bindings {
		out = append(out, b["subject"].Literal)
	}
	return out, nil
}

// loadRelationshipEdges returns every Relationship currently in the
// target graph as graphalgo edges, collapsing Relationship nodes to
// direct Entity-Entity edges.
func (p *Pipeline) loadRelationshipEdges(ctx context.Context) ([]graphalgo.RelationshipEdge, error) {
	typ := ragno.Lit(string(ragno.TypeRelationship))
	bindings, err := p.store.Query(ctx, p.graph, store.Pattern{Predicate: "rdf:type", Object: &typ})
	if err != nil {
		return nil, xerrors.NewStorage("ingest: loading relationships failed", err)
	}

	edges := make([]graphalgo.RelationshipEdge, 0, len(bindings))
	for _, b := range bindings {
		relURI := b["subject"].Literal
		fields, err := p.store.Query(ctx, p.graph, store.Pattern{Subject: relURI})
		if err != nil {
			return nil, xerrors.NewStorage("ingest: loading relationship fields failed", err)
		}
		var srcURI, dstURI string
		weight := ragno.DefaultRelationshipWeight
		for _, f := range fields {
			switch f["predicate"].Literal {
			case "ragno:hasSourceEntity":
				srcURI = f["object"].Literal
			case "ragno:hasTargetEntity":
				dstURI = f["object"].Literal
			case "ragno:weight":
				if w, err := strconv.ParseFloat(f["object"].Literal, 64); err == nil {
					weight = w
				}
			}
		}
		if srcURI != "" && dstURI != "" {
			edges = append(edges, graphalgo.RelationshipEdge{SourceURI: srcURI, TargetURI: dstURI, Weight: weight})
		}
	}
	return edges, nil
}

// incidentContext gathers the Unit content and Relationship descriptions
// touching entityURI, used as the LLM prompt context for an Attribute
// summary ( augment: "gather their incident Units/
// Relationships").
func (p *Pipeline) incidentContext(ctx context.Context, entityURI string) (string, error) {
	mentionObj := ragno.URIVal(entityURI)
	bindings, err := p.store.Query(ctx, p.graph, store.Pattern{Predicate: "ragno:mentions", Object: &mentionObj})
	if err != nil {
		return "", xerrors.NewStorage("ingest: loading incident units failed", err)
	}

	var incidentText string
	for _, b := range bindings {
		unitURI := b["subject"].Literal
		contentBindings, err := p.store.Query(ctx, p.graph, store.Pattern{Subject: unitURI, Predicate: "ragno:content"})
		if err != nil {
			return "", xerrors.NewStorage("ingest: loading unit content failed", err)
		}
		for _, cb := range contentBindings {
			incidentText += cb["object"].Literal + "\n"
		}
	}
	return incidentText, nil
}

var attributePromptTemplate = "Summarize this entity's role based on the surrounding context, in one or two sentences.\n\nContext:\n%s"

// Augment implements its augment(graph): selects important
// Entities by k-core >= threshold, summarizes their incident context via
// the LLM, and persists Attribute elements linked with hasAttribute.
func (p *Pipeline) Augment(ctx context.Context) ([]string, error) {
	entityURIs, err := p.loadEntityURIs(ctx)
	if err != nil {
		return nil, err
	}
	edges, err := p.loadRelationshipEdges(ctx)
	if err != nil {
		return nil, err
	}
	projection := graphalgo.BuildProjection(entityURIs, edges)
	cores := graphalgo.KCore(projection, 1000)

	var attributeURIs []string
	var triples []ragno.Triple
	for _, uri := range entityURIs {
		if cores.Value[uri] < p.kCoreThreshold {
			continue
		}
		incidentText, err := p.incidentContext(ctx, uri)
		if err != nil {
			return nil, err
		}
		if incidentText == "" {
			continue
		}
		summary, err := p.llm.Complete(ctx, fmt.Sprintf(attributePromptTemplate, incidentText))
		if err != nil {
			continue
		}
		attr, err := ragno.NewAttribute(p.base, p.graph, uri, "summary", summary, 1.0)
		if err != nil {
			continue
		}
		attributeURIs = append(attributeURIs, attr.URI())
		triples = append(triples, attr.Triples()...)
		triples = append(triples, ragno.Triple{Subject: uri, Predicate: "ragno:hasAttribute", Object: ragno.URIVal(attr.URI()), Graph: p.graph})
	}

	if err := p.insertBatched(ctx, triples); err != nil {
		return nil, err
	}
	return attributeURIs, nil
}
