package ingest

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"semem/internal/xerrors"
	"semem/ragno"
	"semem/store"
)

// unitCandidate is one LLM-proposed SemanticUnit before persistence.
type unitCandidate struct {
	Content     string `json:"content"`
	OffsetStart int    `json:"offsetStart"`
	OffsetEnd   int    `json:"offsetEnd"`
}

var unitPromptTemplate = "Split the following text into self-contained semantic units (sentences or small event groups). " +
	"Respond as a JSON array of {\"content\": string, \"offsetStart\": int, \"offsetEnd\": int}.\n\nText:\n%s"

var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// extractUnits prompts the LLM per chunk to extract SemanticUnits and
// produces Unit elements with source offsets, falling back to treating
// the whole chunk as one unit if the
// LLM response can't be parsed — decompose must never fail the pipeline
// on a malformed LLM response (same lenient-parsing posture as
// concepts.Extractor).
func (p *Pipeline) extractUnits(ctx context.Context, chunk string) []unitCandidate {
	raw, err := p.llm.Complete(ctx, strings.Replace(unitPromptTemplate, "%s", chunk, 1))
	if err != nil {
		return []unitCandidate{{Content: chunk, OffsetStart: 0, OffsetEnd: len(chunk)}}
	}
	candidate := raw
	if m := fencePattern.FindStringSubmatch(raw); m != nil {
		candidate = m[1]
	}
	candidate = strings.TrimSpace(candidate)

	var units []unitCandidate
	if err := json.Unmarshal([]byte(candidate), &units); err != nil || len(units) == 0 {
		return []unitCandidate{{Content: chunk, OffsetStart: 0, OffsetEnd: len(chunk)}}
	}
	return units
}

// existingTextElementHashes returns the content hashes of TextElements
// already present in the target graph, so decompose can skip chunks it
// has already ingested: re-running must not duplicate Elements, so
// dedup is by content hash.
func (p *Pipeline) existingTextElementHashes(ctx context.Context) (map[string]bool, error) {
	bindings, err := p.store.Query(ctx, p.graph, store.Pattern{Predicate: "ragno:contentHash"})
	if err != nil {
		return nil, xerrors.NewStorage("ingest: querying existing text elements failed", err)
	}
	out := make(map[string]bool, len(bindings))
	for _, b := range bindings {
		out[b["object"].Literal] = true
	}
	return out, nil
}

// DecomposeResult summarizes what decompose wrote, used by callers (and
// by augment/aggregate/enrich) to locate the Units/Entities/Relationships
// it produced.
type DecomposeResult struct {
	UnitURIs         []string
	EntityURIs       []string
	RelationshipURIs []string
}

// Decompose implements its decompose(textChunks[]): extracts
// Units per chunk, Entities per Unit (deduped by normalized label within
// the graph), and Relationships per Unit, then persists everything in
// batches.
func (p *Pipeline) Decompose(ctx context.Context, sourceDocument string, textChunks []string) (DecomposeResult, error) {
	existing, err := p.existingEntityByLabel(ctx)
	if err != nil {
		return DecomposeResult{}, err
	}
	seenHashes, err := p.existingTextElementHashes(ctx)
	if err != nil {
		return DecomposeResult{}, err
	}

	var result DecomposeResult
	var triples []ragno.Triple

	for _, chunk := range textChunks {
		hash := ContentHash(chunk)
		if seenHashes[hash] {
			continue
		}
		seenHashes[hash] = true

		textEl, err := ragno.NewTextElement(p.base, p.graph, hash, chunk)
		if err != nil {
			return DecomposeResult{}, err
		}

		for _, uc := range p.extractUnits(ctx, chunk) {
			unit, err := ragno.NewSemanticUnit(p.base, p.graph, uc.Content, sourceDocument, uc.OffsetStart, uc.OffsetEnd)
			if err != nil {
				continue
			}
			textEl.LinkUnit(unit.URI())
			result.UnitURIs = append(result.UnitURIs, unit.URI())

			extraction := p.extractor.Extract(ctx, uc.Content)

			entityURIByLabel := make(map[string]string, len(extraction.Concepts))
			for _, label := range extraction.Concepts {
				key := normalizeLabel(label)
				entityURI, ok := existing[key]
				if !ok {
					entity, err := ragno.NewEntity(p.base, p.graph, label)
					if err != nil {
						continue
					}
					entityURI = entity.URI()
					existing[key] = entityURI
					result.EntityURIs = append(result.EntityURIs, entityURI)
					triples = append(triples, entity.Triples()...)
				}
				entityURIByLabel[key] = entityURI

				if mentionErr := unit.AddMention(entityURI, 1.0); mentionErr != nil {
					return DecomposeResult{}, mentionErr
				}
			}

			for _, rel := range extraction.Relations {
				srcURI, srcOK := entityURIByLabel[normalizeLabel(rel.Subject)]
				dstURI, dstOK := entityURIByLabel[normalizeLabel(rel.Object)]
				if !srcOK || !dstOK {
					continue
				}
				relationship, err := ragno.NewRelationship(p.base, p.graph, srcURI, dstURI, rel.Predicate)
				if err != nil {
					continue
				}
				relationship.AddEvidence(unit.URI())
				result.RelationshipURIs = append(result.RelationshipURIs, relationship.URI())
				triples = append(triples, relationship.Triples()...)
			}

			triples = append(triples, unit.Triples()...)
		}

		triples = append(triples, textEl.Triples()...)
	}

	if err := p.insertBatched(ctx, triples); err != nil {
		return DecomposeResult{}, err
	}
	return result, nil
}
