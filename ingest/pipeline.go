// Package ingest implements the Ingestion Pipeline:
// decompose/augment/aggregate/enrich stages that turn raw text into a
// populated Ragno graph, grounded on the teacher's multi-stage
// application service orchestration.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"semem/concepts"
	"semem/internal/xerrors"
	"semem/ragno"
	"semem/store"
)

// LLM is the minimal chat contract this package depends on, shared with
// concepts.LLM to avoid a duplicate provider abstraction.
type LLM interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Embedder is the subset of embedding.Cache the enrich stage depends on.
type Embedder interface {
	Embed(ctx context.Context, text, model string) ([]float32, error)
}

// Index is the subset of vectorindex.Index the enrich stage depends on.
type Index interface {
	Add(id string, vector []float32, typ ragno.Type)
}

// Pipeline wires the decompose/augment/aggregate/enrich stages together
// against one target graph.
type Pipeline struct {
	base      string
	graph     string
	store     store.Store
	llm       LLM
	extractor *concepts.Extractor
	embedder  Embedder
	index     Index
	model     string

	batchSize           int
	kCoreThreshold       int
	similarityThreshold  float64
}

// Option configures a Pipeline at construction.
type Option func(*Pipeline)

func WithBatchSize(n int) Option             { return func(p *Pipeline) { p.batchSize = n } }
func WithKCoreThreshold(n int) Option        { return func(p *Pipeline) { p.kCoreThreshold = n } }
func WithSimilarityThreshold(t float64) Option { return func(p *Pipeline) { p.similarityThreshold = t } }

// New constructs a Pipeline targeting graph, minting new Element URIs
// under base.
func New(base, graph string, s store.Store, llm LLM, embedder Embedder, index Index, model string, opts ...Option) *Pipeline {
	p := &Pipeline{
		base:                base,
		graph:               graph,
		store:               s,
		llm:                 llm,
		extractor:           concepts.New(llm, concepts.DefaultMaxConceptLength),
		embedder:            embedder,
		index:               index,
		model:               model,
		batchSize:           200,
		kCoreThreshold:       2,
		similarityThreshold: 0.85,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// ContentHash computes the idempotency key used to dedup re-ingested
// content by hash.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

var punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

// normalizeLabel mirrors the unexported concepts.normalizeLabel's
// case/punctuation-fold so Entity dedup agrees with the dual retriever's
// notion of label equivalence.
func normalizeLabel(s string) string {
	s = strings.ToLower(s)
	s = punctuation.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

// insertBatched writes triples to the Graph Store in batches of
// p.batchSize.
func (p *Pipeline) insertBatched(ctx context.Context, triples []ragno.Triple) error {
	for i := 0; i < len(triples); i += p.batchSize {
		end := i + p.batchSize
		if end > len(triples) {
			end = len(triples)
		}
		if err := p.store.Insert(ctx, p.graph, triples[i:end]); err != nil {
			return xerrors.NewStorage("ingest: batch insert failed", err)
		}
	}
	return nil
}

// existingEntityByLabel queries the Graph Store for Entities already
// present in the target graph, keyed by normalized prefLabel, so
// decompose can dedup against them.
func (p *Pipeline) existingEntityByLabel(ctx context.Context) (map[string]string, error) {
	typ := ragno.Lit(string(ragno.TypeEntity))
	bindings, err := p.store.Query(ctx, p.graph, store.Pattern{Predicate: "rdf:type", Object: &typ})
	if err != nil {
		return nil, xerrors.NewStorage("ingest: querying existing entities failed", err)
	}
	out := make(map[string]string, len(bindings))
	for _, b := range bindings {
		uri := b["subject"].Literal
		labelPattern := store.Pattern{Subject: uri, Predicate: "ragno:prefLabel"}
		labelBindings, err := p.store.Query(ctx, p.graph, labelPattern)
		if err != nil {
			return nil, xerrors.NewStorage("ingest: querying entity label failed", err)
		}
		for _, lb := range labelBindings {
			out[normalizeLabel(lb["object"].Literal)] = uri
		}
	}
	return out, nil
}

// labelOf resolves an Entity URI's prefLabel triple, used when aggregate
// needs an Entity's label and only has its URI from a Leiden community.
func (p *Pipeline) labelOf(ctx context.Context, uri string) (string, error) {
	bindings, err := p.store.Query(ctx, p.graph, store.Pattern{Subject: uri, Predicate: "ragno:prefLabel"})
	if err != nil {
		return "", xerrors.NewStorage("ingest: resolving entity label failed", err)
	}
	if len(bindings) == 0 {
		return "", nil
	}
	return bindings[0]["object"].Literal, nil
}
