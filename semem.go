// Package semem wires the Embedding Cache, Graph Store, Vector Index,
// Concept Extractor, Memory Store, Dual Retriever, ZPT pipeline, and
// Ingestion Pipeline into one Engine exposing its external
// operations, grounded on the teacher's top-level service composition
// (cmd/api wiring domain services behind one façade-agnostic core).
package semem

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"semem/concepts"
	"semem/embedding"
	"semem/graphalgo"
	"semem/ingest"
	"semem/internal/config"
	"semem/internal/observability"
	"semem/internal/scheduler"
	"semem/internal/xerrors"
	"semem/memstore"
	"semem/ragno"
	"semem/retrieval"
	"semem/store"
	"semem/vectorindex"
	"semem/zpt"
)

// Message is one chat turn in a {model, messages[], temperature?, stream?}
// wire contract.
type Message struct {
	Role    string
	Content string
}

// ChatProvider is the minimal chat contract an LLM backend must satisfy:
// accept a {model, messages[], temperature?, stream?} request and return
// {text} or a stream of token deltas.
type ChatProvider interface {
	Complete(ctx context.Context, model string, messages []Message, temperature float64) (string, error)
	Stream(ctx context.Context, model string, messages []Message, temperature float64) (<-chan string, error)
}

// llmAdapter satisfies the narrow single-prompt LLM contract shared by
// concepts.Extractor and ingest.Pipeline over a richer ChatProvider, so
// the engine needs only one chat integration point.
type llmAdapter struct {
	provider ChatProvider
	model    string
}

func (a llmAdapter) Complete(ctx context.Context, prompt string) (string, error) {
	return a.provider.Complete(ctx, a.model, []Message{{Role: "user", Content: prompt}}, 0)
}

// Engine wires every component package behind its operation set.
type Engine struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *observability.Metrics
	sched   *scheduler.Scheduler

	graphStore store.Store
	index      *vectorindex.Index
	embedCache *embedding.Cache
	extractor  *concepts.Extractor
	memStore   *memstore.Store
	retriever  *retrieval.Retriever
	selector   *zpt.Selector
	selCache   *zpt.SelectionCache
	pipeline   *ingest.Pipeline
	chat       ChatProvider

	base  string
	graph string
}

// New constructs an Engine. embedProviders feed the Embedding Cache; chat
// serves both chat.generate/chat.stream and (via llmAdapter) the Concept
// Extractor and Ingestion Pipeline's LLM-prompted stages.
func New(cfg *config.Config, logger *zap.Logger, chat ChatProvider, embedProviders []embedding.Provider, base, graph string) (*Engine, error) {
	embedCache, err := embedding.NewCache(cfg.EmbeddingCacheSize, embedProviders,
		embedding.WithTTL(cfg.EmbeddingCacheTTL), embedding.WithDimension(cfg.EmbeddingDimension))
	if err != nil {
		return nil, xerrors.NewInternal("semem: building embedding cache failed", err)
	}

	idx := vectorindex.New(vectorindex.Config{
		M:              cfg.HNSWM,
		EfConstruction: cfg.HNSWEfConstruction,
		EfSearch:       cfg.HNSWEfSearch,
	})

	llm := llmAdapter{provider: chat, model: cfg.DefaultChatModel}
	extractor := concepts.New(llm, concepts.DefaultMaxConceptLength)

	events := memstore.NewEventBus(256)
	mem := memstore.New(idx, events,
		memstore.WithDecayParams(memstore.DecayParams{
			Lambda: cfg.DecayLambda, FactorCap: cfg.DecayFactorCap, Floor: cfg.DecayFactorFloor,
		}),
		memstore.WithPromotionThreshold(cfg.PromotionThreshold),
		memstore.WithEmbeddingModel(cfg.DefaultEmbeddingModel),
	)

	retriever := retrieval.New(idx, extractor,
		retrieval.WithWeights(retrieval.Weights{Exact: cfg.ExactWeight, Similarity: cfg.SimilarityWeight, PPR: cfg.PPRWeight}),
		retrieval.WithCombinedLimit(cfg.CombinedLimit),
	)

	var s store.Store
	switch cfg.StorageBackend {
	case config.StorageFile:
		fileStore, err := store.OpenFileStore(cfg.SnapshotPath)
		if err != nil {
			return nil, xerrors.NewStorage("semem: opening file store failed", err)
		}
		s = fileStore
	case config.StorageSPARQL:
		cached, err := store.NewCachedStore(
			store.NewSPARQLStore(cfg.SPARQLQueryURL, cfg.SPARQLUpdateURL, cfg.SPARQLUsername, cfg.SPARQLPassword),
			cfg.StoreReadCacheSize, cfg.StoreReadCacheTTL,
		)
		if err != nil {
			return nil, xerrors.NewStorage("semem: building cached SPARQL store failed", err)
		}
		s = cached
	default:
		s = store.NewInMemoryStore()
	}

	selCache := zpt.NewSelectionCache(cfg.SelectionCacheSize, cfg.SelectionCacheTTL)

	e := &Engine{
		cfg:        cfg,
		logger:     logger,
		metrics:    observability.NewMetrics("semem"),
		sched:      scheduler.New(0),
		graphStore: s,
		index:      idx,
		embedCache: embedCache,
		extractor:  extractor,
		memStore:   mem,
		retriever:  retriever,
		selCache:   selCache,
		chat:       chat,
		base:       base,
		graph:      graph,
	}

	e.pipeline = ingest.New(base, graph, s, llm, embedCache, idx, cfg.DefaultEmbeddingModel,
		ingest.WithBatchSize(cfg.IngestBatchSize),
		ingest.WithKCoreThreshold(cfg.AugmentKCoreThreshold),
		ingest.WithSimilarityThreshold(cfg.EnrichSimilarityThreshold),
	)

	ppr := func(seeds []string) []graphalgo.PPRScore {
		entityURIs, edges, err := e.entityProjectionSources(context.Background())
		if err != nil {
			return nil
		}
		projection := graphalgo.BuildProjection(entityURIs, edges)
		result := graphalgo.PersonalizedPageRank(projection, seeds, cfg.PPRAlpha, cfg.PPRIterations, cfg.PPRIterCap)
		return result.Value
	}
	e.selector = zpt.NewSelector(selCache, idx, ppr)

	return e, nil
}

// --- interaction.* ---

// InteractionStore implements its interaction.store.
func (e *Engine) InteractionStore(ctx context.Context, prompt, response string, metadata map[string]string) (string, error) {
	start := time.Now()
	vector, err := e.embedCache.Embed(ctx, prompt, e.cfg.DefaultEmbeddingModel)
	if err != nil {
		e.metrics.RecordOperation("interaction.store", time.Since(start), err)
		return "", err
	}
	extraction := e.extractor.Extract(ctx, prompt)
	interaction := e.memStore.Add(prompt, response, vector, extraction.Concepts, metadata)
	e.metrics.RecordOperation("interaction.store", time.Since(start), nil)
	return interaction.ID, nil
}

// InteractionSearch implements its interaction.search.
func (e *Engine) InteractionSearch(ctx context.Context, query string, threshold float64, limit int) ([]memstore.Scored, error) {
	start := time.Now()
	vector, err := e.embedCache.Embed(ctx, query, e.cfg.DefaultEmbeddingModel)
	if err != nil {
		e.metrics.RecordOperation("interaction.search", time.Since(start), err)
		return nil, err
	}
	extraction := e.extractor.Extract(ctx, query)
	results := e.memStore.Retrieve(vector, extraction.Concepts, memstore.RetrieveParams{
		K: limit, Threshold: threshold, SpreadDepth: e.cfg.SpreadDepth,
		SpreadDecay: e.cfg.SpreadDecayPerHop, Alpha: e.cfg.RetrievalAlpha,
	})
	e.metrics.RecordOperation("interaction.search", time.Since(start), nil)
	return results, nil
}

// --- embedding.* / concepts.* ---

// EmbeddingGenerate implements its embedding.generate.
func (e *Engine) EmbeddingGenerate(ctx context.Context, text, model string) ([]float32, int, error) {
	if model == "" {
		model = e.cfg.DefaultEmbeddingModel
	}
	vector, err := e.embedCache.Embed(ctx, text, model)
	if err != nil {
		return nil, 0, err
	}
	return vector, len(vector), nil
}

// ConceptsExtract implements its concepts.extract.
func (e *Engine) ConceptsExtract(ctx context.Context, text string) []string {
	return e.extractor.Extract(ctx, text).Concepts
}

// --- chat.* ---

// ChatGenerate implements its chat.generate: when useMemory is
// set, relevant Interactions are retrieved and folded into the prompt
// before completion, then the exchange itself is stored as a new
// Interaction.
func (e *Engine) ChatGenerate(ctx context.Context, prompt, conversationID string, useMemory bool, temperature float64) (response string, memoryIDs []string, convID string, err error) {
	messages := []Message{}
	if useMemory {
		vector, embedErr := e.embedCache.Embed(ctx, prompt, e.cfg.DefaultEmbeddingModel)
		if embedErr == nil {
			extraction := e.extractor.Extract(ctx, prompt)
			recalled := e.memStore.Retrieve(vector, extraction.Concepts, memstore.RetrieveParams{
				K: 5, Threshold: 0.3, SpreadDepth: e.cfg.SpreadDepth, SpreadDecay: e.cfg.SpreadDecayPerHop, Alpha: e.cfg.RetrievalAlpha,
			})
			for _, r := range recalled {
				memoryIDs = append(memoryIDs, r.Interaction.ID)
				messages = append(messages, Message{Role: "system", Content: fmt.Sprintf("recalled: %s -> %s", r.Interaction.Prompt, r.Interaction.Response)})
			}
		}
	}
	messages = append(messages, Message{Role: "user", Content: prompt})

	text, err := e.chat.Complete(ctx, e.cfg.DefaultChatModel, messages, temperature)
	if err != nil {
		return "", nil, conversationID, err
	}

	if _, storeErr := e.InteractionStore(ctx, prompt, text, map[string]string{"conversationId": conversationID}); storeErr != nil {
		e.logger.Warn("chat.generate: storing interaction failed", zap.Error(storeErr))
	}
	if conversationID == "" {
		conversationID = fmt.Sprintf("%s/conversation/%d", e.base, time.Now().UnixNano())
	}
	return text, memoryIDs, conversationID, nil
}

// ChatStream implements its chat.stream: a lazy, finite,
// non-restartable sequence of token deltas. Consumer cancellation of ctx
// propagates to the underlying provider stream.
func (e *Engine) ChatStream(ctx context.Context, prompt string, temperature float64) (<-chan string, error) {
	return e.chat.Stream(ctx, e.cfg.DefaultChatModel, []Message{{Role: "user", Content: prompt}}, temperature)
}

// --- content.* ---

// ContentIndex implements its content.index: wraps content as a
// TextElement, embeds and indexes it, and persists it to the target graph.
func (e *Engine) ContentIndex(ctx context.Context, content, contentType, title string, metadata map[string]string) (string, error) {
	hash := ingest.ContentHash(content)
	el, err := ragno.NewTextElement(e.base, e.graph, hash, content)
	if err != nil {
		return "", err
	}
	if title != "" {
		el.SetProperty("ragno:title", ragno.Lit(title))
	}
	if contentType != "" {
		el.SetProperty("ragno:contentType", ragno.Lit(contentType))
	}
	for k, v := range metadata {
		el.SetProperty("meta:"+k, ragno.Lit(v))
	}

	if err := e.graphStore.Insert(ctx, e.graph, el.Triples()); err != nil {
		return "", xerrors.NewStorage("semem: indexing content failed", err)
	}

	vector, err := e.embedCache.Embed(ctx, content, e.cfg.DefaultEmbeddingModel)
	if err != nil {
		e.logger.Warn("content.index: embedding failed, content stored without vector index entry", zap.Error(err))
		return el.URI(), nil
	}
	e.index.Add(el.URI(), vector, ragno.TypeTextElement)
	return el.URI(), nil
}

// ContentSearch implements its content.search.
func (e *Engine) ContentSearch(ctx context.Context, query string, limit int, types []ragno.Type, threshold float64) ([]vectorindex.Match, error) {
	vector, err := e.embedCache.Embed(ctx, query, e.cfg.DefaultEmbeddingModel)
	if err != nil {
		return nil, err
	}
	if len(types) == 0 {
		types = ragno.RetrievableTypes
	}
	return e.index.Search(vector, limit, types, threshold), nil
}

// --- graph.* ---

// GraphDecompose implements its graph.decompose.
func (e *Engine) GraphDecompose(ctx context.Context, chunks []string) (ingest.DecomposeResult, error) {
	return e.pipeline.Decompose(ctx, e.graph, chunks)
}

// GraphAnalyze implements its graph.analyze.
func (e *Engine) GraphAnalyze(ctx context.Context, types []string) (map[string]any, error) {
	out := make(map[string]any, len(types))
	for _, t := range types {
		switch t {
		case "statistics":
			stats, err := e.graphStore.Stats(ctx, e.graph)
			if err != nil {
				return nil, err
			}
			out["statistics"] = stats
		case "centrality":
			entityURIs, edges, err := e.entityProjectionSources(ctx)
			if err != nil {
				return nil, err
			}
			projection := graphalgo.BuildProjection(entityURIs, edges)
			scores := make(map[string]float64, len(entityURIs))
			for _, uri := range entityURIs {
				scores[uri] = float64(projection.Degree(uri))
			}
			out["centrality"] = scores
		case "communities":
			entityURIs, edges, err := e.entityProjectionSources(ctx)
			if err != nil {
				return nil, err
			}
			projection := graphalgo.BuildProjection(entityURIs, edges)
			result := graphalgo.Leiden(projection, e.cfg.LeidenResolution, e.cfg.LeidenMinCommunity, e.cfg.PPRIterCap)
			out["communities"] = result.Value
		case "kcore":
			entityURIs, edges, err := e.entityProjectionSources(ctx)
			if err != nil {
				return nil, err
			}
			projection := graphalgo.BuildProjection(entityURIs, edges)
			result := graphalgo.KCore(projection, e.cfg.PPRIterCap)
			out["kcore"] = result.Value
		default:
			return nil, xerrors.NewValidation("types", "one of statistics|centrality|communities|kcore", "choose a supported analysis type", "unknown graph.analyze type "+t)
		}
	}
	return out, nil
}

// GraphSearchDual implements its graph.search.dual.
func (e *Engine) GraphSearchDual(ctx context.Context, query string, mode retrieval.Mode, k int, threshold float64) ([]retrieval.Candidate, error) {
	vector, err := e.embedCache.Embed(ctx, query, e.cfg.DefaultEmbeddingModel)
	if err != nil {
		return nil, err
	}
	population, err := e.labeledEntities(ctx)
	if err != nil {
		return nil, err
	}
	ppr := func(seeds []string) []graphalgo.PPRScore {
		entityURIs, edges, err := e.entityProjectionSources(ctx)
		if err != nil {
			return nil
		}
		projection := graphalgo.BuildProjection(entityURIs, edges)
		return graphalgo.PersonalizedPageRank(projection, seeds, e.cfg.PPRAlpha, e.cfg.PPRIterations, e.cfg.PPRIterCap).Value
	}
	return e.retriever.Query(ctx, query, vector, population, []ragno.Type{ragno.TypeEntity}, mode, k, threshold, ppr), nil
}

// --- zpt.* ---

// ZPTNavigate implements its zpt.navigate.
func (e *Engine) ZPTNavigate(ctx context.Context, params zpt.Params) (zpt.TransformResult, zpt.Normalized, error) {
	if err := ctx.Err(); err != nil {
		return zpt.TransformResult{}, zpt.Normalized{}, xerrors.NewTimeoutCancelled("zpt.navigate cancelled")
	}
	if err := zpt.Validate(params); err != nil {
		return zpt.TransformResult{}, zpt.Normalized{}, err
	}
	n := zpt.Normalize(params)

	pool, err := e.loadItems(ctx, zoomToType(n.Zoom))
	if err != nil {
		return zpt.TransformResult{}, n, err
	}

	var queryVector []float32
	if n.Tilt == zpt.TiltEmbedding && n.Pan.Topic != "" {
		queryVector, _ = e.embedCache.Embed(ctx, n.Pan.Topic, e.cfg.DefaultEmbeddingModel)
	}

	selection := e.selector.Select(ctx, n, pool, queryVector)
	if err := ctx.Err(); err != nil {
		return zpt.TransformResult{}, n, xerrors.NewTimeoutCancelled("zpt.navigate cancelled")
	}

	uris := make([]string, len(selection.Items))
	for i, item := range selection.Items {
		uris[i] = item.URI
	}
	edges, err := e.edgesAmong(ctx, uris)
	if err != nil {
		return zpt.TransformResult{}, n, err
	}

	projection := zpt.Project(selection, edges)
	result := zpt.Transform(projection, n, selection.Diagnostics, zpt.MetadataHeader)
	return result, n, nil
}

// ZPTPreview implements its zpt.preview: it runs the full zpt.navigate
// pipeline, rendering included, and reports only the number of source
// elements across the chunks and their token total.
func (e *Engine) ZPTPreview(ctx context.Context, params zpt.Params) (count int, estimatedTokens int, err error) {
	result, _, err := e.ZPTNavigate(ctx, params)
	if err != nil {
		return 0, 0, err
	}
	total := 0
	for _, c := range result.Chunks {
		total += len(c.Sources)
	}
	return total, result.TotalTokens, nil
}

// ZPTOptions implements its zpt.options: the allowed enum values
// for the current corpus (static ; a richer implementation
// could narrow Pan.Topic suggestions from the live corpus).
func (e *Engine) ZPTOptions(ctx context.Context) map[string][]string {
	return map[string][]string{
		"zoom":          {"entity", "unit", "text", "community", "corpus"},
		"tilt":          {"keywords", "embedding", "graph", "temporal"},
		"format":        {"json", "markdown", "structured", "conversational", "analytical"},
		"tokenizer":     {"cl100k", "p50k", "claude", "llama"},
		"chunkStrategy": {"fixed", "semantic", "adaptive", "hierarchical", "token-aware"},
	}
}

// RunMaintenance runs the Memory Store's tiering tick.
func (e *Engine) RunMaintenance() {
	e.memStore.RunMaintenance()
}

// --- internal wiring helpers ---

func zoomToType(z zpt.Zoom) ragno.Type {
	switch z {
	case zpt.ZoomEntity:
		return ragno.TypeEntity
	case zpt.ZoomUnit:
		return ragno.TypeSemanticUnit
	case zpt.ZoomText:
		return ragno.TypeTextElement
	case zpt.ZoomCommunity:
		return ragno.TypeCommunityElement
	default:
		return ragno.TypeSemanticUnit
	}
}

// loadItems queries the Graph Store for every Element of typ and flattens
// it into a zpt.Item candidate pool entry.
func (e *Engine) loadItems(ctx context.Context, typ ragno.Type) ([]zpt.Item, error) {
	obj := ragno.Lit(string(typ))
	bindings, err := e.graphStore.Query(ctx, e.graph, store.Pattern{Predicate: "rdf:type", Object: &obj})
	if err != nil {
		return nil, xerrors.NewStorage("semem: loading zpt candidate pool failed", err)
	}

	items := make([]zpt.Item, 0, len(bindings))
	for _, b := range bindings {
		uri := b["subject"].Literal
		fields, err := e.graphStore.Query(ctx, e.graph, store.Pattern{Subject: uri})
		if err != nil {
			return nil, xerrors.NewStorage("semem: loading element fields failed", err)
		}
		item := zpt.Item{URI: uri, Type: typ}
		for _, f := range fields {
			switch f["predicate"].Literal {
			case "ragno:prefLabel":
				item.Label = f["object"].Literal
			case "ragno:content":
				item.Content = f["object"].Literal
			case "ragno:summary":
				item.Summary = f["object"].Literal
			case "ragno:createdAt":
				if ts, err := time.Parse(time.RFC3339Nano, f["object"].Literal); err == nil {
					item.Timestamp = ts
				}
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// edgesAmong loads Relationship edges whose endpoints are both present in
// uris, for the ZPT graph representation.
func (e *Engine) edgesAmong(ctx context.Context, uris []string) ([]zpt.GraphEdge, error) {
	inSet := make(map[string]bool, len(uris))
	for _, u := range uris {
		inSet[u] = true
	}
	_, edges, err := e.entityProjectionSources(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]zpt.GraphEdge, 0)
	for _, edge := range edges {
		if inSet[edge.SourceURI] && inSet[edge.TargetURI] {
			out = append(out, zpt.GraphEdge{From: edge.SourceURI, To: edge.TargetURI, Weight: edge.Weight})
		}
	}
	return out, nil
}

// entityProjectionSources loads every Entity URI and Relationship edge in
// the target graph, shared by graph.analyze, graph.search.dual's PPR seed
// expansion, and the ZPT graph tilt/representation.
func (e *Engine) entityProjectionSources(ctx context.Context) ([]string, []graphalgo.RelationshipEdge, error) {
	typ := ragno.Lit(string(ragno.TypeEntity))
	entityBindings, err := e.graphStore.Query(ctx, e.graph, store.Pattern{Predicate: "rdf:type", Object: &typ})
	if err != nil {
		return nil, nil, xerrors.NewStorage("semem: loading entities failed", err)
	}
	entityURIs := make([]string, 0, len(entityBindings))
	for _, b := range entityBindings {
		entityURIs = append(entityURIs, b["subject"].Literal)
	}

	relType := ragno.Lit(string(ragno.TypeRelationship))
	relBindings, err := e.graphStore.Query(ctx, e.graph, store.Pattern{Predicate: "rdf:type", Object: &relType})
	if err != nil {
		return nil, nil, xerrors.NewStorage("semem: loading relationships failed", err)
	}
	edges := make([]graphalgo.RelationshipEdge, 0, len(relBindings))
	for _, b := range relBindings {
		relURI := b["subject"].Literal
		fields, err := e.graphStore.Query(ctx, e.graph, store.Pattern{Subject: relURI})
		if err != nil {
			return nil, nil, xerrors.NewStorage("semem: loading relationship fields failed", err)
		}
		var src, dst string
		weight := ragno.DefaultRelationshipWeight
		for _, f := range fields {
			switch f["predicate"].Literal {
			case "ragno:hasSourceEntity":
				src = f["object"].Literal
			case "ragno:hasTargetEntity":
				dst = f["object"].Literal
			case "ragno:weight":
				if w, err := strconv.ParseFloat(f["object"].Literal, 64); err == nil {
					weight = w
				}
			}
		}
		if src != "" && dst != "" {
			edges = append(edges, graphalgo.RelationshipEdge{SourceURI: src, TargetURI: dst, Weight: weight})
		}
	}
	return entityURIs, edges, nil
}

// labeledEntities adapts the Graph Store's Entity population into the
// Dual Retriever's decoupled LabeledEntity shape.
func (e *Engine) labeledEntities(ctx context.Context) ([]retrieval.LabeledEntity, error) {
	typ := ragno.Lit(string(ragno.TypeEntity))
	bindings, err := e.graphStore.Query(ctx, e.graph, store.Pattern{Predicate: "rdf:type", Object: &typ})
	if err != nil {
		return nil, xerrors.NewStorage("semem: loading entities failed", err)
	}
	out := make([]retrieval.LabeledEntity, 0, len(bindings))
	for _, b := range bindings {
		uri := b["subject"].Literal
		fields, err := e.graphStore.Query(ctx, e.graph, store.Pattern{Subject: uri})
		if err != nil {
			return nil, xerrors.NewStorage("semem: loading entity labels failed", err)
		}
		var labels []string
		for _, f := range fields {
			if f["predicate"].Literal == "ragno:prefLabel" || f["predicate"].Literal == "ragno:altLabel" {
				labels = append(labels, f["object"].Literal)
			}
		}
		out = append(out, retrieval.LabeledEntity{URI: uri, Type: ragno.TypeEntity, Labels: labels})
	}
	return out, nil
}
