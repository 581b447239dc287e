package memstore

import (
	"sort"
	"sync"
	"time"

	"semem/ragno"
	"semem/vectorindex"
)

// VectorIndex is the subset of vectorindex.Index the Memory Store depends
// on, kept as an interface so tests can substitute a fake.
type VectorIndex interface {
	Add(id string, vector []float32, typ ragno.Type)
	Search(vector []float32, k int, typeFilter []ragno.Type, threshold float64) []vectorindex.Match
}

// Store holds Interaction state and the Concept Graph.
type Store struct {
	mu        sync.RWMutex
	shortTerm []*Interaction
	longTerm  []*Interaction
	byID      map[string]*Interaction
	concepts  *ConceptGraph
	decay     DecayParams

	index      VectorIndex
	events     *EventBus
	promotion  int
	embedModel string
}

// Option configures a Store at construction.
type Option func(*Store)

func WithDecayParams(d DecayParams) Option     { return func(s *Store) { s.decay = d } }
func WithPromotionThreshold(n int) Option      { return func(s *Store) { s.promotion = n } }
func WithEmbeddingModel(model string) Option   { return func(s *Store) { s.embedModel = model } }

// New constructs a Store backed by a VectorIndex for similarity search and
// an EventBus for async notification.
func New(index VectorIndex, events *EventBus, opts ...Option) *Store {
	s := &Store{
		byID:      make(map[string]*Interaction),
		concepts:  NewConceptGraph(),
		decay:     DefaultDecayParams,
		index:     index,
		events:    events,
		promotion: 10,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Add implements its ingest step: create the Interaction,
// append to shortTerm, index its embedding under type Unit, fold its
// concepts into the Concept Graph, and emit an interactionAdded event —
// in that deterministic order.
func (s *Store) Add(prompt, response string, vector []float32, concepts []string, metadata map[string]string) *Interaction {
	interaction := NewInteraction(prompt, response, vector, concepts, metadata)

	s.mu.Lock()
	s.shortTerm = append(s.shortTerm, interaction)
	s.byID[interaction.ID] = interaction
	s.mu.Unlock()

	s.index.Add(interaction.ID, vector, ragno.TypeSemanticUnit)

	s.mu.Lock()
	s.concepts.AddInteraction(concepts)
	s.mu.Unlock()

	if s.events != nil {
		s.events.Publish(Event{Type: EventInteractionAdded, InteractionID: interaction.ID, Priority: PriorityLow})
	}
	return interaction
}

// Scored is one retrieval result with its sub-scores broken out.
type Scored struct {
	Interaction  *Interaction
	Similarity   float64
	ConceptScore float64
	FinalScore   float64
}

// RetrieveParams configures Retrieve's thresholds and weights.
type RetrieveParams struct {
	K            int
	Threshold    float64
	SpreadDepth  int
	SpreadDecay  float64
	Alpha        float64
}

// Retrieve implements its retrieval procedure: vector
// candidate generation, concept-graph spreading activation, final score
// combination, and reinforcement of every returned item.
func (s *Store) Retrieve(queryVector []float32, queryConcepts []string, params RetrieveParams) []Scored {
	candidates := s.index.Search(queryVector, max(params.K*4, params.K), []ragno.Type{ragno.TypeSemanticUnit}, params.Threshold)
	if len(candidates) == 0 {
		return nil
	}

	activation := s.concepts.SpreadingActivation(queryConcepts, orDefault(params.SpreadDepth, 2), orDefaultF(params.SpreadDecay, 0.5))

	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	scored := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		interaction, ok := s.byID[c.ID]
		if !ok {
			continue
		}

		var conceptScore float64
		for _, concept := range interaction.Concepts {
			conceptScore += activation[concept]
		}

		s.decay.Access(interaction, now)
		finalScore := effectiveScore(c.Score, interaction.DecayFactor, interaction.AccessCount) + params.Alpha*conceptScore

		scored = append(scored, Scored{
			Interaction:  interaction,
			Similarity:   c.Score,
			ConceptScore: conceptScore,
			FinalScore:   finalScore,
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].FinalScore != scored[j].FinalScore {
			return scored[i].FinalScore > scored[j].FinalScore
		}
		return scored[i].Interaction.ID < scored[j].Interaction.ID
	})
	if len(scored) > params.K {
		scored = scored[:params.K]
	}
	if s.events != nil {
		s.events.Publish(Event{Type: EventMemoryUpdate, Priority: PriorityLow})
	}
	return scored
}

// RunMaintenance promotes every shortTerm Interaction whose accessCount
// has reached the promotion threshold to longTerm (
// tiering). Idempotent: re-running never re-promotes or duplicates.
func (s *Store) RunMaintenance() {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.shortTerm[:0]
	for _, interaction := range s.shortTerm {
		if interaction.AccessCount >= s.promotion {
			interaction.Tier = TierLong
			s.longTerm = append(s.longTerm, interaction)
		} else {
			kept = append(kept, interaction)
		}
	}
	s.shortTerm = kept
}

// ShortTermCount and LongTermCount expose tier sizes for diagnostics/tests.
func (s *Store) ShortTermCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.shortTerm)
}

func (s *Store) LongTermCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.longTerm)
}

// Get looks up an Interaction by ID without side effects.
func (s *Store) Get(id string) (*Interaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	return i, ok
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

func orDefaultF(v, fallback float64) float64 {
	if v <= 0 {
		return fallback
	}
	return v
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
