package memstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semem/ragno"
	"semem/vectorindex"
)

type fakeIndex struct {
	vectors map[string][]float32
	types   map[string]ragno.Type
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{vectors: map[string][]float32{}, types: map[string]ragno.Type{}}
}

func (f *fakeIndex) Add(id string, vector []float32, typ ragno.Type) {
	f.vectors[id] = vector
	f.types[id] = typ
}

func (f *fakeIndex) Search(vector []float32, k int, typeFilter []ragno.Type, threshold float64) []vectorindex.Match {
	var out []vectorindex.Match
	for id, v := range f.vectors {
		sim := cosine(vector, v)
		if sim >= threshold {
			out = append(out, vectorindex.Match{ID: id, Score: sim})
		}
	}
	return out
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (sqrt(na) * sqrt(nb))
}

func sqrt(x float64) float64 {
	if x == 0 {
		return 0
	}
	z := x
	for i := 0; i < 20; i++ {
		z -= (z*z - x) / (2 * z)
	}
	return z
}

func TestAddThenGetRoundTrips(t *testing.T) {
	s := New(newFakeIndex(), NewEventBus(8))
	interaction := s.Add("hello", "world", []float32{1, 0}, []string{"greeting"}, nil)

	got, ok := s.Get(interaction.ID)
	require.True(t, ok)
	assert.Equal(t, "hello", got.Prompt)
	assert.Equal(t, 0, got.AccessCount)
	assert.Equal(t, 1.0, got.DecayFactor)
	assert.Equal(t, 1, s.ShortTermCount())
}

func TestAddEmitsInteractionAddedEvent(t *testing.T) {
	bus := NewEventBus(8)
	s := New(newFakeIndex(), bus)
	s.Add("hello", "world", []float32{1, 0}, nil, nil)

	ev := <-bus.Events()
	assert.Equal(t, EventInteractionAdded, ev.Type)
}

func TestRetrieveReinforcesAccessedInteractions(t *testing.T) {
	s := New(newFakeIndex(), NewEventBus(8))
	interaction := s.Add("hello", "world", []float32{1, 0}, []string{"greeting"}, nil)

	results := s.Retrieve([]float32{1, 0}, []string{"greeting"}, RetrieveParams{K: 5, Threshold: 0.0, Alpha: 0.1})
	require.Len(t, results, 1)
	assert.Equal(t, interaction.ID, results[0].Interaction.ID)

	got, _ := s.Get(interaction.ID)
	assert.Equal(t, 1, got.AccessCount)
	assert.Greater(t, got.DecayFactor, 1.0)
}

func TestRetrieveEmptyWhenNoCandidatesAboveThreshold(t *testing.T) {
	s := New(newFakeIndex(), NewEventBus(8))
	s.Add("hello", "world", []float32{1, 0}, nil, nil)

	results := s.Retrieve([]float32{0, 1}, nil, RetrieveParams{K: 5, Threshold: 0.99})
	assert.Empty(t, results)
}

func TestMaintenancePromotesAfterThreshold(t *testing.T) {
	s := New(newFakeIndex(), NewEventBus(8), WithPromotionThreshold(2))
	interaction := s.Add("hello", "world", []float32{1, 0}, nil, nil)

	for i := 0; i < 2; i++ {
		s.Retrieve([]float32{1, 0}, nil, RetrieveParams{K: 5, Threshold: 0.0})
	}
	s.RunMaintenance()

	assert.Equal(t, 0, s.ShortTermCount())
	assert.Equal(t, 1, s.LongTermCount())
	got, _ := s.Get(interaction.ID)
	assert.Equal(t, TierLong, got.Tier)
}

func TestMaintenanceIsIdempotent(t *testing.T) {
	s := New(newFakeIndex(), NewEventBus(8), WithPromotionThreshold(1))
	s.Add("hello", "world", []float32{1, 0}, nil, nil)
	s.Retrieve([]float32{1, 0}, nil, RetrieveParams{K: 5, Threshold: 0.0})

	s.RunMaintenance()
	firstLong := s.LongTermCount()
	s.RunMaintenance()
	assert.Equal(t, firstLong, s.LongTermCount())
}

func TestDecayComponentDecreasesOverTime(t *testing.T) {
	d := DefaultDecayParams
	near := d.decayComponent(1)
	far := d.decayComponent(1e6)
	assert.Greater(t, near, far)
}

func TestAccessCapsDecayFactor(t *testing.T) {
	d := DecayParams{Lambda: 1e-4, FactorCap: 2.0, Floor: 1e-300}
	i := NewInteraction("p", "r", nil, nil, nil)
	i.DecayFactor = 1.9
	d.Access(i, time.Now())
	assert.LessOrEqual(t, i.DecayFactor, 2.0)
}

func TestConceptGraphSpreadingActivationReachesNeighbors(t *testing.T) {
	g := NewConceptGraph()
	g.AddInteraction([]string{"go", "concurrency"})
	g.AddInteraction([]string{"concurrency", "channels"})

	activation := g.SpreadingActivation([]string{"go"}, 2, 0.5)
	assert.Greater(t, activation["concurrency"], 0.0)
	assert.Greater(t, activation["channels"], 0.0)
	assert.Greater(t, activation["go"], activation["channels"])
}
