package ragno

import (
	"time"

	"semem/internal/xerrors"
)

// Entity is a named knowledge anchor.
type Entity struct {
	Element
	prefLabel    string
	altLabels    []string
	isEntryPoint bool
	frequency    int
	lastSeen     time.Time
	subType      string
}

// NewEntity creates an Entity, enforcing the invariant that prefLabel is
// non-empty (URI uniqueness is enforced by the Graph Store on insert).
func NewEntity(base, graph, prefLabel string) (*Entity, error) {
	if prefLabel == "" {
		return nil, xerrors.NewValidation("prefLabel", "non-empty", "provide a label", "entity prefLabel cannot be empty")
	}
	now := time.Now()
	return &Entity{
		Element:   newElement(base, TypeEntity, graph),
		prefLabel: prefLabel,
		lastSeen:  now,
	}, nil
}

func (e *Entity) PrefLabel() string      { return e.prefLabel }
func (e *Entity) IsEntryPoint() bool     { return e.isEntryPoint }
func (e *Entity) Frequency() int         { return e.frequency }
func (e *Entity) LastSeen() time.Time    { return e.lastSeen }
func (e *Entity) SubType() string        { return e.subType }
func (e *Entity) SetSubType(st string)   { e.subType = st }
func (e *Entity) SetEntryPoint(v bool)   { e.isEntryPoint = v }

// AltLabels returns a defensive copy of alternative labels.
func (e *Entity) AltLabels() []string {
	out := make([]string, len(e.altLabels))
	copy(out, e.altLabels)
	return out
}

// AddAltLabel appends an alternative label, skipping duplicates.
func (e *Entity) AddAltLabel(label string) {
	if label == "" || label == e.prefLabel {
		return
	}
	for _, l := range e.altLabels {
		if l == label {
			return
		}
	}
	e.altLabels = append(e.altLabels, label)
}

// Touch increments the frequency counter and refreshes lastSeen, called
// each time the entity is re-mentioned during ingestion.
func (e *Entity) Touch(at time.Time) {
	e.frequency++
	e.lastSeen = at
}

// Labels returns prefLabel plus all alt labels, used for exact-match
// lookups in the Dual Retriever.
func (e *Entity) Labels() []string {
	return append([]string{e.prefLabel}, e.altLabels...)
}
