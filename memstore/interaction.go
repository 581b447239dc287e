// Package memstore implements the Memory Store: the
// Interaction lifecycle (ingest → decay/reinforce → tier → retrieve) and
// the Concept Graph used for spreading activation.
//
// The tiered slice-plus-mutex state and "never throw on provider failure,
// return an empty candidate set instead" pattern are grounded on the
// teacher's domain/services layer combined with the lenient-failure
// posture also used in concepts.Extractor.
package memstore

import (
	"time"

	"github.com/google/uuid"
)

// Tier classifies an Interaction's residency.
type Tier string

const (
	TierShort Tier = "short"
	TierLong  Tier = "long"
)

// Interaction is one memory item.
type Interaction struct {
	ID           string
	Prompt       string
	Response     string
	Embedding    []float32
	Concepts     []string
	Timestamp    time.Time
	LastAccessed time.Time
	AccessCount  int
	DecayFactor  float64
	Tier         Tier
	Metadata     map[string]string
}

// NewInteraction constructs an Interaction with the invariants of
// : accessCount=0, decayFactor=1.0, timestamp=now.
func NewInteraction(prompt, response string, embedding []float32, concepts []string, metadata map[string]string) *Interaction {
	now := time.Now()
	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	return &Interaction{
		ID:           uuid.NewString(),
		Prompt:       prompt,
		Response:     response,
		Embedding:    append([]float32(nil), embedding...),
		Concepts:     append([]string(nil), concepts...),
		Timestamp:    now,
		LastAccessed: now,
		AccessCount:  0,
		DecayFactor:  1.0,
		Tier:         TierShort,
		Metadata:     meta,
	}
}
