package vectorindex

import (
	"context"
	"encoding/base64"
	"math"

	"semem/ragno"
	"semem/store"
)

// decodeEmbedding turns a stored property value back into a float32
// vector. Embeddings are persisted as base64-encoded little-endian
// float32 blocks under the "ragno:embedding" predicate so the Graph Store
// never needs to know about vectors.
func decodeEmbedding(encoded string) ([]float32, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(raw)/4)
	for i := range out {
		bits := uint32(raw[i*4]) | uint32(raw[i*4+1])<<8 | uint32(raw[i*4+2])<<16 | uint32(raw[i*4+3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out, nil
}

// EncodeEmbedding is the inverse of decodeEmbedding, used when persisting
// an embedding to the Graph Store during enrichment.
func EncodeEmbedding(v []float32) string {
	raw := make([]byte, len(v)*4)
	for i, f := range v {
		bits := math.Float32bits(f)
		raw[i*4] = byte(bits)
		raw[i*4+1] = byte(bits >> 8)
		raw[i*4+2] = byte(bits >> 16)
		raw[i*4+3] = byte(bits >> 24)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

// RebuildFromStore reconstructs an index from scratch by scanning every
// "ragno:embedding" triple in graph, so the index can always be rebuilt
// offline from the Graph Store.
func RebuildFromStore(ctx context.Context, s store.Store, graph string, cfg Config) (*Index, error) {
	idx := New(cfg)
	bindings, err := s.Query(ctx, graph, store.Pattern{Predicate: "ragno:embedding"})
	if err != nil {
		return nil, err
	}
	typeBindings, err := s.Query(ctx, graph, store.Pattern{Predicate: "rdf:type"})
	if err != nil {
		return nil, err
	}
	typeOf := make(map[string]ragno.Type, len(typeBindings))
	for _, b := range typeBindings {
		typeOf[b["subject"].Literal] = ragno.Type(b["object"].Literal)
	}

	for _, b := range bindings {
		subj := b["subject"].Literal
		vec, err := decodeEmbedding(b["object"].Literal)
		if err != nil {
			continue
		}
		idx.Add(subj, vec, typeOf[subj])
	}
	return idx, nil
}
