// Package zpt implements the ZPT (Zoom/Pan/Tilt) navigation abstraction:
// a stateless parameter processor, selector, projector,
// and transformer that map a navigation request onto the Ragno graph and
// emit an LLM-sized content window.
//
// Parameter validation follows the teacher's
// internal/interfaces/http/validation use of
// github.com/go-playground/validator/v10, generalized from HTTP request
// DTOs to the Zoom/Pan/Tilt parameter struct.
package zpt

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"semem/internal/xerrors"
)

// Zoom selects the element type and implied default budgets.
type Zoom string

const (
	ZoomEntity    Zoom = "entity"
	ZoomUnit      Zoom = "unit"
	ZoomText      Zoom = "text"
	ZoomCommunity Zoom = "community"
	ZoomCorpus    Zoom = "corpus"
)

// Tilt selects the projection/scoring strategy.
type Tilt string

const (
	TiltKeywords  Tilt = "keywords"
	TiltEmbedding Tilt = "embedding"
	TiltGraph     Tilt = "graph"
	TiltTemporal  Tilt = "temporal"
)

// Format selects the rendered output shape.
type Format string

const (
	FormatJSON          Format = "json"
	FormatMarkdown      Format = "markdown"
	FormatStructured    Format = "structured"
	FormatConversational Format = "conversational"
	FormatAnalytical    Format = "analytical"
)

// Tokenizer selects the token-counting model family.
type Tokenizer string

const (
	TokenizerCl100k Tokenizer = "cl100k"
	TokenizerP50k   Tokenizer = "p50k"
	TokenizerClaude Tokenizer = "claude"
	TokenizerLlama  Tokenizer = "llama"
)

// ChunkStrategy selects how selected content is split to fit a token
// budget.
type ChunkStrategy string

const (
	ChunkFixed        ChunkStrategy = "fixed"
	ChunkSemantic     ChunkStrategy = "semantic"
	ChunkAdaptive     ChunkStrategy = "adaptive"
	ChunkHierarchical ChunkStrategy = "hierarchical"
	ChunkTokenAware   ChunkStrategy = "token-aware"
)

// TemporalRange restricts Pan by Element timestamp.
type TemporalRange struct {
	Start time.Time
	End   time.Time
}

// GeographicFilter restricts Pan by spatial metadata; only one of BBox
// or (Point+Radius) should be set.
type GeographicFilter struct {
	BBox        [4]float64 // [w, s, e, n]
	HasBBox     bool
	PointLat    float64
	PointLon    float64
	RadiusKM    float64
	HasPoint    bool
}

// Pan is the configuration restricting which Elements are in scope;
// every field is optional.
type Pan struct {
	Topic      string
	EntityRefs []string
	Temporal   *TemporalRange
	Geographic *GeographicFilter
}

// Params is the raw, user-supplied navigation request before
// normalization.
type Params struct {
	Zoom          Zoom          `validate:"required,oneof=entity unit text community corpus"`
	Pan           Pan
	Tilt          Tilt          `validate:"required,oneof=keywords embedding graph temporal"`
	MaxTokens     int           `validate:"omitempty,min=1"`
	Format        Format        `validate:"omitempty,oneof=json markdown structured conversational analytical"`
	Tokenizer     Tokenizer     `validate:"omitempty,oneof=cl100k p50k claude llama"`
	ChunkStrategy ChunkStrategy `validate:"omitempty,oneof=fixed semantic adaptive hierarchical token-aware"`
	IncludeMetadata bool
}

// zoomDefaults are the default result-count/token-budget implications
// named in ; kept small and explicit rather than derived.
var zoomDefaults = map[Zoom]struct {
	MaxResultsPerType int
	MaxTokens         int
}{
	ZoomEntity:    {MaxResultsPerType: 50, MaxTokens: 2000},
	ZoomUnit:      {MaxResultsPerType: 30, MaxTokens: 4000},
	ZoomText:      {MaxResultsPerType: 20, MaxTokens: 6000},
	ZoomCommunity: {MaxResultsPerType: 10, MaxTokens: 4000},
	ZoomCorpus:    {MaxResultsPerType: 5, MaxTokens: 8000},
}

// Normalized is the post-validation request with every default applied
// and a fingerprint computed.
type Normalized struct {
	Zoom            Zoom
	Pan             Pan
	Tilt            Tilt
	MaxTokens       int
	Format          Format
	Tokenizer       Tokenizer
	ChunkStrategy   ChunkStrategy
	IncludeMetadata bool
	MaxResultsPerType int
	Fingerprint     string
}

var validatorInstance = validator.New()

// FieldError is a structured validation failure: field, value,
// constraint, and a suggested fix.
type FieldError struct {
	Field      string
	Value      string
	Constraint string
	Suggestion string
}

// Validate checks p against its enumerations, returning a
// Validation xerrors.Error carrying structured FieldErrors when it fails.
func Validate(p Params) error {
	if err := validatorInstance.Struct(p); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			first := verrs[0]
			return xerrors.NewValidation(first.Field(), first.Tag(), suggestionFor(first.Field()), "zpt parameter validation failed")
		}
		return xerrors.NewValidation("params", "valid", "", err.Error())
	}
	return nil
}

func suggestionFor(field string) string {
	switch field {
	case "Zoom":
		return "use one of entity, unit, text, community, corpus"
	case "Tilt":
		return "use one of keywords, embedding, graph, temporal"
	case "Format":
		return "use one of json, markdown, structured, conversational, analytical"
	case "Tokenizer":
		return "use one of cl100k, p50k, claude, llama"
	case "ChunkStrategy":
		return "use one of fixed, semantic, adaptive, hierarchical, token-aware"
	default:
		return ""
	}
}

// Normalize applies zoom-implied defaults and computes the deterministic
// parameter fingerprint , assuming Validate(p) already
// succeeded.
func Normalize(p Params) Normalized {
	defaults := zoomDefaults[p.Zoom]

	n := Normalized{
		Zoom:              p.Zoom,
		Pan:               p.Pan,
		Tilt:              p.Tilt,
		MaxTokens:         p.MaxTokens,
		Format:            p.Format,
		Tokenizer:         p.Tokenizer,
		ChunkStrategy:     p.ChunkStrategy,
		IncludeMetadata:   p.IncludeMetadata,
		MaxResultsPerType: defaults.MaxResultsPerType,
	}
	if n.MaxTokens == 0 {
		n.MaxTokens = defaults.MaxTokens
	}
	if n.Format == "" {
		n.Format = FormatStructured
	}
	if n.Tokenizer == "" {
		n.Tokenizer = TokenizerCl100k
	}
	if n.ChunkStrategy == "" {
		n.ChunkStrategy = ChunkFixed
	}
	n.Fingerprint = Fingerprint(n)
	return n
}

// canonicalForm is the sorted-key JSON-marshalable shape used to compute
// the fingerprint; Go's encoding/json already sorts map keys, so building
// a map here (rather than the ordered struct) gives us a canonical
// serialization with sorted keys for free.
func canonicalForm(n Normalized) map[string]any {
	m := map[string]any{
		"zoom":            string(n.Zoom),
		"tilt":            string(n.Tilt),
		"maxTokens":       n.MaxTokens,
		"format":          string(n.Format),
		"tokenizer":       string(n.Tokenizer),
		"chunkStrategy":   string(n.ChunkStrategy),
		"includeMetadata": n.IncludeMetadata,
	}
	if n.Pan.Topic != "" {
		m["pan.topic"] = n.Pan.Topic
	}
	if len(n.Pan.EntityRefs) > 0 {
		refs := append([]string(nil), n.Pan.EntityRefs...)
		sort.Strings(refs)
		m["pan.entity"] = refs
	}
	if n.Pan.Temporal != nil {
		m["pan.temporal.start"] = n.Pan.Temporal.Start.UTC().Format(time.RFC3339)
		m["pan.temporal.end"] = n.Pan.Temporal.End.UTC().Format(time.RFC3339)
	}
	if n.Pan.Geographic != nil {
		g := n.Pan.Geographic
		if g.HasBBox {
			m["pan.geographic.bbox"] = g.BBox
		}
		if g.HasPoint {
			m["pan.geographic.point"] = [3]float64{g.PointLat, g.PointLon, g.RadiusKM}
		}
	}
	return m
}

// Fingerprint computes the deterministic cache key for a Normalized
// navigation request.
func Fingerprint(n Normalized) string {
	data, _ := json.Marshal(canonicalForm(n))
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
