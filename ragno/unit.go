package ragno

import "semem/internal/xerrors"

// EntityMention links a SemanticUnit to an Entity it references, with a
// relevance score in [0,1].
type EntityMention struct {
	EntityURI string
	Relevance float64
}

// SemanticUnit is a self-contained event/sentence-group extracted from
// source text.
type SemanticUnit struct {
	Element
	content        string
	summary        string
	sourceDocument string
	offsetStart    int
	offsetEnd      int
	embedding      []float32
	mentions       []EntityMention
}

// NewSemanticUnit creates a SemanticUnit anchored to a source document and
// byte range.
func NewSemanticUnit(base, graph, content, sourceDocument string, offsetStart, offsetEnd int) (*SemanticUnit, error) {
	if content == "" {
		return nil, xerrors.NewValidation("content", "non-empty", "supply unit text", "semantic unit content cannot be empty")
	}
	return &SemanticUnit{
		Element:        newElement(base, TypeSemanticUnit, graph),
		content:        content,
		sourceDocument: sourceDocument,
		offsetStart:    offsetStart,
		offsetEnd:      offsetEnd,
	}, nil
}

func (u *SemanticUnit) Content() string        { return u.content }
func (u *SemanticUnit) Summary() string        { return u.summary }
func (u *SemanticUnit) SetSummary(s string)     { u.summary = s }
func (u *SemanticUnit) SourceDocument() string  { return u.sourceDocument }
func (u *SemanticUnit) Offsets() (int, int)     { return u.offsetStart, u.offsetEnd }

func (u *SemanticUnit) Embedding() []float32 {
	out := make([]float32, len(u.embedding))
	copy(out, u.embedding)
	return out
}

func (u *SemanticUnit) SetEmbedding(v []float32) {
	u.embedding = append([]float32(nil), v...)
}

// AddMention records that this unit mentions the given Entity with the
// given relevance score; a score outside [0,1] is rejected with a
// validation error and no mention is recorded.
func (u *SemanticUnit) AddMention(entityURI string, relevance float64) error {
	if relevance < 0 || relevance > 1 {
		return xerrors.NewValidation("relevance", "[0,1]", "clamp to the unit interval", "mention relevance out of range")
	}
	u.mentions = append(u.mentions, EntityMention{EntityURI: entityURI, Relevance: relevance})
	return nil
}

func (u *SemanticUnit) Mentions() []EntityMention {
	out := make([]EntityMention, len(u.mentions))
	copy(out, u.mentions)
	return out
}

// Attribute is a property of an Entity derived from surrounding Units or
// Relationships.
type Attribute struct {
	Element
	entityURI  string
	category   string
	content    string
	confidence float64
	embedding  []float32
}

// NewAttribute creates an Attribute anchored to an Entity.
func NewAttribute(base, graph, entityURI, category, content string, confidence float64) (*Attribute, error) {
	if entityURI == "" {
		return nil, xerrors.NewValidation("entityURI", "non-empty", "anchor the attribute to an entity", "attribute entityURI cannot be empty")
	}
	if confidence < 0 || confidence > 1 {
		return nil, xerrors.NewValidation("confidence", "[0,1]", "clamp to the unit interval", "attribute confidence out of range")
	}
	return &Attribute{
		Element:    newElement(base, TypeAttribute, graph),
		entityURI:  entityURI,
		category:   category,
		content:    content,
		confidence: confidence,
	}, nil
}

func (a *Attribute) EntityURI() string  { return a.entityURI }
func (a *Attribute) Category() string   { return a.category }
func (a *Attribute) Content() string    { return a.content }
func (a *Attribute) Confidence() float64 { return a.confidence }

func (a *Attribute) Embedding() []float32 {
	out := make([]float32, len(a.embedding))
	copy(out, a.embedding)
	return out
}

func (a *Attribute) SetEmbedding(v []float32) {
	a.embedding = append([]float32(nil), v...)
}

// TextElement is a raw text chunk addressed by content hash, linked to the
// Unit(s) derived from it.
type TextElement struct {
	Element
	contentHash string
	content     string
	unitURIs    []string
}

// NewTextElement creates a TextElement. contentHash is expected to already
// be computed by the caller (e.g. the Ingestion Pipeline), since the hash
// function is an ingestion concern, not a data-model one.
func NewTextElement(base, graph, contentHash, content string) (*TextElement, error) {
	if contentHash == "" {
		return nil, xerrors.NewValidation("contentHash", "non-empty", "hash the content before constructing", "text element content hash cannot be empty")
	}
	return &TextElement{
		Element:     newElement(base, TypeTextElement, graph),
		contentHash: contentHash,
		content:     content,
	}, nil
}

func (t *TextElement) ContentHash() string { return t.contentHash }
func (t *TextElement) Content() string     { return t.content }

func (t *TextElement) LinkUnit(unitURI string) {
	t.unitURIs = append(t.unitURIs, unitURI)
}

func (t *TextElement) UnitURIs() []string {
	out := make([]string, len(t.unitURIs))
	copy(out, t.unitURIs)
	return out
}

// CommunityElement is an LLM-generated summary of a cluster of Elements,
// produced by the aggregation stage from Leiden community detection
// output.
type CommunityElement struct {
	Element
	summary    string
	memberURIs []string
	embedding  []float32
}

func NewCommunityElement(base, graph, summary string, memberURIs []string) (*CommunityElement, error) {
	if len(memberURIs) == 0 {
		return nil, xerrors.NewValidation("memberURIs", "non-empty", "communities must have members", "community element has no members")
	}
	return &CommunityElement{
		Element:    newElement(base, TypeCommunityElement, graph),
		summary:    summary,
		memberURIs: append([]string(nil), memberURIs...),
	}, nil
}

func (c *CommunityElement) Summary() string { return c.summary }

func (c *CommunityElement) MemberURIs() []string {
	out := make([]string, len(c.memberURIs))
	copy(out, c.memberURIs)
	return out
}

func (c *CommunityElement) Embedding() []float32 {
	out := make([]float32, len(c.embedding))
	copy(out, c.embedding)
	return out
}

func (c *CommunityElement) SetEmbedding(v []float32) {
	c.embedding = append([]float32(nil), v...)
}
