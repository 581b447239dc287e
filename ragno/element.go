// Package ragno implements the RDF-style element model:
// Entity, Relationship, SemanticUnit, Attribute, TextElement, and
// CommunityElement, all deriving from a common Element base and
// serializable to Turtle, N-Triples, and JSON-LD.
//
// The struct-with-private-fields-and-accessors shape mirrors the teacher's
// domain/core/entities.Node: a constructor enforces invariants, accessors
// return defensive copies of slices/maps.
package ragno

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type names the six Ragno element kinds plus the auxiliary IndexElement
// used by the vector index to reference embeddings by id.
type Type string

const (
	TypeEntity           Type = "Entity"
	TypeRelationship     Type = "Relationship"
	TypeSemanticUnit     Type = "SemanticUnit"
	TypeAttribute        Type = "Attribute"
	TypeTextElement      Type = "TextElement"
	TypeCommunityElement Type = "CommunityElement"
	TypeIndexElement     Type = "IndexElement"
)

// RetrievableTypes are the element kinds indexed in the Vector Index for
// similarity search.
var RetrievableTypes = []Type{TypeSemanticUnit, TypeAttribute, TypeTextElement, TypeCommunityElement}

// IsRetrievable reports whether t is indexed for similarity search.
func IsRetrievable(t Type) bool {
	for _, rt := range RetrievableTypes {
		if rt == t {
			return true
		}
	}
	return false
}

// Value is an RDF object: either a typed literal or a URI reference.
type Value struct {
	Literal  string
	IsURI    bool
	DataType string // e.g. "xsd:string", "xsd:integer", "xsd:dateTime", "xsd:double"
}

func Lit(s string) Value       { return Value{Literal: s, DataType: "xsd:string"} }
func LitTyped(s, dt string) Value { return Value{Literal: s, DataType: dt} }
func URIVal(uri string) Value  { return Value{Literal: uri, IsURI: true} }

// Element is the common base every Ragno node derives from.
type Element struct {
	uri       string
	typ       Type
	createdAt time.Time
	graph     string // owning Corpus/named-graph URI
	props     map[string]Value
}

// NewElementURI mints a URI of the form {base}/{type}/{uuid}, 
func NewElementURI(base string, t Type) string {
	return fmt.Sprintf("%s/%s/%s", base, string(t), uuid.NewString())
}

func newElement(base string, t Type, graph string) Element {
	return Element{
		uri:       NewElementURI(base, t),
		typ:       t,
		createdAt: time.Now(),
		graph:     graph,
		props:     make(map[string]Value),
	}
}

func (e *Element) URI() string          { return e.uri }
func (e *Element) Type() Type           { return e.typ }
func (e *Element) CreatedAt() time.Time { return e.createdAt }
func (e *Element) Graph() string        { return e.graph }

// SetProperty sets an arbitrary key→Value pair on the element.
func (e *Element) SetProperty(key string, v Value) {
	if e.props == nil {
		e.props = make(map[string]Value)
	}
	e.props[key] = v
}

// Property retrieves a custom property.
func (e *Element) Property(key string) (Value, bool) {
	v, ok := e.props[key]
	return v, ok
}

// Properties returns a defensive copy of all custom properties.
func (e *Element) Properties() map[string]Value {
	out := make(map[string]Value, len(e.props))
	for k, v := range e.props {
		out[k] = v
	}
	return out
}

// Ider is satisfied by every concrete element type; used by the Graph Store
// and Vector Index to treat elements uniformly regardless of kind.
type Ider interface {
	URI() string
	Type() Type
	Graph() string
}
