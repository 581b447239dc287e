package ragno

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntityRejectsEmptyLabel(t *testing.T) {
	_, err := NewEntity("urn:semem", "g1", "")
	assert.Error(t, err)
}

func TestEntityAltLabelsDedup(t *testing.T) {
	e, err := NewEntity("urn:semem", "g1", "Go")
	require.NoError(t, err)
	e.AddAltLabel("Golang")
	e.AddAltLabel("Golang")
	e.AddAltLabel("Go")
	assert.Equal(t, []string{"Golang"}, e.AltLabels())
	assert.Equal(t, []string{"Go", "Golang"}, e.Labels())
}

func TestEntityTouchIncrementsFrequency(t *testing.T) {
	e, err := NewEntity("urn:semem", "g1", "Go")
	require.NoError(t, err)
	assert.Equal(t, 0, e.Frequency())
	e.Touch(e.CreatedAt())
	assert.Equal(t, 1, e.Frequency())
}

func TestNewRelationshipDefaultsWeight(t *testing.T) {
	r, err := NewRelationship("urn:semem", "g1", "urn:semem/Entity/a", "urn:semem/Entity/b", "relatedTo")
	require.NoError(t, err)
	assert.Equal(t, DefaultRelationshipWeight, r.Weight())
}

func TestRelationshipSetWeightRejectsOutOfRange(t *testing.T) {
	r, err := NewRelationship("urn:semem", "g1", "urn:semem/Entity/a", "urn:semem/Entity/b", "relatedTo")
	require.NoError(t, err)
	assert.Error(t, r.SetWeight(1.5))
	assert.Error(t, r.SetWeight(-0.1))
	assert.NoError(t, r.SetWeight(0.5))
	assert.Equal(t, 0.5, r.Weight())
}

type fakeResolver struct {
	known map[string]bool
}

func (f fakeResolver) ResolveEntity(graph, uri string) (*Entity, bool) {
	return nil, f.known[uri]
}

func TestValidateEndpointsDetectsDangling(t *testing.T) {
	r, err := NewRelationship("urn:semem", "g1", "urn:semem/Entity/a", "urn:semem/Entity/b", "relatedTo")
	require.NoError(t, err)

	resolver := fakeResolver{known: map[string]bool{"urn:semem/Entity/a": true}}
	err = r.ValidateEndpoints(resolver)
	assert.Error(t, err)

	resolver.known["urn:semem/Entity/b"] = true
	assert.NoError(t, r.ValidateEndpoints(resolver))
}

func TestSemanticUnitMentionRelevanceRejectsOutOfRange(t *testing.T) {
	u, err := NewSemanticUnit("urn:semem", "g1", "some text", "doc-1", 0, 9)
	require.NoError(t, err)
	assert.Error(t, u.AddMention("urn:semem/Entity/a", 1.5))
	assert.NoError(t, u.AddMention("urn:semem/Entity/a", 0.8))
	assert.Len(t, u.Mentions(), 1)
}

func TestCommunityElementRequiresMembers(t *testing.T) {
	_, err := NewCommunityElement("urn:semem", "g1", "summary", nil)
	assert.Error(t, err)

	c, err := NewCommunityElement("urn:semem", "g1", "summary", []string{"urn:semem/Entity/a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"urn:semem/Entity/a"}, c.MemberURIs())
}

func TestTriplesRoundTripThroughNTriples(t *testing.T) {
	e, err := NewEntity("urn:semem", "g1", "Golang")
	require.NoError(t, err)
	e.AddAltLabel("Go")
	e.SetEntryPoint(true)

	original := e.Triples()
	encoded := EncodeNTriples(original)
	decoded, err := DecodeNTriples(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, len(original))

	bySubjectPred := func(triples []Triple) map[string]Value {
		m := make(map[string]Value, len(triples))
		for _, tr := range triples {
			m[tr.Subject+"|"+tr.Predicate+"|"+tr.Object.Literal] = tr.Object
		}
		return m
	}
	wantSet, gotSet := bySubjectPred(original), bySubjectPred(decoded)
	assert.Equal(t, len(wantSet), len(gotSet))
	for k, v := range wantSet {
		got, ok := gotSet[k]
		require.True(t, ok, "missing triple %s", k)
		assert.Equal(t, v.IsURI, got.IsURI)
	}
}

func TestEncodeTurtleIsDeterministic(t *testing.T) {
	e, err := NewEntity("urn:semem", "g1", "Golang")
	require.NoError(t, err)
	first := EncodeTurtle(e.Triples())
	second := EncodeTurtle(e.Triples())
	assert.Equal(t, first, second)
}

func TestEncodeJSONLDGroupsBySubject(t *testing.T) {
	e, err := NewEntity("urn:semem", "g1", "Golang")
	require.NoError(t, err)
	doc := EncodeJSONLD(e.Triples())
	graph, ok := doc["@graph"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, graph, 1)
	assert.Equal(t, e.URI(), graph[0]["@id"])
}

func TestIsRetrievable(t *testing.T) {
	assert.True(t, IsRetrievable(TypeSemanticUnit))
	assert.True(t, IsRetrievable(TypeAttribute))
	assert.False(t, IsRetrievable(TypeEntity))
	assert.False(t, IsRetrievable(TypeRelationship))
}
