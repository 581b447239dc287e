package ragno

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Triple is a flattened subject/predicate/object fact, the common
// denominator every Ragno element reduces to for storage and serialization
//.
type Triple struct {
	Subject   string
	Predicate string
	Object    Value
	Graph     string
}

// Triples flattens an Element plus its typed fields and custom properties
// into a slice of Triples. Concrete element types call this with their own
// typed predicates layered on top.
func elementTriples(e *Element, predPrefix string) []Triple {
	out := []Triple{
		{Subject: e.URI(), Predicate: "rdf:type", Object: Lit(string(e.typ)), Graph: e.graph},
		{Subject: e.URI(), Predicate: predPrefix + "createdAt", Object: LitTyped(e.createdAt.Format(timeLayout), "xsd:dateTime"), Graph: e.graph},
	}
	keys := make([]string, 0, len(e.props))
	for k := range e.props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, Triple{Subject: e.URI(), Predicate: k, Object: e.props[k], Graph: e.graph})
	}
	return out
}

const timeLayout = "2006-01-02T15:04:05.999999999Z07:00"

// Triples produces the canonical triple set for each concrete type.

func (en *Entity) Triples() []Triple {
	t := elementTriples(&en.Element, "ragno:")
	t = append(t,
		Triple{Subject: en.URI(), Predicate: "ragno:prefLabel", Object: Lit(en.prefLabel), Graph: en.Graph()},
		Triple{Subject: en.URI(), Predicate: "ragno:isEntryPoint", Object: LitTyped(strconv.FormatBool(en.isEntryPoint), "xsd:boolean"), Graph: en.Graph()},
		Triple{Subject: en.URI(), Predicate: "ragno:frequency", Object: LitTyped(strconv.Itoa(en.frequency), "xsd:integer"), Graph: en.Graph()},
	)
	for _, alt := range en.altLabels {
		t = append(t, Triple{Subject: en.URI(), Predicate: "ragno:altLabel", Object: Lit(alt), Graph: en.Graph()})
	}
	return t
}

func (r *Relationship) Triples() []Triple {
	t := elementTriples(&r.Element, "ragno:")
	t = append(t,
		Triple{Subject: r.URI(), Predicate: "ragno:hasSourceEntity", Object: URIVal(r.sourceURI), Graph: r.Graph()},
		Triple{Subject: r.URI(), Predicate: "ragno:hasTargetEntity", Object: URIVal(r.targetURI), Graph: r.Graph()},
		Triple{Subject: r.URI(), Predicate: "ragno:relationshipType", Object: Lit(r.relType), Graph: r.Graph()},
		Triple{Subject: r.URI(), Predicate: "ragno:weight", Object: LitTyped(strconv.FormatFloat(r.weight, 'f', -1, 64), "xsd:double"), Graph: r.Graph()},
	)
	return t
}

func (u *SemanticUnit) Triples() []Triple {
	t := elementTriples(&u.Element, "ragno:")
	t = append(t,
		Triple{Subject: u.URI(), Predicate: "ragno:content", Object: Lit(u.content), Graph: u.Graph()},
		Triple{Subject: u.URI(), Predicate: "ragno:sourceDocument", Object: Lit(u.sourceDocument), Graph: u.Graph()},
		Triple{Subject: u.URI(), Predicate: "ragno:offsetStart", Object: LitTyped(strconv.Itoa(u.offsetStart), "xsd:integer"), Graph: u.Graph()},
		Triple{Subject: u.URI(), Predicate: "ragno:offsetEnd", Object: LitTyped(strconv.Itoa(u.offsetEnd), "xsd:integer"), Graph: u.Graph()},
	)
	for _, m := range u.mentions {
		t = append(t, Triple{Subject: u.URI(), Predicate: "ragno:mentions", Object: URIVal(m.EntityURI), Graph: u.Graph()})
	}
	return t
}

func (a *Attribute) Triples() []Triple {
	t := elementTriples(&a.Element, "ragno:")
	t = append(t,
		Triple{Subject: a.URI(), Predicate: "ragno:describesEntity", Object: URIVal(a.entityURI), Graph: a.Graph()},
		Triple{Subject: a.URI(), Predicate: "ragno:category", Object: Lit(a.category), Graph: a.Graph()},
		Triple{Subject: a.URI(), Predicate: "ragno:content", Object: Lit(a.content), Graph: a.Graph()},
		Triple{Subject: a.URI(), Predicate: "ragno:confidence", Object: LitTyped(strconv.FormatFloat(a.confidence, 'f', -1, 64), "xsd:double"), Graph: a.Graph()},
	)
	return t
}

func (te *TextElement) Triples() []Triple {
	t := elementTriples(&te.Element, "ragno:")
	t = append(t,
		Triple{Subject: te.URI(), Predicate: "ragno:contentHash", Object: Lit(te.contentHash), Graph: te.Graph()},
		Triple{Subject: te.URI(), Predicate: "ragno:content", Object: Lit(te.content), Graph: te.Graph()},
	)
	for _, u := range te.unitURIs {
		t = append(t, Triple{Subject: te.URI(), Predicate: "ragno:hasUnit", Object: URIVal(u), Graph: te.Graph()})
	}
	return t
}

func (c *CommunityElement) Triples() []Triple {
	t := elementTriples(&c.Element, "ragno:")
	t = append(t, Triple{Subject: c.URI(), Predicate: "ragno:summary", Object: Lit(c.summary), Graph: c.Graph()})
	for _, m := range c.memberURIs {
		t = append(t, Triple{Subject: c.URI(), Predicate: "ragno:hasMember", Object: URIVal(m), Graph: c.Graph()})
	}
	return t
}

// prefixes maps the namespace tokens used above to full URIs for Turtle
// output; intentionally small, covering only what this package emits —
// a practical subset, not the full Turtle grammar.
var prefixes = map[string]string{
	"rdf":   "http://www.w3.org/1999/02/22-rdf-syntax-ns#",
	"xsd":   "http://www.w3.org/2001/XMLSchema#",
	"ragno": "http://purl.org/stuff/ragno/",
}

// EncodeTurtle renders triples in a practical Turtle subset: prefix
// declarations followed by one "subject predicate object ." line per
// triple, grouped and sorted for a deterministic, round-trippable output.
func EncodeTurtle(triples []Triple) string {
	var b strings.Builder
	pfxKeys := make([]string, 0, len(prefixes))
	for k := range prefixes {
		pfxKeys = append(pfxKeys, k)
	}
	sort.Strings(pfxKeys)
	for _, k := range pfxKeys {
		fmt.Fprintf(&b, "@prefix %s: <%s> .\n", k, prefixes[k])
	}
	b.WriteString("\n")

	sorted := append([]Triple(nil), triples...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Subject != sorted[j].Subject {
			return sorted[i].Subject < sorted[j].Subject
		}
		return sorted[i].Predicate < sorted[j].Predicate
	})
	for _, t := range sorted {
		fmt.Fprintf(&b, "<%s> %s %s .\n", t.Subject, t.Predicate, turtleObject(t.Object))
	}
	return b.String()
}

func turtleObject(v Value) string {
	if v.IsURI {
		return "<" + v.Literal + ">"
	}
	escaped := strings.ReplaceAll(v.Literal, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	if v.DataType == "" || v.DataType == "xsd:string" {
		return fmt.Sprintf("%q", escaped)
	}
	return fmt.Sprintf("%q^^%s", escaped, v.DataType)
}

// EncodeNTriples renders triples as one absolute-URI fact per line, the
// simplest RDF serialization and the one used for SPARQL bulk loads
//.
func EncodeNTriples(triples []Triple) string {
	var b strings.Builder
	for _, t := range triples {
		pred := t.Predicate
		if full, ok := expandPrefixed(pred); ok {
			pred = full
		}
		fmt.Fprintf(&b, "<%s> <%s> %s .\n", t.Subject, pred, ntriplesObject(t.Object))
	}
	return b.String()
}

func expandPrefixed(s string) (string, bool) {
	idx := strings.Index(s, ":")
	if idx < 0 {
		return "", false
	}
	pfx, local := s[:idx], s[idx+1:]
	base, ok := prefixes[pfx]
	if !ok {
		return "", false
	}
	return base + local, true
}

func ntriplesObject(v Value) string {
	if v.IsURI {
		return "<" + v.Literal + ">"
	}
	escaped := strings.ReplaceAll(v.Literal, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	if v.DataType == "" || v.DataType == "xsd:string" {
		return fmt.Sprintf("%q", escaped)
	}
	full, _ := expandPrefixed(v.DataType)
	return fmt.Sprintf("%q^^<%s>", escaped, full)
}

// jsonLDNode is the per-subject shape emitted by EncodeJSONLD.
type jsonLDNode struct {
	ID    string              `json:"@id"`
	Type  []string            `json:"@type,omitempty"`
	Props map[string][]string `json:"-"`
}

// EncodeJSONLD groups triples by subject into a JSON-LD @graph array. It
// hand-builds the map (rather than unmarshaling into a generic struct) so
// that multi-valued predicates collapse into arrays deterministically.
func EncodeJSONLD(triples []Triple) map[string]any {
	order := []string{}
	nodes := map[string]*jsonLDNode{}
	for _, t := range triples {
		n, ok := nodes[t.Subject]
		if !ok {
			n = &jsonLDNode{ID: t.Subject, Props: map[string][]string{}}
			nodes[t.Subject] = n
			order = append(order, t.Subject)
		}
		if t.Predicate == "rdf:type" {
			n.Type = append(n.Type, t.Object.Literal)
			continue
		}
		var rendered string
		if t.Object.IsURI {
			rendered = t.Object.Literal
		} else {
			rendered = t.Object.Literal
		}
		n.Props[t.Predicate] = append(n.Props[t.Predicate], rendered)
	}

	graph := make([]map[string]any, 0, len(order))
	for _, subj := range order {
		n := nodes[subj]
		entry := map[string]any{"@id": n.ID}
		if len(n.Type) > 0 {
			entry["@type"] = n.Type
		}
		predKeys := make([]string, 0, len(n.Props))
		for k := range n.Props {
			predKeys = append(predKeys, k)
		}
		sort.Strings(predKeys)
		for _, k := range predKeys {
			vals := n.Props[k]
			if len(vals) == 1 {
				entry[k] = vals[0]
			} else {
				entry[k] = vals
			}
		}
		graph = append(graph, entry)
	}

	out := map[string]any{
		"@context": prefixes,
		"@graph":   graph,
	}
	return out
}

// DecodeNTriples parses the line format produced by EncodeNTriples. It
// supports exactly the subset this package emits (absolute-URI subject and
// predicate, quoted literal or bracketed URI object, optional ^^datatype),
// which is sufficient for round-tripping since both sides of the round
// trip are this package.
func DecodeNTriples(s string) ([]Triple, error) {
	var out []Triple
	for lineNo, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = strings.TrimSuffix(line, " .")
		subjEnd := strings.Index(line, "> <")
		if !strings.HasPrefix(line, "<") || subjEnd < 0 {
			return nil, fmt.Errorf("ntriples line %d: malformed subject/predicate: %q", lineNo, line)
		}
		subj := line[1:subjEnd]
		rest := line[subjEnd+2:]
		predEnd := strings.Index(rest, "> ")
		if !strings.HasPrefix(rest, "<") || predEnd < 0 {
			return nil, fmt.Errorf("ntriples line %d: malformed predicate: %q", lineNo, line)
		}
		pred := rest[1:predEnd]
		objPart := strings.TrimSpace(rest[predEnd+2:])
		obj, err := parseNTriplesObject(objPart)
		if err != nil {
			return nil, fmt.Errorf("ntriples line %d: %w", lineNo, err)
		}
		out = append(out, Triple{Subject: subj, Predicate: pred, Object: obj})
	}
	return out, nil
}

func parseNTriplesObject(s string) (Value, error) {
	if strings.HasPrefix(s, "<") {
		end := strings.Index(s, ">")
		if end < 0 {
			return Value{}, fmt.Errorf("unterminated URI object: %q", s)
		}
		return URIVal(s[1:end]), nil
	}
	if !strings.HasPrefix(s, `"`) {
		return Value{}, fmt.Errorf("expected literal object: %q", s)
	}
	end := 1
	for end < len(s) {
		if s[end] == '\\' {
			end += 2
			continue
		}
		if s[end] == '"' {
			break
		}
		end++
	}
	raw, err := strconv.Unquote(s[:end+1])
	if err != nil {
		return Value{}, fmt.Errorf("malformed literal object: %q", s)
	}
	// ntriplesObject escapes backslashes and quotes before quoting with
	// %q, so after unquoting that inner escaping is undone as well.
	raw = strings.ReplaceAll(raw, `\"`, `"`)
	raw = strings.ReplaceAll(raw, `\\`, `\`)
	remainder := s[end+1:]
	if strings.HasPrefix(remainder, "^^<") {
		dtEnd := strings.Index(remainder, ">")
		full := remainder[3:dtEnd]
		dt := full
		for pfx, base := range prefixes {
			if strings.HasPrefix(full, base) {
				dt = pfx + ":" + strings.TrimPrefix(full, base)
				break
			}
		}
		return LitTyped(raw, dt), nil
	}
	return Lit(raw), nil
}
