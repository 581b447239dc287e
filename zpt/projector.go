package zpt

import "time"

// Representation names the four shapes the Projection step can convert
// selected elements into.
type Representation string

const (
	RepresentationList     Representation = "list"
	RepresentationGraph    Representation = "graph"
	RepresentationTimeline Representation = "timeline"
	RepresentationSummary  Representation = "summary"
)

// ProjectionMetadata carries the algorithm name and generation time
// required by its Projection step.
type ProjectionMetadata struct {
	Algorithm      string
	GeneratedAt    time.Time
	Representation Representation
}

// Projection is the Selector output projected into one of the four
// representations, ready for the Transformer.
type Projection struct {
	Metadata ProjectionMetadata
	List     []ProjectedEntry
	Graph    *GraphView
	Timeline []ProjectedEntry
	Summary  string
}

// ProjectedEntry is one element's flattened projected content.
type ProjectedEntry struct {
	URI       string
	Label     string
	Content   string
	Score     float64
	Timestamp time.Time
}

// GraphEdge is one adjacency edge in a GraphView.
type GraphEdge struct {
	From, To string
	Weight   float64
}

// GraphView is the graph representation: nodes with their own entries
// plus weighted adjacency.
type GraphView struct {
	Nodes []ProjectedEntry
	Edges []GraphEdge
}

// representationForTilt maps a tilt to its natural default projection.
func representationForTilt(t Tilt) Representation {
	switch t {
	case TiltGraph:
		return RepresentationGraph
	case TiltTemporal:
		return RepresentationTimeline
	case TiltKeywords:
		return RepresentationList
	case TiltEmbedding:
		return RepresentationList
	default:
		return RepresentationList
	}
}

// algorithmNameForTilt names the scoring algorithm recorded in
// ProjectionMetadata.
func algorithmNameForTilt(t Tilt) string {
	switch t {
	case TiltKeywords:
		return "tfidf"
	case TiltEmbedding:
		return "ann-cosine"
	case TiltGraph:
		return "personalized-pagerank"
	case TiltTemporal:
		return "recency-weighted-range-scan"
	default:
		return "unknown"
	}
}

// Project converts a SelectionResult into one of the four representations.
func Project(result SelectionResult, edges []GraphEdge) Projection {
	rep := representationForTilt(result.NavigationContext.Tilt)
	meta := ProjectionMetadata{
		Algorithm:      algorithmNameForTilt(result.NavigationContext.Tilt),
		GeneratedAt:    time.Now(),
		Representation: rep,
	}

	entries := make([]ProjectedEntry, 0, len(result.Items))
	for _, item := range result.Items {
		content := item.Content
		if content == "" {
			content = item.Summary
		}
		entries = append(entries, ProjectedEntry{
			URI:       item.URI,
			Label:     item.Label,
			Content:   content,
			Score:     item.Score,
			Timestamp: item.Timestamp,
		})
	}

	p := Projection{Metadata: meta}
	switch rep {
	case RepresentationGraph:
		p.Graph = &GraphView{Nodes: entries, Edges: edges}
	case RepresentationTimeline:
		p.Timeline = entries
	case RepresentationSummary:
		p.Summary = summarizeEntries(entries)
	default:
		p.List = entries
	}
	return p
}

func summarizeEntries(entries []ProjectedEntry) string {
	if len(entries) == 0 {
		return ""
	}
	var labels []string
	for _, e := range entries {
		if e.Label != "" {
			labels = append(labels, e.Label)
		}
	}
	out := ""
	for i, l := range labels {
		if i > 0 {
			out += ", "
		}
		out += l
	}
	return out
}
