package zpt

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Chunk is one token-budgeted slice of a Projection's content, as
// produced by the Chunking stage of its Transformation
// pipeline.
type Chunk struct {
	Content string
	Tokens  int
	Sources []string
}

// TransformResult is the final rendered output of its
// Transformation pipeline.
type TransformResult struct {
	Chunks       []Chunk
	TotalTokens  int
	Degraded     bool
	Fallbacks    []string
	Metadata     map[string]any
}

func encodingName(tok Tokenizer) string {
	switch tok {
	case TokenizerP50k:
		return "p50k_base"
	case TokenizerCl100k, TokenizerClaude, TokenizerLlama:
		return "cl100k_base"
	default:
		return "cl100k_base"
	}
}

// countTokens counts tokens using the configured tokenizer, falling back
// to a whitespace-token heuristic if the requested encoding is
// unavailable so the pipeline degrades rather than fails.
func countTokens(text string, tok Tokenizer) (int, bool) {
	enc, err := tiktoken.GetEncoding(encodingName(tok))
	if err != nil {
		return len(strings.Fields(text)), true
	}
	return len(enc.Encode(text, nil, nil)), false
}

// entryGroup is an intermediate grouping of entries destined for one
// Chunk, before formatting and final token counting are applied.
type entryGroup struct {
	entries []ProjectedEntry
	sources []string
}

// groupFixed splits entries into groups of up to maxTokens (measured on
// raw content) with the configured overlap, without regard to semantic
// boundaries.
func groupFixed(entries []ProjectedEntry, tok Tokenizer, maxTokens, overlapTokens int) []entryGroup {
	var groups []entryGroup
	var cur entryGroup
	curTokens := 0

	flush := func() {
		if len(cur.entries) == 0 {
			return
		}
		groups = append(groups, cur)
		cur = entryGroup{}
		curTokens = 0
	}

	for _, e := range entries {
		tokens, _ := countTokens(e.Content, tok)
		if curTokens > 0 && curTokens+tokens > maxTokens {
			flush()
		}
		cur.entries = append(cur.entries, e)
		cur.sources = append(cur.sources, e.URI)
		curTokens += tokens
	}
	flush()
	_ = overlapTokens // fixed strategy ignores overlap per the stated default of 0
	return groups
}

// groupSemantic groups entries up to maxTokens, treating each entry as a
// semantic unit; overlap repeats the last entry of a group as the seed of
// the next.
func groupSemantic(entries []ProjectedEntry, tok Tokenizer, maxTokens, overlapEntries int) []entryGroup {
	var groups []entryGroup
	i := 0
	for i < len(entries) {
		var cur entryGroup
		curTokens := 0
		for i < len(entries) {
			tokens, _ := countTokens(entries[i].Content, tok)
			if curTokens > 0 && curTokens+tokens > maxTokens {
				break
			}
			cur.entries = append(cur.entries, entries[i])
			cur.sources = append(cur.sources, entries[i].URI)
			curTokens += tokens
			i++
		}
		if len(cur.entries) == 0 && i < len(entries) {
			// a single entry exceeds maxTokens on its own; emit it alone
			cur.entries = []ProjectedEntry{entries[i]}
			cur.sources = []string{entries[i].URI}
			i++
		}
		groups = append(groups, cur)
		if overlapEntries > 0 && i < len(entries) && i-overlapEntries >= 0 {
			i -= overlapEntries
		}
	}
	return groups
}

// Chunking dispatches on strategy, rendering each resulting group through
// format before counting its final token cost. If the semantic strategy
// produces no groups at all (the only failure mode a synchronous
// implementation can hit without a real timeout), it falls back along
// the chain semantic → fixed → truncation and reports the fallback.
func Chunking(entries []ProjectedEntry, strategy ChunkStrategy, tok Tokenizer, format Format, maxTokens int) ([]Chunk, []string) {
	var groups []entryGroup
	var fallbacks []string

	switch strategy {
	case ChunkSemantic, ChunkHierarchical, ChunkAdaptive:
		groups = groupSemantic(entries, tok, maxTokens, 1)
		if len(groups) == 0 && len(entries) > 0 {
			groups = groupFixed(entries, tok, maxTokens, 0)
			fallbacks = append(fallbacks, "semantic->fixed")
		}
	case ChunkTokenAware, ChunkFixed:
		fallthrough
	default:
		groups = groupFixed(entries, tok, maxTokens, 0)
	}

	chunks := make([]Chunk, len(groups))
	for i, g := range groups {
		content := Render(g.entries, format)
		tokens, _ := countTokens(content, tok)
		chunks[i] = Chunk{Content: content, Tokens: tokens, Sources: g.sources}
	}
	return chunks, fallbacks
}

// Render formats entries per the requested output format.
func Render(entries []ProjectedEntry, format Format) string {
	switch format {
	case FormatJSON:
		return renderJSON(entries)
	case FormatMarkdown:
		return renderMarkdown(entries)
	case FormatConversational:
		return renderConversational(entries)
	case FormatAnalytical:
		return renderAnalytical(entries)
	case FormatStructured:
		fallthrough
	default:
		return renderStructured(entries)
	}
}

func renderJSON(entries []ProjectedEntry) string {
	var b strings.Builder
	b.WriteString("[")
	for i, e := range entries {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, "{\"uri\":%q,\"label\":%q,\"content\":%q,\"score\":%g}", e.URI, e.Label, e.Content, e.Score)
	}
	b.WriteString("]")
	return b.String()
}

func renderMarkdown(entries []ProjectedEntry) string {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", e.Label, e.Content)
	}
	return b.String()
}

func renderStructured(entries []ProjectedEntry) string {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "[%s] %s: %s\n", e.URI, e.Label, e.Content)
	}
	return b.String()
}

func renderConversational(entries []ProjectedEntry) string {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "Regarding %s: %s\n", e.Label, e.Content)
	}
	return b.String()
}

func renderAnalytical(entries []ProjectedEntry) string {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s (score=%.4f): %s\n", e.Label, e.Score, e.Content)
	}
	return b.String()
}

// MetadataPolicy selects where navigation context is encoded in the
// final output.
type MetadataPolicy string

const (
	MetadataInline  MetadataPolicy = "inline"
	MetadataHeader  MetadataPolicy = "header"
	MetadataCompact MetadataPolicy = "compact"
)

// EncodeMetadata renders the navigation metadata header per policy.
func EncodeMetadata(n Normalized, diagnostics Diagnostics, policy MetadataPolicy) map[string]any {
	full := map[string]any{
		"zoom":           string(n.Zoom),
		"pan.topic":      n.Pan.Topic,
		"tilt":           string(n.Tilt),
		"candidateCount": diagnostics.CandidateCount,
		"selectedCount":  diagnostics.SelectedCount,
	}
	switch policy {
	case MetadataCompact:
		return map[string]any{"z": string(n.Zoom), "t": string(n.Tilt), "n": diagnostics.SelectedCount}
	case MetadataHeader, MetadataInline:
		fallthrough
	default:
		return full
	}
}

// Transform runs its full Transformation pipeline: token
// analysis, chunking, formatting, metadata encoding, output validation.
func Transform(p Projection, n Normalized, diagnostics Diagnostics, policy MetadataPolicy) TransformResult {
	entries := p.List
	if len(entries) == 0 {
		entries = p.Timeline
	}
	if len(entries) == 0 && p.Graph != nil {
		entries = p.Graph.Nodes
	}

	var fallbacks []string
	degraded := false

	chunks, chunkFallbacks := Chunking(entries, n.ChunkStrategy, n.Tokenizer, n.Format, n.MaxTokens)
	if len(chunkFallbacks) > 0 {
		degraded = true
		fallbacks = append(fallbacks, chunkFallbacks...)
	}

	total := 0
	for _, c := range chunks {
		total += c.Tokens
	}

	if total > n.MaxTokens && n.MaxTokens > 0 {
		chunks, total = truncateProportionally(chunks, n.MaxTokens)
		degraded = true
		fallbacks = append(fallbacks, "truncation")
	}

	metadata := EncodeMetadata(n, diagnostics, policy)

	return TransformResult{
		Chunks:      chunks,
		TotalTokens: total,
		Degraded:    degraded,
		Fallbacks:   fallbacks,
		Metadata:    metadata,
	}
}

// minTokensPerChunk is the smallest per-chunk token share truncation will
// preserve when the budget is at least this large; a smaller budget is
// split proportionally with no minimum.
const minTokensPerChunk = 16

// truncateProportionally truncates chunks proportionally to fit the
// token budget while preserving a per-element minimum.
func truncateProportionally(chunks []Chunk, budget int) ([]Chunk, int) {
	if len(chunks) == 0 {
		return chunks, 0
	}
	totalBefore := 0
	for _, c := range chunks {
		totalBefore += c.Tokens
	}
	if totalBefore == 0 {
		return chunks, 0
	}

	out := make([]Chunk, len(chunks))
	total := 0
	for i, c := range chunks {
		share := int(float64(budget) * float64(c.Tokens) / float64(totalBefore))
		if share < minTokensPerChunk && budget >= minTokensPerChunk {
			share = minTokensPerChunk
		}
		if share > c.Tokens {
			share = c.Tokens
		}
		truncated := truncateToTokens(c.Content, share)
		out[i] = Chunk{Content: truncated, Tokens: share, Sources: c.Sources}
		total += share
	}
	return out, total
}

// truncateToTokens approximates a token-bounded substring by word count;
// exact token-boundary truncation would require re-encoding per cut,
// which is unnecessary precision for a degrade-path fallback.
func truncateToTokens(content string, maxTokens int) string {
	words := strings.Fields(content)
	if maxTokens <= 0 {
		return ""
	}
	if len(words) <= maxTokens {
		return content
	}
	return strings.Join(words[:maxTokens], " ")
}
