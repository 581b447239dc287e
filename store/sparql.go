package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"semem/internal/xerrors"
	"semem/ragno"
)

// SPARQLStore is the remote variant : query+update endpoints
// behind HTTP basic auth, with writes coalesced into batches and wrapped in
// a circuit breaker per /its back-pressure requirement, grounded on
// the teacher's gobreaker-based provider adapters.
type SPARQLStore struct {
	queryURL  string
	updateURL string
	user      string
	pass      string
	client    *http.Client
	batchSize int
	breaker   *gobreaker.CircuitBreaker[any]
}

// SPARQLOption configures a SPARQLStore at construction time.
type SPARQLOption func(*SPARQLStore)

// WithBatchSize overrides the default batch size of 100 triples/batch.
func WithBatchSize(n int) SPARQLOption {
	return func(s *SPARQLStore) { s.batchSize = n }
}

// WithHTTPClient overrides the default HTTP client (e.g. for custom
// timeouts/transport in tests).
func WithHTTPClient(c *http.Client) SPARQLOption {
	return func(s *SPARQLStore) { s.client = c }
}

// NewSPARQLStore constructs a store against a remote SPARQL 1.1
// query+update endpoint pair.
func NewSPARQLStore(queryURL, updateURL, user, pass string, opts ...SPARQLOption) *SPARQLStore {
	s := &SPARQLStore{
		queryURL:  queryURL,
		updateURL: updateURL,
		user:      user,
		pass:      pass,
		client:    &http.Client{Timeout: 30 * time.Second},
		batchSize: 100,
	}
	for _, o := range opts {
		o(s)
	}
	s.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "sparql-store",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return s
}

// batchResult records the outcome of one batch within a multi-batch
// Insert, so partial failures can be surfaced per batch.
type batchResult struct {
	Index int
	Err   error
}

// Insert coalesces triples into batches of s.batchSize, executing each as a
// separate SPARQL UPDATE. Every batch is attempted; failures in later
// batches do not roll back earlier ones, and the returned error names the
// first batch that failed.
func (s *SPARQLStore) Insert(ctx context.Context, graph string, triples []ragno.Triple) error {
	var results []batchResult
	for i := 0; i < len(triples); i += s.batchSize {
		end := i + s.batchSize
		if end > len(triples) {
			end = len(triples)
		}
		batch := triples[i:end]
		_, err := s.breaker.Execute(func() (any, error) {
			return nil, s.execUpdate(ctx, insertUpdateBody(graph, batch))
		})
		results = append(results, batchResult{Index: i / s.batchSize, Err: err})
	}
	for _, r := range results {
		if r.Err != nil {
			return xerrors.NewStorage(fmt.Sprintf("batch %d of %d failed", r.Index, len(results)), r.Err)
		}
	}
	return nil
}

func insertUpdateBody(graph string, triples []ragno.Triple) string {
	nt := ragno.EncodeNTriples(triples)
	return fmt.Sprintf("INSERT DATA { GRAPH <%s> { %s } }", graph, nt)
}

func (s *SPARQLStore) Delete(ctx context.Context, graph string, pattern Pattern) error {
	_, err := s.breaker.Execute(func() (any, error) {
		return nil, s.execUpdate(ctx, deletePatternUpdate(graph, pattern))
	})
	if err != nil {
		return xerrors.NewStorage("delete", err)
	}
	return nil
}

func deletePatternUpdate(graph string, p Pattern) string {
	s := sparqlTermOrVar(p.Subject, "?s")
	pr := sparqlTermOrVar(p.Predicate, "?p")
	o := "?o"
	if p.Object != nil {
		o = ragnoValueToSPARQL(*p.Object)
	}
	return fmt.Sprintf("DELETE WHERE { GRAPH <%s> { %s %s %s } }", graph, s, pr, o)
}

func sparqlTermOrVar(term, fallback string) string {
	if term == "" {
		return fallback
	}
	return "<" + term + ">"
}

func ragnoValueToSPARQL(v ragno.Value) string {
	if v.IsURI {
		return "<" + v.Literal + ">"
	}
	return fmt.Sprintf("%q", v.Literal)
}

func (s *SPARQLStore) Replace(ctx context.Context, graph, subject string, triples []ragno.Triple) error {
	if err := s.Delete(ctx, graph, Pattern{Subject: subject}); err != nil {
		return err
	}
	return s.Insert(ctx, graph, triples)
}

// sparqlBinding is the JSON SPARQL 1.1 results shape for one row.
type sparqlBinding struct {
	Subject   sparqlTerm `json:"subject"`
	Predicate sparqlTerm `json:"predicate"`
	Object    sparqlTerm `json:"object"`
}

type sparqlTerm struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
}

type sparqlResults struct {
	Results struct {
		Bindings []sparqlBinding `json:"bindings"`
	} `json:"results"`
}

func (s *SPARQLStore) Query(ctx context.Context, graph string, pattern Pattern) ([]Binding, error) {
	result, err := s.breaker.Execute(func() (any, error) {
		return s.execQuery(ctx, selectQuery(graph, pattern))
	})
	if err != nil {
		return nil, xerrors.NewStorage("query", err)
	}
	rows := result.([]sparqlBinding)
	out := make([]Binding, 0, len(rows))
	for _, row := range rows {
		obj := ragno.Lit(row.Object.Value)
		if row.Object.Type == "uri" {
			obj = ragno.URIVal(row.Object.Value)
		}
		out = append(out, Binding{
			"subject":   ragno.URIVal(row.Subject.Value),
			"predicate": ragno.Lit(row.Predicate.Value),
			"object":    obj,
		})
	}
	return out, nil
}

func selectQuery(graph string, p Pattern) string {
	s := sparqlTermOrVar(p.Subject, "?subject")
	pr := sparqlTermOrVar(p.Predicate, "?predicate")
	o := "?object"
	if p.Object != nil {
		o = ragnoValueToSPARQL(*p.Object)
	}
	return fmt.Sprintf("SELECT ?subject ?predicate ?object FROM <%s> WHERE { %s %s %s }", graph, s, pr, o)
}

func (s *SPARQLStore) Clear(ctx context.Context, graph string) error {
	_, err := s.breaker.Execute(func() (any, error) {
		return nil, s.execUpdate(ctx, fmt.Sprintf("CLEAR GRAPH <%s>", graph))
	})
	if err != nil {
		return xerrors.NewStorage("clear", err)
	}
	return nil
}

func (s *SPARQLStore) Stats(ctx context.Context, graph string) (Stats, error) {
	bindings, err := s.Query(ctx, graph, Pattern{})
	if err != nil {
		return Stats{}, err
	}
	triples := make([]ragno.Triple, 0, len(bindings))
	for _, b := range bindings {
		triples = append(triples, ragno.Triple{
			Subject:   b["subject"].Literal,
			Predicate: b["predicate"].Literal,
			Object:    b["object"],
		})
	}
	return computeStats(triples), nil
}

func (s *SPARQLStore) execUpdate(ctx context.Context, update string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.updateURL, bytes.NewBufferString(update))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/sparql-update")
	if s.user != "" {
		req.SetBasicAuth(s.user, s.pass)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return xerrors.NewProviderUnavailable("sparql update request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return xerrors.NewStorage(fmt.Sprintf("sparql update returned %d", resp.StatusCode), nil)
	}
	return nil
}

func (s *SPARQLStore) execQuery(ctx context.Context, query string) ([]sparqlBinding, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.queryURL, bytes.NewBufferString(query))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/sparql-query")
	req.Header.Set("Accept", "application/sparql-results+json")
	if s.user != "" {
		req.SetBasicAuth(s.user, s.pass)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, xerrors.NewProviderUnavailable("sparql query request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, xerrors.NewStorage(fmt.Sprintf("sparql query returned %d", resp.StatusCode), nil)
	}
	var results sparqlResults
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, xerrors.NewStorage("decode sparql results", err)
	}
	return results.Results.Bindings, nil
}
