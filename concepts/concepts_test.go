package concepts

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeLLM struct {
	response string
	err      error
}

func (f fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return f.response, f.err
}

func TestExtractParsesJSONForm(t *testing.T) {
	llm := fakeLLM{response: `{"concepts": ["Go", "go", "Concurrency"], "relations": [{"subject":"go","predicate":"supports","object":"concurrency"}]}`}
	e := New(llm, 0)
	res := e.Extract(context.Background(), "some text")
	assert.Equal(t, []string{"go", "concurrency"}, res.Concepts)
	assert.Equal(t, []Triple{{Subject: "go", Predicate: "supports", Object: "concurrency"}}, res.Relations)
}

func TestExtractParsesFencedJSON(t *testing.T) {
	llm := fakeLLM{response: "```json\n{\"concepts\": [\"Rust\"]}\n```"}
	e := New(llm, 0)
	res := e.Extract(context.Background(), "some text")
	assert.Equal(t, []string{"rust"}, res.Concepts)
}

func TestExtractParsesNumberedListFallback(t *testing.T) {
	llm := fakeLLM{response: "1. Goroutines\n2. Channels\n3. Channels"}
	e := New(llm, 0)
	res := e.Extract(context.Background(), "some text")
	assert.Equal(t, []string{"goroutines", "channels"}, res.Concepts)
}

func TestExtractParsesBulletedListFallback(t *testing.T) {
	llm := fakeLLM{response: "- Goroutines\n* Channels"}
	e := New(llm, 0)
	res := e.Extract(context.Background(), "some text")
	assert.Equal(t, []string{"goroutines", "channels"}, res.Concepts)
}

func TestExtractReturnsEmptyOnProviderError(t *testing.T) {
	llm := fakeLLM{err: errors.New("boom")}
	e := New(llm, 0)
	res := e.Extract(context.Background(), "some text")
	assert.Empty(t, res.Concepts)
	assert.Empty(t, res.Relations)
}

func TestExtractReturnsEmptyOnEmptyInput(t *testing.T) {
	llm := fakeLLM{response: "anything"}
	e := New(llm, 0)
	res := e.Extract(context.Background(), "   ")
	assert.Empty(t, res.Concepts)
}

func TestExtractFiltersOverlongConcepts(t *testing.T) {
	llm := fakeLLM{response: `{"concepts": ["short", "` + strings.Repeat("x", 100) + `"]}`}
	e := New(llm, 10)
	res := e.Extract(context.Background(), "some text")
	assert.Equal(t, []string{"short"}, res.Concepts)
}

func TestValidatePairIgnoresCaseAndPunctuation(t *testing.T) {
	assert.True(t, ValidatePair("Go-Lang!", "golang"))
	assert.False(t, ValidatePair("Go", "Rust"))
}
