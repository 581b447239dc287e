package llmprovider

import (
	"context"
	"fmt"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"semem/embedding"
)

// OpenAIEmbeddings implements embedding.Provider over the OpenAI embeddings
// API, grounded on the retrieved pack's embeddings-provider adapter shape.
type OpenAIEmbeddings struct {
	client   oai.Client
	model    string
	priority int
}

// NewEmbeddings constructs an OpenAI-backed embedding.Provider.
func NewEmbeddings(apiKey, baseURL, model string, priority int) (*OpenAIEmbeddings, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("llmprovider: apiKey must not be empty")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIEmbeddings{client: oai.NewClient(opts...), model: model, priority: priority}, nil
}

func (p *OpenAIEmbeddings) Name() string     { return "openai:" + p.model }
func (p *OpenAIEmbeddings) Priority() int    { return p.priority }
func (p *OpenAIEmbeddings) Capabilities() []embedding.Capability {
	return []embedding.Capability{embedding.CapEmbed}
}

// Embed implements embedding.Provider. model is accepted for interface
// compatibility but this adapter always embeds with the model it was
// constructed with, matching one OpenAI API key to one embeddings model.
func (p *OpenAIEmbeddings) Embed(ctx context.Context, text, model string) ([]float32, error) {
	resp, err := p.client.Embeddings.New(ctx, oai.EmbeddingNewParams{
		Model: p.model,
		Input: oai.EmbeddingNewParamsInputUnion{OfString: param.NewOpt(text)},
	})
	if err != nil {
		return nil, fmt.Errorf("llmprovider: embed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("llmprovider: empty embeddings response")
	}
	out := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		out[i] = float32(v)
	}
	return out, nil
}
