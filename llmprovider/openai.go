// Package llmprovider adapts the OpenAI chat completions API to semem's
// ChatProvider contract, grounded on the teacher-adjacent pkg/provider/llm
// pattern used across the retrieved pack for wrapping github.com/openai/openai-go
// behind a narrow domain interface.
package llmprovider

import (
	"context"
	"fmt"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"semem"
)

// OpenAI implements semem.ChatProvider over the OpenAI chat completions API.
type OpenAI struct {
	client oai.Client
}

// New constructs an OpenAI-backed ChatProvider. baseURL is optional; when
// empty the SDK's default OpenAI endpoint is used, which also makes this
// provider usable against any OpenAI-compatible local server (e.g. an
// Ollama OpenAI-compatibility shim).
func New(apiKey, baseURL string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("llmprovider: apiKey must not be empty")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAI{client: oai.NewClient(opts...)}, nil
}

func convert(messages []semem.Message) []oai.ChatCompletionMessageParamUnion {
	out := make([]oai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			out = append(out, oai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, oai.AssistantMessage(m.Content))
		default:
			out = append(out, oai.UserMessage(m.Content))
		}
	}
	return out
}

// Complete implements semem.ChatProvider.
func (p *OpenAI) Complete(ctx context.Context, model string, messages []semem.Message, temperature float64) (string, error) {
	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: convert(messages),
	}
	if temperature != 0 {
		params.Temperature = param.NewOpt(temperature)
	}
	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("llmprovider: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llmprovider: empty choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream implements semem.ChatProvider: a lazy, finite, non-restartable
// sequence of token deltas, closed when the upstream stream ends, errors,
// or ctx is cancelled.
func (p *OpenAI) Stream(ctx context.Context, model string, messages []semem.Message, temperature float64) (<-chan string, error) {
	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: convert(messages),
	}
	if temperature != 0 {
		params.Temperature = param.NewOpt(temperature)
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("llmprovider: start stream: %w", err)
	}

	ch := make(chan string, 32)
	go func() {
		defer close(ch)
		defer stream.Close()
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			select {
			case ch <- delta:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}
