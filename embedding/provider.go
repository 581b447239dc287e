package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"semem/internal/xerrors"
)

// HTTPProvider adapts a remote embedding endpoint (e.g. a local Ollama
// server or a hosted API) to the Provider contract.
type HTTPProvider struct {
	name     string
	priority int
	caps     []Capability
	url      string
	client   *http.Client
}

// NewHTTPProvider constructs a remote HTTP-backed provider.
func NewHTTPProvider(name, url string, priority int, client *http.Client) *HTTPProvider {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPProvider{name: name, priority: priority, caps: []Capability{CapEmbed}, url: url, client: client}
}

func (p *HTTPProvider) Name() string               { return p.name }
func (p *HTTPProvider) Priority() int               { return p.priority }
func (p *HTTPProvider) Capabilities() []Capability { return p.caps }

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (p *HTTPProvider) Embed(ctx context.Context, text, model string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: model, Input: text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, xerrors.NewProviderUnavailable(fmt.Sprintf("%s embed request failed", p.name), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, xerrors.NewProviderUnavailable(fmt.Sprintf("%s returned status %d", p.name, resp.StatusCode), nil)
	}
	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, xerrors.NewProviderUnavailable(fmt.Sprintf("%s returned invalid response", p.name), err)
	}
	return out.Embedding, nil
}
