package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// EmbeddingsClient calls the /embeddings endpoint of the same provider family.
type EmbeddingsClient struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration

	httpc *http.Client
}

// NewEmbeddingsClient builds an embeddings client with defaults filled in.
func NewEmbeddingsClient(baseURL, apiKey, model string, timeout time.Duration) *EmbeddingsClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &EmbeddingsClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		Timeout: timeout,
		httpc:   &http.Client{Timeout: timeout},
	}
}

func embeddingsEndpoint(base string) string {
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	base = strings.TrimRight(base, "/")
	base = strings.TrimSuffix(base, "/embeddings")
	return base + "/embeddings"
}

// Embed vectorizes texts in one batch, preserving input order.
func (c *EmbeddingsClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body := map[string]any{"model": c.Model, "input": texts}
	b, _ := json.Marshal(body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, embeddingsEndpoint(c.BaseURL), bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	httpc := c.httpc
	if httpc == nil {
		httpc = &http.Client{Timeout: c.Timeout}
	}
	resp, err := httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("embeddings status=%d: %s", resp.StatusCode, apiErrorMessage(resp))
	}

	var r struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, err
	}
	if len(r.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings returned %d vectors for %d inputs", len(r.Data), len(texts))
	}
	out := make([][]float32, len(texts))
	for _, d := range r.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embeddings index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
