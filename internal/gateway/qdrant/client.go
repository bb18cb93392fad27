// Package qdrant is a minimal REST client for the Qdrant vector store covering
// the three calls the knowledge index needs: ensure collection, upsert, search.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"estimator/internal/logger"
)

// VectorSize matches the embedding dimensionality the index was built with.
const VectorSize = 384

// Point is one stored vector with its payload.
type Point struct {
	ID      uint64         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload,omitempty"`
}

// ScoredPoint is a search hit.
type ScoredPoint struct {
	ID      uint64         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// Client talks to one Qdrant instance.
type Client struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	httpc *http.Client
}

// NewClient builds a client for baseURL, e.g. http://localhost:6333.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Timeout: timeout,
		httpc:   &http.Client{Timeout: timeout},
	}
}

// EnsureCollection creates the collection with cosine distance when absent.
func (c *Client) EnsureCollection(ctx context.Context, name string, vectorSize int) error {
	if vectorSize <= 0 {
		vectorSize = VectorSize
	}
	status, _, err := c.do(ctx, http.MethodGet, "/collections/"+name, nil)
	if err != nil {
		return err
	}
	if status == http.StatusOK {
		return nil
	}
	if status != http.StatusNotFound {
		return fmt.Errorf("qdrant collection check status=%d", status)
	}
	body := map[string]any{
		"vectors": map[string]any{"size": vectorSize, "distance": "Cosine"},
	}
	status, raw, err := c.do(ctx, http.MethodPut, "/collections/"+name, body)
	if err != nil {
		return err
	}
	if status/100 != 2 {
		return fmt.Errorf("qdrant create collection status=%d: %s", status, raw)
	}
	logger.Infof("Qdrant collection %s created (dim=%d, cosine)", name, vectorSize)
	return nil
}

// Upsert writes points into the collection, waiting for the operation to land.
func (c *Client) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	body := map[string]any{"points": points}
	status, raw, err := c.do(ctx, http.MethodPut, "/collections/"+collection+"/points?wait=true", body)
	if err != nil {
		return err
	}
	if status/100 != 2 {
		return fmt.Errorf("qdrant upsert status=%d: %s", status, raw)
	}
	return nil
}

// Search returns the top-k nearest points with payloads.
func (c *Client) Search(ctx context.Context, collection string, vector []float32, limit int) ([]ScoredPoint, error) {
	if limit <= 0 {
		limit = 8
	}
	body := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	status, raw, err := c.do(ctx, http.MethodPost, "/collections/"+collection+"/points/search", body)
	if err != nil {
		return nil, err
	}
	if status/100 != 2 {
		return nil, fmt.Errorf("qdrant search status=%d: %s", status, raw)
	}
	var r struct {
		Result []ScoredPoint `json:"result"`
	}
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("qdrant search decode failed: %w", err)
	}
	return r.Result, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var payload *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		payload = bytes.NewReader(b)
	} else {
		payload = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, payload)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("api-key", c.APIKey)
	}
	httpc := c.httpc
	if httpc == nil {
		httpc = &http.Client{Timeout: c.Timeout}
	}
	resp, err := httpc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	return resp.StatusCode, buf.Bytes(), nil
}
