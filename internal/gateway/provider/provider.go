// Package provider talks to OpenAI-compatible endpoints: chat completions for
// analysis and /embeddings for the vector index.
package provider

import "context"

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest carries one completion call. History sits between the system
// prompt and the final user turn.
type ChatRequest struct {
	Purpose     string
	System      string
	User        string
	History     []Message
	Temperature float64
	MaxTokens   int
}

// Provider is the chat completion surface the analyst depends on.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

// Embedder turns texts into vectors for the knowledge index.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
