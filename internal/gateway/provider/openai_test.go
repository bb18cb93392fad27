package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatEndpointNormalization(t *testing.T) {
	assert.Equal(t, "https://api.openai.com/v1/chat/completions", chatEndpoint(""))
	assert.Equal(t, "http://x/v1/chat/completions", chatEndpoint("http://x/v1/"))
	assert.Equal(t, "http://x/v1/chat/completions", chatEndpoint("http://x/v1/chat/completions"))
}

func TestChatSendsMessagesInOrder(t *testing.T) {
	var got struct {
		Model    string    `json:"model"`
		Messages []Message `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"choices":[{"message":{"content":"hello"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIChatClient(srv.URL, "sk-test", "test-model", time.Second)
	out, err := c.Chat(context.Background(), ChatRequest{
		Purpose: "test",
		System:  "sys",
		User:    "final",
		History: []Message{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "yo"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.Equal(t, "test-model", got.Model)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "hi", got.Messages[1].Content)
	assert.Equal(t, "assistant", got.Messages[2].Role)
	assert.Equal(t, "final", got.Messages[3].Content)
}

func TestChatRetriesOn429(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"message":"slow down"}}`))
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIChatClient(srv.URL, "k", "m", time.Second)
	out, err := c.Chat(context.Background(), ChatRequest{User: "q"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 2, attempts)
}

func TestChatGivesUpOn400(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"bad model"}}`))
	}))
	defer srv.Close()

	c := NewOpenAIChatClient(srv.URL, "k", "m", time.Second)
	_, err := c.Chat(context.Background(), ChatRequest{User: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad model")
	assert.Equal(t, 1, attempts, "client errors are not retried")
}

func TestEmbedPreservesOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// return vectors out of order to exercise index mapping
		w.Write([]byte(`{"data":[
			{"index":1,"embedding":[0.2]},
			{"index":0,"embedding":[0.1]}
		]}`))
	}))
	defer srv.Close()

	c := NewEmbeddingsClient(srv.URL, "k", "emb", time.Second)
	vecs, err := c.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{0.1}, vecs[0])
	assert.Equal(t, []float32{0.2}, vecs[1])
}

func TestEmbedCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"index":0,"embedding":[0.1]}]}`))
	}))
	defer srv.Close()

	c := NewEmbeddingsClient(srv.URL, "k", "emb", time.Second)
	_, err := c.Embed(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}

func TestEmbedEmptyInput(t *testing.T) {
	c := NewEmbeddingsClient("http://unused", "k", "emb", time.Second)
	vecs, err := c.Embed(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, vecs)
}
