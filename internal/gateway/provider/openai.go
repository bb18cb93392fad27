package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"estimator/internal/logger"
)

// OpenAIChatClient calls an OpenAI / DeepSeek / Qwen compatible
// /v1/chat/completions endpoint.
type OpenAIChatClient struct {
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
	// Bounded retry for 429/5xx. Zero means the default of 2 attempts.
	MaxRetries int

	httpc *http.Client
}

// NewOpenAIChatClient fills in client defaults.
func NewOpenAIChatClient(baseURL, apiKey, model string, timeout time.Duration) *OpenAIChatClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIChatClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		Timeout: timeout,
		httpc:   &http.Client{Timeout: timeout},
	}
}

// chatEndpoint normalizes the base URL so a configured ".../chat/completions"
// does not end up with the path doubled.
func chatEndpoint(base string) string {
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	base = strings.TrimRight(base, "/")
	base = strings.TrimSuffix(base, "/chat/completions")
	return base + "/chat/completions"
}

// Chat performs one completion call with bounded retry on 429/5xx.
func (c *OpenAIChatClient) Chat(ctx context.Context, req ChatRequest) (string, error) {
	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 2
	}
	url := chatEndpoint(c.BaseURL)

	messages := make([]Message, 0, len(req.History)+2)
	if req.System != "" {
		messages = append(messages, Message{Role: "system", Content: req.System})
	}
	messages = append(messages, req.History...)
	messages = append(messages, Message{Role: "user", Content: req.User})

	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.Temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.MaxTokens
	}
	body := map[string]any{"model": c.Model, "messages": messages, "temperature": temperature}
	if maxTokens > 0 {
		body["max_tokens"] = maxTokens
	}
	b, _ := json.Marshal(body)
	logger.LogLLMRequest(req.Purpose, req.System, req.User, string(b))

	httpc := c.httpc
	if httpc == nil {
		httpc = &http.Client{Timeout: c.Timeout}
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt == 0 {
			logger.Debugf("[AI] request: POST %s model=%s auth=Bearer ****%s", url, c.Model, keyTail(c.APIKey))
		}
		hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
		if err != nil {
			return "", err
		}
		hreq.Header.Set("Content-Type", "application/json")
		if c.APIKey != "" {
			hreq.Header.Set("Authorization", "Bearer "+c.APIKey)
		}

		resp, err := httpc.Do(hreq)
		if err != nil {
			return "", err
		}
		if resp.StatusCode/100 == 2 {
			var r struct {
				Choices []struct {
					Message struct {
						Content string `json:"content"`
					} `json:"message"`
				} `json:"choices"`
			}
			derr := json.NewDecoder(resp.Body).Decode(&r)
			resp.Body.Close()
			if derr != nil {
				return "", derr
			}
			if len(r.Choices) == 0 {
				return "", fmt.Errorf("empty choices")
			}
			content := r.Choices[0].Message.Content
			logger.LogLLMResponse(req.Purpose, content)
			return content, nil
		}
		status := resp.StatusCode
		msg := apiErrorMessage(resp)
		resp.Body.Close()
		lastErr = fmt.Errorf("status=%d: %s", status, msg)
		if retryable(status) && attempt < maxRetries {
			wait := retryAfter(resp.Header.Get("Retry-After"), attempt)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			continue
		}
		break
	}
	return "", lastErr
}

func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// retryAfter honors a numeric Retry-After header, otherwise backs off
// 0.8s, 1.6s, 3.2s capped at 8s.
func retryAfter(header string, attempt int) time.Duration {
	if header != "" {
		if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	wait := 800 * time.Millisecond << attempt
	if wait > 8*time.Second {
		wait = 8 * time.Second
	}
	return wait
}

func apiErrorMessage(resp *http.Response) string {
	var eresp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&eresp)
	if msg := strings.TrimSpace(eresp.Error.Message); msg != "" {
		return msg
	}
	return resp.Status
}

func keyTail(key string) string {
	if len(key) > 4 {
		return key[len(key)-4:]
	}
	return key
}
