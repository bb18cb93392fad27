package analyst

import (
	"context"
	"fmt"
	"strings"

	"estimator/internal/gateway/provider"
)

// greetings short-circuit to a canned welcome without a model round trip.
var greetings = map[string]bool{
	"hi": true, "hello": true, "hey": true, "yo": true,
	"good morning": true, "good afternoon": true, "good evening": true,
	"hi there": true, "hello there": true,
}

// onTopicTerms gate whether a chat message is close enough to estimation to be
// worth a model call.
var onTopicTerms = []string{
	"estimate", "estimation", "cost", "price", "budget", "time", "hour", "week",
	"project", "feature", "develop", "build", "app", "website", "software",
	"team", "developer", "mvp", "scope", "timeline", "integrat", "api",
}

const greetingReply = `Hello! I help estimate software development time and cost.<br/>` +
	`Describe your project or upload a requirements document and I will break it ` +
	`down into features with hour and cost figures.`

// maxHistoryMessages bounds how many prior turns are replayed to the model.
const maxHistoryMessages = 12

const redirectReply = `I focus on software development estimates.<br/>` +
	`Tell me about the project you want to build, for example:<ul>` +
	`<li>"How long would a marketplace app with payments take?"</li>` +
	`<li>"What would a booking website cost?"</li></ul>`

// Chat answers a free-form message, injecting knowledge context for grounding.
func (a *Analyst) Chat(ctx context.Context, message string, history []provider.Message) (string, error) {
	normalized := strings.ToLower(strings.Trim(strings.TrimSpace(message), ".!?"))
	if normalized == "" {
		return greetingReply, nil
	}
	if greetings[normalized] {
		return greetingReply, nil
	}
	if !onTopic(normalized) {
		return redirectReply, nil
	}
	if a.provider == nil {
		return "", ErrNoProvider
	}
	if len(history) > maxHistoryMessages {
		history = history[len(history)-maxHistoryMessages:]
	}

	var sb strings.Builder
	if a.knowledge != nil {
		if kctx, err := a.knowledge.Context(ctx, message, 5, 3000); err == nil && kctx != "" {
			sb.WriteString("Reference data:\n")
			sb.WriteString(kctx)
			sb.WriteString("\n\n")
		}
	}
	sb.WriteString("Client message:\n")
	sb.WriteString(message)

	raw, err := a.provider.Chat(ctx, provider.ChatRequest{
		Purpose:     "chat",
		System:      chatSystemPrompt,
		User:        sb.String(),
		History:     history,
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat call failed: %w", err)
	}
	return toHTML(raw), nil
}

func onTopic(message string) bool {
	for _, term := range onTopicTerms {
		if strings.Contains(message, term) {
			return true
		}
	}
	return false
}
