package apihttp

import (
	"context"

	"estimator/internal/catalog"
	"estimator/internal/estimate"
	"estimator/internal/gateway/provider"
	"estimator/internal/store"
)

// FeatureAnalyst is the slice of the analyst the API depends on.
type FeatureAnalyst interface {
	ExtractFeatures(ctx context.Context, text string) ([]estimate.FeatureSpec, error)
	Summarize(ctx context.Context, sum *estimate.Summary) string
	Chat(ctx context.Context, message string, history []provider.Message) (string, error)
}

// Estimator prices extracted feature specs. A non-positive rate means the
// configured default.
type Estimator interface {
	EstimateAt(specs []estimate.FeatureSpec, hourlyRate float64) (*estimate.Summary, error)
}

// AuditLog records served estimates. Optional.
type AuditLog interface {
	Append(ctx context.Context, requestID, source, input string, sum *estimate.Summary) error
	List(ctx context.Context, limit int) ([]store.EstimateRecord, error)
	Get(ctx context.Context, requestID string) (*store.EstimateRecord, error)
}

// CatalogView exposes the current feature catalog.
type CatalogView interface {
	Snapshot() catalog.Snapshot
}

// estimateRequest accepts both "requirements" (the documented field) and
// "text" as the input key.
type estimateRequest struct {
	Requirements string  `json:"requirements"`
	Text         string  `json:"text"`
	HourlyRate   float64 `json:"hourly_rate"`
}

func (r estimateRequest) input() string {
	if r.Requirements != "" {
		return r.Requirements
	}
	return r.Text
}

type estimateResponse struct {
	RequestID string            `json:"request_id"`
	Source    string            `json:"source"`
	Summary   string            `json:"summary_html"`
	Estimate  *estimate.Summary `json:"estimate"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Message        string        `json:"message"`
	History        []chatMessage `json:"history"`
	ConversationID string        `json:"conversation_id"`
}

type chatResponse struct {
	Reply          string            `json:"reply_html"`
	ConversationID string            `json:"conversation_id"`
	Estimate       *estimate.Summary `json:"estimate,omitempty"`
}
