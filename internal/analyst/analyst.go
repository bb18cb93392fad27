// Package analyst drives the model: it extracts feature lists from requirement
// text, writes client-facing estimate summaries and answers chat questions.
// Everything the model returns is validated and normalized before the rest of
// the system sees it.
package analyst

import (
	"errors"

	"estimator/internal/gateway/provider"
	"estimator/internal/knowledge"
)

// ErrNoProvider marks calls that need a model when none is configured.
var ErrNoProvider = errors.New("no model provider configured")

// Analyst wraps the provider with estimation-specific prompting.
type Analyst struct {
	provider    provider.Provider
	knowledge   *knowledge.Base
	temperature float64
	maxTokens   int
}

// Option tweaks analyst construction.
type Option func(*Analyst)

// WithTemperature overrides the default sampling temperature.
func WithTemperature(t float64) Option {
	return func(a *Analyst) { a.temperature = t }
}

// WithMaxTokens caps completion length.
func WithMaxTokens(n int) Option {
	return func(a *Analyst) { a.maxTokens = n }
}

// New builds an analyst. p may be nil; calls then fail with ErrNoProvider and
// callers fall back to deterministic output where one exists.
func New(p provider.Provider, kb *knowledge.Base, opts ...Option) *Analyst {
	a := &Analyst{provider: p, knowledge: kb, temperature: 0.2, maxTokens: 2500}
	for _, opt := range opts {
		opt(a)
	}
	return a
}
