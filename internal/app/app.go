// Package app wires configuration into running services.
package app

import (
	"context"
	"fmt"

	"estimator/internal/config"
	"estimator/internal/knowledge"
	"estimator/internal/logger"
	"estimator/internal/store"
	apihttp "estimator/internal/transport/http"

	"golang.org/x/sync/errgroup"
)

// App holds the assembled services.
type App struct {
	cfg       *config.Config
	server    *apihttp.Server
	knowledge *knowledge.Base
	index     *knowledge.VectorIndex
	audit     *store.EstimateStore
}

// NewApp builds the application from config without starting anything.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return build(cfg)
}

// Run loads the knowledge base, then serves HTTP until ctx cancels. Vector
// indexing runs in the background so startup does not block on embeddings.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if err := a.knowledge.Load(ctx); err != nil {
		return fmt.Errorf("loading knowledge base failed: %w", err)
	}

	group, ctx := errgroup.WithContext(ctx)
	if a.index != nil {
		group.Go(func() error {
			if err := a.index.Index(ctx, a.knowledge.Documents()); err != nil {
				// keyword fallback keeps retrieval working
				logger.Errorf("vector indexing failed: %v", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		logger.Infof("HTTP API listening on %s", a.server.Addr())
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	err := group.Wait()
	if a.audit != nil {
		if cerr := a.audit.Close(); cerr != nil {
			logger.Errorf("closing audit store failed: %v", cerr)
		}
	}
	return err
}
