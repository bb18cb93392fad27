package app

import (
	"fmt"
	"time"

	"estimator/internal/analyst"
	"estimator/internal/catalog"
	"estimator/internal/config"
	"estimator/internal/estimate"
	"estimator/internal/gateway/provider"
	"estimator/internal/gateway/qdrant"
	"estimator/internal/knowledge"
	"estimator/internal/logger"
	"estimator/internal/store"
	apihttp "estimator/internal/transport/http"
)

// build assembles every service layer from config.
func build(cfg *config.Config) (*App, error) {
	reg, err := catalog.NewRegistry(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("building feature catalog failed: %w", err)
	}

	var chat provider.Provider
	var embedder provider.Embedder
	if cfg.AI.APIKey != "" {
		timeout := time.Duration(cfg.AI.TimeoutSeconds) * time.Second
		client := provider.NewOpenAIChatClient(cfg.AI.APIURL, cfg.AI.APIKey, cfg.AI.Model, timeout)
		client.Temperature = cfg.AI.Temperature
		client.MaxTokens = cfg.AI.MaxTokens
		client.MaxRetries = cfg.AI.MaxRetries
		chat = client
		embedder = provider.NewEmbeddingsClient(cfg.AI.APIURL, cfg.AI.APIKey, cfg.AI.EmbeddingModel, timeout)
	} else {
		logger.Warnf("no AI API key configured, model-backed endpoints will answer 503")
	}

	var index *knowledge.VectorIndex
	if cfg.Qdrant.Enabled() && embedder != nil {
		qc := qdrant.NewClient(cfg.Qdrant.URL, cfg.Qdrant.APIKey,
			time.Duration(cfg.Qdrant.TimeoutSeconds)*time.Second)
		index = knowledge.NewVectorIndex(qc, embedder, cfg.Qdrant.Collection)
	}

	var searcher knowledge.Searcher
	if index != nil {
		searcher = index
	}
	kb := knowledge.NewBase(cfg.Knowledge.DataDir, cfg.Knowledge.EstimatesFile, searcher)

	anl := analyst.New(chat, kb,
		analyst.WithTemperature(cfg.AI.Temperature),
		analyst.WithMaxTokens(cfg.AI.MaxTokens))

	engine := estimate.NewEngine(reg, estimate.Options{
		HourlyRate:       cfg.Estimate.HourlyRate,
		BufferPct:        cfg.Estimate.BufferPct,
		DefaultBaseHours: cfg.Estimate.DefaultBaseHours,
		RangeSpread:      cfg.Estimate.RangeSpread,
	})

	var audit *store.EstimateStore
	if cfg.Store.DBPath != "" {
		audit, err = store.NewEstimateStore(cfg.Store.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening audit store failed: %w", err)
		}
	}

	srvCfg := apihttp.ServerConfig{
		Addr:               cfg.App.HTTPAddr,
		Analyst:            anl,
		Engine:             engine,
		Catalog:            reg,
		CORSOrigins:        cfg.App.CORSOrigins,
		FrontendDir:        cfg.App.FrontendDir,
		MaxUploadMB:        cfg.App.MaxUploadMB,
		ProviderConfigured: chat != nil,
		VectorConfigured:   index != nil,
	}
	if audit != nil {
		srvCfg.Audit = audit
	}
	server, err := apihttp.NewServer(srvCfg)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:       cfg,
		server:    server,
		knowledge: kb,
		index:     index,
		audit:     audit,
	}, nil
}
