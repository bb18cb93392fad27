package config

import (
	"fmt"
	"strings"
)

func validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if strings.TrimSpace(cfg.App.HTTPAddr) == "" {
		return fmt.Errorf("app.http_addr cannot be empty")
	}
	if cfg.App.MaxUploadMB <= 0 {
		cfg.App.MaxUploadMB = 10
	}
	if cfg.AI.Temperature < 0 || cfg.AI.Temperature > 2 {
		return fmt.Errorf("ai.temperature must be within [0,2], got %v", cfg.AI.Temperature)
	}
	if cfg.AI.TimeoutSeconds <= 0 {
		cfg.AI.TimeoutSeconds = 60
	}
	if cfg.Estimate.HourlyRate <= 0 {
		return fmt.Errorf("estimate.hourly_rate must be positive, got %v", cfg.Estimate.HourlyRate)
	}
	if cfg.Estimate.BufferPct < 0 || cfg.Estimate.BufferPct >= 1 {
		return fmt.Errorf("estimate.buffer_pct must be within [0,1), got %v", cfg.Estimate.BufferPct)
	}
	if cfg.Estimate.DefaultBaseHours <= 0 {
		return fmt.Errorf("estimate.default_base_hours must be positive, got %v", cfg.Estimate.DefaultBaseHours)
	}
	if cfg.Estimate.RangeSpread < 0 || cfg.Estimate.RangeSpread >= 0.5 {
		return fmt.Errorf("estimate.range_spread must be within [0,0.5), got %v", cfg.Estimate.RangeSpread)
	}
	if cfg.Qdrant.Enabled() && strings.TrimSpace(cfg.Qdrant.Collection) == "" {
		return fmt.Errorf("qdrant.collection cannot be empty when qdrant.url is set")
	}
	return nil
}
