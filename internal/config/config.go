package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load reads the optional YAML config at path, then overlays ESTIMATOR_* environment
// variables (ESTIMATOR_AI_API_KEY -> ai.api_key). An empty path means env-only.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix("ESTIMATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindKnownKeys(v)

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// bindKnownKeys forces AutomaticEnv to see nested keys even when no config file sets them.
func bindKnownKeys(v *viper.Viper) {
	keys := []string{
		"app.env", "app.log_level", "app.http_addr", "app.log_path",
		"app.llm_log_path", "app.llm_dump_payload", "app.cors_origins",
		"app.frontend_dir", "app.max_upload_mb",
		"ai.api_url", "ai.api_key", "ai.model", "ai.embedding_model",
		"ai.temperature", "ai.max_tokens", "ai.timeout_seconds", "ai.max_retries",
		"qdrant.url", "qdrant.api_key", "qdrant.collection", "qdrant.timeout_seconds",
		"knowledge.data_dir", "knowledge.estimates_file",
		"estimate.hourly_rate", "estimate.buffer_pct",
		"estimate.default_base_hours", "estimate.range_spread",
		"catalog.path",
		"store.db_path",
	}
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}
