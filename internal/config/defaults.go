package config

import "github.com/spf13/viper"

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.http_addr", ":8000")
	v.SetDefault("app.cors_origins", []string{"*"})
	v.SetDefault("app.frontend_dir", "frontend")
	v.SetDefault("app.max_upload_mb", 10)

	v.SetDefault("ai.api_url", "https://api.openai.com/v1")
	v.SetDefault("ai.model", "gpt-4-turbo-preview")
	v.SetDefault("ai.embedding_model", "text-embedding-3-small")
	v.SetDefault("ai.temperature", 0.2)
	v.SetDefault("ai.max_tokens", 2500)
	v.SetDefault("ai.timeout_seconds", 60)
	v.SetDefault("ai.max_retries", 2)

	v.SetDefault("qdrant.collection", "estimator-reference")
	v.SetDefault("qdrant.timeout_seconds", 10)

	v.SetDefault("knowledge.data_dir", "data")
	v.SetDefault("knowledge.estimates_file", "Estimates.txt")

	v.SetDefault("estimate.hourly_rate", 30.0)
	v.SetDefault("estimate.buffer_pct", 0.20)
	v.SetDefault("estimate.default_base_hours", 40.0)
	v.SetDefault("estimate.range_spread", 0.10)
}
