package config

// Config is the top-level configuration carrier.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	AI        AIConfig        `mapstructure:"ai"`
	Qdrant    QdrantConfig    `mapstructure:"qdrant"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
	Estimate  EstimateConfig  `mapstructure:"estimate"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Store     StoreConfig     `mapstructure:"store"`
}

type AppConfig struct {
	Env         string   `mapstructure:"env"`
	LogLevel    string   `mapstructure:"log_level"`
	HTTPAddr    string   `mapstructure:"http_addr"`
	LogPath     string   `mapstructure:"log_path"`
	LLMLog      string   `mapstructure:"llm_log_path"`
	LLMDump     bool     `mapstructure:"llm_dump_payload"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	FrontendDir string   `mapstructure:"frontend_dir"`
	MaxUploadMB int      `mapstructure:"max_upload_mb"`
}

// AIConfig describes the OpenAI-compatible provider endpoint.
type AIConfig struct {
	APIURL         string  `mapstructure:"api_url"`
	APIKey         string  `mapstructure:"api_key"`
	Model          string  `mapstructure:"model"`
	EmbeddingModel string  `mapstructure:"embedding_model"`
	Temperature    float64 `mapstructure:"temperature"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	MaxRetries     int     `mapstructure:"max_retries"`
}

type QdrantConfig struct {
	URL            string `mapstructure:"url"`
	APIKey         string `mapstructure:"api_key"`
	Collection     string `mapstructure:"collection"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// Enabled reports whether the vector layer should be wired at all.
func (q QdrantConfig) Enabled() bool {
	return q.URL != ""
}

type KnowledgeConfig struct {
	DataDir       string `mapstructure:"data_dir"`
	EstimatesFile string `mapstructure:"estimates_file"`
}

// EstimateConfig carries the arithmetic knobs of the estimation engine.
type EstimateConfig struct {
	HourlyRate       float64 `mapstructure:"hourly_rate"`
	BufferPct        float64 `mapstructure:"buffer_pct"`
	DefaultBaseHours float64 `mapstructure:"default_base_hours"`
	RangeSpread      float64 `mapstructure:"range_spread"`
}

type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

type StoreConfig struct {
	DBPath string `mapstructure:"db_path"`
}
