package domain

import "time"

// Config is the complete service configuration, loaded once at startup
// and read-only thereafter. Provider cascades and credentials are an
// immutable snapshot; request branches never mutate shared config.
type Config struct {
	Environment string           `mapstructure:"environment"`
	Server      ServerConfig     `mapstructure:"server"`
	Logging     LoggingConfig    `mapstructure:"logging"`
	Reference   ReferenceConfig  `mapstructure:"reference"`
	Pipeline    PipelineConfig   `mapstructure:"pipeline"`
	Retrieval   RetrievalConfig  `mapstructure:"retrieval"`
	Generation  GenerationConfig `mapstructure:"generation"`
	Cache       CacheConfig      `mapstructure:"cache"`
	Audit       AuditConfig      `mapstructure:"audit"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ReferenceConfig locates the versioned reference tables. An empty Dir
// selects the embedded defaults.
type ReferenceConfig struct {
	Dir string `mapstructure:"dir"`
}

// PipelineConfig controls the orchestrator's fan-out behavior.
type PipelineConfig struct {
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	DrugTimeout    time.Duration `mapstructure:"drug_timeout"`
	DefaultPanel   []string      `mapstructure:"default_panel"`
}

// RetrievalConfig configures the semantic index client and the
// embedding endpoint used to vectorize queries.
type RetrievalConfig struct {
	IndexURL            string        `mapstructure:"index_url"`
	IndexAPIKey         string        `mapstructure:"index_api_key"`
	IndexName           string        `mapstructure:"index_name"`
	TopK                int           `mapstructure:"top_k"`
	ScoreThreshold      float64       `mapstructure:"score_threshold"`
	Timeout             time.Duration `mapstructure:"timeout"`
	EmbeddingBaseURL    string        `mapstructure:"embedding_base_url"`
	EmbeddingAPIKey     string        `mapstructure:"embedding_api_key"`
	EmbeddingModel      string        `mapstructure:"embedding_model"`
	EmbeddingDimensions int           `mapstructure:"embedding_dimensions"`
}

// ProviderConfig is one (provider, model, credential) tuple in the
// generation cascade. Order in the cascade list is the fallback order.
type ProviderConfig struct {
	Provider  string  `mapstructure:"provider"`
	Model     string  `mapstructure:"model"`
	APIKey    string  `mapstructure:"api_key"`
	BaseURL   string  `mapstructure:"base_url"`
	RateLimit float64 `mapstructure:"rate_limit"`
}

// GenerationConfig configures the explanation generator. The cascade
// is walked strictly in order on failure, never round-robin.
type GenerationConfig struct {
	Cascade          []ProviderConfig `mapstructure:"cascade"`
	MaxAttempts      int              `mapstructure:"max_attempts"`
	AttemptTimeout   time.Duration    `mapstructure:"attempt_timeout"`
	MinResponseChars int              `mapstructure:"min_response_chars"`
	RAGSource        string           `mapstructure:"rag_source"`
}

// CacheConfig configures the passage cache tiers.
type CacheConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	RedisURL    string        `mapstructure:"redis_url"`
	DefaultTTL  time.Duration `mapstructure:"default_ttl"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	LocalSize   int           `mapstructure:"local_size"`
}

// AuditConfig selects the rule-evaluation audit store backend.
// Driver is one of "disabled", "sqlite" or "postgres".
type AuditConfig struct {
	Driver      string `mapstructure:"driver"`
	Path        string `mapstructure:"path"`
	DatabaseURL string `mapstructure:"database_url"`
}
