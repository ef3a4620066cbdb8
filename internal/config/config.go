// Package config loads the service configuration from defaults, an
// optional YAML file and NIRAMAY_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/niramay/risk-engine/internal/domain"
)

// Manager loads and holds the immutable service configuration.
type Manager struct {
	config *domain.Config
}

// NewManager creates a new configuration manager.
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/niramay-risk-engine/")

	viper.SetEnvPrefix("NIRAMAY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	// Config file is optional; defaults and env vars suffice.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	// An empty cascade falls back to the default Gemini fallback order,
	// credentialed from the generation-level settings. Resolved here so
	// the snapshot is complete and immutable once loaded.
	if len(config.Generation.Cascade) == 0 {
		apiKey := viper.GetString("generation.api_key")
		baseURL := viper.GetString("generation.base_url")
		if baseURL == "" {
			baseURL = "https://generativelanguage.googleapis.com"
		}
		config.Generation.Cascade = DefaultCascade(apiKey, baseURL)
	}

	if err := validate(config); err != nil {
		return err
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	viper.SetDefault("environment", "development")

	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "60s")
	viper.SetDefault("server.idle_timeout", "120s")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	// Reference table defaults; empty dir selects the embedded tables.
	viper.SetDefault("reference.dir", "")

	// Pipeline defaults
	viper.SetDefault("pipeline.request_timeout", "25s")
	viper.SetDefault("pipeline.drug_timeout", "12s")
	viper.SetDefault("pipeline.default_panel", []string{
		"SIMVASTATIN", "WARFARIN", "CLOPIDOGREL",
		"AZATHIOPRINE", "FLUOROURACIL", "CODEINE",
	})

	// Retrieval defaults
	viper.SetDefault("retrieval.index_name", "niramay-cpic")
	viper.SetDefault("retrieval.top_k", 1)
	viper.SetDefault("retrieval.score_threshold", 0.0)
	viper.SetDefault("retrieval.timeout", "10s")
	viper.SetDefault("retrieval.embedding_base_url", "https://generativelanguage.googleapis.com")
	viper.SetDefault("retrieval.embedding_model", "gemini-embedding-001")
	viper.SetDefault("retrieval.embedding_dimensions", 768)

	// Generation defaults. Cascade order is the fallback order.
	viper.SetDefault("generation.max_attempts", 6)
	viper.SetDefault("generation.attempt_timeout", "10s")
	viper.SetDefault("generation.min_response_chars", 20)
	viper.SetDefault("generation.rag_source", "pinecone/niramay-cpic")

	// Cache defaults
	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.redis_url", "redis://localhost:6379")
	viper.SetDefault("cache.default_ttl", "24h")
	viper.SetDefault("cache.pool_size", 10)
	viper.SetDefault("cache.pool_timeout", "4s")
	viper.SetDefault("cache.max_retries", 3)
	viper.SetDefault("cache.local_size", 128)

	// Audit defaults
	viper.SetDefault("audit.driver", "sqlite")
	viper.SetDefault("audit.path", "./data/audit.db")
}

// DefaultCascade is the generation fallback order used when the
// configuration names no cascade. Fastest models first, heavier models
// as backup.
func DefaultCascade(apiKey, baseURL string) []domain.ProviderConfig {
	models := []string{
		"gemini-2.5-flash",
		"gemini-2.5-flash-lite",
		"gemini-flash-latest",
		"gemini-flash-lite-latest",
		"gemini-3-flash-preview",
		"gemini-2.5-flash-lite-preview-09-2025",
	}
	cascade := make([]domain.ProviderConfig, 0, len(models))
	for _, model := range models {
		cascade = append(cascade, domain.ProviderConfig{
			Provider:  "gemini",
			Model:     model,
			APIKey:    apiKey,
			BaseURL:   baseURL,
			RateLimit: 2,
		})
	}
	return cascade
}

func validate(config *domain.Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Pipeline.RequestTimeout <= 0 {
		return fmt.Errorf("pipeline request_timeout must be positive")
	}
	if config.Pipeline.DrugTimeout > config.Pipeline.RequestTimeout {
		return fmt.Errorf("pipeline drug_timeout exceeds request_timeout")
	}
	switch config.Audit.Driver {
	case "", "disabled", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown audit driver: %q", config.Audit.Driver)
	}
	return nil
}

// GetConfig returns the complete configuration.
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}
