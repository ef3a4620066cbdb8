package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	manager, err := NewManager()
	require.NoError(t, err)
	return manager
}

func TestNewManager_Defaults(t *testing.T) {
	cfg := newTestManager(t).GetConfig()

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 25*time.Second, cfg.Pipeline.RequestTimeout)
	assert.Equal(t, 12*time.Second, cfg.Pipeline.DrugTimeout)
	assert.Equal(t, "niramay-cpic", cfg.Retrieval.IndexName)
	assert.Equal(t, "gemini-embedding-001", cfg.Retrieval.EmbeddingModel)
	assert.Equal(t, 768, cfg.Retrieval.EmbeddingDimensions)
	assert.Equal(t, "pinecone/niramay-cpic", cfg.Generation.RAGSource)
	assert.Equal(t, 20, cfg.Generation.MinResponseChars)
	assert.Equal(t, "sqlite", cfg.Audit.Driver)
}

func TestNewManager_DefaultPanel(t *testing.T) {
	cfg := newTestManager(t).GetConfig()

	assert.Equal(t, []string{
		"SIMVASTATIN", "WARFARIN", "CLOPIDOGREL",
		"AZATHIOPRINE", "FLUOROURACIL", "CODEINE",
	}, cfg.Pipeline.DefaultPanel)
}

func TestNewManager_DefaultCascadeOrder(t *testing.T) {
	cfg := newTestManager(t).GetConfig()

	require.Len(t, cfg.Generation.Cascade, 6)
	assert.Equal(t, "gemini-2.5-flash", cfg.Generation.Cascade[0].Model)
	assert.Equal(t, "gemini-2.5-flash-lite", cfg.Generation.Cascade[1].Model)
	assert.Equal(t, "gemini-2.5-flash-lite-preview-09-2025", cfg.Generation.Cascade[5].Model)
	for _, p := range cfg.Generation.Cascade {
		assert.Equal(t, "gemini", p.Provider)
		assert.NotEmpty(t, p.BaseURL)
	}
}

func TestNewManager_CascadeResolvedAtLoad(t *testing.T) {
	t.Setenv("NIRAMAY_GENERATION_API_KEY", "test-key")

	manager := newTestManager(t)
	viper.Reset()

	// The cascade is credentialed during load; later reads never touch
	// viper again, so the snapshot survives a global reset.
	cascade := manager.GetConfig().Generation.Cascade
	require.Len(t, cascade, 6)
	for _, p := range cascade {
		assert.Equal(t, "test-key", p.APIKey)
	}
	assert.Equal(t, cascade, manager.GetConfig().Generation.Cascade)
}

func TestNewManager_EnvOverride(t *testing.T) {
	t.Setenv("NIRAMAY_SERVER_PORT", "9090")
	t.Setenv("NIRAMAY_AUDIT_DRIVER", "disabled")

	cfg := newTestManager(t).GetConfig()

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "disabled", cfg.Audit.Driver)
}

func TestNewManager_InvalidTimeouts(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("NIRAMAY_PIPELINE_DRUG_TIMEOUT", "30s")

	// drug_timeout above request_timeout must be rejected.
	_, err := NewManager()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "drug_timeout")
}

func TestNewManager_InvalidAuditDriver(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("NIRAMAY_AUDIT_DRIVER", "cassandra")

	_, err := NewManager()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "audit driver")
}
