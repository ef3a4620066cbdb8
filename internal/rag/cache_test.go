package rag

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niramay/risk-engine/internal/domain"
)

func localOnlyCache(t *testing.T) *PassageCache {
	t.Helper()
	cache, err := NewPassageCache(domain.CacheConfig{
		Enabled:    true,
		DefaultTTL: time.Hour,
		LocalSize:  8,
	})
	require.NoError(t, err)
	require.NotNil(t, cache)
	return cache
}

func TestPassageCache_Disabled(t *testing.T) {
	cache, err := NewPassageCache(domain.CacheConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, cache)
}

func TestPassageCache_LocalTier(t *testing.T) {
	cache := localOnlyCache(t)
	ctx := context.Background()

	passages := []domain.EvidencePassage{
		{ID: "p1", Text: "CYP2D6 ultrarapid metabolizers convert codeine to morphine rapidly.", Score: 0.88},
	}
	require.NoError(t, cache.Set(ctx, "CODEINE", "CYP2D6", domain.PhenotypeUltrarapidMetabolizer, passages))

	got, tier, ok := cache.Get(ctx, "CODEINE", "CYP2D6", domain.PhenotypeUltrarapidMetabolizer)
	require.True(t, ok)
	assert.Equal(t, TierLocal, tier)
	assert.Equal(t, passages, got)
}

func TestPassageCache_MissOnDifferentKey(t *testing.T) {
	cache := localOnlyCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "CODEINE", "CYP2D6", domain.PhenotypePoorMetabolizer, nil))

	// Same drug and gene, different phenotype.
	_, _, ok := cache.Get(ctx, "CODEINE", "CYP2D6", domain.PhenotypeUltrarapidMetabolizer)
	assert.False(t, ok)
}

func TestPassageCache_CloseWithoutRedis(t *testing.T) {
	cache := localOnlyCache(t)
	assert.NoError(t, cache.Close())
}
