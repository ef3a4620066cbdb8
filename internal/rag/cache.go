package rag

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"

	"github.com/niramay/risk-engine/internal/domain"
)

// PassageCache is a two-tier cache for retrieved evidence passages: an
// in-process LRU in front of Redis. Guideline passages change only on
// index republish, so generous TTLs are safe.
type PassageCache struct {
	local      *lru.Cache[string, []domain.EvidencePassage]
	redis      *redis.Client
	defaultTTL time.Duration
}

// NewPassageCache creates the cache tiers. A nil return with nil error
// means caching is disabled.
func NewPassageCache(config domain.CacheConfig) (*PassageCache, error) {
	if !config.Enabled {
		return nil, nil
	}

	localSize := config.LocalSize
	if localSize <= 0 {
		localSize = 128
	}
	local, err := lru.New[string, []domain.EvidencePassage](localSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create local cache: %w", err)
	}

	cache := &PassageCache{
		local:      local,
		defaultTTL: config.DefaultTTL,
	}

	if config.RedisURL != "" {
		opts, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		opts.PoolSize = config.PoolSize
		opts.PoolTimeout = config.PoolTimeout
		opts.MaxRetries = config.MaxRetries

		client := redis.NewClient(opts)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		cache.redis = client
	}

	return cache, nil
}

// cachedPassages is the Redis envelope with expiry metadata.
type cachedPassages struct {
	Data      []domain.EvidencePassage `json:"data"`
	CachedAt  time.Time                `json:"cached_at"`
	ExpiresAt time.Time                `json:"expires_at"`
}

// Tier names reported by Get for metrics.
const (
	TierLocal = "local_cache"
	TierRedis = "redis_cache"
)

// Get returns cached passages and the tier they came from.
func (c *PassageCache) Get(ctx context.Context, drug, gene string, phenotype domain.Phenotype) ([]domain.EvidencePassage, string, bool) {
	key := cacheKey(drug, gene, phenotype)

	if passages, ok := c.local.Get(key); ok {
		return passages, TierLocal, true
	}

	if c.redis == nil {
		return nil, "", false
	}

	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return nil, "", false
	}

	var cached cachedPassages
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		c.redis.Del(ctx, key)
		return nil, "", false
	}

	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, "", false
	}

	c.local.Add(key, cached.Data)
	return cached.Data, TierRedis, true
}

// Set stores passages in both tiers.
func (c *PassageCache) Set(ctx context.Context, drug, gene string, phenotype domain.Phenotype, passages []domain.EvidencePassage) error {
	key := cacheKey(drug, gene, phenotype)
	c.local.Add(key, passages)

	if c.redis == nil {
		return nil
	}

	cached := cachedPassages{
		Data:      passages,
		CachedAt:  time.Now(),
		ExpiresAt: time.Now().Add(c.defaultTTL),
	}

	jsonData, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal cached passages: %w", err)
	}
	return c.redis.Set(ctx, key, jsonData, c.defaultTTL).Err()
}

// Close closes the Redis connection.
func (c *PassageCache) Close() error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Close()
}

func cacheKey(drug, gene string, phenotype domain.Phenotype) string {
	data := fmt.Sprintf("%s:%s:%s", drug, gene, phenotype)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("evidence:passages:%x", hash[:8])
}
