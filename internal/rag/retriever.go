package rag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/niramay/risk-engine/internal/domain"
	"github.com/niramay/risk-engine/internal/metrics"
)

// embedder and indexQuerier let tests substitute the HTTP clients.
type embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

type indexQuerier interface {
	Query(ctx context.Context, vector []float64, drug string) ([]domain.EvidencePassage, error)
}

// Retriever fetches guideline passages for a (drug, phenotype) pair.
// It wraps the embedding and index clients with a shared circuit
// breaker and a two-tier cache; on any failure it degrades to an empty
// passage list rather than blocking the risk pipeline.
type Retriever struct {
	embedder       embedder
	index          indexQuerier
	cache          *PassageCache
	breaker        *gobreaker.CircuitBreaker
	scoreThreshold float64
	logger         *logrus.Logger
}

// NewRetriever creates a retriever over the configured index and
// embedding endpoints. cache may be nil when caching is disabled.
func NewRetriever(config domain.RetrievalConfig, cache *PassageCache, logger *logrus.Logger) *Retriever {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "EvidenceIndex",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &Retriever{
		embedder:       NewEmbeddingClient(config),
		index:          NewIndexClient(config),
		cache:          cache,
		breaker:        breaker,
		scoreThreshold: config.ScoreThreshold,
		logger:         logger,
	}
}

// Retrieve returns the passages grounding an explanation for one drug.
// An error means retrieval degraded; callers proceed without passages.
func (r *Retriever) Retrieve(ctx context.Context, drug, gene string, phenotype domain.Phenotype) ([]domain.EvidencePassage, error) {
	if r.cache != nil {
		if passages, tier, ok := r.cache.Get(ctx, drug, gene, phenotype); ok {
			metrics.EvidenceLookups.WithLabelValues(tier).Inc()
			r.logger.WithFields(logrus.Fields{
				"drug": drug,
				"tier": tier,
			}).Debug("Evidence cache hit")
			return passages, nil
		}
	}

	queryText := BuildQueryText(drug, phenotype)

	result, err := r.breaker.Execute(func() (interface{}, error) {
		vector, err := r.embedder.Embed(ctx, queryText)
		if err != nil {
			return nil, fmt.Errorf("failed to embed query: %w", err)
		}
		return r.index.Query(ctx, vector, drug)
	})
	if err != nil {
		metrics.EvidenceLookups.WithLabelValues("error").Inc()
		if errors.Is(err, gobreaker.ErrOpenState) {
			return nil, &domain.DegradedEvidenceError{
				Drug: drug,
				Err:  fmt.Errorf("evidence index unavailable (circuit breaker open)"),
			}
		}
		return nil, &domain.DegradedEvidenceError{Drug: drug, Err: err}
	}

	passages := result.([]domain.EvidencePassage)
	passages = r.filterByScore(passages)

	if len(passages) == 0 {
		metrics.EvidenceLookups.WithLabelValues("empty").Inc()
		r.logger.WithFields(logrus.Fields{
			"drug":      drug,
			"phenotype": phenotype,
		}).Warn("No evidence passages above score threshold")
		return nil, nil
	}

	metrics.EvidenceLookups.WithLabelValues("index").Inc()
	r.logger.WithFields(logrus.Fields{
		"drug":     drug,
		"passages": len(passages),
		"top_score": passages[0].Score,
	}).Info("Evidence passages retrieved")

	if r.cache != nil {
		if cacheErr := r.cache.Set(ctx, drug, gene, phenotype, passages); cacheErr != nil {
			r.logger.WithError(cacheErr).Warn("Failed to cache evidence passages")
		}
	}
	return passages, nil
}

func (r *Retriever) filterByScore(passages []domain.EvidencePassage) []domain.EvidencePassage {
	if r.scoreThreshold <= 0 {
		return passages
	}
	kept := passages[:0]
	for _, p := range passages {
		if p.Score >= r.scoreThreshold {
			kept = append(kept, p)
		}
	}
	return kept
}
