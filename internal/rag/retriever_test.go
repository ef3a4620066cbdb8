package rag

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niramay/risk-engine/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newEmbedServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NotEmpty(t, r.Header.Get("x-goog-api-key"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"embedding": map[string]interface{}{
				"values": []float64{0.1, 0.2, 0.3},
			},
		})
	}))
}

func newIndexServer(t *testing.T, matches []map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/query", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("Api-Key"))

		var req indexQueryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.Vector)
		assert.True(t, req.IncludeMetadata)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"matches": matches})
	}))
}

func retrievalConfig(embedURL, indexURL string) domain.RetrievalConfig {
	return domain.RetrievalConfig{
		IndexURL:            indexURL,
		IndexAPIKey:         "test-index-key",
		IndexName:           "niramay-cpic",
		TopK:                1,
		ScoreThreshold:      0.5,
		Timeout:             2 * time.Second,
		EmbeddingBaseURL:    embedURL,
		EmbeddingAPIKey:     "test-embed-key",
		EmbeddingModel:      "gemini-embedding-001",
		EmbeddingDimensions: 768,
	}
}

func TestRetriever_ReturnsPassages(t *testing.T) {
	embed := newEmbedServer(t)
	defer embed.Close()
	index := newIndexServer(t, []map[string]interface{}{
		{
			"id":    "cpic-chunk-42",
			"score": 0.91,
			"metadata": map[string]string{
				"text":   "CYP2C19 poor metabolizers cannot activate clopidogrel.",
				"source": "CPIC",
				"drug":   "CLOPIDOGREL",
				"gene":   "CYP2C19",
			},
		},
	})
	defer index.Close()

	r := NewRetriever(retrievalConfig(embed.URL, index.URL), nil, testLogger())

	passages, err := r.Retrieve(context.Background(), "CLOPIDOGREL", "CYP2C19", domain.PhenotypePoorMetabolizer)

	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, "cpic-chunk-42", passages[0].ID)
	assert.Equal(t, 0.91, passages[0].Score)
	assert.Contains(t, passages[0].Text, "clopidogrel")
}

func TestRetriever_ScoreThresholdFiltersWeakMatches(t *testing.T) {
	embed := newEmbedServer(t)
	defer embed.Close()
	index := newIndexServer(t, []map[string]interface{}{
		{"id": "weak", "score": 0.2, "metadata": map[string]string{"text": "irrelevant"}},
	})
	defer index.Close()

	r := NewRetriever(retrievalConfig(embed.URL, index.URL), nil, testLogger())

	passages, err := r.Retrieve(context.Background(), "CODEINE", "CYP2D6", domain.PhenotypePoorMetabolizer)

	require.NoError(t, err)
	assert.Empty(t, passages)
}

func TestRetriever_IndexFailureIsDegraded(t *testing.T) {
	embed := newEmbedServer(t)
	defer embed.Close()
	index := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer index.Close()

	r := NewRetriever(retrievalConfig(embed.URL, index.URL), nil, testLogger())

	passages, err := r.Retrieve(context.Background(), "WARFARIN", "CYP2C9", domain.PhenotypePoorMetabolizer)

	require.Error(t, err)
	assert.Nil(t, passages)

	var degraded *domain.DegradedEvidenceError
	require.ErrorAs(t, err, &degraded)
	assert.Equal(t, "WARFARIN", degraded.Drug)
}

func TestRetriever_EmbeddingFailureIsDegraded(t *testing.T) {
	embed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer embed.Close()
	index := newIndexServer(t, nil)
	defer index.Close()

	r := NewRetriever(retrievalConfig(embed.URL, index.URL), nil, testLogger())

	_, err := r.Retrieve(context.Background(), "CODEINE", "CYP2D6", domain.PhenotypePoorMetabolizer)

	var degraded *domain.DegradedEvidenceError
	require.ErrorAs(t, err, &degraded)
}

func TestRetriever_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	embed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer embed.Close()
	index := newIndexServer(t, nil)
	defer index.Close()

	r := NewRetriever(retrievalConfig(embed.URL, index.URL), nil, testLogger())

	for i := 0; i < 5; i++ {
		_, err := r.Retrieve(context.Background(), "CODEINE", "CYP2D6", domain.PhenotypePoorMetabolizer)
		require.Error(t, err)
	}

	// Breaker is now open: the failure surfaces without an HTTP call.
	_, err := r.Retrieve(context.Background(), "CODEINE", "CYP2D6", domain.PhenotypePoorMetabolizer)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker open")
}

func TestBuildQueryText(t *testing.T) {
	q := BuildQueryText("CODEINE", domain.PhenotypeUltrarapidMetabolizer)
	assert.Equal(t, "CODEINE Ultrarapid Metabolizer pharmacogenomic mechanism biological pathway", q)
}
