package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/niramay/risk-engine/internal/domain"
)

// IndexClient queries the Pinecone guideline index over its REST API.
type IndexClient struct {
	baseURL    string
	apiKey     string
	indexName  string
	topK       int
	httpClient *http.Client
}

// NewIndexClient creates a new semantic index client.
func NewIndexClient(config domain.RetrievalConfig) *IndexClient {
	topK := config.TopK
	if topK <= 0 {
		topK = 1
	}
	return &IndexClient{
		baseURL:   config.IndexURL,
		apiKey:    config.IndexAPIKey,
		indexName: config.IndexName,
		topK:      topK,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

type indexQueryRequest struct {
	Vector          []float64              `json:"vector"`
	TopK            int                    `json:"topK"`
	IncludeMetadata bool                   `json:"includeMetadata"`
	Filter          map[string]interface{} `json:"filter,omitempty"`
}

type indexQueryResponse struct {
	Matches []struct {
		ID       string            `json:"id"`
		Score    float64           `json:"score"`
		Metadata map[string]string `json:"metadata"`
	} `json:"matches"`
}

// Query retrieves the top passages for a vector, filtered to a single
// drug. The drug filter is uppercased to match the index metadata.
func (c *IndexClient) Query(ctx context.Context, vector []float64, drug string) ([]domain.EvidencePassage, error) {
	reqBody := indexQueryRequest{
		Vector:          vector,
		TopK:            c.topK,
		IncludeMetadata: true,
		Filter: map[string]interface{}{
			"drug": map[string]interface{}{"$eq": strings.ToUpper(drug)},
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal index query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/query", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build index query: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("index query failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read index response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("index returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed indexQueryResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse index response: %w", err)
	}

	passages := make([]domain.EvidencePassage, 0, len(parsed.Matches))
	for _, m := range parsed.Matches {
		passages = append(passages, domain.EvidencePassage{
			ID:     m.ID,
			Text:   m.Metadata["text"],
			Score:  m.Score,
			Source: m.Metadata["source"],
			Drug:   m.Metadata["drug"],
			Gene:   m.Metadata["gene"],
		})
	}
	return passages, nil
}
