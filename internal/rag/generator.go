package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/niramay/risk-engine/internal/domain"
	"github.com/niramay/risk-engine/internal/metrics"
)

// minResponseCharsDefault rejects degenerate one-word completions.
const minResponseCharsDefault = 20

// provider is one live entry of the cascade with its own rate limiter.
type provider struct {
	config  domain.ProviderConfig
	limiter *rate.Limiter
	client  *http.Client
}

// Generator walks a fixed provider cascade to produce grounded
// explanations. Cascade order is the fallback order; a drug's branch
// stops at the first acceptable response or when the attempt budget is
// spent.
type Generator struct {
	providers      []provider
	maxAttempts    int
	attemptTimeout time.Duration
	minChars       int
	ragSource      string
	logger         *logrus.Logger
}

// NewGenerator creates a generator from the configured cascade.
func NewGenerator(config domain.GenerationConfig, logger *logrus.Logger) *Generator {
	providers := make([]provider, 0, len(config.Cascade))
	for _, pc := range config.Cascade {
		limit := rate.Inf
		if pc.RateLimit > 0 {
			limit = rate.Limit(pc.RateLimit)
		}
		providers = append(providers, provider{
			config:  pc,
			limiter: rate.NewLimiter(limit, 1),
			client:  &http.Client{Timeout: config.AttemptTimeout},
		})
	}

	maxAttempts := config.MaxAttempts
	if maxAttempts <= 0 || maxAttempts > len(providers) {
		maxAttempts = len(providers)
	}
	minChars := config.MinResponseChars
	if minChars <= 0 {
		minChars = minResponseCharsDefault
	}

	return &Generator{
		providers:      providers,
		maxAttempts:    maxAttempts,
		attemptTimeout: config.AttemptTimeout,
		minChars:       minChars,
		ragSource:      config.RAGSource,
		logger:         logger,
	}
}

// Generate produces an explanation for one drug's risk context. It
// returns a DegradedGenerationError when every attempt fails; the
// caller then omits the explanation rather than substituting text.
func (g *Generator) Generate(ctx context.Context, req *domain.ExplanationRequest) (*domain.Explanation, error) {
	if len(g.providers) == 0 {
		return nil, &domain.DegradedGenerationError{
			Drug: req.Drug,
			Err:  fmt.Errorf("no generation providers configured"),
		}
	}

	prompt := BuildPrompt(req)

	var lastErr error
	attempts := 0
	for i := range g.providers {
		if attempts >= g.maxAttempts {
			break
		}
		p := &g.providers[i]
		attempts++

		g.logger.WithFields(logrus.Fields{
			"drug":    req.Drug,
			"model":   p.config.Model,
			"attempt": attempts,
			"cascade": len(g.providers),
		}).Info("Attempting explanation generation")

		text, err := g.attempt(ctx, p, prompt)
		if err != nil {
			lastErr = err
			metrics.GenerationAttempts.WithLabelValues(p.config.Model, "error").Inc()
			g.logger.WithFields(logrus.Fields{
				"drug":  req.Drug,
				"model": p.config.Model,
			}).WithError(err).Warn("Generation attempt failed, trying next model")
			continue
		}

		if len(text) <= g.minChars {
			lastErr = fmt.Errorf("model %s returned a short response (%d chars)", p.config.Model, len(text))
			metrics.GenerationAttempts.WithLabelValues(p.config.Model, "short").Inc()
			g.logger.WithFields(logrus.Fields{
				"drug":  req.Drug,
				"model": p.config.Model,
				"chars": len(text),
			}).Warn("Generation response too short, trying next model")
			continue
		}

		metrics.GenerationAttempts.WithLabelValues(p.config.Model, "success").Inc()
		g.logger.WithFields(logrus.Fields{
			"drug":  req.Drug,
			"model": p.config.Model,
			"chars": len(text),
		}).Info("Explanation generated")

		return &domain.Explanation{
			Summary:   text,
			Citations: []string{"CPIC Database", "PharmGKB"},
			RAGSource: g.ragSource,
			ModelUsed: p.config.Model,
		}, nil
	}

	return nil, &domain.DegradedGenerationError{
		Drug:     req.Drug,
		Attempts: attempts,
		Err:      lastErr,
	}
}

// attempt runs one provider call under the attempt timeout.
func (g *Generator) attempt(ctx context.Context, p *provider, prompt string) (string, error) {
	attemptCtx := ctx
	if g.attemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, g.attemptTimeout)
		defer cancel()
	}

	if err := p.limiter.Wait(attemptCtx); err != nil {
		return "", fmt.Errorf("rate limit wait aborted: %w", err)
	}

	text, err := g.generateContent(attemptCtx, p, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

type generateContentRequest struct {
	Contents []generateContent `json:"contents"`
}

type generateContent struct {
	Parts []generatePart `json:"parts"`
}

type generatePart struct {
	Text string `json:"text"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []generatePart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (g *Generator) generateContent(ctx context.Context, p *provider, prompt string) (string, error) {
	reqBody := generateContentRequest{
		Contents: []generateContent{{Parts: []generatePart{{Text: prompt}}}},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal generation request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", p.config.BaseURL, p.config.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", p.config.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read generation response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("model endpoint returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed generateContentResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse generation response: %w", err)
	}

	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("model returned no candidates")
	}

	var b strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String(), nil
}
