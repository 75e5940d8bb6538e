package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrEmbeddingUnavailable marks a failed call to the embedding provider.
// Ranking and ingestion surface it instead of substituting stale or zero
// vectors.
var ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

// Embedder maps arbitrary text to a fixed-length numeric vector.
// Implementations must be deterministic for identical text.
type Embedder interface {
	Model() string
	Embed(ctx context.Context, text string) ([]float64, error)
}

// EmbedText embeds text via the configured provider. Empty or blank text
// short-circuits to a nil vector (scores 0 against anything) without hitting
// the provider. All provider failures are wrapped in ErrEmbeddingUnavailable.
func EmbedText(ctx context.Context, text string) ([]float64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("%w: no provider configured", ErrEmbeddingUnavailable)
	}
	metrics.EmbedCalls.Add(1)
	vec, err := cfg.Embedder.Embed(ctx, text)
	if err != nil {
		metrics.EmbedErrors.Add(1)
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	return vec, nil
}

// EmbedModel returns the configured provider's model identifier, or "" when
// no provider is configured.
func EmbedModel() string {
	if cfg.Embedder == nil {
		return ""
	}
	return cfg.Embedder.Model()
}

// EmbedClient is an OpenAI-compatible embeddings client:
// POST {base}/embeddings with {"model": ..., "input": ...}.
// Works against OpenAI, Ollama and other compatible servers.
type EmbedClient struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	limiter *rate.Limiter // nil = unlimited
	dim     int           // learned from the first successful call
}

// EmbedOption customizes an EmbedClient.
type EmbedOption func(*EmbedClient)

// WithEmbedHTTPClient routes embedding calls through the given client's
// transport so connection pools are shared with the rest of the engine's
// outbound traffic. The embed-specific timeout still applies.
func WithEmbedHTTPClient(h *http.Client) EmbedOption {
	return func(c *EmbedClient) {
		if h != nil && h.Transport != nil {
			c.http.Transport = h.Transport
		}
	}
}

// NewEmbedClient creates an embeddings client. rps <= 0 disables client-side
// rate limiting.
func NewEmbedClient(baseURL, apiKey, model string, timeout time.Duration, rps float64, opts ...EmbedOption) *EmbedClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	c := &EmbedClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		http:    &http.Client{Timeout: timeout},
		limiter: limiter,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the provider model identifier.
func (c *EmbedClient) Model() string { return c.model }

// Dim returns the vector dimensionality observed so far (0 before first call).
func (c *EmbedClient) Dim() int { return c.dim }

// Embed returns an embedding vector for the given text.
func (c *EmbedClient) Embed(ctx context.Context, text string) ([]float64, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	payload, err := json.Marshal(map[string]any{
		"model": c.model,
		"input": text,
	})
	if err != nil {
		return nil, err
	}

	resp, err := RetryDo(ctx, DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		if isRetryableStatus(resp.StatusCode) {
			resp.Body.Close()
			return nil, &httpStatusError{StatusCode: resp.StatusCode}
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embeddings: status %d: %s", resp.StatusCode, TruncateRunes(string(body), 200, "..."))
	}

	// OpenAI-compatible shape first.
	var openaiOut struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &openaiOut); err == nil && len(openaiOut.Data) > 0 && len(openaiOut.Data[0].Embedding) > 0 {
		return c.remember(openaiOut.Data[0].Embedding)
	}

	// Ollama-native fallback: {"embedding": [...]}.
	var ollamaOut struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := json.Unmarshal(body, &ollamaOut); err == nil && len(ollamaOut.Embedding) > 0 {
		return c.remember(ollamaOut.Embedding)
	}

	return nil, errors.New("embeddings: no embedding in response")
}

func (c *EmbedClient) remember(vec []float64) ([]float64, error) {
	if c.dim == 0 {
		c.dim = len(vec)
	} else if len(vec) != c.dim {
		return nil, fmt.Errorf("embeddings: dimension changed: got %d, want %d", len(vec), c.dim)
	}
	return vec, nil
}
