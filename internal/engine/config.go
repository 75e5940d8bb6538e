package engine

import (
	"net/http"
	"time"

	"github.com/anatolykoptev/go-kit/llm"
)

// Config holds all engine configuration, injected from main.
type Config struct {
	EmbedAPIBase   string
	EmbedAPIKey    string
	EmbedModel     string
	EmbedTimeout   time.Duration
	EmbedRPS       float64 // client-side rate limit for the embeddings endpoint, 0 = unlimited
	LLMAPIBase     string
	LLMAPIKey      string
	LLMModel       string
	LLMTemperature float64
	LLMMaxTokens   int

	// SemanticWeight is the default weight of the semantic sub-score in
	// hybrid ranking. Callers may override per request; always in [0,1].
	SemanticWeight float64

	// MatchWorkers bounds concurrent candidate-vector lookups during ranking.
	MatchWorkers int

	CacheMaxEntries      int
	CacheCleanupInterval time.Duration

	HTTPClient *http.Client
	LLMClient  *llm.Client // nil = LLM-backed features disabled
	Embedder   Embedder    // nil = embedding provider not configured
}

var cfg Config

// Cfg exposes the engine configuration for sub-packages (cvs, cvserver).
// Always points to the current cfg value.
var Cfg = &cfg

// Init initializes the engine with the given configuration.
func Init(c Config) {
	if c.SemanticWeight < 0 || c.SemanticWeight > 1 {
		c.SemanticWeight = 0.7
	}
	if c.MatchWorkers <= 0 {
		c.MatchWorkers = 8
	}
	cfg = c
	Cfg = &cfg
}
