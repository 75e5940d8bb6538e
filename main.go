// go_cvmatch — CV parsing and matching MCP server.
//
// Ingests raw résumés (text, HTML or CSV dumps), extracts structured fields,
// normalizes skills into a canonical vocabulary, persists candidates with
// their embeddings, and ranks them against job descriptions with a hybrid
// semantic + keyword score.
//
// Exposes eight MCP tools: cv_ingest, cv_ingest_csv, cv_match,
// cv_candidate_get, cv_candidate_list, cv_candidate_delete, cv_skills_list,
// cv_skill_gap. Runs as HTTP MCP server or stdio transport.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-kit/llm"
	"github.com/anatolykoptev/go-mcpserver"
	"github.com/anatolykoptev/go_cvmatch/internal/cvserver"
	"github.com/anatolykoptev/go_cvmatch/internal/engine"
	"github.com/anatolykoptev/go_cvmatch/internal/engine/cvs"
	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var (
	version = "dev"
	mcpPort = env.Str("MCP_PORT", "8893")
)

func main() {
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded .env")
	}

	parser := initEngine()

	slog.Info("starting go_cvmatch",
		slog.String("port", mcpPort),
	)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_cvmatch",
		Version: version,
	}, nil)

	cvserver.RegisterTools(server, parser)
	slog.Info("tools registered", slog.Int("count", 8))

	if err := mcpserver.Run(server, mcpserver.Config{
		Name:         "go_cvmatch",
		Version:      version,
		Port:         mcpPort,
		WriteTimeout: 600 * time.Second,
		Metrics:      engine.FormatMetrics,
	}); err != nil {
		slog.Error("server failed", slog.Any("error", err))
	}
}

func initEngine() *cvs.Parser {
	c := engine.Config{
		EmbedAPIBase:         env.Str("EMBED_API_BASE", "http://127.0.0.1:11434/v1"),
		EmbedAPIKey:          env.Str("EMBED_API_KEY", ""),
		EmbedModel:           env.Str("EMBED_MODEL", "nomic-embed-text"),
		EmbedTimeout:         env.Duration("EMBED_TIMEOUT", 30*time.Second),
		EmbedRPS:             env.Float("EMBED_RPS", 8),
		LLMAPIKey:            env.Str("LLM_API_KEY", ""),
		LLMAPIBase:           env.Str("LLM_API_BASE", "https://generativelanguage.googleapis.com/v1beta/openai"),
		LLMModel:             env.Str("LLM_MODEL", "gemini-2.5-flash"),
		LLMTemperature:       env.Float("LLM_TEMPERATURE", 0.1),
		LLMMaxTokens:         env.Int("LLM_MAX_TOKENS", 16384),
		SemanticWeight:       env.Float("SEMANTIC_WEIGHT", 0.7),
		MatchWorkers:         env.Int("MATCH_WORKERS", 8),
		CacheMaxEntries:      env.Int("CACHE_MAX_ENTRIES", 1000),
		CacheCleanupInterval: env.Duration("CACHE_CLEANUP_INTERVAL", 300*time.Second),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}

	// Both API clients share the pooled transport.
	c.Embedder = engine.NewEmbedClient(c.EmbedAPIBase, c.EmbedAPIKey, c.EmbedModel, c.EmbedTimeout, c.EmbedRPS,
		engine.WithEmbedHTTPClient(c.HTTPClient))

	// LLM is optional: only the skill gap narrative needs it.
	if c.LLMAPIKey != "" {
		c.LLMClient = llm.NewClient(c.LLMAPIBase, c.LLMAPIKey, c.LLMModel,
			llm.WithFallbackKeys(env.List("LLM_API_KEY_FALLBACKS", "")),
			llm.WithMaxTokens(c.LLMMaxTokens),
			llm.WithTemperature(c.LLMTemperature),
			llm.WithHTTPClient(&http.Client{Timeout: 60 * time.Second, Transport: c.HTTPClient.Transport}),
		)
	}

	engine.Init(c)

	store := openStore()
	cvs.SetStore(store)

	// Seed the skill vocabulary from what previous ingestions persisted.
	known, err := store.ListSkills(context.Background())
	if err != nil {
		slog.Warn("failed to load persisted skills", slog.Any("error", err))
	}
	norm := cvs.NewNormalizerWith(known)

	cacheTTL := env.Duration("CACHE_TTL", 15*time.Minute)
	engine.InitCache(env.Str("REDIS_URL", ""), cacheTTL, c.CacheMaxEntries, c.CacheCleanupInterval)

	return cvs.NewParser(norm)
}

// openStore selects the Store backend: PostgreSQL when DATABASE_URL is set,
// otherwise a local SQLite file.
func openStore() cvs.Store {
	if dbURL := env.Str("DATABASE_URL", ""); dbURL != "" {
		pg, err := cvs.ConnectPostgres(context.Background(), dbURL)
		if err != nil {
			slog.Error("postgres store init failed", slog.Any("error", err))
			os.Exit(1)
		}
		return pg
	}

	path := env.Str("CV_DB_PATH", "")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		path = filepath.Join(home, ".go_cvmatch", "cv.db")
	}
	s, err := cvs.OpenSQLite(path)
	if err != nil {
		slog.Error("sqlite store init failed", slog.Any("error", err))
		os.Exit(1)
	}
	return s
}
