package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	IngestRequests  atomic.Int64
	IngestErrors    atomic.Int64
	FieldsMissed    atomic.Int64
	EmbedCalls      atomic.Int64
	EmbedErrors     atomic.Int64
	RankRequests    atomic.Int64
	RankExclusions  atomic.Int64
	StoreWrites     atomic.Int64
	StoreWriteFails atomic.Int64
	LLMCalls        atomic.Int64
	LLMErrors       atomic.Int64
}

// GetMetrics returns a snapshot of all metrics including cache stats.
func GetMetrics() map[string]int64 {
	hits, misses := CacheStats()
	return map[string]int64{
		"ingest_requests":   metrics.IngestRequests.Load(),
		"ingest_errors":     metrics.IngestErrors.Load(),
		"fields_missed":     metrics.FieldsMissed.Load(),
		"embed_calls":       metrics.EmbedCalls.Load(),
		"embed_errors":      metrics.EmbedErrors.Load(),
		"rank_requests":     metrics.RankRequests.Load(),
		"rank_exclusions":   metrics.RankExclusions.Load(),
		"store_writes":      metrics.StoreWrites.Load(),
		"store_write_fails": metrics.StoreWriteFails.Load(),
		"llm_calls":         metrics.LLMCalls.Load(),
		"llm_errors":        metrics.LLMErrors.Load(),
		"cache_hits":        hits,
		"cache_misses":      misses,
	}
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	keys := []string{
		"ingest_requests", "ingest_errors", "fields_missed",
		"embed_calls", "embed_errors",
		"rank_requests", "rank_exclusions",
		"store_writes", "store_write_fails",
		"llm_calls", "llm_errors",
		"cache_hits", "cache_misses",
	}
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// Incrementors for the cvs sub-package.
func IncrIngestRequests() { metrics.IngestRequests.Add(1) }

func IncrIngestErrors() { metrics.IngestErrors.Add(1) }

func IncrFieldsMissed(n int64) { metrics.FieldsMissed.Add(n) }

func IncrRankRequests() { metrics.RankRequests.Add(1) }

func IncrRankExclusions(n int64) { metrics.RankExclusions.Add(n) }

func IncrStoreWrites() { metrics.StoreWrites.Add(1) }

func IncrStoreWriteFails() { metrics.StoreWriteFails.Add(1) }

// TrackOperation logs a warning if an operation takes longer than threshold.
func TrackOperation(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed > 5*time.Second {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
