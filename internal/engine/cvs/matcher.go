package cvs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/anatolykoptev/go_cvmatch/internal/engine"
)

// RankRequest is one ranking call against the candidate pool.
type RankRequest struct {
	Job      JobDescription
	Mode     RankMode
	Weight   *float64 // nil = configured default; must be in [0,1]
	Category string   // optional candidate pool filter
	TopK     int      // 0 = all
	Persist  bool     // store the job and its match rows
}

// RankCandidates scores every stored candidate against the job and returns
// the full ordered list. The job embedding is mandatory: if the provider
// cannot produce it the whole call fails with ErrEmbeddingUnavailable.
// Candidates without a stored vector get one recomputation attempt; those
// still missing a vector are excluded and counted, never scored.
func RankCandidates(ctx context.Context, store Store, req RankRequest) (*RankOutput, error) {
	engine.IncrRankRequests()

	if strings.TrimSpace(req.Job.Text) == "" {
		return nil, errors.New("job description text is required")
	}

	mode := req.Mode
	if mode == "" {
		mode = ModeHybrid
	}
	if mode != ModeHybrid && mode != ModeSemantic {
		return nil, fmt.Errorf("unknown mode %q (want %q or %q)", mode, ModeHybrid, ModeSemantic)
	}

	weight := engine.Cfg.SemanticWeight
	if req.Weight != nil {
		if *req.Weight < 0 || *req.Weight > 1 {
			return nil, fmt.Errorf("semantic weight %v out of range [0,1]", *req.Weight)
		}
		weight = *req.Weight
	}
	if mode == ModeSemantic {
		weight = 1
	}

	jobText := PrepareText(req.Job.Text)
	jobVec, err := engine.EmbedText(ctx, jobText)
	if err != nil {
		return nil, fmt.Errorf("embed job description: %w", err)
	}

	pool, err := store.ListCandidates(ctx, ListFilter{Category: req.Category})
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	jobTokens := engine.Tokenize(jobText)

	type scored struct {
		result   MatchResult
		excluded bool
	}
	scores := make([]scored, len(pool))

	workers := engine.Cfg.MatchWorkers
	if workers > len(pool) {
		workers = len(pool)
	}
	if workers < 1 {
		workers = 1
	}

	idxCh := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idxCh {
				r, ok := scoreCandidate(ctx, store, pool[i], jobVec, jobTokens, mode, weight)
				scores[i] = scored{result: r, excluded: !ok}
			}
		}()
	}
	for i := range pool {
		idxCh <- i
	}
	close(idxCh)
	wg.Wait()

	out := &RankOutput{Mode: mode, Weight: weight}
	for _, s := range scores {
		if s.excluded {
			out.Excluded++
			continue
		}
		out.Results = append(out.Results, s.result)
	}
	if out.Excluded > 0 {
		engine.IncrRankExclusions(int64(out.Excluded))
	}

	// Deterministic order: combined desc, then semantic desc, then id asc.
	sort.Slice(out.Results, func(i, j int) bool {
		a, b := out.Results[i], out.Results[j]
		if a.CombinedScore != b.CombinedScore {
			return a.CombinedScore > b.CombinedScore
		}
		if a.SemanticScore != b.SemanticScore {
			return a.SemanticScore > b.SemanticScore
		}
		return a.CandidateID < b.CandidateID
	})
	for i := range out.Results {
		out.Results[i].Rank = i + 1
	}

	if req.Persist {
		jobID, err := store.PutJob(ctx, req.Job, jobVec)
		if err != nil {
			return nil, fmt.Errorf("persist job: %w", err)
		}
		if err := store.PutMatchResults(ctx, jobID, out.Results); err != nil {
			return nil, fmt.Errorf("persist match results: %w", err)
		}
		engine.IncrStoreWrites()
		out.JobID = jobID
	}

	if req.TopK > 0 && len(out.Results) > req.TopK {
		out.Results = out.Results[:req.TopK]
	}
	return out, nil
}

// scoreCandidate computes one candidate's sub-scores. The second return is
// false when the candidate has no retrievable vector (stored or recomputed)
// and must be excluded.
func scoreCandidate(ctx context.Context, store Store, c Candidate, jobVec []float64, jobTokens map[string]bool, mode RankMode, weight float64) (MatchResult, bool) {
	vec, err := candidateVector(ctx, store, c)
	if err != nil {
		slog.Debug("candidate excluded from ranking",
			slog.Int64("candidate_id", c.ID), slog.Any("error", err))
		return MatchResult{}, false
	}

	semantic := math.Max(0, Cosine(jobVec, vec))

	keyword := 0.0
	if mode == ModeHybrid {
		keyword = keywordScore(jobTokens, candidateTokens(c))
	}

	return MatchResult{
		CandidateID:   c.ID,
		Name:          c.Name,
		SemanticScore: semantic,
		KeywordScore:  keyword,
		CombinedScore: weight*semantic + (1-weight)*keyword,
	}, true
}

// candidateVector fetches the stored vector, recomputing (and best-effort
// persisting) it once if missing.
func candidateVector(ctx context.Context, store Store, c Candidate) ([]float64, error) {
	vec, err := store.GetEmbedding(ctx, c.ID)
	if err == nil {
		return vec, nil
	}
	if !errors.Is(err, ErrNoEmbedding) {
		return nil, err
	}

	vec, err = engine.EmbedText(ctx, PrepareText(c.RawText))
	if err != nil || vec == nil {
		return nil, fmt.Errorf("recompute vector: %w", errors.Join(err, ErrNoEmbedding))
	}
	if perr := store.PutEmbedding(ctx, c.ID, vec, engine.EmbedModel()); perr != nil {
		engine.IncrStoreWriteFails()
		slog.Warn("failed to persist recomputed embedding",
			slog.Int64("candidate_id", c.ID), slog.Any("error", perr))
	}
	return vec, nil
}

// candidateTokens is the candidate's keyword set: canonical skills plus the
// cleaned résumé text. HTML payloads are converted first, matching the job
// side, so markup never counts as a keyword.
func candidateTokens(c Candidate) map[string]bool {
	return engine.Tokenize(strings.Join(c.Skills, " ") + " " + PrepareText(c.RawText))
}

// keywordScore is job-side overlap: |job ∩ candidate| / |job|. An empty job
// token set scores 0 for everyone.
func keywordScore(jobTokens, candTokens map[string]bool) float64 {
	if len(jobTokens) == 0 {
		return 0
	}
	hits := 0
	for t := range jobTokens {
		if candTokens[t] {
			hits++
		}
	}
	return float64(hits) / float64(len(jobTokens))
}

// Cosine returns the cosine similarity of two vectors, or 0 when either is
// empty, the lengths disagree, or either norm is zero.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
