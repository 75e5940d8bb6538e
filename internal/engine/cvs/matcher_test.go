package cvs

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"testing"

	"github.com/anatolykoptev/go_cvmatch/internal/engine"
)

// fakeStore is an in-memory Store for matcher and pipeline tests.
type fakeStore struct {
	mu         sync.Mutex
	nextID     int64
	candidates map[int64]Candidate
	embeddings map[int64][]float64
	skills     map[string]bool
	jobs       map[int64]JobDescription
	matches    map[int64][]MatchResult
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		candidates: make(map[int64]Candidate),
		embeddings: make(map[int64][]float64),
		skills:     make(map[string]bool),
		jobs:       make(map[int64]JobDescription),
		matches:    make(map[int64][]MatchResult),
	}
}

func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) PutCandidate(_ context.Context, rec CandidateRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.candidates[s.nextID] = Candidate{
		ID: s.nextID, Name: rec.Name, Email: rec.Email, Phone: rec.Phone,
		Education: rec.Education, ExperienceYears: rec.ExperienceYears,
		Category: rec.Category, Skills: rec.Skills, RawText: rec.RawText,
	}
	return s.nextID, nil
}

func (s *fakeStore) GetCandidate(_ context.Context, id int64) (*Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.candidates[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (s *fakeStore) ListCandidates(_ context.Context, filter ListFilter) ([]Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Candidate
	for _, c := range s.candidates {
		if filter.Category != "" && c.Category != filter.Category {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *fakeStore) DeleteCandidate(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.candidates[id]; !ok {
		return ErrNotFound
	}
	delete(s.candidates, id)
	delete(s.embeddings, id)
	return nil
}

func (s *fakeStore) LinkSkill(_ context.Context, _ int64, skill string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skills[skill] = true
	return nil
}

func (s *fakeStore) ListSkills(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for sk := range s.skills {
		out = append(out, sk)
	}
	sort.Strings(out)
	return out, nil
}

func (s *fakeStore) PutEmbedding(_ context.Context, id int64, vec []float64, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(vec) == 0 {
		return errors.New("empty vector")
	}
	s.embeddings[id] = vec
	return nil
}

func (s *fakeStore) GetEmbedding(_ context.Context, id int64) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vec, ok := s.embeddings[id]
	if !ok {
		return nil, ErrNoEmbedding
	}
	return vec, nil
}

func (s *fakeStore) PutJob(_ context.Context, job JobDescription, _ []float64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	job.ID = s.nextID
	s.jobs[job.ID] = job
	return job.ID, nil
}

func (s *fakeStore) PutMatchResults(_ context.Context, jobID int64, results []MatchResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches[jobID] = results
	return nil
}

// fakeEmbedder returns canned vectors per exact text.
type fakeEmbedder struct {
	vecs map[string][]float64
	err  error
}

func (f *fakeEmbedder) Model() string { return "fake-model" }

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vecs[text]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("no canned vector for %q", text)
}

const jobText = "Python developer with SQL experience"

func addCandidate(t *testing.T, s *fakeStore, name, rawText string, skills []string, vec []float64) int64 {
	t.Helper()
	id, err := s.PutCandidate(context.Background(), CandidateRecord{
		Name: name, RawText: rawText, Skills: skills,
	})
	if err != nil {
		t.Fatal(err)
	}
	if vec != nil {
		if err := s.PutEmbedding(context.Background(), id, vec, "fake-model"); err != nil {
			t.Fatal(err)
		}
	}
	return id
}

func setupMatcher(t *testing.T, fe *fakeEmbedder) {
	t.Helper()
	engine.Init(engine.Config{SemanticWeight: 0.7, MatchWorkers: 4, Embedder: fe})
}

func TestRankHybridWorkedExample(t *testing.T) {
	s := newFakeStore()
	setupMatcher(t, &fakeEmbedder{vecs: map[string][]float64{jobText: {1, 0}}})

	// A matches every job keyword and points the same way as the job vector.
	aID := addCandidate(t, s, "A", "python developer sql experience", []string{"python", "sql"}, []float64{1, 0})
	// B shares only "developer" and is orthogonal semantically.
	bID := addCandidate(t, s, "B", "java spring developer", []string{"java"}, []float64{0, 1})

	out, err := RankCandidates(context.Background(), s, RankRequest{Job: JobDescription{Text: jobText}})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Results) != 2 {
		t.Fatalf("got %d results", len(out.Results))
	}
	if out.Excluded != 0 {
		t.Errorf("excluded = %d, want 0", out.Excluded)
	}

	a, b := out.Results[0], out.Results[1]
	if a.CandidateID != aID || b.CandidateID != bID {
		t.Fatalf("order = %d,%d want %d,%d", a.CandidateID, b.CandidateID, aID, bID)
	}
	if a.Rank != 1 || b.Rank != 2 {
		t.Errorf("ranks = %d,%d", a.Rank, b.Rank)
	}

	// Job tokens: python, developer, sql, experience.
	if a.KeywordScore != 1.0 {
		t.Errorf("A keyword = %v, want 1.0", a.KeywordScore)
	}
	if b.KeywordScore != 0.25 {
		t.Errorf("B keyword = %v, want 0.25", b.KeywordScore)
	}
	if a.SemanticScore != 1.0 || b.SemanticScore != 0.0 {
		t.Errorf("semantic = %v,%v", a.SemanticScore, b.SemanticScore)
	}
	if math.Abs(a.CombinedScore-1.0) > 1e-9 {
		t.Errorf("A combined = %v, want 1.0", a.CombinedScore)
	}
	if math.Abs(b.CombinedScore-0.075) > 1e-9 {
		t.Errorf("B combined = %v, want 0.075", b.CombinedScore)
	}
}

func TestRankNegativeCosineClamped(t *testing.T) {
	s := newFakeStore()
	setupMatcher(t, &fakeEmbedder{vecs: map[string][]float64{jobText: {1, 0}}})
	addCandidate(t, s, "Anti", "nothing relevant", nil, []float64{-1, 0})

	out, err := RankCandidates(context.Background(), s, RankRequest{Job: JobDescription{Text: jobText}})
	if err != nil {
		t.Fatal(err)
	}
	if got := out.Results[0].SemanticScore; got != 0 {
		t.Errorf("semantic = %v, want 0 (clamped)", got)
	}
}

func TestRankSemanticMode(t *testing.T) {
	s := newFakeStore()
	setupMatcher(t, &fakeEmbedder{vecs: map[string][]float64{jobText: {1, 0}}})
	addCandidate(t, s, "A", "python developer sql experience", []string{"python"}, []float64{0.5, 0.5})

	out, err := RankCandidates(context.Background(), s, RankRequest{
		Job: JobDescription{Text: jobText}, Mode: ModeSemantic,
	})
	if err != nil {
		t.Fatal(err)
	}
	r := out.Results[0]
	if r.KeywordScore != 0 {
		t.Errorf("keyword = %v, want 0 in semantic mode", r.KeywordScore)
	}
	if r.CombinedScore != r.SemanticScore {
		t.Errorf("combined %v != semantic %v", r.CombinedScore, r.SemanticScore)
	}
	if out.Weight != 1 {
		t.Errorf("weight = %v, want 1", out.Weight)
	}
}

func TestRankTieBreakByID(t *testing.T) {
	s := newFakeStore()
	setupMatcher(t, &fakeEmbedder{vecs: map[string][]float64{jobText: {1, 0}}})
	first := addCandidate(t, s, "X", "python developer sql experience", nil, []float64{1, 0})
	second := addCandidate(t, s, "Y", "python developer sql experience", nil, []float64{1, 0})

	out, err := RankCandidates(context.Background(), s, RankRequest{Job: JobDescription{Text: jobText}})
	if err != nil {
		t.Fatal(err)
	}
	if out.Results[0].CandidateID != first || out.Results[1].CandidateID != second {
		t.Errorf("tie not broken by id asc: %d,%d", out.Results[0].CandidateID, out.Results[1].CandidateID)
	}
}

func TestRankMissingVectorExcluded(t *testing.T) {
	s := newFakeStore()
	// Provider knows the job text only; the vectorless candidate cannot be
	// recomputed and must be excluded.
	setupMatcher(t, &fakeEmbedder{vecs: map[string][]float64{jobText: {1, 0}}})
	okID := addCandidate(t, s, "A", "python developer sql experience", nil, []float64{1, 0})
	addCandidate(t, s, "C", "some other resume text", nil, nil)

	out, err := RankCandidates(context.Background(), s, RankRequest{Job: JobDescription{Text: jobText}})
	if err != nil {
		t.Fatal(err)
	}
	if out.Excluded != 1 {
		t.Errorf("excluded = %d, want 1", out.Excluded)
	}
	if len(out.Results) != 1 || out.Results[0].CandidateID != okID {
		t.Errorf("results = %+v", out.Results)
	}
}

func TestRankLazyRecompute(t *testing.T) {
	s := newFakeStore()
	raw := "python developer sql experience"
	setupMatcher(t, &fakeEmbedder{vecs: map[string][]float64{
		jobText: {1, 0},
		raw:     {1, 0},
	}})
	id := addCandidate(t, s, "A", raw, nil, nil)

	out, err := RankCandidates(context.Background(), s, RankRequest{Job: JobDescription{Text: jobText}})
	if err != nil {
		t.Fatal(err)
	}
	if out.Excluded != 0 || len(out.Results) != 1 {
		t.Fatalf("excluded=%d results=%d", out.Excluded, len(out.Results))
	}
	// The recomputed vector was persisted for next time.
	if _, err := s.GetEmbedding(context.Background(), id); err != nil {
		t.Errorf("recomputed vector not stored: %v", err)
	}
}

func TestRankJobEmbeddingFailureIsFatal(t *testing.T) {
	s := newFakeStore()
	setupMatcher(t, &fakeEmbedder{err: errors.New("provider down")})
	addCandidate(t, s, "A", "python", nil, []float64{1, 0})

	_, err := RankCandidates(context.Background(), s, RankRequest{Job: JobDescription{Text: jobText}})
	if !errors.Is(err, engine.ErrEmbeddingUnavailable) {
		t.Fatalf("got %v, want ErrEmbeddingUnavailable", err)
	}
}

func TestRankInputValidation(t *testing.T) {
	s := newFakeStore()
	setupMatcher(t, &fakeEmbedder{vecs: map[string][]float64{jobText: {1, 0}}})

	if _, err := RankCandidates(context.Background(), s, RankRequest{Job: JobDescription{Text: "  "}}); err == nil {
		t.Error("expected error for blank job text")
	}
	if _, err := RankCandidates(context.Background(), s, RankRequest{
		Job: JobDescription{Text: jobText}, Mode: "cosine",
	}); err == nil {
		t.Error("expected error for unknown mode")
	}
	bad := 1.5
	if _, err := RankCandidates(context.Background(), s, RankRequest{
		Job: JobDescription{Text: jobText}, Weight: &bad,
	}); err == nil {
		t.Error("expected error for out-of-range weight")
	}
}

func TestRankWeightSensitivity(t *testing.T) {
	s := newFakeStore()
	setupMatcher(t, &fakeEmbedder{vecs: map[string][]float64{jobText: {1, 0}}})
	// Semantic winner vs keyword winner.
	semID := addCandidate(t, s, "Sem", "irrelevant words entirely", nil, []float64{1, 0})
	kwID := addCandidate(t, s, "Kw", "python developer sql experience", []string{"python", "sql"}, []float64{0, 1})

	run := func(w float64) int64 {
		out, err := RankCandidates(context.Background(), s, RankRequest{
			Job: JobDescription{Text: jobText}, Weight: &w,
		})
		if err != nil {
			t.Fatal(err)
		}
		return out.Results[0].CandidateID
	}

	if got := run(1.0); got != semID {
		t.Errorf("w=1.0 winner = %d, want semantic candidate %d", got, semID)
	}
	if got := run(0.0); got != kwID {
		t.Errorf("w=0.0 winner = %d, want keyword candidate %d", got, kwID)
	}
}

func TestRankTopKAndPersist(t *testing.T) {
	s := newFakeStore()
	setupMatcher(t, &fakeEmbedder{vecs: map[string][]float64{jobText: {1, 0}}})
	for i := 0; i < 5; i++ {
		addCandidate(t, s, fmt.Sprintf("C%d", i), "python developer sql experience", nil, []float64{1, float64(i) / 10})
	}

	out, err := RankCandidates(context.Background(), s, RankRequest{
		Job: JobDescription{Text: jobText, Title: "Py Dev"}, TopK: 2, Persist: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Results) != 2 {
		t.Errorf("got %d results, want 2", len(out.Results))
	}
	if out.JobID == 0 {
		t.Fatal("expected persisted job id")
	}
	// All 5 match rows are stored, not just the top K.
	if got := len(s.matches[out.JobID]); got != 5 {
		t.Errorf("stored match rows = %d, want 5", got)
	}
}

func TestCandidateTokensCleanMarkup(t *testing.T) {
	c := Candidate{
		Skills:  []string{"python"},
		RawText: `<html><body><div class="section"><p>Senior SQL developer</p></div></body></html>`,
	}
	toks := candidateTokens(c)
	for _, want := range []string{"python", "sql", "developer", "senior"} {
		if !toks[want] {
			t.Errorf("missing token %q", want)
		}
	}
	for _, markup := range []string{"html", "body", "div", "class", "section"} {
		if toks[markup] {
			t.Errorf("markup token %q leaked into the keyword set", markup)
		}
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2}, []float64{1, 2}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"nil a", nil, []float64{1}, 0},
		{"length mismatch", []float64{1, 2}, []float64{1}, 0},
		{"zero norm", []float64{0, 0}, []float64{1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cosine = %v, want %v", got, tt.want)
			}
		})
	}
}
