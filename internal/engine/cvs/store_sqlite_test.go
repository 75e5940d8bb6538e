package cvs

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "cv.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteCandidateRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	years := 7
	id, err := s.PutCandidate(ctx, CandidateRecord{
		Name: "John Smith", Email: "john@x.com", Phone: "+1 555 123 4567",
		Education: "B.Sc CS", ExperienceYears: &years,
		Category: "ENGINEERING", RawText: "raw resume text",
	})
	require.NoError(t, err)
	require.Positive(t, id)

	require.NoError(t, s.LinkSkill(ctx, id, "python"))
	require.NoError(t, s.LinkSkill(ctx, id, "go"))
	require.NoError(t, s.LinkSkill(ctx, id, "go")) // idempotent

	c, err := s.GetCandidate(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "John Smith", c.Name)
	assert.Equal(t, "john@x.com", c.Email)
	assert.Equal(t, "ENGINEERING", c.Category)
	assert.Equal(t, "raw resume text", c.RawText)
	require.NotNil(t, c.ExperienceYears)
	assert.Equal(t, 7, *c.ExperienceYears)
	assert.Equal(t, []string{"go", "python"}, c.Skills)
	assert.NotEmpty(t, c.CreatedAt)
}

func TestSQLiteOptionalFieldsNull(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.PutCandidate(ctx, CandidateRecord{RawText: "only raw text"})
	require.NoError(t, err)

	c, err := s.GetCandidate(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, c.Name)
	assert.Empty(t, c.Email)
	assert.Nil(t, c.ExperienceYears)
	assert.Empty(t, c.Skills)
}

func TestSQLiteGetCandidateNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetCandidate(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteListCandidates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, c := range []CandidateRecord{
		{Name: "A", Category: "IT", RawText: "a"},
		{Name: "B", Category: "HR", RawText: "b"},
		{Name: "C", Category: "IT", RawText: "c"},
	} {
		_, err := s.PutCandidate(ctx, c)
		require.NoError(t, err)
	}

	all, err := s.ListCandidates(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	it, err := s.ListCandidates(ctx, ListFilter{Category: "IT"})
	require.NoError(t, err)
	require.Len(t, it, 2)
	assert.Equal(t, "A", it[0].Name)
	assert.Equal(t, "C", it[1].Name)

	limited, err := s.ListCandidates(ctx, ListFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLiteDeleteCandidate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.PutCandidate(ctx, CandidateRecord{Name: "A", RawText: "a"})
	require.NoError(t, err)
	require.NoError(t, s.LinkSkill(ctx, id, "python"))
	require.NoError(t, s.PutEmbedding(ctx, id, []float64{1, 0}, "m"))

	require.NoError(t, s.DeleteCandidate(ctx, id))

	_, err = s.GetCandidate(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetEmbedding(ctx, id)
	assert.ErrorIs(t, err, ErrNoEmbedding)

	// Vocabulary survives candidate deletion.
	skills, err := s.ListSkills(ctx)
	require.NoError(t, err)
	assert.Contains(t, skills, "python")

	assert.ErrorIs(t, s.DeleteCandidate(ctx, id), ErrNotFound)
}

func TestSQLiteEmbeddingReplace(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.PutCandidate(ctx, CandidateRecord{RawText: "a"})
	require.NoError(t, err)

	require.NoError(t, s.PutEmbedding(ctx, id, []float64{0.1, 0.2}, "m1"))
	require.NoError(t, s.PutEmbedding(ctx, id, []float64{0.3, 0.4}, "m2"))

	vec, err := s.GetEmbedding(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.3, 0.4}, vec)
}

func TestSQLiteEmbeddingDimensionEnforced(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a, err := s.PutCandidate(ctx, CandidateRecord{RawText: "a"})
	require.NoError(t, err)
	b, err := s.PutCandidate(ctx, CandidateRecord{RawText: "b"})
	require.NoError(t, err)

	require.NoError(t, s.PutEmbedding(ctx, a, []float64{1, 2, 3}, "m"))
	assert.ErrorIs(t, s.PutEmbedding(ctx, b, []float64{1, 2}, "m"), ErrDimensionMismatch)

	// Replacing the sole existing vector with the same dimensionality is fine.
	require.NoError(t, s.PutEmbedding(ctx, a, []float64{4, 5, 6}, "m"))

	// Empty vectors are rejected outright.
	assert.Error(t, s.PutEmbedding(ctx, b, nil, "m"))
}

func TestSQLiteJobAndMatchResults(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	jobID, err := s.PutJob(ctx, JobDescription{Title: "Py Dev", Text: "python developer"}, []float64{1, 0})
	require.NoError(t, err)
	require.Positive(t, jobID)

	results := []MatchResult{
		{CandidateID: 1, SemanticScore: 0.9, KeywordScore: 1, CombinedScore: 0.93, Rank: 1},
		{CandidateID: 2, SemanticScore: 0.1, KeywordScore: 0.25, CombinedScore: 0.145, Rank: 2},
	}
	require.NoError(t, s.PutMatchResults(ctx, jobID, results))
}

func TestSQLiteStoreImplementsStore(t *testing.T) {
	var _ Store = (*SQLiteStore)(nil)
	var _ Store = (*PostgresStore)(nil)
}
