package cvs

import "context"

// Store persists candidates, skills, embeddings, job descriptions, and match
// results. It exclusively owns all persisted rows; the matcher only reads
// snapshots and appends match results.
//
// Two backends exist: SQLite (default, single file) and PostgreSQL
// (DATABASE_URL). Both enforce the same invariants: the candidate row exists
// before any skill link, embeddings are replaced atomically or not at all,
// and every stored vector shares one dimensionality.
type Store interface {
	Close() error

	// PutCandidate inserts the candidate row only. Skill links are created
	// separately (and only after this succeeds).
	PutCandidate(ctx context.Context, rec CandidateRecord) (int64, error)
	GetCandidate(ctx context.Context, id int64) (*Candidate, error)
	ListCandidates(ctx context.Context, filter ListFilter) ([]Candidate, error)
	DeleteCandidate(ctx context.Context, id int64) error

	// LinkSkill upserts the canonical skill and links it to the candidate.
	LinkSkill(ctx context.Context, candidateID int64, skill string) error
	ListSkills(ctx context.Context) ([]string, error)

	// PutEmbedding stores the candidate's vector replace-or-nothing: a reader
	// never observes a partially written vector.
	PutEmbedding(ctx context.Context, candidateID int64, vec []float64, model string) error
	// GetEmbedding returns ErrNoEmbedding when no vector is stored.
	GetEmbedding(ctx context.Context, candidateID int64) ([]float64, error)

	PutJob(ctx context.Context, job JobDescription, vec []float64) (int64, error)
	PutMatchResults(ctx context.Context, jobID int64, results []MatchResult) error
}

// Package-level singleton, set from main.go.
var store Store

// SetStore sets the package-level candidate store instance.
func SetStore(s Store) { store = s }

// GetStore returns the package-level candidate store instance (may be nil).
func GetStore() Store { return store }
