package cvs

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// PostgresStore is the shared-deployment Store backend, selected when
// DATABASE_URL is set.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// ConnectPostgres creates a pgx pool and runs schema migrations.
func ConnectPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("candidate postgres connected", slog.String("addr", config.ConnConfig.Host))
	return s, nil
}

func (s *PostgresStore) runMigrations(ctx context.Context) error {
	entries, err := schemaFS.ReadDir("schema")
	if err != nil {
		return fmt.Errorf("read schema dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		data, err := schemaFS.ReadFile("schema/" + entry.Name())
		if err != nil {
			return fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		if _, err := s.pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("execute %s: %w", entry.Name(), err)
		}
		slog.Info("migration applied", slog.String("file", entry.Name()))
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) PutCandidate(ctx context.Context, rec CandidateRecord) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO cv_candidates (name, email, phone, education, experience_years, category, full_text)
		 VALUES (NULLIF($1,''), NULLIF($2,''), NULLIF($3,''), NULLIF($4,''), $5, NULLIF($6,''), $7)
		 RETURNING id`,
		rec.Name, rec.Email, rec.Phone, rec.Education, rec.ExperienceYears, rec.Category, rec.RawText,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("cvstore: insert candidate: %w", err)
	}
	return id, nil
}

const pgCandidateSelect = `
	SELECT c.id, COALESCE(c.name,''), COALESCE(c.email,''), COALESCE(c.phone,''),
	       COALESCE(c.education,''), c.experience_years, COALESCE(c.category,''),
	       c.full_text, c.created_at,
	       COALESCE((SELECT string_agg(sk.skill_name, chr(31) ORDER BY sk.skill_name)
	                 FROM cv_candidate_skills cs JOIN cv_skills sk ON sk.id = cs.skill_id
	                 WHERE cs.candidate_id = c.id), '')
	FROM cv_candidates c`

func scanPGCandidate(r pgx.Row) (*Candidate, error) {
	var c Candidate
	var years *int
	var created time.Time
	var skillsCSV string
	if err := r.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Education, &years, &c.Category,
		&c.RawText, &created, &skillsCSV); err != nil {
		return nil, err
	}
	c.ExperienceYears = years
	c.CreatedAt = created.UTC().Format(time.RFC3339)
	if skillsCSV != "" {
		c.Skills = strings.Split(skillsCSV, "\x1f")
	}
	return &c, nil
}

func (s *PostgresStore) GetCandidate(ctx context.Context, id int64) (*Candidate, error) {
	row := s.pool.QueryRow(ctx, pgCandidateSelect+` WHERE c.id = $1`, id)
	c, err := scanPGCandidate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

func (s *PostgresStore) ListCandidates(ctx context.Context, filter ListFilter) ([]Candidate, error) {
	query := pgCandidateSelect
	var args []any
	if filter.Category != "" {
		args = append(args, filter.Category)
		query += fmt.Sprintf(` WHERE c.category = $%d`, len(args))
	}
	query += ` ORDER BY c.id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("cvstore: list candidates: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		c, err := scanPGCandidate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteCandidate(ctx context.Context, id int64) error {
	res, err := s.pool.Exec(ctx, `DELETE FROM cv_candidates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("cvstore: delete candidate %d: %w", id, err)
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	// Match rows are not covered by the FK cascade (candidates may be deleted
	// after matching); clean them up explicitly.
	_, err = s.pool.Exec(ctx, `DELETE FROM cv_matching_results WHERE candidate_id = $1`, id)
	return err
}

func (s *PostgresStore) LinkSkill(ctx context.Context, candidateID int64, skill string) error {
	var skillID int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO cv_skills (skill_name) VALUES ($1)
		 ON CONFLICT (skill_name) DO UPDATE SET skill_name = EXCLUDED.skill_name
		 RETURNING id`, skill,
	).Scan(&skillID)
	if err != nil {
		return fmt.Errorf("cvstore: upsert skill: %w", err)
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO cv_candidate_skills (candidate_id, skill_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`, candidateID, skillID); err != nil {
		return fmt.Errorf("cvstore: link skill: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListSkills(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT skill_name FROM cv_skills ORDER BY skill_name`)
	if err != nil {
		return nil, fmt.Errorf("cvstore: list skills: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (s *PostgresStore) PutEmbedding(ctx context.Context, candidateID int64, vec []float64, model string) error {
	if len(vec) == 0 {
		return errors.New("cvstore: refusing to store empty vector")
	}

	// All stored vectors share one dimensionality.
	var dim int
	err := s.pool.QueryRow(ctx,
		`SELECT dim FROM cv_embeddings WHERE candidate_id != $1 LIMIT 1`, candidateID).Scan(&dim)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("cvstore: embedding dim check: %w", err)
	}
	if err == nil && dim != len(vec) {
		return fmt.Errorf("%w: got %d, store has %d", ErrDimensionMismatch, len(vec), dim)
	}

	data, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("cvstore: marshal vector: %w", err)
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO cv_embeddings (candidate_id, vector, dim, model_name)
		 VALUES ($1, $2, $3, NULLIF($4,''))
		 ON CONFLICT (candidate_id) DO UPDATE SET
		   vector = EXCLUDED.vector, dim = EXCLUDED.dim,
		   model_name = EXCLUDED.model_name, created_at = now()`,
		candidateID, data, len(vec), model); err != nil {
		return fmt.Errorf("cvstore: put embedding: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetEmbedding(ctx context.Context, candidateID int64) ([]float64, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT vector FROM cv_embeddings WHERE candidate_id = $1`, candidateID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoEmbedding
	}
	if err != nil {
		return nil, fmt.Errorf("cvstore: get embedding: %w", err)
	}
	var vec []float64
	if err := json.Unmarshal(data, &vec); err != nil {
		return nil, fmt.Errorf("cvstore: decode embedding: %w", err)
	}
	return vec, nil
}

func (s *PostgresStore) PutJob(ctx context.Context, job JobDescription, vec []float64) (int64, error) {
	var vecJSON []byte
	if len(vec) > 0 {
		data, err := json.Marshal(vec)
		if err != nil {
			return 0, fmt.Errorf("cvstore: marshal job vector: %w", err)
		}
		vecJSON = data
	}
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO cv_job_descriptions (title, category, description, embedding_vector)
		 VALUES (NULLIF($1,''), NULLIF($2,''), $3, $4) RETURNING id`,
		job.Title, job.Category, job.Text, vecJSON,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("cvstore: insert job: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) PutMatchResults(ctx context.Context, jobID int64, results []MatchResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("cvstore: begin match results: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, r := range results {
		if _, err := tx.Exec(ctx,
			`INSERT INTO cv_matching_results (candidate_id, job_id, semantic_score, keyword_score, combined_score)
			 VALUES ($1, $2, $3, $4, $5)`,
			r.CandidateID, jobID, r.SemanticScore, r.KeywordScore, r.CombinedScore); err != nil {
			return fmt.Errorf("cvstore: insert match result: %w", err)
		}
	}
	return tx.Commit(ctx)
}
