package cvs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the default Store backend: a single database file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the SQLite candidate database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("cvstore: mkdir %s: %w", filepath.Dir(path), err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cvstore: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer
	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("cvstore: init schema: %w", err)
	}
	slog.Info("sqlite candidate store opened", slog.String("path", path))
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS candidates (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			name             TEXT,
			email            TEXT,
			phone            TEXT,
			education        TEXT,
			experience_years INTEGER,
			category         TEXT,
			full_text        TEXT NOT NULL,
			created_at       TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS skills (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			skill_name TEXT UNIQUE NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS candidate_skills (
			candidate_id INTEGER NOT NULL,
			skill_id     INTEGER NOT NULL,
			PRIMARY KEY (candidate_id, skill_id)
		)`,
		`CREATE TABLE IF NOT EXISTS cv_embeddings (
			candidate_id INTEGER PRIMARY KEY,
			vector       TEXT NOT NULL,
			dim          INTEGER NOT NULL,
			model_name   TEXT,
			created_at   TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS job_descriptions (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			title            TEXT,
			category         TEXT,
			description      TEXT NOT NULL,
			embedding_vector TEXT,
			created_at       TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS matching_results (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			candidate_id   INTEGER NOT NULL,
			job_id         INTEGER NOT NULL,
			semantic_score REAL NOT NULL,
			keyword_score  REAL NOT NULL,
			combined_score REAL NOT NULL,
			matched_at     TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func nowRFC3339() string { return time.Now().UTC().Format(time.RFC3339) }

// nullable converts "" to NULL so optional fields stay distinguishable from
// empty strings.
func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func (s *SQLiteStore) PutCandidate(ctx context.Context, rec CandidateRecord) (int64, error) {
	var years any
	if rec.ExperienceYears != nil {
		years = *rec.ExperienceYears
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO candidates (name, email, phone, education, experience_years, category, full_text, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		nullable(rec.Name), nullable(rec.Email), nullable(rec.Phone), nullable(rec.Education),
		years, nullable(rec.Category), rec.RawText, nowRFC3339(),
	)
	if err != nil {
		return 0, fmt.Errorf("cvstore: insert candidate: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) GetCandidate(ctx context.Context, id int64) (*Candidate, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT c.id, c.name, c.email, c.phone, c.education, c.experience_years, c.category,
		        c.full_text, c.created_at,
		        (SELECT GROUP_CONCAT(sk.skill_name, char(31))
		         FROM candidate_skills cs JOIN skills sk ON sk.id = cs.skill_id
		         WHERE cs.candidate_id = c.id)
		 FROM candidates c WHERE c.id = ?`, id)
	c, err := scanCandidate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

func (s *SQLiteStore) ListCandidates(ctx context.Context, filter ListFilter) ([]Candidate, error) {
	query := `SELECT c.id, c.name, c.email, c.phone, c.education, c.experience_years, c.category,
	                 c.full_text, c.created_at,
	                 (SELECT GROUP_CONCAT(sk.skill_name, char(31))
	                  FROM candidate_skills cs JOIN skills sk ON sk.id = cs.skill_id
	                  WHERE cs.candidate_id = c.id)
	          FROM candidates c`
	var args []any
	if filter.Category != "" {
		query += ` WHERE c.category = ?`
		args = append(args, filter.Category)
	}
	query += ` ORDER BY c.id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("cvstore: list candidates: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCandidate(r rowScanner) (*Candidate, error) {
	var c Candidate
	var name, email, phone, education, category, skillsCSV sql.NullString
	var years sql.NullInt64
	if err := r.Scan(&c.ID, &name, &email, &phone, &education, &years, &category,
		&c.RawText, &c.CreatedAt, &skillsCSV); err != nil {
		return nil, err
	}
	c.Name = name.String
	c.Email = email.String
	c.Phone = phone.String
	c.Education = education.String
	c.Category = category.String
	if years.Valid {
		y := int(years.Int64)
		c.ExperienceYears = &y
	}
	if skillsCSV.Valid && skillsCSV.String != "" {
		c.Skills = strings.Split(skillsCSV.String, "\x1f")
		sort.Strings(c.Skills)
	}
	return &c, nil
}

func (s *SQLiteStore) DeleteCandidate(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cvstore: begin delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range []string{
		`DELETE FROM candidate_skills WHERE candidate_id = ?`,
		`DELETE FROM cv_embeddings WHERE candidate_id = ?`,
		`DELETE FROM matching_results WHERE candidate_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("cvstore: delete candidate %d: %w", id, err)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM candidates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("cvstore: delete candidate %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (s *SQLiteStore) LinkSkill(ctx context.Context, candidateID int64, skill string) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO skills (skill_name) VALUES (?)`, skill); err != nil {
		return fmt.Errorf("cvstore: upsert skill: %w", err)
	}
	var skillID int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT id FROM skills WHERE skill_name = ?`, skill).Scan(&skillID); err != nil {
		return fmt.Errorf("cvstore: skill id: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO candidate_skills (candidate_id, skill_id) VALUES (?, ?)`,
		candidateID, skillID); err != nil {
		return fmt.Errorf("cvstore: link skill: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListSkills(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT skill_name FROM skills ORDER BY skill_name`)
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

func (s *SQLiteStore) PutEmbedding(ctx context.Context, candidateID int64, vec []float64, model string) error {
	if len(vec) == 0 {
		return errors.New("cvstore: refusing to store empty vector")
	}

	// All stored vectors share one dimensionality.
	var dim int
	err := s.db.QueryRowContext(ctx,
		`SELECT dim FROM cv_embeddings WHERE candidate_id != ? LIMIT 1`, candidateID).Scan(&dim)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("cvstore: embedding dim check: %w", err)
	}
	if err == nil && dim != len(vec) {
		return fmt.Errorf("%w: got %d, store has %d", ErrDimensionMismatch, len(vec), dim)
	}

	data, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("cvstore: marshal vector: %w", err)
	}

	// Single upsert: replace-or-nothing, no partially written state.
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO cv_embeddings (candidate_id, vector, dim, model_name, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(candidate_id) DO UPDATE SET
		   vector = excluded.vector, dim = excluded.dim,
		   model_name = excluded.model_name, created_at = excluded.created_at`,
		candidateID, string(data), len(vec), nullable(model), nowRFC3339()); err != nil {
		return fmt.Errorf("cvstore: put embedding: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetEmbedding(ctx context.Context, candidateID int64) ([]float64, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT vector FROM cv_embeddings WHERE candidate_id = ?`, candidateID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoEmbedding
	}
	if err != nil {
		return nil, fmt.Errorf("cvstore: get embedding: %w", err)
	}
	var vec []float64
	if err := json.Unmarshal([]byte(data), &vec); err != nil {
		return nil, fmt.Errorf("cvstore: decode embedding: %w", err)
	}
	return vec, nil
}

func (s *SQLiteStore) PutJob(ctx context.Context, job JobDescription, vec []float64) (int64, error) {
	var vecJSON any
	if len(vec) > 0 {
		data, err := json.Marshal(vec)
		if err != nil {
			return 0, fmt.Errorf("cvstore: marshal job vector: %w", err)
		}
		vecJSON = string(data)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO job_descriptions (title, category, description, embedding_vector, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		nullable(job.Title), nullable(job.Category), job.Text, vecJSON, nowRFC3339())
	if err != nil {
		return 0, fmt.Errorf("cvstore: insert job: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) PutMatchResults(ctx context.Context, jobID int64, results []MatchResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cvstore: begin match results: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := nowRFC3339()
	for _, r := range results {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO matching_results (candidate_id, job_id, semantic_score, keyword_score, combined_score, matched_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			r.CandidateID, jobID, r.SemanticScore, r.KeywordScore, r.CombinedScore, now); err != nil {
			return fmt.Errorf("cvstore: insert match result: %w", err)
		}
	}
	return tx.Commit()
}
