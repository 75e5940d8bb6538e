// Package cvs implements the CV parsing-to-ranking pipeline: field
// extraction from raw résumé text, skill canonicalization, durable candidate
// storage, and hybrid (semantic + keyword) ranking against job descriptions.
package cvs

import "errors"

// Sentinel errors shared by store backends and the matcher.
var (
	// ErrNotFound means the requested candidate/job row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNoEmbedding means a candidate has no stored vector. Callers may
	// lazily recompute; a candidate that still has no vector is excluded
	// from ranking, never silently scored.
	ErrNoEmbedding = errors.New("no stored embedding")
	// ErrDimensionMismatch means a vector's dimensionality disagrees with
	// the vectors already stored. All persisted vectors share one
	// dimensionality.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// CandidateRecord is the output of field extraction: everything the parser
// could recover from one raw résumé. Fields degrade independently to empty
// on extraction failure; RawText is always set.
type CandidateRecord struct {
	Name            string   `json:"name,omitempty"`
	Email           string   `json:"email,omitempty"`
	Phone           string   `json:"phone,omitempty"`
	Education       string   `json:"education,omitempty"`
	Experience      string   `json:"experience,omitempty"`
	ExperienceYears *int     `json:"experience_years,omitempty"` // nil = unparsable
	Skills          []string `json:"skills,omitempty"`           // raw mentions, pre-normalization
	Category        string   `json:"category,omitempty"`
	RawText         string   `json:"raw_text"`
}

// Candidate is a stored candidate row with its canonical skills.
type Candidate struct {
	ID              int64    `json:"id"`
	Name            string   `json:"name,omitempty"`
	Email           string   `json:"email,omitempty"`
	Phone           string   `json:"phone,omitempty"`
	Education       string   `json:"education,omitempty"`
	ExperienceYears *int     `json:"experience_years,omitempty"`
	Category        string   `json:"category,omitempty"`
	Skills          []string `json:"skills,omitempty"` // canonical, sorted
	RawText         string   `json:"-"`
	CreatedAt       string   `json:"created_at,omitempty"`
}

// JobDescription is the query side of a matching request. Core supports both
// ephemeral (ID == 0, never stored) and persisted use.
type JobDescription struct {
	ID       int64  `json:"id,omitempty"`
	Title    string `json:"title,omitempty"`
	Category string `json:"category,omitempty"`
	Text     string `json:"text"`
}

// RankMode selects the scoring method. Chosen by the caller, never inferred.
type RankMode string

const (
	// ModeHybrid fuses semantic and keyword sub-scores.
	ModeHybrid RankMode = "hybrid"
	// ModeSemantic forces keyword_score to 0 (effectively w=1).
	ModeSemantic RankMode = "semantic"
)

// MatchResult is one ranked candidate for a job. Rank is derived from
// CombinedScore at sort time and is never the source of truth.
type MatchResult struct {
	CandidateID   int64   `json:"candidate_id"`
	Name          string  `json:"name,omitempty"`
	SemanticScore float64 `json:"semantic_score"` // max(0, cosine), in [0,1]
	KeywordScore  float64 `json:"keyword_score"`  // |job ∩ candidate| / |job|, in [0,1]
	CombinedScore float64 `json:"combined_score"` // w·semantic + (1-w)·keyword
	Rank          int     `json:"rank"`
}

// RankOutput is the complete result of one ranking call: either a full
// ordered list plus an exclusion count, or (at the call site) a single error.
// There is no partial result state.
type RankOutput struct {
	JobID    int64         `json:"job_id,omitempty"` // 0 when the job was not persisted
	Mode     RankMode      `json:"mode"`
	Weight   float64       `json:"semantic_weight"`
	Results  []MatchResult `json:"results"`
	Excluded int           `json:"excluded"` // candidates skipped for missing vectors
}

// ListFilter narrows ListCandidates. Zero value lists everything.
type ListFilter struct {
	Category string
	Limit    int
}
