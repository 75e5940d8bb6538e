package cvs

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/anatolykoptev/go_cvmatch/internal/engine"
)

// IngestResult reports one completed résumé ingestion.
type IngestResult struct {
	CandidateID  int64    `json:"candidate_id"`
	Name         string   `json:"name,omitempty"`
	Skills       []string `json:"skills,omitempty"`
	FieldsMissed int      `json:"fields_missed"`
	Embedded     bool     `json:"embedded"`
}

// IngestResume runs the full pipeline for one raw résumé: extract fields,
// canonicalize skills, persist the candidate, link skills, then best-effort
// compute and store the embedding. Extraction and embedding failures never
// fail the ingestion; only storage errors do.
func IngestResume(ctx context.Context, store Store, p *Parser, rawText, category string) (*IngestResult, error) {
	return ingestRecord(ctx, store, p, rawText, category, "")
}

func ingestRecord(ctx context.Context, store Store, p *Parser, rawText, category, fallbackName string) (*IngestResult, error) {
	engine.IncrIngestRequests()

	if strings.TrimSpace(rawText) == "" {
		engine.IncrIngestErrors()
		return nil, errors.New("raw text is required")
	}

	rec, missed := p.Extract(rawText)
	rec.Category = category
	if rec.Name == "" && fallbackName != "" {
		rec.Name = fallbackName
	}
	if missed > 0 {
		engine.IncrFieldsMissed(int64(missed))
	}

	skills := p.norm.Normalize(rec.Skills)
	rec.Skills = skills

	id, err := store.PutCandidate(ctx, rec)
	if err != nil {
		engine.IncrIngestErrors()
		engine.IncrStoreWriteFails()
		return nil, fmt.Errorf("store candidate: %w", err)
	}
	engine.IncrStoreWrites()

	for _, skill := range skills {
		if err := store.LinkSkill(ctx, id, skill); err != nil {
			engine.IncrIngestErrors()
			return nil, fmt.Errorf("link skill %q: %w", skill, err)
		}
	}

	out := &IngestResult{
		CandidateID:  id,
		Name:         rec.Name,
		Skills:       skills,
		FieldsMissed: missed,
	}

	// Embedding is best-effort at ingestion time: the matcher lazily
	// recomputes missing vectors, so a provider outage here only degrades.
	vec, err := engine.EmbedText(ctx, PrepareText(rawText))
	switch {
	case err != nil:
		slog.Warn("ingest: embedding skipped",
			slog.Int64("candidate_id", id), slog.Any("error", err))
	case vec != nil:
		if err := store.PutEmbedding(ctx, id, vec, engine.EmbedModel()); err != nil {
			engine.IncrStoreWriteFails()
			slog.Warn("ingest: failed to store embedding",
				slog.Int64("candidate_id", id), slog.Any("error", err))
		} else {
			out.Embedded = true
		}
	}

	engine.CacheInvalidateAll()

	slog.Info("candidate ingested",
		slog.Int64("id", id),
		slog.String("name", rec.Name),
		slog.Int("skills", len(skills)),
		slog.Int("fields_missed", missed),
		slog.Bool("embedded", out.Embedded))
	return out, nil
}

// CSVReport summarizes one bulk CSV ingestion.
type CSVReport struct {
	Ingested int      `json:"ingested"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"` // first few row errors, for diagnosis
}

const maxCSVErrors = 10

// IngestCSV bulk-ingests résumés from a CSV stream. Recognized columns
// (case-insensitive): Resume_str / Resume / Text for the raw text,
// Category, and ID (used only for the fallback name). Row failures are
// tolerated and reported; a malformed header is fatal.
func IngestCSV(ctx context.Context, store Store, p *Parser, r io.Reader) (*CSVReport, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	textCol, categoryCol, idCol := -1, -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "resume_str", "resume", "text", "raw_text":
			if textCol < 0 {
				textCol = i
			}
		case "category":
			categoryCol = i
		case "id":
			idCol = i
		}
	}
	if textCol < 0 {
		return nil, fmt.Errorf("csv header has no resume text column (got %v)", header)
	}

	report := &CSVReport{}
	row := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			report.Failed++
			if len(report.Errors) < maxCSVErrors {
				report.Errors = append(report.Errors, fmt.Sprintf("row %d: %v", row, err))
			}
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		field := func(col int) string {
			if col >= 0 && col < len(record) {
				return record[col]
			}
			return ""
		}

		// Anonymized dumps carry no names; fall back to the source row ID.
		fallbackName := ""
		if rowID := strings.TrimSpace(field(idCol)); rowID != "" {
			fallbackName = "Candidate_" + rowID
		}

		_, err = ingestRecord(ctx, store, p, field(textCol), field(categoryCol), fallbackName)
		if err != nil {
			report.Failed++
			if len(report.Errors) < maxCSVErrors {
				report.Errors = append(report.Errors, fmt.Sprintf("row %d: %v", row, err))
			}
			continue
		}
		report.Ingested++
		if report.Ingested%100 == 0 {
			slog.Info("csv ingestion progress", slog.Int("ingested", report.Ingested))
		}
	}

	slog.Info("csv ingestion complete",
		slog.Int("ingested", report.Ingested), slog.Int("failed", report.Failed))
	return report, nil
}
