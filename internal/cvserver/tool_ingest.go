package cvserver

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/anatolykoptev/go_cvmatch/internal/engine"
	"github.com/anatolykoptev/go_cvmatch/internal/engine/cvs"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerIngest(server *mcp.Server, parser *cvs.Parser) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "cv_ingest",
		Description: "Ingest one resume from raw text (plain or HTML). Extracts name, email, phone, education, experience and skills, normalizes the skills, stores the candidate and computes its embedding. Returns the new candidate ID and what was extracted.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input engine.CVIngestInput) (*mcp.CallToolResult, *cvs.IngestResult, error) {
		if input.RawText == "" {
			return nil, nil, errors.New("raw_text is required")
		}
		store := cvs.GetStore()
		if store == nil {
			return nil, nil, errors.New("candidate store not configured")
		}
		result, err := cvs.IngestResume(ctx, store, parser, input.RawText, input.Category)
		if err != nil {
			return nil, nil, err
		}
		return nil, result, nil
	})
}

func registerIngestCSV(server *mcp.Server, parser *cvs.Parser) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "cv_ingest_csv",
		Description: "Bulk-ingest resumes from a CSV file on the server (columns: Resume_str, optional Category and ID). Row failures are tolerated and reported. Returns counts of ingested and failed rows.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input engine.CVIngestCSVInput) (*mcp.CallToolResult, *cvs.CSVReport, error) {
		if input.Path == "" {
			return nil, nil, errors.New("path is required")
		}
		store := cvs.GetStore()
		if store == nil {
			return nil, nil, errors.New("candidate store not configured")
		}
		f, err := os.Open(input.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open csv: %w", err)
		}
		defer f.Close()

		var report *cvs.CSVReport
		if err := engine.TrackOperation(ctx, "cv_ingest_csv", func(ctx context.Context) error {
			var rerr error
			report, rerr = cvs.IngestCSV(ctx, store, parser, f)
			return rerr
		}); err != nil {
			return nil, nil, err
		}
		return nil, report, nil
	})
}
