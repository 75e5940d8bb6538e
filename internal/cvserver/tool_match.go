package cvserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/anatolykoptev/go_cvmatch/internal/engine"
	"github.com/anatolykoptev/go_cvmatch/internal/engine/cvs"
	"github.com/anatolykoptev/go_cvmatch/internal/toolutil"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerMatch(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "cv_match",
		Description: "Rank all stored candidates against a job description. Hybrid mode fuses semantic (embedding cosine) and keyword overlap scores with a configurable weight; semantic mode uses embeddings only. Returns the ordered list with per-candidate sub-scores plus a count of candidates excluded for missing vectors.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input engine.CVMatchInput) (*mcp.CallToolResult, *cvs.RankOutput, error) {
		if input.JobText == "" {
			return nil, nil, errors.New("job_text is required")
		}
		store := cvs.GetStore()
		if store == nil {
			return nil, nil, errors.New("candidate store not configured")
		}

		weightKey := "default"
		if input.Weight != nil {
			weightKey = fmt.Sprintf("%.4f", *input.Weight)
		}
		cacheKey := engine.CacheKey("cv_match", input.JobText, input.Mode, weightKey,
			input.Category, fmt.Sprint(input.TopK))
		// Persisting writes job and match rows; never serve those from cache.
		if !input.Persist {
			if out, ok := toolutil.CacheLoadJSON[*cvs.RankOutput](ctx, cacheKey); ok {
				return nil, out, nil
			}
		}

		var out *cvs.RankOutput
		err := engine.TrackOperation(ctx, "cv_match", func(ctx context.Context) error {
			var rerr error
			out, rerr = cvs.RankCandidates(ctx, store, cvs.RankRequest{
				Job:      cvs.JobDescription{Title: input.Title, Category: input.Category, Text: input.JobText},
				Mode:     cvs.RankMode(input.Mode),
				Weight:   input.Weight,
				Category: input.Category,
				TopK:     input.TopK,
				Persist:  input.Persist,
			})
			return rerr
		})
		if err != nil {
			return nil, nil, err
		}

		if !input.Persist {
			toolutil.CacheStoreJSON(ctx, cacheKey, out)
		}
		return nil, out, nil
	})
}
