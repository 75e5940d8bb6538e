package cvserver

import (
	"context"
	"errors"

	"github.com/anatolykoptev/go_cvmatch/internal/engine"
	"github.com/anatolykoptev/go_cvmatch/internal/engine/cvs"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerSkillGap(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "cv_skill_gap",
		Description: "Analyze skill gaps between a stored candidate and a job description. Returns keyword score, matching skills, missing skills with priority and learning time estimates, and a prioritized learning plan (guidance requires a configured LLM; keyword analysis always works).",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input engine.CVSkillGapInput) (*mcp.CallToolResult, *cvs.SkillGapResult, error) {
		if input.CandidateID <= 0 {
			return nil, nil, errors.New("candidate_id is required")
		}
		if input.JobText == "" {
			return nil, nil, errors.New("job_text is required")
		}
		store := cvs.GetStore()
		if store == nil {
			return nil, nil, errors.New("candidate store not configured")
		}
		result, err := cvs.AnalyzeSkillGap(ctx, store, input.CandidateID, input.JobText)
		if err != nil {
			return nil, nil, err
		}
		return nil, result, nil
	})
}
