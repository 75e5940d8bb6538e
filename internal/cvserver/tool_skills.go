package cvserver

import (
	"context"
	"errors"

	"github.com/anatolykoptev/go_cvmatch/internal/engine"
	"github.com/anatolykoptev/go_cvmatch/internal/engine/cvs"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// SkillsListOutput is the canonical skill vocabulary as persisted.
type SkillsListOutput struct {
	Skills []string `json:"skills"`
	Total  int      `json:"total"`
}

func registerSkillsList(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "cv_skills_list",
		Description: "List the canonical skill vocabulary accumulated from all ingested resumes, sorted alphabetically.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ engine.CVSkillsListInput) (*mcp.CallToolResult, SkillsListOutput, error) {
		store := cvs.GetStore()
		if store == nil {
			return nil, SkillsListOutput{}, errors.New("candidate store not configured")
		}
		skills, err := store.ListSkills(ctx)
		if err != nil {
			return nil, SkillsListOutput{}, err
		}
		return nil, SkillsListOutput{Skills: skills, Total: len(skills)}, nil
	})
}
