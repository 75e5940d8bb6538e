package cvserver

import (
	"context"
	"errors"

	"github.com/anatolykoptev/go_cvmatch/internal/engine"
	"github.com/anatolykoptev/go_cvmatch/internal/engine/cvs"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerCandidateGet(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "cv_candidate_get",
		Description: "Get one stored candidate by ID: extracted fields and canonical skills.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input engine.CVCandidateGetInput) (*mcp.CallToolResult, *cvs.Candidate, error) {
		if input.ID <= 0 {
			return nil, nil, errors.New("id is required")
		}
		store := cvs.GetStore()
		if store == nil {
			return nil, nil, errors.New("candidate store not configured")
		}
		c, err := store.GetCandidate(ctx, input.ID)
		if err != nil {
			return nil, nil, err
		}
		return nil, c, nil
	})
}

// CandidateListOutput wraps the candidate list with its total count.
type CandidateListOutput struct {
	Candidates []cvs.Candidate `json:"candidates"`
	Total      int             `json:"total"`
}

func registerCandidateList(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "cv_candidate_list",
		Description: "List stored candidates, optionally filtered by category and limited in count.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input engine.CVCandidateListInput) (*mcp.CallToolResult, CandidateListOutput, error) {
		store := cvs.GetStore()
		if store == nil {
			return nil, CandidateListOutput{}, errors.New("candidate store not configured")
		}
		list, err := store.ListCandidates(ctx, cvs.ListFilter{Category: input.Category, Limit: input.Limit})
		if err != nil {
			return nil, CandidateListOutput{}, err
		}
		return nil, CandidateListOutput{Candidates: list, Total: len(list)}, nil
	})
}

// CandidateDeleteOutput confirms a deletion.
type CandidateDeleteOutput struct {
	ID      int64 `json:"id"`
	Deleted bool  `json:"deleted"`
}

func registerCandidateDelete(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "cv_candidate_delete",
		Description: "Delete a stored candidate and its skill links, embedding and match rows.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input engine.CVCandidateDeleteInput) (*mcp.CallToolResult, CandidateDeleteOutput, error) {
		if input.ID <= 0 {
			return nil, CandidateDeleteOutput{}, errors.New("id is required")
		}
		store := cvs.GetStore()
		if store == nil {
			return nil, CandidateDeleteOutput{}, errors.New("candidate store not configured")
		}
		if err := store.DeleteCandidate(ctx, input.ID); err != nil {
			return nil, CandidateDeleteOutput{}, err
		}
		engine.CacheInvalidateAll()
		return nil, CandidateDeleteOutput{ID: input.ID, Deleted: true}, nil
	})
}
