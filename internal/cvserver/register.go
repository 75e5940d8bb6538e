// Package cvserver exposes the CV matching engine as MCP tools: résumé
// ingestion, candidate management, hybrid ranking, and skill gap analysis.
package cvserver

import (
	"github.com/anatolykoptev/go_cvmatch/internal/engine/cvs"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterTools registers all CV tools on the given MCP server: cv_ingest,
// cv_ingest_csv, cv_match, cv_candidate_get/list/delete, cv_skills_list,
// cv_skill_gap.
func RegisterTools(server *mcp.Server, parser *cvs.Parser) {
	registerIngest(server, parser)
	registerIngestCSV(server, parser)
	registerMatch(server)
	registerCandidateGet(server)
	registerCandidateList(server)
	registerCandidateDelete(server)
	registerSkillsList(server)
	registerSkillGap(server)
}
