package engine

// --- MCP tool input types ---

// CVIngestInput is the input for the cv_ingest tool.
type CVIngestInput struct {
	RawText  string `json:"raw_text" jsonschema:"Raw resume text (plain text or HTML)"`
	Category string `json:"category,omitempty" jsonschema:"Optional category label (e.g. INFORMATION-TECHNOLOGY)"`
}

// CVIngestCSVInput is the input for the cv_ingest_csv tool.
type CVIngestCSVInput struct {
	Path string `json:"path" jsonschema:"Path to a CSV file with Resume_str and optional Category/ID columns"`
}

// CVMatchInput is the input for the cv_match tool.
type CVMatchInput struct {
	JobText  string   `json:"job_text" jsonschema:"Job description text to rank candidates against"`
	Title    string   `json:"title,omitempty" jsonschema:"Optional job title (stored when persist=true)"`
	Mode     string   `json:"mode,omitempty" jsonschema:"Scoring mode: hybrid (default) or semantic"`
	Weight   *float64 `json:"weight,omitempty" jsonschema:"Semantic weight in [0,1]; default 0.7"`
	Category string   `json:"category,omitempty" jsonschema:"Optional candidate pool filter by category"`
	TopK     int      `json:"top_k,omitempty" jsonschema:"Return only the best K candidates; 0 = all"`
	Persist  bool     `json:"persist,omitempty" jsonschema:"Store the job description and match rows"`
}

// CVCandidateGetInput is the input for the cv_candidate_get tool.
type CVCandidateGetInput struct {
	ID int64 `json:"id" jsonschema:"Candidate ID"`
}

// CVCandidateListInput is the input for the cv_candidate_list tool.
type CVCandidateListInput struct {
	Category string `json:"category,omitempty" jsonschema:"Filter by category label"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Maximum number of candidates to return; 0 = all"`
}

// CVCandidateDeleteInput is the input for the cv_candidate_delete tool.
type CVCandidateDeleteInput struct {
	ID int64 `json:"id" jsonschema:"Candidate ID to delete"`
}

// CVSkillsListInput is the input for the cv_skills_list tool.
type CVSkillsListInput struct{}

// CVSkillGapInput is the input for the cv_skill_gap tool.
type CVSkillGapInput struct {
	CandidateID int64  `json:"candidate_id" jsonschema:"Stored candidate ID"`
	JobText     string `json:"job_text" jsonschema:"Job description text to compare against"`
}
