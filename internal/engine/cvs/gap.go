package cvs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anatolykoptev/go_cvmatch/internal/engine"
)

// SkillGapItem describes one job requirement the candidate lacks, with
// learning guidance.
type SkillGapItem struct {
	Skill        string `json:"skill"`
	Category     string `json:"category"`
	Priority     string `json:"priority"`
	LearningTime string `json:"learning_time"`
	Suggestion   string `json:"suggestion"`
}

// SkillGapResult is the output of a candidate-vs-job gap analysis. The
// keyword fields are always computed; the guidance fields require an LLM.
type SkillGapResult struct {
	CandidateID    int64          `json:"candidate_id"`
	KeywordScore   float64        `json:"keyword_score"`
	MatchingSkills []string       `json:"matching_skills"`
	MissingSkills  []SkillGapItem `json:"missing_skills"`
	LearningPlan   string         `json:"learning_plan,omitempty"`
	Summary        string         `json:"summary,omitempty"`
}

const skillGapPrompt = `You are a career advisor analyzing skill gaps between a candidate and a job.

RESUME:
%s

JOB DESCRIPTION:
%s

COMPUTED KEYWORD SCORE: %.2f
MATCHING KEYWORDS: %s
MISSING KEYWORDS: %s

For each missing keyword above, provide a detailed skill gap analysis:

1. Categorize each missing skill:
   - "language" (programming languages)
   - "framework" (libraries, frameworks, platforms)
   - "devops" (infrastructure, CI/CD, cloud, containers)
   - "soft_skill" (communication, leadership, collaboration)
   - "domain" (industry knowledge, domain expertise)

2. Prioritize each skill:
   - "critical" — explicitly required, mentioned multiple times or in requirements section
   - "high" — mentioned in the JD, clearly important for the role
   - "medium" — nice-to-have or implied by other requirements

3. Estimate realistic learning time (e.g. "2-4 weeks", "1-3 months", "3-6 months")

4. Suggest how to learn or demonstrate each skill (courses, projects, certifications, etc.)

5. Create a prioritized learning plan roadmap — write 2-4 sentences describing the recommended learning path, critical skills first.

6. Write a brief summary (2-3 sentences) of the candidate's overall fit and the most important gaps to address.

Return a JSON object with this exact structure:
{
  "missing_skills": [
    {
      "skill": "<skill name>",
      "category": "<language|framework|devops|soft_skill|domain>",
      "priority": "<critical|high|medium>",
      "learning_time": "<estimated time>",
      "suggestion": "<how to learn or demonstrate this skill>"
    }
  ],
  "learning_plan": "<prioritized learning roadmap>",
  "summary": "<overall fit assessment and key gaps>"
}

Return ONLY the JSON object, no markdown, no explanation.`

// AnalyzeSkillGap compares a stored candidate against a job description:
// deterministic keyword overlap first, then optional LLM guidance for the
// missing skills. When no LLM is configured the keyword analysis is still
// returned, with plain missing-skill entries and no narrative.
func AnalyzeSkillGap(ctx context.Context, store Store, candidateID int64, jobText string) (*SkillGapResult, error) {
	if strings.TrimSpace(jobText) == "" {
		return nil, errors.New("job description text is required")
	}

	c, err := store.GetCandidate(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("load candidate %d: %w", candidateID, err)
	}

	jobTokens := engine.Tokenize(PrepareText(jobText))
	candTokens := candidateTokens(*c)

	var matching, missing []string
	for _, t := range engine.SortedTokens(jobTokens) {
		if candTokens[t] {
			matching = append(matching, t)
		} else {
			missing = append(missing, t)
		}
	}

	result := &SkillGapResult{
		CandidateID:    candidateID,
		KeywordScore:   keywordScore(jobTokens, candTokens),
		MatchingSkills: matching,
	}

	if len(missing) == 0 {
		result.Summary = "The candidate's profile covers every keyword in the job description."
		return result, nil
	}

	narrative, err := skillGapNarrative(ctx, c.RawText, jobText, result.KeywordScore, matching, missing)
	if err != nil {
		if !errors.Is(err, engine.ErrLLMDisabled) {
			return nil, err
		}
		// Keyword-only fallback: report the gaps without guidance.
		for _, m := range missing {
			result.MissingSkills = append(result.MissingSkills, SkillGapItem{Skill: m})
		}
		return result, nil
	}

	result.MissingSkills = narrative.MissingSkills
	result.LearningPlan = narrative.LearningPlan
	result.Summary = narrative.Summary
	return result, nil
}

func skillGapNarrative(ctx context.Context, resume, jobText string, score float64, matching, missing []string) (*SkillGapResult, error) {
	prompt := fmt.Sprintf(skillGapPrompt,
		engine.TruncateRunes(resume, 4000, ""),
		engine.TruncateRunes(jobText, 3000, ""),
		score,
		strings.Join(matching, ", "),
		strings.Join(missing, ", "),
	)

	raw, err := engine.CallLLM(ctx, prompt)
	if err != nil {
		if errors.Is(err, engine.ErrLLMDisabled) {
			return nil, err
		}
		return nil, fmt.Errorf("skill_gap LLM: %w", err)
	}

	var out SkillGapResult
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("skill_gap parse: %w (raw: %s)", err, engine.TruncateRunes(raw, 200, "..."))
	}
	return &out, nil
}
