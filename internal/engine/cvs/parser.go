package cvs

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/anatolykoptev/go_cvmatch/internal/engine"
)

// Parser extracts structured candidate records from raw résumé text.
// Extraction never fails: each field independently degrades to empty, and the
// raw text is always preserved.
type Parser struct {
	norm *Normalizer
}

// NewParser creates a parser backed by the given skill vocabulary owner.
func NewParser(n *Normalizer) *Parser {
	return &Parser{norm: n}
}

// A strategy is one independent way to extract a field. Strategies run in
// order; the first success wins.
type strategy func(text string) (string, bool)

var (
	emailRe = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phoneRe = regexp.MustCompile(`(\+\d{1,3}[ \-]?\d{1,4}(?:[ \-]?\d{2,4}){1,3}|\(\d{3}\)[ \-]?\d{3}[ \-]?\d{4}|\d{3}[ \-]?\d{3}[ \-]?\d{4})`)

	yearsOfExpRe   = regexp.MustCompile(`(\d{1,2})\+?\s*years?\s*(?:of\s*)?experience`)
	expColonRe     = regexp.MustCompile(`experience\s*:?\s*(\d{1,2})\+?\s*years?`)
	dateRangeRe    = regexp.MustCompile(`\b(19\d{2}|20\d{2})\s*(?:-|–|—|to)\s*(19\d{2}|20\d{2}|present|current|now)\b`)
	skillListSplit = regexp.MustCompile(`[,;|•·\n\t]+`)
)

// maxPlausibleYears bounds the years-of-experience estimate. Larger values
// are treated as parse noise and discarded.
const maxPlausibleYears = 50

// Extract parses one raw résumé into a CandidateRecord. The second return
// value is the number of fields that could not be resolved (logged by the
// ingestion pipeline, never fatal).
func (p *Parser) Extract(rawText string) (CandidateRecord, int) {
	text := PrepareText(rawText)
	rec := CandidateRecord{RawText: rawText}

	missed := 0
	runFirst := func(strategies []strategy) string {
		for _, s := range strategies {
			if v, ok := s(text); ok {
				return v
			}
		}
		missed++
		return ""
	}

	rec.Name = runFirst([]strategy{nameFromFirstLine, nameFromScan})
	rec.Email = runFirst([]strategy{emailFromRegex})
	rec.Phone = runFirst([]strategy{phoneFromRegex})
	rec.Education = runFirst([]strategy{educationFromSection, educationFromKeywords})
	rec.Experience = runFirst([]strategy{experienceFromSection})

	if years, ok := extractExperienceYears(text); ok {
		rec.ExperienceYears = &years
	} else {
		missed++
	}

	rec.Skills = p.extractSkills(text)
	if len(rec.Skills) == 0 {
		missed++
	}

	return rec, missed
}

// --- name ---

// plausibleName reports whether a line looks like a person's name:
// 2-4 capitalized words, letters only (plus . ' -), no digits, no '@'.
func plausibleName(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" || len(line) > 60 || strings.ContainsAny(line, "@0123456789") {
		return false
	}
	words := strings.Fields(line)
	if len(words) < 2 || len(words) > 4 {
		return false
	}
	for _, w := range words {
		runes := []rune(w)
		if !unicode.IsUpper(runes[0]) {
			return false
		}
		for _, r := range runes {
			if !unicode.IsLetter(r) && r != '.' && r != '\'' && r != '-' {
				return false
			}
		}
	}
	return true
}

func nameFromFirstLine(text string) (string, bool) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, isHeader := sectionHeaderName(line); isHeader {
			return "", false
		}
		if plausibleName(line) {
			return line, true
		}
		return "", false // first non-empty line is something else; let the scan try
	}
	return "", false
}

func nameFromScan(text string) (string, bool) {
	seen := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		seen++
		if seen > 10 {
			break
		}
		if _, isHeader := sectionHeaderName(line); isHeader {
			continue
		}
		if plausibleName(line) {
			return line, true
		}
	}
	return "", false
}

// --- email / phone ---

// emailFromRegex accepts the first plausible local@domain match. No mailbox
// verification is attempted.
func emailFromRegex(text string) (string, bool) {
	if m := emailRe.FindString(text); m != "" {
		return m, true
	}
	return "", false
}

func phoneFromRegex(text string) (string, bool) {
	if m := phoneRe.FindString(text); m != "" {
		return strings.TrimSpace(m), true
	}
	return "", false
}

// --- sections ---

// sectionHeaders maps recognized header text to a canonical section name.
var sectionHeaders = map[string]string{
	"skills": "skills", "technical skills": "skills", "core competencies": "skills",
	"key skills": "skills", "skills & abilities": "skills",
	"education": "education", "academic": "education", "academics": "education",
	"academic background": "education", "qualifications": "education",
	"experience": "experience", "work experience": "experience",
	"professional experience": "experience", "employment": "experience",
	"employment history": "experience", "work history": "experience",
	"projects": "projects", "certifications": "certifications",
	"summary": "summary", "objective": "summary", "profile": "summary",
	"contact": "contact", "languages": "languages", "interests": "interests",
	"references": "references", "achievements": "achievements",
}

// sectionHeaderName canonicalizes a line if it is a recognized section header.
func sectionHeaderName(line string) (string, bool) {
	s := strings.TrimSpace(line)
	s = strings.TrimSuffix(s, ":")
	s = strings.ToLower(engine.NormalizeSpace(s))
	if len(s) > 40 {
		return "", false
	}
	name, ok := sectionHeaders[s]
	return name, ok
}

// captureSection returns the lines following a header of the wanted section,
// up to the next recognized header or end of text.
func captureSection(text, want string) (string, bool) {
	lines := strings.Split(text, "\n")
	var out []string
	in := false
	for _, line := range lines {
		if name, ok := sectionHeaderName(line); ok {
			if in {
				break
			}
			in = name == want
			continue
		}
		if in {
			out = append(out, strings.TrimSpace(line))
		}
	}
	joined := strings.TrimSpace(strings.Join(out, "\n"))
	return joined, joined != ""
}

func educationFromSection(text string) (string, bool) {
	return captureSection(text, "education")
}

// educationKeywords drive the fallback line capture when no Education header
// exists (original résumés frequently inline degrees).
var educationKeywords = []string{
	"bachelor", "master", "phd", "b.sc", "m.sc", "mba",
	"university", "college", "institute", "degree",
}

func educationFromKeywords(text string) (string, bool) {
	lines := strings.Split(text, "\n")
	picked := make(map[int]bool)
	for i, line := range lines {
		lower := strings.ToLower(line)
		for _, kw := range educationKeywords {
			if strings.Contains(lower, kw) {
				// one line of context on each side
				for j := max(0, i-1); j <= min(len(lines)-1, i+1); j++ {
					picked[j] = true
				}
				break
			}
		}
	}
	if len(picked) == 0 {
		return "", false
	}
	var out []string
	for i, line := range lines {
		if picked[i] {
			if t := strings.TrimSpace(line); t != "" {
				out = append(out, t)
			}
		}
	}
	return strings.Join(out, "\n"), len(out) > 0
}

func experienceFromSection(text string) (string, bool) {
	return captureSection(text, "experience")
}

// extractExperienceYears estimates years of experience. All candidate values
// (explicit "N years" mentions and date-range spans) are collected and the
// maximum plausible one wins, bounded to [0, maxPlausibleYears].
func extractExperienceYears(text string) (int, bool) {
	lower := strings.ToLower(text)
	best := -1

	consider := func(n int) {
		if n >= 0 && n <= maxPlausibleYears && n > best {
			best = n
		}
	}

	for _, re := range []*regexp.Regexp{yearsOfExpRe, expColonRe} {
		for _, m := range re.FindAllStringSubmatch(lower, -1) {
			if n, err := strconv.Atoi(m[1]); err == nil {
				consider(n)
			}
		}
	}

	nowYear := time.Now().UTC().Year()
	for _, m := range dateRangeRe.FindAllStringSubmatch(lower, -1) {
		start, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		end := nowYear
		if y, err := strconv.Atoi(m[2]); err == nil {
			end = y
		}
		if end >= start {
			consider(end - start)
		}
	}

	if best < 0 {
		return 0, false
	}
	return best, true
}

// --- skills ---

// extractSkills scans the vocabulary against the full text (word-boundary,
// case-insensitive), then adds items from a "Skills" section list if present.
// Duplicates collapse to one mention.
func (p *Parser) extractSkills(text string) []string {
	lower := strings.ToLower(text)
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		key := normalizeMention(s)
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, s)
	}

	for _, skill := range p.norm.Canonical() {
		if containsToken(lower, skill) {
			add(skill)
		}
	}

	if section, ok := captureSection(text, "skills"); ok {
		for _, item := range skillListSplit.Split(section, -1) {
			item = strings.TrimSpace(item)
			if n := len([]rune(item)); n >= 2 && n <= 40 {
				add(item)
			}
		}
	}

	return out
}

// containsToken reports whether needle occurs in haystack on word boundaries.
// Both must be lowercase. Handles tokens regexp \b cannot ("c++", "c#",
// "node.js", "ci/cd").
func containsToken(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	for start := 0; ; {
		idx := strings.Index(haystack[start:], needle)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(needle)
		beforeOK := idx == 0 || !isWordChar(rune(haystack[idx-1]))
		afterOK := end == len(haystack) || !isWordChar(rune(haystack[end]))
		if beforeOK && afterOK {
			return true
		}
		start = idx + 1
	}
}

func isWordChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
