package cvs

import (
	"sort"
	"strings"
	"sync"

	"github.com/anatolykoptev/go_cvmatch/internal/engine"
)

// seedVocabulary is the starting controlled vocabulary of canonical skills.
// Grows at runtime as unresolved mentions are admitted; growth is the only
// source of change, so normalization stays idempotent per vocabulary snapshot.
var seedVocabulary = []string{
	"python", "java", "javascript", "typescript", "sql", "machine learning",
	"data analysis", "docker", "kubernetes", "aws", "azure", "gcp",
	"react", "angular", "vue", "node.js", "tensorflow", "pytorch",
	"git", "agile", "scrum", "project management", "c++", "c#",
	"ruby", "php", "swift", "kotlin", "go", "rust", "scala",
	"tableau", "power bi", "excel", "powerpoint", "word",
	"jira", "confluence", "slack", "salesforce",
	"oracle", "mongodb", "postgresql", "mysql", "redis",
	"spark", "hadoop", "kafka", "airflow", "jenkins",
	"ci/cd", "devops", "terraform", "ansible", "linux", "windows", "macos",
	"rest api", "graphql", "grpc", "microservices", "html", "css",
}

// aliases maps common shorthand mentions to their canonical skill.
var aliases = map[string]string{
	"js":          "javascript",
	"ts":          "typescript",
	"golang":      "go",
	"k8s":         "kubernetes",
	"postgres":    "postgresql",
	"psql":        "postgresql",
	"ml":          "machine learning",
	"reactjs":     "react",
	"react.js":    "react",
	"nodejs":      "node.js",
	"node":        "node.js",
	"vuejs":       "vue",
	"vue.js":      "vue",
	"angularjs":   "angular",
	"tf":          "tensorflow",
	"amazon web services": "aws",
	"google cloud":        "gcp",
	"gitlab ci":           "ci/cd",
	"github actions":      "ci/cd",
	"restful api":         "rest api",
	"restful apis":        "rest api",
	"rest apis":           "rest api",
	"ms excel":            "excel",
	"microsoft excel":     "excel",
}

// Normalizer owns the canonical skill vocabulary. All reads and appends go
// through it — there is no ambient global dictionary.
type Normalizer struct {
	mu    sync.RWMutex
	vocab map[string]bool
}

// NewNormalizer creates a normalizer seeded with the built-in vocabulary.
func NewNormalizer() *Normalizer {
	n := &Normalizer{vocab: make(map[string]bool, len(seedVocabulary))}
	for _, s := range seedVocabulary {
		n.vocab[s] = true
	}
	return n
}

// NewNormalizerWith seeds the vocabulary from an existing canonical skill
// list (e.g. skills already persisted in the store) on top of the built-ins.
func NewNormalizerWith(known []string) *Normalizer {
	n := NewNormalizer()
	for _, s := range known {
		if k := normalizeMention(s); k != "" {
			n.vocab[k] = true
		}
	}
	return n
}

// Canonical returns a sorted snapshot of the current vocabulary.
func (n *Normalizer) Canonical() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]string, 0, len(n.vocab))
	for s := range n.vocab {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Normalize canonicalizes raw skill mentions into a sorted, deduplicated set
// of canonical skills. Unresolved mentions are admitted into the vocabulary
// as new canonical skills, so normalizing the same mention twice always
// yields the same result.
func (n *Normalizer) Normalize(mentions []string) []string {
	seen := make(map[string]bool, len(mentions))
	var out []string

	n.mu.Lock()
	for _, m := range mentions {
		c := n.canonicalizeLocked(m)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	n.mu.Unlock()

	sort.Strings(out)
	return out
}

// canonicalizeLocked resolves one mention: exact vocabulary match, then the
// alias table, then admission as a new canonical skill. Caller holds n.mu.
func (n *Normalizer) canonicalizeLocked(mention string) string {
	m := normalizeMention(mention)
	if m == "" {
		return ""
	}
	if n.vocab[m] {
		return m
	}
	if canon, ok := aliases[m]; ok {
		n.vocab[canon] = true
		return canon
	}
	n.vocab[m] = true
	return m
}

// normalizeMention trims, lowercases, collapses internal whitespace, and
// strips punctuation from the token edges.
func normalizeMention(s string) string {
	s = strings.ToLower(engine.NormalizeSpace(s))
	s = strings.Trim(s, ".,;:!?()[]{}\"'`*-–—")
	return strings.TrimSpace(s)
}
