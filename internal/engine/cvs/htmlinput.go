package cvs

import (
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"
)

var htmlTagRe = regexp.MustCompile(`<[^>]+>`)

// PrepareText normalizes raw résumé or job input before extraction:
// line endings, non-breaking spaces, and HTML payloads (uploads frequently
// arrive as exported HTML). The stored raw text is never modified — only the
// text fed to the extractors.
func PrepareText(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\u00a0", " ")

	if looksLikeHTML(s) {
		if md, err := htmltomarkdown.ConvertString(s); err == nil && strings.TrimSpace(md) != "" {
			return md
		}
		// Conversion failed; at least strip tags.
		return htmlTagRe.ReplaceAllString(s, " ")
	}
	return s
}

// looksLikeHTML tokenizes a prefix of s and reports whether it contains real
// element markup. Stray '<' in plain text does not trigger conversion.
func looksLikeHTML(s string) bool {
	if !strings.Contains(s, "<") {
		return false
	}
	probe := s
	if len(probe) > 4096 {
		probe = probe[:4096]
	}
	z := html.NewTokenizer(strings.NewReader(probe))
	tags := 0
	for i := 0; i < 64; i++ {
		switch z.Next() {
		case html.ErrorToken:
			return tags >= 2
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "html", "body", "head", "div", "p", "br", "ul", "ol", "li",
				"span", "table", "tr", "td", "h1", "h2", "h3", "b", "i", "strong", "em", "a":
				tags++
				if tags >= 2 {
					return true
				}
			}
		}
	}
	return tags >= 2
}
