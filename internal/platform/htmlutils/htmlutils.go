// Package htmlutils turns HTML fragments from feeds and publisher pages into
// plain text suitable for storage and embedding.
package htmlutils

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	tagRegex        = regexp.MustCompile(`<(/?)([a-zA-Z0-9-]+)([^>]*)>`)
	blockRegex      = regexp.MustCompile(`(?i)</?(p|br|div|li|h[1-6]|tr)\b[^>]*>`)
	scriptRegex     = regexp.MustCompile(`(?is)<(script|style)\b[^>]*>.*?</(script|style)>`)
	whitespaceRegex = regexp.MustCompile(`[ \t\r\f\v]+`)
	newlinesRegex   = regexp.MustCompile(`\n{3,}`)
)

const ellipsis = "..."

// StripHTMLTags removes all HTML tags from text, keeping only the content.
func StripHTMLTags(text string) string {
	result := tagRegex.ReplaceAllString(text, "")
	result = html.UnescapeString(result)

	return strings.TrimSpace(result)
}

// ToText converts an HTML fragment to readable text. Block elements become
// line breaks, script and style bodies are dropped, and runs of blank
// space are collapsed.
func ToText(fragment string) string {
	s := scriptRegex.ReplaceAllString(fragment, "")
	s = blockRegex.ReplaceAllString(s, "\n")
	s = StripHTMLTags(s)

	return CollapseWhitespace(s)
}

// CollapseWhitespace squeezes horizontal whitespace to single spaces and
// keeps at most one blank line between paragraphs.
func CollapseWhitespace(s string) string {
	s = whitespaceRegex.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}

	s = strings.Join(lines, "\n")
	s = newlinesRegex.ReplaceAllString(s, "\n\n")

	return strings.TrimSpace(s)
}

// Truncate cuts s to at most maxRunes runes, appending "..." when it cut.
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}

	runes := []rune(s)

	return strings.TrimSpace(string(runes[:maxRunes])) + ellipsis
}
