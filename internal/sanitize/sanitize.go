// Package sanitize cleans free text arriving from API callers before it is
// stored on graph nodes and later returned to agents over MCP. It strips
// control characters, markup tags and code fences, and caps length.
package sanitize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxTextLength is the maximum allowed length for free-text properties
// such as activity descriptions.
const MaxTextLength = 2000

// MaxSlugLength is the maximum allowed length for slugs such as activity types.
const MaxSlugLength = 64

var (
	// reXMLTag matches XML/HTML tags including those with attributes and self-closing tags.
	// It also matches XML processing instructions like <?xml ...?>.
	reXMLTag = regexp.MustCompile(`<[/?!]?[a-zA-Z][a-zA-Z0-9]*(?:\s+[^>]*)?/?>|<\?[^?]*\?>`)

	// reMarkdownHeading matches markdown headings at the start of a line.
	reMarkdownHeading = regexp.MustCompile(`(?m)^#{1,6}\s+`)

	reTripleBacktick    = regexp.MustCompile("```+")
	reExcessiveNewlines = regexp.MustCompile(`\n{3,}`)
	reRepeatedSep       = regexp.MustCompile(`[-_]{2,}`)
)

// Text sanitizes free text for storage. The pipeline runs in this order:
//  1. Strip ASCII control characters except \n and \t
//  2. Strip XML/HTML tags
//  3. Replace markdown headings with list markers
//  4. Collapse code fences to a single backtick
//  5. Collapse 3+ newlines to 2
//  6. Trim whitespace
//  7. Truncate to MaxTextLength
func Text(input string) string {
	if input == "" {
		return ""
	}

	s := stripControlChars(input)
	s = reXMLTag.ReplaceAllString(s, "")
	s = reMarkdownHeading.ReplaceAllString(s, "- ")
	s = reTripleBacktick.ReplaceAllString(s, "`")
	s = reExcessiveNewlines.ReplaceAllString(s, "\n\n")
	s = strings.TrimSpace(s)

	if len(s) > MaxTextLength {
		s = truncateRunes(s, MaxTextLength) + "..."
	}
	return s
}

// Slug lowercases input and keeps only [a-z0-9-_], mapping spaces to
// underscores. Runs of separators collapse to the first one.
func Slug(input string) string {
	if input == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range strings.ToLower(strings.TrimSpace(input)) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	s := reRepeatedSep.ReplaceAllStringFunc(b.String(), func(m string) string { return m[:1] })

	if len(s) > MaxSlugLength {
		s = s[:MaxSlugLength]
	}
	return s
}

// stripControlChars removes ASCII control characters (0x00-0x1F) from the string,
// except for newline (0x0A) and tab (0x09) which are preserved.
func stripControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 && r != '\n' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// truncateRunes cuts s, which is longer than n bytes, to at most n bytes
// without splitting a rune.
func truncateRunes(s string, n int) string {
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
