package loe

import (
	"html"
	"regexp"
	"strings"
)

// Entity decoding can produce non-breaking spaces (&nbsp;), so the
// collapse pattern covers unicode space separators, not just ASCII \s.
var (
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`[\s\p{Zs}]+`)
)

// ExtractScheduleText flattens the raw HTML fragment the API embeds in
// its JSON payload into plain prose the parser can pattern-match.
//
// Tags are replaced with a single space (not removed outright) so that
// words on either side of a tag boundary do not run together. Entities
// are decoded after tag removal, and any run of whitespace, including
// newlines inside the markup, collapses to one space.
//
// An empty or missing fragment yields "", which downstream stages treat
// as "no schedule text available".
func ExtractScheduleText(raw string) string {
	if raw == "" {
		return ""
	}
	text := tagPattern.ReplaceAllString(raw, " ")
	text = html.UnescapeString(text)
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
