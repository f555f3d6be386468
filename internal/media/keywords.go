package media

import (
	"regexp"
	"strings"
)

// keywordSeparator matches any run of the accepted keyword delimiters:
// comma, fullwidth (Chinese) comma, semicolon, hash, or whitespace.
var keywordSeparator = regexp.MustCompile(`[,，;#\s]+`)

// ParseKeywords splits a raw keyword string into normalized tokens:
// lower-cased, trimmed, empties dropped, and de-duplicated while
// preserving first-seen order.
func ParseKeywords(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}

	seen := make(map[string]bool)
	keywords := make([]string, 0)
	for _, token := range keywordSeparator.Split(raw, -1) {
		normalized := strings.ToLower(strings.TrimSpace(token))
		if normalized == "" || seen[normalized] {
			continue
		}

		seen[normalized] = true
		keywords = append(keywords, normalized)
	}

	return keywords
}

// NormalizeKeywords produces the canonical comma-joined form in which
// keywords are persisted on a video record.
func NormalizeKeywords(raw string) string {
	return strings.Join(ParseKeywords(raw), ",")
}
