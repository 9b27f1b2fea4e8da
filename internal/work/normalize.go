package work

import (
	"regexp"
	"strings"
)

// whitespaceRegex matches one or more whitespace characters
var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeLabel folds a "Title (Author)" entry into a comparison key:
// trimmed, lowercased, internal whitespace collapsed to single spaces.
// Two entries naming the same work with different spacing or case share a key.
func NormalizeLabel(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return whitespaceRegex.ReplaceAllString(s, " ")
}
