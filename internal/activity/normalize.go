package activity

import (
	"regexp"
	"strings"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// Normalize trims and collapses internal whitespace to single spaces.
// Case is preserved; app names and tags are displayed as captured.
func Normalize(s string) string {
	return whitespaceRegex.ReplaceAllString(strings.TrimSpace(s), " ")
}
