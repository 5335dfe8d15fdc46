package hub

import (
	"regexp"
	"strings"
)

var (
	leadingBlank  = regexp.MustCompile(`^\s*\n`)
	trailingBlank = regexp.MustCompile(`\n\s*$`)
	newlineRuns   = regexp.MustCompile(`\n{3,}`)
)

// CleanText normalizes a chat message: leading and trailing blank lines go,
// runs of three or more newlines collapse to two, and an all-whitespace
// message becomes empty. Indentation inside lines is left alone.
func CleanText(text string) string {
	text = leadingBlank.ReplaceAllString(text, "")
	text = trailingBlank.ReplaceAllString(text, "")
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return newlineRuns.ReplaceAllString(text, "\n\n")
}
