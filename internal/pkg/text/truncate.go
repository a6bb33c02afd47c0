package text

import "strings"

func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// Snippet collapses whitespace runs to single spaces and truncates, for
// quoting model output inside one log line.
func Snippet(s string, max int) string {
	return Truncate(strings.Join(strings.Fields(s), " "), max)
}
