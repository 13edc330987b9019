package analysis

import "strings"

// Normalize collapses every run of whitespace, newlines included, to a single
// space and trims both ends. It never fails and is idempotent.
func Normalize(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// Snippet returns the first n runes of text.
func Snippet(text string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range text {
		if count == n {
			return text[:i]
		}
		count++
	}
	return text
}
