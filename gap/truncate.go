package gap

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const ellipsis = "..."

// truncate shortens s to at most max runes. A cut is marked with "..." and
// the marker counts toward max.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	rs := []rune(s)
	if max <= len(ellipsis) {
		return string(rs[:max])
	}
	return strings.TrimRightFunc(string(rs[:max-len(ellipsis)]), unicode.IsSpace) + ellipsis
}

// oneLine collapses all whitespace runs, newlines included, to single spaces.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
