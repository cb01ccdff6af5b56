package extract

import (
	"regexp"
	"strings"
)

var (
	multiSpaceRe   = regexp.MustCompile(`\s+`)
	labelPrefixRe  = regexp.MustCompile(`^[A-Za-z][A-Za-z .]{0,20}:\s*`)
	leadingJunkRe  = regexp.MustCompile(`^[\s:\-–]+`)
	trailingFillRe = regexp.MustCompile(`[\s.,;:\-–]{2,}$`)
)

// CleanValue normalises a captured field value: a leftover "Label:" prefix
// is stripped, zero-width characters removed, whitespace (newlines
// included) collapsed, and leading dashes or colons and trailing filler
// runs trimmed.
func CleanValue(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\ufeff', '\u00ad':
			return -1
		case '\u00a0':
			return ' '
		}
		return r
	}, s)
	s = strings.TrimSpace(s)
	s = labelPrefixRe.ReplaceAllString(s, "")
	s = multiSpaceRe.ReplaceAllString(s, " ")
	s = leadingJunkRe.ReplaceAllString(s, "")
	s = trailingFillRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
