package extract

import (
	"regexp"

	"github.com/hazyhaar/ifscdir/branch"
)

// matcher pulls one field value out of container text.
type matcher func(text string) (string, bool)

// code matches re and returns its first group verbatim. Used for the
// fixed-shape identifiers, which are never cleaned.
func code(expr string) matcher {
	re := regexp.MustCompile(expr)
	return func(text string) (string, bool) {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return "", false
		}
		return m[1], true
	}
}

// value matches re, cuts the first group at the earliest stop match, and
// cleans the result. A value that cleans to nothing is no match.
func value(expr string, stop *regexp.Regexp) matcher {
	re := regexp.MustCompile(expr)
	return func(text string) (string, bool) {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			v := m[1]
			if stop != nil {
				if loc := stop.FindStringIndex(v); loc != nil {
					v = v[:loc[0]]
				}
			}
			if v = CleanValue(v); v != "" {
				return v, true
			}
		}
		return "", false
	}
}

// first runs matchers in order and returns the first non-empty capture.
func first(text string, ms []matcher) string {
	for _, m := range ms {
		if v, ok := m(text); ok {
			return v
		}
	}
	return ""
}

var (
	// labelStop ends a value at the next "Label:" on the same line.
	labelStop = regexp.MustCompile(`(?i)\b(?:IFSC|MICR|Address|Contact|Phone|Mobile|Tel|Telephone|Email|State|District|Branch|Office|Bank)\b[^:\n]{0,12}:`)

	// Loose stops cut at a bare keyword, for text without label colons.
	addressStop = regexp.MustCompile(`(?i)\b(?:Contact|Phone|Mobile|State|District|Branch|IFSC|MICR)\b`)
	contactStop = regexp.MustCompile(`(?i)\b(?:IFSC|MICR|Address)\b`)
	branchStop  = regexp.MustCompile(`(?i)\b(?:IFSC|MICR|Address)\b`)
)

// The site sometimes prints codes in lower case; Parse upper-cases them.
const ifscGroup = `((?i:` + branch.IFSCPattern + `))\b`

var (
	ifscMatchers = []matcher{
		code(`(?i:\bIFSC[ \t]*Code)[\s:.\-]*` + ifscGroup),
		code(`(?i:\bIFSC)[\s:.\-]*` + ifscGroup),
		code(`(?i:\bCode)[\s:.\-]*` + ifscGroup),
	}

	micrMatchers = []matcher{
		code(`(?i:\bMICR[ \t]*Code)[\s:.\-]*([0-9]{9})\b`),
		code(`(?i:\bMICR)[\s:.\-]*([0-9]{9})\b`),
		code(`\b([0-9]{9})\b`),
	}

	addressMatchers = []matcher{
		value(`(?i)\bAddress[ \t]*:[ \t]*([^\n]+)`, labelStop),
		value(`(?i)\bAddress[\s:]*([^\n]+)`, addressStop),
	}

	contactMatchers = []matcher{
		value(`(?i)\b(?:Contact(?:[ \t]*(?:No\.?|Number))?|Phone|Mobile|Tel(?:ephone)?)[ \t]*:[ \t]*([^\n]+)`, labelStop),
		value(`(?i)\b(?:Contact|Phone|Mobile|Tel)[\s:]*([^\n]+)`, contactStop),
		code(`\b([0-9]{10,12})\b`),
		code(`(\+?[0-9][0-9 ()\-]{8,14}[0-9])`),
	}

	branchMatchers = []matcher{
		value(`(?i)\bBranch(?:[ \t]*Name)?[ \t]*:[ \t]*([^\n]+)`, labelStop),
		value(`(?i)\bOffice[ \t]*:[ \t]*([^\n]+)`, labelStop),
		value(`(?i)\bBranch[\s:]*([^\n]+)`, branchStop),
	}
)

// Row-level fallbacks, applied to single table rows, paragraphs and divs
// when the container-wide matchers found nothing.
var (
	rowAddressMatcher = value(`(?i)\bAddress[\s:]*(.{20,200})`, labelStop)
	rowContactMatcher = value(`(?i)\b(?:Contact|Phone|Mobile)[\s:]*(.{5,50})`, labelStop)
	rowBranchMatcher  = value(`(?i)\bBranch[\s:]*(.{5,100})`, labelStop)
)
