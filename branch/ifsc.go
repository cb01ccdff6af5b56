package branch

import (
	"regexp"
	"strings"
)

// IFSC codes are four bank letters followed by either a zero and six
// alphanumerics (branch suffix) or seven digits.
var ifscRe = regexp.MustCompile(`^[A-Z]{4}(?:0[A-Z0-9]{6}|[0-9]{7})$`)

// IFSCPattern is the unanchored routing-code shape, for embedding in
// larger expressions.
const IFSCPattern = `[A-Z]{4}(?:0[A-Z0-9]{6}|[0-9]{7})`

// ValidIFSC reports whether code is a well-formed IFSC routing code.
// Matching is case-sensitive: lower-case codes are rejected.
func ValidIFSC(code string) bool {
	return ifscRe.MatchString(code)
}

// Labels that the site uses as the placeholder entry of a dropdown.
var placeholderLabels = map[string]bool{
	"State":    true,
	"District": true,
	"Branch":   true,
}

// Prompt words that open a placeholder entry ("Select Bank", "-- Choose
// State --", "See all"). They must stand as a whole word: SEELAMPUR and
// SELECTED COLONY are branches.
var promptWords = []string{"select", "choose", "see"}

// IsPlaceholder reports whether o is the "choose one" entry rather than a
// real choice.
func IsPlaceholder(o Option) bool {
	if strings.TrimSpace(o.Code) == "" {
		return true
	}
	label := strings.TrimSpace(o.Label)
	if placeholderLabels[label] {
		return true
	}
	lower := strings.ToLower(label)
	if strings.HasPrefix(lower, "--") {
		return true
	}
	for _, w := range promptWords {
		if !strings.HasPrefix(lower, w) {
			continue
		}
		rest := lower[len(w):]
		if rest == "" || !isLetter(rest[0]) {
			return true
		}
	}
	return false
}

func isLetter(b byte) bool { return b >= 'a' && b <= 'z' }

// FilterOptions drops placeholder entries and trims labels, keeping order.
func FilterOptions(raw []Option) []Option {
	out := make([]Option, 0, len(raw))
	for _, o := range raw {
		if IsPlaceholder(o) {
			continue
		}
		out = append(out, Option{Code: strings.TrimSpace(o.Code), Label: strings.TrimSpace(o.Label)})
	}
	return out
}
