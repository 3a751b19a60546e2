package app

import "strings"

const (
	minSignificantDigits = 7
	maxSignificantDigits = 15
)

// PhoneNormalizer canonicalizes loosely formatted sender numbers into a
// stable E.164-like comparison key: "+" followed by digits only. Numbers that
// arrive without a country code are assumed to belong to the configured
// default region; that assumption is a deployment setting, never inferred
// per call.
type PhoneNormalizer struct {
	defaultRegionCode string
}

// NewPhoneNormalizer creates a normalizer for the given default region
// calling code, e.g. "1" for NANP or "44" for the UK.
func NewPhoneNormalizer(defaultRegionCode string) *PhoneNormalizer {
	return &PhoneNormalizer{defaultRegionCode: defaultRegionCode}
}

// Normalize parses raw into canonical form. Accepted separators are spaces,
// dots, slashes, hyphens and parentheses; an international prefix may be "+"
// or "00". Returns ok=false when the input cannot be resolved to a plausible
// number: empty, non-numeric after stripping separators, or outside the
// 7..15 significant digit range. Pure and deterministic, so the result is
// idempotent: normalizing a canonical number yields itself.
func (n *PhoneNormalizer) Normalize(raw string) (string, bool) {
	s := strings.TrimSpace(raw)

	international := false
	if strings.HasPrefix(s, "+") {
		international = true
		s = s[1:]
	} else if strings.HasPrefix(s, "00") {
		international = true
		s = s[2:]
	}

	var digits strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.' || r == '/':
			// separator
		default:
			return "", false
		}
	}

	d := digits.String()
	if len(d) < minSignificantDigits || len(d) > maxSignificantDigits {
		return "", false
	}

	if international {
		return "+" + d, true
	}

	// Domestic form. A number long enough to already carry the default
	// region code is taken as fully qualified; anything else gets the
	// region code prepended.
	if strings.HasPrefix(d, n.defaultRegionCode) && len(d) >= len(n.defaultRegionCode)+10 {
		return "+" + d, true
	}
	if len(d)+len(n.defaultRegionCode) > maxSignificantDigits {
		return "", false
	}
	return "+" + n.defaultRegionCode + d, true
}
