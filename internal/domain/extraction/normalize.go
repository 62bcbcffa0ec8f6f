package extraction

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	nonWord       = regexp.MustCompile(`[^\w\s]`)
	headerNoise   = regexp.MustCompile(`(?i)\b(?:amount|date|note|table|expense|rupees?)\b`)
)

// NormalizeText collapses every whitespace run, newlines included, into a
// single space and trims the result. Every strategy works on this form.
func NormalizeText(raw string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(raw, " "))
}

func collapseSpaces(s string) string {
	return NormalizeText(s)
}

// dropPunctuation removes non-word characters outright.
func dropPunctuation(s string) string {
	return strings.TrimSpace(nonWord.ReplaceAllString(s, ""))
}

// blankPunctuation turns non-word characters into spaces.
func blankPunctuation(s string) string {
	return collapseSpaces(nonWord.ReplaceAllString(s, " "))
}

// stripHeaderNoise removes table header words such as "amount" or "rupees".
func stripHeaderNoise(s string) string {
	return collapseSpaces(headerNoise.ReplaceAllString(s, ""))
}

// parseAmount parses a plain numeric token.
func parseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(strings.TrimSuffix(s, "."))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// isNumeric reports whether s parses as a number.
func isNumeric(s string) bool {
	_, ok := parseAmount(s)
	return ok
}
