package extraction

import (
	"regexp"
	"strings"
)

// Format is the document family guessed from normalized text.
type Format string

const (
	FormatReceipt Format = "receipt"
	FormatTable   Format = "table"
	FormatGeneric Format = "generic"
)

var (
	receiptSignatures = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:receipt|invoice|bill)\s*(?:date|#|no)`),
		regexp.MustCompile(`(?i)(?:description|item)\s*(?:unit\s*price|price|amount)`),
		regexp.MustCompile(`(?i)(?:subtotal|total|tax)`),
	}

	// All four column groups must appear, in this order.
	tableSignature = regexp.MustCompile(`(?i)(?:expense|income|transaction).*(?:rupees|amount).*date.*(?:note|description)`)
)

// ClassifyFormat picks the strategy family tried first. Receipt signatures
// are checked before the table signature; anything else is generic.
func ClassifyFormat(text string) Format {
	for _, re := range receiptSignatures {
		if re.MatchString(text) {
			return FormatReceipt
		}
	}
	if tableSignature.MatchString(text) {
		return FormatTable
	}
	return FormatGeneric
}

// DetectCurrency returns an ISO-4217 code hinted by currency symbols in text,
// or "" when none is present.
func DetectCurrency(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(text, "₹") || rupeeHint.MatchString(text):
		return "INR"
	case strings.Contains(text, "€") || strings.Contains(text, "EUR"):
		return "EUR"
	case strings.Contains(text, "£") || strings.Contains(text, "GBP"):
		return "GBP"
	case strings.Contains(text, "R$") || strings.Contains(text, "BRL"):
		return "BRL"
	case strings.Contains(text, "$") || strings.Contains(lower, "usd"):
		return "USD"
	}
	return ""
}

var rupeeHint = regexp.MustCompile(`(?i)\brs\.?\s*\d|\brupees?\b|\bINR\b`)
