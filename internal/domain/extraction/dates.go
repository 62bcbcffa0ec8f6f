package extraction

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

const isoLayout = "2006-01-02"

var (
	isoDate      = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	dayFirstDate = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{4}|\d{2})$`)

	// Receipt dates, tried in this order against the whole text.
	receiptDatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(\d{1,2}/\d{1,2}/\d{4})\b`),
		regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`),
		regexp.MustCompile(`\b(\d{1,2}-\d{1,2}-\d{4})\b`),
	}
)

// DateNormalizer canonicalizes date tokens to YYYY-MM-DD.
type DateNormalizer struct {
	clock Clock
}

// NewDateNormalizer creates a normalizer reading "today" from clock.
func NewDateNormalizer(clock Clock) *DateNormalizer {
	if clock == nil {
		clock = SystemClock
	}
	return &DateNormalizer{clock: clock}
}

// Today returns the clock's current date. It is read on every call.
func (n *DateNormalizer) Today() string {
	return n.clock.Now().Format(isoLayout)
}

// Normalize returns the canonical form of token, or today when the token
// cannot be parsed.
func (n *DateNormalizer) Normalize(token string) string {
	if d, ok := n.Parse(token); ok {
		return d
	}
	return n.Today()
}

// Parse accepts YYYY-MM-DD, DD/MM/YYYY, DD-MM-YYYY and D-M-YY (slash or dash).
// Day-first is assumed; when that is not a real date but month-first is, the
// fields are swapped. Two-digit years are placed in the 2000s.
func (n *DateNormalizer) Parse(token string) (string, bool) {
	if m := isoDate.FindStringSubmatch(token); m != nil {
		return buildDate(m[1], m[2], m[3])
	}

	m := dayFirstDate.FindStringSubmatch(token)
	if m == nil {
		return "", false
	}
	year := m[3]
	if len(year) == 2 {
		year = "20" + year
	}
	if d, ok := buildDate(year, m[2], m[1]); ok {
		return d, true
	}
	return buildDate(year, m[1], m[2])
}

// findReceiptDate returns the first receipt-style date in text.
func (n *DateNormalizer) findReceiptDate(text string) string {
	for _, re := range receiptDatePatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			if d, ok := n.Parse(m[1]); ok {
				return d
			}
		}
	}
	return n.Today()
}

// IsCanonicalDate reports whether s is a valid YYYY-MM-DD date.
func IsCanonicalDate(s string) bool {
	if len(s) != len(isoLayout) {
		return false
	}
	_, err := time.Parse(isoLayout, s)
	return err == nil
}

func buildDate(year, month, day string) (string, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return "", false
	}
	mo, err := strconv.Atoi(month)
	if err != nil {
		return "", false
	}
	d, err := strconv.Atoi(day)
	if err != nil {
		return "", false
	}
	if mo < 1 || mo > 12 || d < 1 {
		return "", false
	}
	t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d || int(t.Month()) != mo {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", y, mo, d), true
}
