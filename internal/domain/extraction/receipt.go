package extraction

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	itemsHeader      = regexp.MustCompile(`(?i)description|item|product`)
	itemsEnd         = regexp.MustCompile(`(?i)subtotal|total|amount due`)
	itemsHeaderWords = regexp.MustCompile(`(?i)description|item|product|unit\s*price|price|amount|qty|quantity`)

	allDigits      = regexp.MustCompile(`^\d+$`)
	shortCodeRe    = regexp.MustCompile(`^[A-Z]{2,3}$`)
	receiptSummary = []string{"subtotal", "total", "tax", "due", "date", "receipt"}

	// Most specific first.
	receiptShapes = []shape{
		newShape("qty_desc_unit_amount", `(\d+)\s*([A-Za-z][A-Za-z\s]{3,}?)\s+(\d+\.?\d*)\s+(\d+\.?\d*)`,
			roleQty, roleCategory, roleUnit, roleAmount),
		newShape("desc_unit_amount", `([A-Za-z][A-Za-z\s]{3,}?)\s+(\d+\.?\d*)\s+(\d+\.?\d*)`,
			roleCategory, roleUnit, roleAmount),
		newShape("desc_currency_amount", `([A-Za-z][A-Za-z\s]{3,}?)\s+(?:₹|Rs\.?|USD|\$)?\s*(\d+\.?\d*)`,
			roleCategory, roleAmount),
		newShape("desc_amount", `([A-Za-z][A-Za-z\s]{2,})\s+(\d+\.?\d*)`,
			roleCategory, roleAmount),
	}

	// Concatenated OCR output such as "1Frontandrearbrakecables 100.00 100.00".
	concatenatedItem = newShape("concatenated_item", `(\d+)([A-Za-z][A-Za-z\s]*?)\s+(\d+\.?\d*)\s+(\d+\.?\d*)`,
		roleQty, roleCategory, roleUnit, roleAmount)
	lowerUpper      = regexp.MustCompile(`([a-z])([A-Z])`)
	upperUpperLower = regexp.MustCompile(`([A-Z])([A-Z][a-z])`)
)

// receiptStrategy parses "[qty] description unitPrice amount" line items.
type receiptStrategy struct{}

func (receiptStrategy) name() string { return "receipt" }

func (receiptStrategy) extract(r *run) []Candidate {
	date := r.dates.findReceiptDate(r.text)
	items := receiptItemsSection(r.text)

	for _, s := range receiptShapes {
		var out []Candidate
		for _, m := range s.re.FindAllStringSubmatch(items, -1) {
			if len(out) >= r.maxReceiptItems {
				break
			}
			fields, ok := s.row(m)
			if !ok {
				continue
			}
			desc := blankPunctuation(fields.category)
			if !acceptableItem(desc) {
				continue
			}
			amount, ok := parseAmount(fields.amount)
			if !ok {
				continue
			}
			if c, ok := r.emit(desc, amount, date, NoteReceipt, r.limits.Receipt); ok {
				out = append(out, c)
			}
		}
		if len(out) > 0 {
			r.logShape(s.name, len(out))
			return out
		}
	}

	return concatenatedItems(r, date)
}

// concatenatedItems is the last resort for receipts whose descriptions lost
// their spaces. Case boundaries are turned back into spaces.
func concatenatedItems(r *run, date string) []Candidate {
	var out []Candidate
	for _, m := range concatenatedItem.re.FindAllStringSubmatch(r.text, -1) {
		fields, ok := concatenatedItem.row(m)
		if !ok {
			continue
		}
		desc := lowerUpper.ReplaceAllString(fields.category, "$1 $2")
		desc = upperUpperLower.ReplaceAllString(desc, "$1 $2")
		desc = collapseSpaces(desc)
		if !acceptableItem(desc) {
			continue
		}
		amount, ok := parseAmount(fields.amount)
		if !ok {
			continue
		}
		note := fmt.Sprintf("%s (Qty: %s)", NoteReceipt, fields.qty)
		if c, ok := r.emit(desc, amount, date, note, r.limits.Receipt); ok {
			out = append(out, c)
		}
	}
	if len(out) > 0 {
		r.logShape(concatenatedItem.name, len(out))
	}
	return out
}

// receiptItemsSection narrows text to the span between the item header and
// the totals, then removes column header words.
func receiptItemsSection(text string) string {
	section := text
	if start := itemsHeader.FindStringIndex(text); start != nil {
		section = text[start[0]:]
		if end := itemsEnd.FindStringIndex(text); end != nil && end[0] > start[0] {
			section = text[start[0]:end[0]]
		}
	}
	return itemsHeaderWords.ReplaceAllString(section, "")
}

func acceptableItem(desc string) bool {
	if len(desc) <= 2 || len(desc) >= 50 {
		return false
	}
	if allDigits.MatchString(desc) || shortCodeRe.MatchString(desc) {
		return false
	}
	lower := strings.ToLower(desc)
	for _, w := range receiptSummary {
		if strings.Contains(lower, w) {
			return false
		}
	}
	return true
}
