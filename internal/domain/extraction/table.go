package extraction

import (
	"regexp"
	"strings"
)

var (
	tableLeadingHeader = regexp.MustCompile(`(?i)^.*?(?:expense|income|transaction|rupees?|date|note)`)
	tableHeaderRun     = regexp.MustCompile(`(?i)^.*?(?:table|expense|amount|date|note|rupees?)\s*`)
	tableHeaderWord    = regexp.MustCompile(`(?i)^(?:amount|date|note|table|expense|rupees?)\s*`)

	shortDate     = regexp.MustCompile(`\b\d{1,2}-\d{1,2}-\d{2}\b`)
	dashDateToken = regexp.MustCompile(`^\d{1,2}-\d{1,2}-\d{2,4}$`)

	isoRowAnchor = regexp.MustCompile(`\b(\d+)\s+(\d{4}-\d{2}-\d{2})\b`)

	// Looser row shapes tried when no date-anchored row is found.
	tableFallbackShapes = []shape{
		newShape("category_amount_short_date", `([A-Za-z][A-Za-z\s]*)\s+(\d+)\s+(\d{1,2}-\d{1,2}-\d{2})\b`,
			roleCategory, roleAmount, roleDate),
		newShape("category_amount", `([A-Za-z][A-Za-z\s]*)\s+(\d+)\b`,
			roleCategory, roleAmount),
	}
)

// tableStrategy parses ledger rows anchored on D-M-YY dates.
type tableStrategy struct{}

func (tableStrategy) name() string { return "table" }

func (tableStrategy) extract(r *run) []Candidate {
	data := tableDataText(r.text)

	if out := dateAnchoredRows(r, stripTableHeader(data)); len(out) > 0 {
		return out
	}

	// ISO dated rows first, then the looser shapes, against the data text
	// with its header words still in place.
	var out []Candidate
	for _, fields := range segmentRows(data, isoRowAnchor) {
		if c, ok := r.emitRow(fields, r.limits.Table, stripHeaderNoise); ok {
			out = append(out, c)
		}
	}
	if len(out) > 0 {
		r.logShape("iso_row", len(out))
		return out
	}

	for _, s := range tableFallbackShapes {
		for _, fields := range s.all(data) {
			if c, ok := r.emitRow(fields, r.limits.Table, stripHeaderNoise); ok {
				out = append(out, c)
			}
		}
		if len(out) > 0 {
			r.logShape(s.name, len(out))
			return out
		}
	}
	return nil
}

// dateAnchoredRows walks back from every short date to the amount and the
// category word before it. A row runs until the next row's category.
func dateAnchoredRows(r *run, data string) []Candidate {
	locs := shortDate.FindAllStringIndex(data, -1)
	if len(locs) == 0 {
		return nil
	}

	starts := make([]int, len(locs))
	for i, loc := range locs {
		starts[i] = rowStart(data, loc[0])
	}

	var out []Candidate
	for i, loc := range locs {
		end := len(data)
		if i+1 < len(locs) {
			end = starts[i+1]
			if end < loc[1] {
				end = locs[i+1][0]
			}
		}
		fields, ok := splitTableRow(data[starts[i]:end])
		if !ok {
			continue
		}
		if c, ok := r.emitRow(fields, r.limits.Table, nil); ok {
			out = append(out, c)
		}
	}
	if len(out) > 0 {
		r.logShape("date_anchored", len(out))
	}
	return out
}

// splitTableRow finds the amount token followed by a date token. Tokens
// before it are the category, tokens after the date are the note.
func splitTableRow(window string) (row, bool) {
	tokens := strings.Fields(window)
	for j := 1; j < len(tokens)-1; j++ {
		if !allDigits.MatchString(tokens[j]) || !dashDateToken.MatchString(tokens[j+1]) {
			continue
		}
		category := stripHeaderNoise(strings.Join(tokens[:j], " "))
		if category == "" {
			return row{}, false
		}
		return row{
			category: category,
			amount:   tokens[j],
			date:     tokens[j+1],
			note:     stripHeaderNoise(strings.Join(tokens[j+2:], " ")),
		}, true
	}
	return row{}, false
}

// rowStart returns where the row owning the date at dateIdx begins: the
// start of the letter run before the digit run before the date.
func rowStart(s string, dateIdx int) int {
	i := dateIdx
	for i > 0 && s[i-1] == ' ' {
		i--
	}
	j := i
	for j > 0 && isDigit(s[j-1]) {
		j--
	}
	if j == i {
		return dateIdx
	}
	k := j
	for k > 0 && s[k-1] == ' ' {
		k--
	}
	l := k
	for l > 0 && isLetter(s[l-1]) {
		l--
	}
	if l == k {
		return j
	}
	return l
}

// tableDataText drops everything up to the first header keyword.
func tableDataText(text string) string {
	return strings.TrimSpace(tableLeadingHeader.ReplaceAllString(text, ""))
}

func stripTableHeader(data string) string {
	data = tableHeaderRun.ReplaceAllString(data, "")
	return tableHeaderWord.ReplaceAllString(data, "")
}

func isDigit(b byte) bool  { return b >= '0' && b <= '9' }
func isLetter(b byte) bool { return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') }
