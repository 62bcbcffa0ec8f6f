package extraction

import (
	"regexp"
	"strings"
)

var (
	genericHeader = regexp.MustCompile(`(?i)^.*?(?:expense|income|transaction|rupees?|date|note)\W*`)
	lineBreaks    = regexp.MustCompile(`[\n\r]+`)

	genericShapes = []shape{
		newShape("category_amount_iso_date_note", `(?i)([A-Za-z][A-Za-z\s]{2,}?)\s+(\d+\.?\d*)\s+(\d{4}-\d{2}-\d{2})\s+([A-Za-z][A-Za-z\s]*)`,
			roleCategory, roleAmount, roleDate, roleNote),
		newShape("category_amount", `(?i)([A-Za-z][A-Za-z\s]{2,})\s+(\d+\.?\d*)`,
			roleEither, roleEither),
		newShape("amount_category", `(?i)(\d+\.?\d*)\s+([A-Za-z][A-Za-z\s]{2,})`,
			roleEither, roleEither),
		newShape("amount_currency_category", `(?i)(\d+\.?\d*)\s*(?:rs?\.?|₹|rupees?|rupee)\s*(?:for|on|-\s*)?([A-Za-z][A-Za-z\s]{2,})`,
			roleEither, roleEither),
		newShape("category_currency_amount", `(?i)([A-Za-z][A-Za-z\s]{2,})\s*(?:rs?\.?|₹|rupees?|rupee)\s*(\d+\.?\d*)`,
			roleEither, roleEither),
	}
)

const minGenericLine = 5

// genericStrategy tries loose category/amount shapes line by line. A lone
// line longer than the inline threshold is left to inlineStrategy.
type genericStrategy struct{}

func (genericStrategy) name() string { return "generic" }

func (genericStrategy) extract(r *run) []Candidate {
	lines := genericLines(r.text)
	if len(lines) == 1 && len(lines[0]) > r.inlineThreshold {
		return nil
	}

	var out []Candidate
	for _, line := range lines {
		if len(line) < minGenericLine {
			continue
		}
		for _, s := range genericShapes {
			m := s.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			// The first shape that matches owns the line, accepted or not.
			if fields, ok := s.row(m); ok {
				if c, ok := r.emitGeneric(fields); ok {
					out = append(out, c)
				}
			}
			break
		}
	}
	return out
}

// emitGeneric applies the generic acceptance rule: category longer than two
// characters once punctuation is removed.
func (r *run) emitGeneric(fields row) (Candidate, bool) {
	if len(dropPunctuation(fields.category)) <= 2 {
		return Candidate{}, false
	}
	return r.emitRow(fields, r.limits.Generic, nil)
}

// genericLines strips the leading header run and splits what is left into
// non-empty lines.
func genericLines(text string) []string {
	body := strings.TrimSpace(genericHeader.ReplaceAllString(text, ""))
	var lines []string
	for _, l := range lineBreaks.Split(body, -1) {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
