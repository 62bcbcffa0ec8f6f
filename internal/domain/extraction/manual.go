package extraction

import (
	"regexp"
	"strings"
)

var (
	digitRun = regexp.MustCompile(`\d+`)
	// Short date not glued to other digits; letters may touch it.
	embeddedShortDate = regexp.MustCompile(`(?:^|\D)(\d{1,2}-\d{1,2}-\d{2})(?:\D|$)`)
)

// manualStrategy chops text on digit runs: the text before a run is the
// category, the run is the amount, and the text up to the next row is
// searched for a short date and used as the note.
type manualStrategy struct{}

func (manualStrategy) name() string { return "manual" }

func (manualStrategy) extract(r *run) []Candidate {
	data := tableDataText(r.text)
	runs := digitRun.FindAllStringIndex(data, -1)
	if len(runs) == 0 {
		return nil
	}

	// A row starts at any text part of at least three characters that is
	// followed by a digit run.
	type rowSpan struct {
		partStart int // start of the category text
		run       []int
	}
	var rows []rowSpan
	prevEnd := 0
	for _, loc := range runs {
		if len(strings.TrimSpace(data[prevEnd:loc[0]])) >= 3 {
			rows = append(rows, rowSpan{partStart: prevEnd, run: loc})
		}
		prevEnd = loc[1]
	}

	var out []Candidate
	for i, rs := range rows {
		end := len(data)
		if i+1 < len(rows) {
			end = rows[i+1].partStart
		}

		category := stripHeaderNoise(data[rs.partStart:rs.run[0]])
		if len(dropPunctuation(category)) <= 2 {
			continue
		}
		amount, ok := parseAmount(data[rs.run[0]:rs.run[1]])
		if !ok || !r.limits.Manual.Allows(amount) {
			continue
		}

		remainder := data[rs.run[1]:end]
		date := ""
		if m := embeddedShortDate.FindStringSubmatch(remainder); m != nil {
			date = r.dates.Normalize(m[1])
			remainder = strings.Replace(remainder, m[1], "", 1)
		}
		note := stripHeaderNoise(remainder)

		if c, ok := r.emit(category, amount, date, note, r.limits.Manual); ok {
			out = append(out, c)
		}
	}
	if len(out) > 0 {
		r.logShape("digit_split", len(out))
	}
	return out
}
