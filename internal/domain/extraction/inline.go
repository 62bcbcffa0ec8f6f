package extraction

import (
	"regexp"
	"strings"
)

// inlineAnchor is "amount date" inside a run-on line.
var inlineAnchor = regexp.MustCompile(`\b(\d+(?:\.\d+)?)\s+(\d{4}-\d{2}-\d{2}|\d{1,2}[-/]\d{1,2}[-/](?:\d{4}|\d{2}))\b`)

// inlineStrategy partitions a single long line. Rows are anchored on an
// amount followed by a date; without anchors every generic shape is tried
// across the whole line and the first productive one wins.
type inlineStrategy struct{}

func (inlineStrategy) name() string { return "inline" }

func (inlineStrategy) extract(r *run) []Candidate {
	body := strings.Join(genericLines(r.text), " ")
	if body == "" {
		return nil
	}

	var out []Candidate
	for _, fields := range segmentRows(body, inlineAnchor) {
		if c, ok := r.emitGeneric(fields); ok {
			out = append(out, c)
		}
	}
	if len(out) > 0 {
		r.logShape("amount_date_anchor", len(out))
		return out
	}

	for _, s := range genericShapes {
		for _, fields := range s.all(body) {
			if c, ok := r.emitGeneric(fields); ok {
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

// segmentRows splits text on anchor matches whose first two groups are the
// amount and the date. The first row's category is everything before its
// anchor. For later rows the last word between two anchors is the category
// and the words before it are the previous row's note. Text after the last
// anchor is the last row's note.
func segmentRows(text string, anchor *regexp.Regexp) []row {
	locs := anchor.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}

	rows := make([]row, len(locs))
	for i, loc := range locs {
		rows[i].amount = text[loc[2]:loc[3]]
		rows[i].date = text[loc[4]:loc[5]]

		if i == 0 {
			rows[i].category = strings.TrimSpace(text[:loc[0]])
			continue
		}
		gap := strings.Fields(text[locs[i-1][1]:loc[0]])
		if len(gap) == 0 {
			continue
		}
		rows[i].category = gap[len(gap)-1]
		rows[i-1].note = strings.Join(gap[:len(gap)-1], " ")
	}
	rows[len(rows)-1].note = strings.TrimSpace(text[locs[len(locs)-1][1]:])

	valid := rows[:0]
	for _, r := range rows {
		if r.category != "" {
			valid = append(valid, r)
		}
	}
	return valid
}
