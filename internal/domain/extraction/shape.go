package extraction

import (
	"regexp"
	"strings"
)

// role says what a capture group holds.
type role int

const (
	roleCategory role = iota
	roleAmount
	roleDate
	roleNote
	roleQty
	roleUnit
	// roleEither marks one of a pair of groups where exactly one is numeric;
	// the numeric one is the amount, the other the category.
	roleEither
)

// shape is a declarative line pattern: a regex plus the meaning of each group.
type shape struct {
	name  string
	re    *regexp.Regexp
	roles []role
}

// row is the raw text pulled out of one match.
type row struct {
	category string
	amount   string
	date     string
	note     string
	qty      string
	unit     string
}

func newShape(name, pattern string, roles ...role) shape {
	re := regexp.MustCompile(pattern)
	if re.NumSubexp() != len(roles) {
		panic("extraction: shape " + name + " has mismatched roles")
	}
	return shape{name: name, re: re, roles: roles}
}

// row maps a submatch slice onto fields. It fails when a roleEither pair
// cannot be told apart.
func (s shape) row(m []string) (row, bool) {
	var r row
	var either []string
	for i, ro := range s.roles {
		v := strings.TrimSpace(m[i+1])
		switch ro {
		case roleCategory:
			r.category = v
		case roleAmount:
			r.amount = v
		case roleDate:
			r.date = v
		case roleNote:
			r.note = v
		case roleQty:
			r.qty = v
		case roleUnit:
			r.unit = v
		case roleEither:
			either = append(either, v)
		}
	}

	if len(either) == 2 {
		first, second := isNumeric(either[0]), isNumeric(either[1])
		switch {
		case first && !second:
			r.amount, r.category = either[0], either[1]
		case !first && second:
			r.category, r.amount = either[0], either[1]
		default:
			return row{}, false
		}
	}
	return r, r.category != "" && r.amount != ""
}

// all returns rows for every non-overlapping match of s in text.
func (s shape) all(text string) []row {
	var rows []row
	for _, m := range s.re.FindAllStringSubmatch(text, -1) {
		if r, ok := s.row(m); ok {
			rows = append(rows, r)
		}
	}
	return rows
}
