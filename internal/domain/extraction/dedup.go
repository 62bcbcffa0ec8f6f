package extraction

import (
	"strings"

	"github.com/shopspring/decimal"
)

var dedupTolerance = decimal.New(1, -2) // 0.01

// Deduplicator drops candidates that repeat an earlier one within a run.
// Two candidates are duplicates when their categories are equal ignoring
// case and their amounts differ by less than 0.01. The first one wins.
type Deduplicator struct {
	seen []Candidate
}

// NewDeduplicator returns an empty deduplicator.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{}
}

// IsDuplicate reports whether c repeats an accepted candidate.
func (d *Deduplicator) IsDuplicate(c Candidate) bool {
	for _, s := range d.seen {
		if strings.EqualFold(s.Category, c.Category) && s.Amount.Sub(c.Amount).Abs().LessThan(dedupTolerance) {
			return true
		}
	}
	return false
}

// Add records c and returns true, or returns false when c is a duplicate.
func (d *Deduplicator) Add(c Candidate) bool {
	if d.IsDuplicate(c) {
		return false
	}
	d.seen = append(d.seen, c)
	return true
}

// Len returns the number of accepted candidates.
func (d *Deduplicator) Len() int {
	return len(d.seen)
}
