// Package extraction turns loosely structured receipt or ledger text into
// candidate transactions.
//
// The engine is a best-effort heuristic: a cascade of regex-driven strategies
// is tried in a fixed order until one produces candidates. It never returns an
// error; text it cannot understand yields an empty result.
package extraction

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/receipt-ledger/internal/domain/categorization"
)

// Default notes for candidates without one.
const (
	NoteExtracted = "Extracted from uploaded file"
	NoteReceipt   = "Purchase from receipt"
)

// Category length bounds, measured after punctuation stripping.
const (
	MinCategoryLen = 2
	MaxCategoryLen = 49
)

// Candidate is a provisional transaction recovered from text.
type Candidate struct {
	Amount   decimal.Decimal                `json:"amount" csv:"amount"`
	Category string                         `json:"category" csv:"category"`
	Note     string                         `json:"note" csv:"note"`
	Date     string                         `json:"date" csv:"date"` // YYYY-MM-DD
	Type     categorization.TransactionType `json:"type" csv:"type"`
}

// Clock supplies the current time for date defaults.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// AmountBound is the accepted amount range for one strategy. Amounts must
// always be positive; a zero Max means no upper bound.
type AmountBound struct {
	Max       decimal.Decimal
	Inclusive bool
}

// Allows reports whether amount falls inside the bound.
func (b AmountBound) Allows(amount decimal.Decimal) bool {
	if !amount.IsPositive() {
		return false
	}
	if b.Max.IsZero() {
		return true
	}
	if b.Inclusive {
		return amount.LessThanOrEqual(b.Max)
	}
	return amount.LessThan(b.Max)
}

// Limits holds per-strategy amount bounds. Receipt, table and manual paths
// historically cap at 100,000 while the generic path allows up to 1,000,000.
type Limits struct {
	Receipt AmountBound
	Table   AmountBound
	Manual  AmountBound
	Generic AmountBound
}

// DefaultLimits returns the bounds the engine ships with.
func DefaultLimits() Limits {
	return Limits{
		Receipt: AmountBound{Max: decimal.NewFromInt(100000)},
		Table:   AmountBound{Max: decimal.NewFromInt(100000), Inclusive: true},
		Manual:  AmountBound{Max: decimal.NewFromInt(100000), Inclusive: true},
		Generic: AmountBound{Max: decimal.NewFromInt(1000000)},
	}
}

// Config configures an Engine.
type Config struct {
	Clock    Clock
	Limits   Limits
	Keywords categorization.KeywordTable
	// MaxReceiptItems caps matches per receipt line-item shape.
	MaxReceiptItems int
	// InlineThreshold is the length above which a single line is split inline.
	InlineThreshold int
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Clock:           SystemClock,
		Limits:          DefaultLimits(),
		Keywords:        categorization.DefaultKeywordTable(),
		MaxReceiptItems: 20,
		InlineThreshold: 50,
	}
}
