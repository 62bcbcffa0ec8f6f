// Package money converts extracted decimal amounts into currency-aware minor
// units using go-money, so ledgers never store floating point values.
package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Common currency codes (ISO-4217)
const (
	INR = "INR" // Indian Rupee
	USD = "USD" // US Dollar
	EUR = "EUR" // Euro
	GBP = "GBP" // British Pound
	BRL = "BRL" // Brazilian Real
	JPY = "JPY" // Japanese Yen (no decimal places)
)

// ErrCurrencyMismatch is returned when combining amounts of different currencies.
var ErrCurrencyMismatch = errors.New("currency mismatch")

// Money is a monetary value in minor units with its currency.
type Money struct {
	m *money.Money
}

// New creates Money from minor units (paise, cents) and a currency code.
func New(amountMinor int64, currencyCode string) *Money {
	return &Money{m: money.New(amountMinor, currencyCode)}
}

// NewFromDecimal rounds amount to the currency's minor unit.
func NewFromDecimal(amount decimal.Decimal, currencyCode string) *Money {
	multiplier := decimal.New(1, int32(fraction(currencyCode)))
	minor := amount.Mul(multiplier).Round(0).IntPart()
	return New(minor, currencyCode)
}

// Zero returns a zero Money value for the given currency.
func Zero(currencyCode string) *Money {
	return New(0, currencyCode)
}

// IsKnownCurrency reports whether code is a registered ISO-4217 code.
func IsKnownCurrency(code string) bool {
	return code != "" && money.GetCurrency(strings.ToUpper(code)) != nil
}

// ResolveCurrency returns code upper-cased when known, otherwise fallback.
func ResolveCurrency(code, fallback string) string {
	if IsKnownCurrency(code) {
		return strings.ToUpper(code)
	}
	return fallback
}

func fraction(code string) int {
	if c := money.GetCurrency(code); c != nil {
		return c.Fraction
	}
	return 2
}

// Amount returns the amount in minor units.
func (m *Money) Amount() int64 {
	if m == nil || m.m == nil {
		return 0
	}
	return m.m.Amount()
}

// Currency returns the ISO-4217 currency code.
func (m *Money) Currency() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Currency().Code
}

// IsPositive returns true if the amount is greater than zero.
func (m *Money) IsPositive() bool {
	return m != nil && m.m != nil && m.m.IsPositive()
}

// Add returns m + other. Both must share a currency.
func (m *Money) Add(other *Money) (*Money, error) {
	if m == nil || m.m == nil {
		return other, nil
	}
	if other == nil || other.m == nil {
		return m, nil
	}
	result, err := m.m.Add(other.m)
	if err != nil {
		return nil, fmt.Errorf("%w: %s and %s", ErrCurrencyMismatch, m.Currency(), other.Currency())
	}
	return &Money{m: result}, nil
}

// Display returns a formatted string such as "₹1,234.50".
func (m *Money) Display() string {
	if m == nil || m.m == nil {
		return "0.00"
	}
	return m.m.Display()
}

type moneyJSON struct {
	Amount   int64  `json:"amount_minor"`
	Currency string `json:"currency"`
	Display  string `json:"display"`
}

// MarshalJSON encodes minor units, currency and a display string.
func (m *Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{
		Amount:   m.Amount(),
		Currency: m.Currency(),
		Display:  m.Display(),
	})
}

// Sum adds amounts of one currency. An empty slice sums to zero in currencyCode.
func Sum(currencyCode string, amounts ...*Money) (*Money, error) {
	total := Zero(currencyCode)
	for _, a := range amounts {
		var err error
		if total, err = total.Add(a); err != nil {
			return nil, err
		}
	}
	return total, nil
}
