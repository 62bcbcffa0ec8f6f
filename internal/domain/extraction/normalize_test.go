package extraction

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"only whitespace", " \n\t\r ", ""},
		{"newlines collapse", "Food 500\nFuel  200\r\n", "Food 500 Fuel 200"},
		{"tabs collapse", "a\t\tb", "a b"},
		{"already clean", "Salary 50000", "Salary 50000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeText(tt.in))
		})
	}
}

func TestTextHelpers(t *testing.T) {
	assert.Equal(t, "Coffee beans", dropPunctuation("Coffee, beans!"))
	assert.Equal(t, "Coffee beans", blankPunctuation("Coffee-beans"))
	assert.Equal(t, "Food lunch", stripHeaderNoise("Amount Food Note lunch rupees"))
	assert.Equal(t, "Notebook", stripHeaderNoise("Notebook"))
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in     string
		want   decimal.Decimal
		wantOK bool
	}{
		{"500", decimal.NewFromInt(500), true},
		{"100.00", decimal.NewFromInt(100), true},
		{"12.", decimal.NewFromInt(12), true},
		{" 7.5 ", decimal.RequireFromString("7.5"), true},
		{"abc", decimal.Zero, false},
		{"", decimal.Zero, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseAmount(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
		})
	}
}

func TestAmountBound_Allows(t *testing.T) {
	exclusive := AmountBound{Max: decimal.NewFromInt(100000)}
	inclusive := AmountBound{Max: decimal.NewFromInt(100000), Inclusive: true}
	open := AmountBound{}

	assert.False(t, exclusive.Allows(decimal.Zero))
	assert.False(t, exclusive.Allows(decimal.NewFromInt(-5)))
	assert.True(t, exclusive.Allows(decimal.NewFromInt(99999)))
	assert.False(t, exclusive.Allows(decimal.NewFromInt(100000)))
	assert.True(t, inclusive.Allows(decimal.NewFromInt(100000)))
	assert.False(t, inclusive.Allows(decimal.NewFromInt(100001)))
	assert.True(t, open.Allows(decimal.NewFromInt(5000000)))
}
