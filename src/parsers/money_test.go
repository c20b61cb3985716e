package parsers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseMoney(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected float64
	}{
		{"brazilian convention", "1.234,56", 1234.56},
		{"us convention", "1,234.56", 1234.56},
		{"comma decimal without thousands", "1234,56", 1234.56},
		{"dot decimal without thousands", "1234.56", 1234.56},
		{"plain integer", "1500", 1500},
		{"lone dot with three digits is thousands", "1.234", 1234},
		{"lone dot with two digits is decimal", "12.34", 12.34},
		{"lone comma with two digits is decimal", "12,34", 12.34},
		{"lone comma with one digit is thousands", "1,5", 15},
		{"currency symbol and spaces", " R$ 2.500,00 ", 2500},
		{"millions with repeated thousands groups", "1.234.567,89", 1234567.89},
		{"negative amount", "-1.000,50", -1000.50},
		{"embedded stray characters dropped", "BRL 980,10*", 980.10},
		{"empty string", "", 0},
		{"only noise", "abc", 0},
		{"lone minus", "-", 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, ParseMoney(tc.input), 1e-9)
		})
	}
}

// When both separators appear, whichever comes later is the decimal
// separator even if it is followed by three digits. "1,234.567" therefore
// reads as 1234.567, not 1234567. The convention is deliberate; documents in
// the supported family never print three decimal places.
func TestParseMoneyLaterSeparatorWins(t *testing.T) {
	assert.InDelta(t, 1234.567, ParseMoney("1,234.567"), 1e-9)
	assert.InDelta(t, 1234.567, ParseMoney("1.234,567"), 1e-9)
}

func TestParseDate(t *testing.T) {
	expected := time.Date(2023, time.January, 10, 0, 0, 0, 0, time.UTC)

	testCases := []struct {
		name  string
		input string
	}{
		{"slash day first", "10/01/2023"},
		{"dash day first", "10-01-2023"},
		{"single digit day and month", "10/1/2023"},
		{"iso with dashes", "2023-01-10"},
		{"iso with slashes", "2023/01/10"},
		{"surrounding whitespace", "  10/01/2023  "},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, expected, ParseDate(tc.input))
		})
	}
}

func TestParseDateInvalid(t *testing.T) {
	assert.True(t, ParseDate("").IsZero())
	assert.True(t, ParseDate("not a date").IsZero())
	assert.True(t, ParseDate("31/02/2023").IsZero(), "impossible calendar date")
	assert.True(t, ParseDate("10/13/2023").IsZero(), "month 13 rejected in day-first layouts")
}
