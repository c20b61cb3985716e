package parsers

import (
	"strconv"
	"strings"
	"time"
)

// dateFormats is tried in order; first successful parse wins. Statements mix
// day-first and year-first orders with either separator.
var dateFormats = []string{
	"02/01/2006",
	"02-01-2006",
	"2/1/2006",
	"2-1-2006",
	"2006/01/02",
	"2006-01-02",
}

// ParseDate converts a textual date token into a time.Time. It never fails
// loudly: unparseable input yields the zero time, which callers treat as a
// missing date.
func ParseDate(text string) time.Time {
	text = strings.TrimSpace(text)
	for _, format := range dateFormats {
		if t, err := time.Parse(format, text); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ParseMoney normalizes a monetary token that may use '.' as thousands
// separator and ',' as decimal separator, or the reverse. When both
// separators are present, whichever appears later in the string is the
// decimal separator. When only one is present, it is the decimal separator
// if exactly two digits follow it, otherwise a thousands separator.
// Empty or unparseable input yields 0.
func ParseMoney(text string) float64 {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.ReplaceAll(cleaned, "R$", "")
	cleaned = strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',', r == '-':
			return r
		}
		return -1
	}, cleaned)

	if cleaned == "" || cleaned == "-" {
		return 0
	}

	lastDot := strings.LastIndex(cleaned, ".")
	lastComma := strings.LastIndex(cleaned, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastComma >= 0:
		if len(cleaned)-lastComma-1 == 2 {
			cleaned = strings.ReplaceAll(cleaned[:lastComma], ",", "") + "." + cleaned[lastComma+1:]
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastDot >= 0:
		if len(cleaned)-lastDot-1 == 2 {
			cleaned = strings.ReplaceAll(cleaned[:lastDot], ".", "") + "." + cleaned[lastDot+1:]
		} else {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
		}
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return value
}
