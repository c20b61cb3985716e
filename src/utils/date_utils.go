package utils

import (
	"time"
)

const (
	// DefaultDateFormat is the day-first layout used across statements and
	// the remote index API.
	DefaultDateFormat = "02/01/2006"

	// PeriodFormat is the canonical year-month key for index observations.
	PeriodFormat = "2006-01"
)

// PeriodOf returns the calendar month of t in the canonical period layout.
func PeriodOf(t time.Time) string {
	return t.Format(PeriodFormat)
}

// CurrentPeriod returns the period of the current (open) calendar month.
func CurrentPeriod() string {
	return time.Now().Format(PeriodFormat)
}

// PeriodTime parses a canonical period back into the first day of its month.
func PeriodTime(period string) (time.Time, error) {
	return time.Parse(PeriodFormat, period)
}

// PeriodsBetween enumerates the whole calendar months a correction compounds
// over: the origin month itself is excluded, every month after it up to and
// including the reference month is applied once. Origin and reference falling
// in the same month (or an inverted pair) yield an empty slice.
func PeriodsBetween(origin, reference time.Time) []string {
	start := time.Date(origin.Year(), origin.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(reference.Year(), reference.Month(), 1, 0, 0, 0, 0, time.UTC)

	var periods []string
	for m := start.AddDate(0, 1, 0); !m.After(end); m = m.AddDate(0, 1, 0) {
		periods = append(periods, m.Format(PeriodFormat))
	}
	return periods
}

// PeriodRange enumerates every period from start through end inclusive.
// An inverted or unparseable range yields an empty slice.
func PeriodRange(start, end string) []string {
	s, err := PeriodTime(start)
	if err != nil {
		return nil
	}
	e, err := PeriodTime(end)
	if err != nil {
		return nil
	}

	var periods []string
	for m := s; !m.After(e); m = m.AddDate(0, 1, 0) {
		periods = append(periods, m.Format(PeriodFormat))
	}
	return periods
}
