package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestPeriodOf(t *testing.T) {
	assert.Equal(t, "2023-01", PeriodOf(date(2023, time.January, 15)))
	assert.Equal(t, "2023-12", PeriodOf(date(2023, time.December, 31)))
}

func TestPeriodsBetween(t *testing.T) {
	testCases := []struct {
		name      string
		origin    time.Time
		reference time.Time
		expected  []string
	}{
		{
			name:      "origin month excluded, reference month included",
			origin:    date(2023, time.January, 15),
			reference: date(2023, time.March, 10),
			expected:  []string{"2023-02", "2023-03"},
		},
		{
			name:      "same month yields no periods",
			origin:    date(2023, time.January, 1),
			reference: date(2023, time.January, 31),
			expected:  nil,
		},
		{
			name:      "same day yields no periods",
			origin:    date(2023, time.January, 15),
			reference: date(2023, time.January, 15),
			expected:  nil,
		},
		{
			name:      "inverted range yields no periods",
			origin:    date(2023, time.March, 1),
			reference: date(2023, time.January, 1),
			expected:  nil,
		},
		{
			name:      "adjacent months yield one period",
			origin:    date(2023, time.January, 31),
			reference: date(2023, time.February, 1),
			expected:  []string{"2023-02"},
		},
		{
			name:      "year boundary",
			origin:    date(2022, time.November, 20),
			reference: date(2023, time.February, 5),
			expected:  []string{"2022-12", "2023-01", "2023-02"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, PeriodsBetween(tc.origin, tc.reference))
		})
	}
}

func TestPeriodsBetweenDayWithinMonthIsIrrelevant(t *testing.T) {
	early := PeriodsBetween(date(2023, time.January, 1), date(2023, time.June, 1))
	late := PeriodsBetween(date(2023, time.January, 31), date(2023, time.June, 30))
	assert.Equal(t, early, late)
	assert.Len(t, early, 5)
}

func TestPeriodRange(t *testing.T) {
	assert.Equal(t, []string{"2023-11", "2023-12", "2024-01"}, PeriodRange("2023-11", "2024-01"))
	assert.Equal(t, []string{"2023-05"}, PeriodRange("2023-05", "2023-05"))
	assert.Empty(t, PeriodRange("2023-06", "2023-05"))
	assert.Empty(t, PeriodRange("garbage", "2023-05"))
	assert.Empty(t, PeriodRange("2023-05", "garbage"))
}

func TestPeriodTime(t *testing.T) {
	parsed, err := PeriodTime("2023-07")
	require.NoError(t, err)
	assert.Equal(t, date(2023, time.July, 1), parsed)

	_, err = PeriodTime("07/2023")
	assert.Error(t, err)
}
