package schoolyear

import (
	"testing"
	"time"

	"jecnaapi/lib/timezone"

	"github.com/stretchr/testify/require"
)

func TestFromDate(t *testing.T) {
	tz := timezone.Location

	testCases := []struct {
		now      time.Time
		expected SchoolYear
	}{
		{
			now:      time.Date(2023, 9, 4, 0, 0, 0, 0, tz),
			expected: SchoolYear{FirstYear: 2023},
		},
		{
			now:      time.Date(2024, 1, 15, 0, 0, 0, 0, tz),
			expected: SchoolYear{FirstYear: 2023},
		},
		{
			now:      time.Date(2024, 6, 28, 0, 0, 0, 0, tz),
			expected: SchoolYear{FirstYear: 2023},
		},
		{
			now:      time.Date(2024, 8, 31, 0, 0, 0, 0, tz),
			expected: SchoolYear{FirstYear: 2023},
		},
	}

	for _, test := range testCases {
		require.Equal(t, test.expected, FromDate(test.now))
	}
}

func TestCalendarYear(t *testing.T) {
	year := SchoolYear{FirstYear: 2023}
	require.Equal(t, 2023, year.CalendarYear(time.September))
	require.Equal(t, 2023, year.CalendarYear(time.December))
	require.Equal(t, 2024, year.CalendarYear(time.January))
	require.Equal(t, 2024, year.CalendarYear(time.June))
}

func TestParseAndString(t *testing.T) {
	year, err := Parse("2023/2024")
	require.NoError(t, err)
	require.Equal(t, SchoolYear{FirstYear: 2023}, year)
	require.Equal(t, "2023/2024", year.String())

	_, err = Parse("garbage")
	require.Error(t, err)
}

func TestHalfFromDate(t *testing.T) {
	tz := timezone.Location
	require.Equal(t, FirstHalf, HalfFromDate(time.Date(2023, 10, 1, 0, 0, 0, 0, tz)))
	require.Equal(t, FirstHalf, HalfFromDate(time.Date(2024, 1, 20, 0, 0, 0, 0, tz)))
	require.Equal(t, SecondHalf, HalfFromDate(time.Date(2024, 2, 1, 0, 0, 0, 0, tz)))
	require.Equal(t, SecondHalf, HalfFromDate(time.Date(2024, 6, 15, 0, 0, 0, 0, tz)))
}

func TestQueryParams(t *testing.T) {
	key, value := SchoolYear{FirstYear: 2023}.QueryParam()
	require.Equal(t, "schoolYearId", key)
	require.Equal(t, "2023", value)

	key, value = SecondHalf.QueryParam()
	require.Equal(t, "schoolYearHalfId", key)
	require.Equal(t, "2", value)

	key, value = MonthQueryParam(time.October)
	require.Equal(t, "schoolYearPartMonthId", key)
	require.Equal(t, "10", value)
}

func TestParseCzechDate(t *testing.T) {
	testCases := []struct {
		text     string
		expected time.Time
	}{
		{"01.09.2023", time.Date(2023, 9, 1, 0, 0, 0, 0, timezone.Location)},
		{"1.9.2023", time.Date(2023, 9, 1, 0, 0, 0, 0, timezone.Location)},
		{"24.12.2024", time.Date(2024, 12, 24, 0, 0, 0, 0, timezone.Location)},
	}
	for _, test := range testCases {
		parsed, err := ParseCzechDate(test.text)
		require.NoError(t, err)
		require.True(t, parsed.Equal(test.expected), "parsing %q", test.text)
	}

	_, err := ParseCzechDate("13.13.2024")
	require.Error(t, err)
	_, err = ParseCzechDate("1.9.")
	require.Error(t, err)
}

func TestParseMonthName(t *testing.T) {
	month, err := ParseMonthName("září")
	require.NoError(t, err)
	require.Equal(t, time.September, month)

	month, err = ParseMonthNameGenitive("listopadu")
	require.NoError(t, err)
	require.Equal(t, time.November, month)

	_, err = ParseMonthName("brumaire")
	require.Error(t, err)
}
