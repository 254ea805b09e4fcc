package schoolyear

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"jecnaapi/lib/timezone"
)

// SchoolYear identifies a school year by the calendar year it starts in,
// so SchoolYear{2023} is the 2023/2024 year. Czech school years run from
// September to the end of June.
type SchoolYear struct {
	FirstYear int
}

// FromDate returns the school year the given date falls into; dates on
// summer break belong to the year that just ended.
func FromDate(t time.Time) SchoolYear {
	if t.Month() >= time.September {
		return SchoolYear{FirstYear: t.Year()}
	}
	return SchoolYear{FirstYear: t.Year() - 1}
}

func Current() SchoolYear {
	return FromDate(timezone.Now())
}

func (y SchoolYear) SecondYear() int {
	return y.FirstYear + 1
}

// CalendarYear resolves which calendar year a month of this school year
// falls in. The portal prints dates without years and expects the reader
// to know.
func (y SchoolYear) CalendarYear(month time.Month) int {
	if month >= time.September {
		return y.FirstYear
	}
	return y.SecondYear()
}

func (y SchoolYear) String() string {
	return fmt.Sprintf("%d/%d", y.FirstYear, y.SecondYear())
}

// Parse reads the "2023/2024" format the portal uses in its school year
// dropdown.
func Parse(s string) (SchoolYear, error) {
	first, _, found := strings.Cut(strings.TrimSpace(s), "/")
	if !found {
		return SchoolYear{}, fmt.Errorf("invalid school year %q", s)
	}
	year, err := strconv.Atoi(first)
	if err != nil {
		return SchoolYear{}, fmt.Errorf("invalid school year %q: %w", s, err)
	}
	return SchoolYear{FirstYear: year}, nil
}

// Half is one of the two grading terms of a school year.
type Half int

const (
	FirstHalf Half = iota + 1
	SecondHalf
)

// HalfFromDate returns the grading term the date falls into. September
// through January belong to the first half, February onward (including
// summer break) to the second.
func HalfFromDate(t time.Time) Half {
	if t.Month() < time.February || t.Month() > time.August {
		return FirstHalf
	}
	return SecondHalf
}

func CurrentHalf() Half {
	return HalfFromDate(timezone.Now())
}

// The portal selects periods with site-defined query string parameters.
// These are opaque server-side identifiers, not dates.
const (
	yearParam  = "schoolYearId"
	halfParam  = "schoolYearHalfId"
	monthParam = "schoolYearPartMonthId"
)

// QueryParam encodes the school year for parameterized pages.
func (y SchoolYear) QueryParam() (key, value string) {
	return yearParam, strconv.Itoa(y.FirstYear)
}

// QueryParam encodes the year half for the grades page.
func (h Half) QueryParam() (key, value string) {
	return halfParam, strconv.Itoa(int(h))
}

// MonthQueryParam encodes a month for the attendance page.
func MonthQueryParam(month time.Month) (key, value string) {
	return monthParam, strconv.Itoa(int(month))
}

var czechMonths = map[string]time.Month{
	"leden":    time.January,
	"únor":     time.February,
	"březen":   time.March,
	"duben":    time.April,
	"květen":   time.May,
	"červen":   time.June,
	"červenec": time.July,
	"srpen":    time.August,
	"září":     time.September,
	"říjen":    time.October,
	"listopad": time.November,
	"prosinec": time.December,
}

// genitive forms, used in running text ("3. září")
var czechMonthsGenitive = map[string]time.Month{
	"ledna":     time.January,
	"února":     time.February,
	"března":    time.March,
	"dubna":     time.April,
	"května":    time.May,
	"června":    time.June,
	"července":  time.July,
	"srpna":     time.August,
	"září":      time.September,
	"října":     time.October,
	"listopadu": time.November,
	"prosince":  time.December,
}

func ParseMonthName(name string) (time.Month, error) {
	month, ok := czechMonths[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown month name %q", name)
	}
	return month, nil
}

func ParseMonthNameGenitive(name string) (time.Month, error) {
	month, ok := czechMonthsGenitive[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown month name %q", name)
	}
	return month, nil
}

// Date builds a midnight date in the portal's timezone.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, timezone.Location)
}

// DateRegex matches dates in the d.M.yyyy format used all over the portal.
var DateRegex = regexp.MustCompile(`\d{1,2}\.\d{1,2}\.\d{4}`)

// ParseCzechDate reads a d.M.yyyy date, with or without zero padding,
// anchored to the portal's timezone.
func ParseCzechDate(s string) (time.Time, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ".", 3)
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	day, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	month, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	year, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, timezone.Location), nil
}
