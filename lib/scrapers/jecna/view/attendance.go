package view

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"jecnaapi/lib/htmlutil"
	"jecnaapi/lib/schoolyear"

	"github.com/PuerkitoBio/goquery"
)

type AttendanceType int

const (
	// AttendanceEnter is a recorded entry into the school building.
	AttendanceEnter AttendanceType = iota
	// AttendanceExit is a recorded leave.
	AttendanceExit
)

// Attendance is one chip card swipe at the school entrance.
type Attendance struct {
	Type AttendanceType
	Time DayTime
}

// AttendanceDay is all swipes of one day.
type AttendanceDay struct {
	Date        time.Time
	Attendances []Attendance
}

// AttendancesPage is the parsed content of the entrance log page.
type AttendancesPage struct {
	Days       []AttendanceDay
	SchoolYear schoolyear.SchoolYear
	Month      time.Month
}

// Day finds the attendances of a calendar day.
func (p *AttendancesPage) Day(date time.Time) (AttendanceDay, bool) {
	year, month, day := date.Date()
	for _, entry := range p.Days {
		y, m, d := entry.Date.Date()
		if y == year && m == month && d == day {
			return entry, true
		}
	}
	return AttendanceDay{}, false
}

// Attendances fetches the entrance log for the currently selected
// month.
func (c *Client) Attendances(ctx context.Context) (*AttendancesPage, error) {
	ctx, span := tracer.Start(ctx, "view:Attendances")
	defer span.End()

	doc, err := c.fetchDocument(ctx, attendancesPath, nil)
	if err != nil {
		return nil, err
	}
	return ParseAttendancesPage(doc)
}

// AttendancesFor fetches the entrance log for a specific month.
func (c *Client) AttendancesFor(ctx context.Context, year schoolyear.SchoolYear, month time.Month) (*AttendancesPage, error) {
	ctx, span := tracer.Start(ctx, "view:AttendancesFor")
	defer span.End()

	query := url.Values{}
	key, value := year.QueryParam()
	query.Set(key, value)
	key, value = schoolyear.MonthQueryParam(month)
	query.Set(key, value)

	doc, err := c.fetchDocument(ctx, attendancesPath, query)
	if err != nil {
		return nil, err
	}
	return ParseAttendancesPage(doc)
}

var (
	// matches the day and month of a "d.M." date cell; the year comes
	// from the page's year dropdown
	shortDateRegex = regexp.MustCompile(`([0-3]?\d)\.([0-1]?\d)\.`)
	swipeTimeRegex = regexp.MustCompile(`(?:[0-1]?\d|2[0-3]):[0-5]\d`)
)

// ParseAttendancesPage parses the /absence/passing-student page.
func ParseAttendancesPage(doc *goquery.Document) (*AttendancesPage, error) {
	page := &AttendancesPage{}

	var parseErr error
	doc.Find(".absence-list > tbody > tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		dateCell, err := htmlutil.SelectFirst(row, ".date", "day date")
		if err != nil {
			parseErr = err
			return false
		}
		date, err := parseShortDate(doc, htmlutil.CleanText(dateCell.Text()))
		if err != nil {
			parseErr = err
			return false
		}

		cells := row.Find("td")
		if cells.Length() < 2 {
			parseErr = htmlutil.ElementNotFoundError{Name: "attendances column", Selector: "td"}
			return false
		}
		attendances := parseDaySwipes(cells.Eq(1))
		if len(attendances) > 0 {
			page.Days = append(page.Days, AttendanceDay{Date: date, Attendances: attendances})
		}
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	year, err := selectedSchoolYear(doc)
	if err != nil {
		return nil, err
	}
	page.SchoolYear = year

	month, err := selectedMonth(doc)
	if err != nil {
		return nil, err
	}
	page.Month = month

	return page, nil
}

// parseDaySwipes reads the "Příchod 7:25, Odchod 14:05" entries of one
// day cell.
func parseDaySwipes(column *goquery.Selection) []Attendance {
	var attendances []Attendance
	column.Find("p").Each(func(_ int, paragraph *goquery.Selection) {
		for _, entry := range strings.Split(htmlutil.CleanText(paragraph.Text()), ", ") {
			timeStr := swipeTimeRegex.FindString(entry)
			if timeStr == "" {
				continue
			}
			swipe, err := ParseDayTime(timeStr)
			if err != nil {
				continue
			}
			kind := AttendanceEnter
			if strings.Contains(entry, "Odchod") {
				kind = AttendanceExit
			}
			attendances = append(attendances, Attendance{Type: kind, Time: swipe})
		}
	})
	return attendances
}

// parseShortDate resolves a "d.M." cell into a full date using the
// page's year dropdown.
func parseShortDate(doc *goquery.Document, text string) (time.Time, error) {
	match := shortDateRegex.FindStringSubmatch(text)
	if match == nil {
		return time.Time{}, fmt.Errorf("no date in %q", text)
	}
	day, _ := strconv.Atoi(match[1])
	month, _ := strconv.Atoi(match[2])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("invalid date in %q", text)
	}
	return pageDate(doc, day, time.Month(month)), nil
}
