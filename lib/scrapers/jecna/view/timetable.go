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

// DayTime is a clock time without a date, as printed in the timetable
// header, e.g. 7:30.
type DayTime struct {
	Hour   int
	Minute int
}

func (t DayTime) String() string {
	return fmt.Sprintf("%d:%02d", t.Hour, t.Minute)
}

// Before reports whether t is earlier in the day than other.
func (t DayTime) Before(other DayTime) bool {
	return t.Hour < other.Hour || (t.Hour == other.Hour && t.Minute < other.Minute)
}

// ParseDayTime reads a "H:mm" clock time.
func ParseDayTime(s string) (DayTime, error) {
	hourStr, minuteStr, found := strings.Cut(strings.TrimSpace(s), ":")
	if !found {
		return DayTime{}, fmt.Errorf("invalid time %q", s)
	}
	hour, err := strconv.Atoi(hourStr)
	if err != nil {
		return DayTime{}, fmt.Errorf("invalid time %q: %w", s, err)
	}
	minute, err := strconv.Atoi(minuteStr)
	if err != nil {
		return DayTime{}, fmt.Errorf("invalid time %q: %w", s, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return DayTime{}, fmt.Errorf("invalid time %q", s)
	}
	return DayTime{Hour: hour, Minute: minute}, nil
}

// LessonPeriod is one column of the timetable, e.g. "7:30 - 8:15".
type LessonPeriod struct {
	From DayTime
	To   DayTime
}

func (p LessonPeriod) String() string {
	return p.From.String() + " - " + p.To.String()
}

// ParseLessonPeriod reads a "H:mm - H:mm" range.
func ParseLessonPeriod(s string) (LessonPeriod, error) {
	fromStr, toStr, found := strings.Cut(s, " - ")
	if !found {
		return LessonPeriod{}, fmt.Errorf("invalid lesson period %q", s)
	}
	from, err := ParseDayTime(fromStr)
	if err != nil {
		return LessonPeriod{}, err
	}
	to, err := ParseDayTime(toStr)
	if err != nil {
		return LessonPeriod{}, err
	}
	return LessonPeriod{From: from, To: to}, nil
}

// Lesson is one class in a lesson spot. A spot holds several lessons
// when the class is split into groups.
type Lesson struct {
	Subject Name
	// Class is the class name, present on teacher and room timetables.
	Class   string
	Teacher *Name
	Room    string
	Group   string
}

// LessonSpot is one cell of the timetable. An empty cell has no
// lessons. PeriodSpan is how many lesson periods the spot covers.
type LessonSpot struct {
	Lessons    []Lesson
	PeriodSpan int
}

func (s LessonSpot) Empty() bool {
	return len(s.Lessons) == 0
}

// Timetable is the parsed timetable grid.
type Timetable struct {
	Periods []LessonPeriod
	Days    map[time.Weekday][]LessonSpot
}

// PeriodOption is one entry of the timetable period dropdown.
type PeriodOption struct {
	ID int
	// Header labels irregular timetables, e.g. "Mimořádný rozvrh".
	// Empty for the regular one.
	Header string
	From   time.Time
	// To is zero for an open-ended period.
	To       time.Time
	Selected bool
}

// QueryParam encodes the option for the timetable page URL.
func (o PeriodOption) QueryParam() (key, value string) {
	return "timetableId", strconv.Itoa(o.ID)
}

// TimetablePage is the parsed content of the class timetable page.
type TimetablePage struct {
	Timetable     Timetable
	PeriodOptions []PeriodOption
	SchoolYear    schoolyear.SchoolYear
}

// SelectedOption returns the dropdown option the page was rendered for.
func (p *TimetablePage) SelectedOption() (PeriodOption, bool) {
	for _, option := range p.PeriodOptions {
		if option.Selected {
			return option, true
		}
	}
	return PeriodOption{}, false
}

// Timetable fetches the timetable page for the currently selected
// period.
func (c *Client) Timetable(ctx context.Context) (*TimetablePage, error) {
	ctx, span := tracer.Start(ctx, "view:Timetable")
	defer span.End()

	doc, err := c.fetchDocument(ctx, timetablePath, nil)
	if err != nil {
		return nil, err
	}
	return ParseTimetablePage(doc)
}

// TimetableFor fetches the timetable page for a school year, optionally
// narrowed to one period option.
func (c *Client) TimetableFor(ctx context.Context, year schoolyear.SchoolYear, option *PeriodOption) (*TimetablePage, error) {
	ctx, span := tracer.Start(ctx, "view:TimetableFor")
	defer span.End()

	query := url.Values{}
	key, value := year.QueryParam()
	query.Set(key, value)
	if option != nil {
		key, value = option.QueryParam()
		query.Set(key, value)
	}

	doc, err := c.fetchDocument(ctx, timetablePath, query)
	if err != nil {
		return nil, err
	}
	return ParseTimetablePage(doc)
}

var (
	periodOptionHeaderRegex = regexp.MustCompile(`^.*?( -)`)
	periodOptionDatesRegex  = regexp.MustCompile(`[Oo]d | do `)
)

// ParseTimetablePage parses the /timetable/class page.
func ParseTimetablePage(doc *goquery.Document) (*TimetablePage, error) {
	table, err := htmlutil.SelectFirst(doc.Selection, "table.timetable", "timetable")
	if err != nil {
		return nil, err
	}
	timetable, err := parseTimetable(table)
	if err != nil {
		return nil, err
	}

	page := &TimetablePage{Timetable: *timetable}

	var parseErr error
	doc.Find("#timetableId option").EachWithBreak(func(_ int, option *goquery.Selection) bool {
		parsed, err := parsePeriodOption(option)
		if err != nil {
			parseErr = err
			return false
		}
		page.PeriodOptions = append(page.PeriodOptions, parsed)
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

	return page, nil
}

func parseTimetable(table *goquery.Selection) (*Timetable, error) {
	timetable := &Timetable{Days: map[time.Weekday][]LessonSpot{}}

	rows := table.Find("tbody > tr")
	if rows.Length() == 0 {
		return nil, htmlutil.ElementNotFoundError{Name: "timetable rows", Selector: "tbody > tr"}
	}

	var parseErr error
	rows.First().Find("th.period").EachWithBreak(func(_ int, cell *goquery.Selection) bool {
		timeText, err := htmlutil.SelectFirst(cell, ".time", "lesson period time")
		if err != nil {
			parseErr = err
			return false
		}
		period, err := ParseLessonPeriod(htmlutil.CleanText(timeText.Text()))
		if err != nil {
			parseErr = err
			return false
		}
		timetable.Periods = append(timetable.Periods, period)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	rows.Slice(1, rows.Length()).EachWithBreak(func(_ int, row *goquery.Selection) bool {
		dayText, err := htmlutil.SelectFirst(row, ".day", "day label")
		if err != nil {
			parseErr = err
			return false
		}
		day, ok := parseWeekday(htmlutil.CleanText(dayText.Text()))
		if !ok {
			parseErr = fmt.Errorf("unknown day label %q", htmlutil.CleanText(dayText.Text()))
			return false
		}

		row.Find("td").EachWithBreak(func(_ int, cell *goquery.Selection) bool {
			spot := parseLessonSpot(cell)
			timetable.Days[day] = append(timetable.Days[day], spot)
			return true
		})
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	return timetable, nil
}

// parseWeekday resolves the two-letter Czech day abbreviations, with or
// without diacritics.
func parseWeekday(label string) (time.Weekday, bool) {
	switch strings.ToLower(label) {
	case "po":
		return time.Monday, true
	case "út", "ut":
		return time.Tuesday, true
	case "st":
		return time.Wednesday, true
	case "čt", "ct":
		return time.Thursday, true
	case "pá", "pa":
		return time.Friday, true
	case "so":
		return time.Saturday, true
	case "ne":
		return time.Sunday, true
	}
	return 0, false
}

func parseLessonSpot(cell *goquery.Selection) LessonSpot {
	span := 1
	if colspan, ok := cell.Attr("colspan"); ok {
		if parsed, err := strconv.Atoi(colspan); err == nil {
			span = parsed
		}
	}

	spot := LessonSpot{PeriodSpan: span}
	if cell.HasClass("empty") {
		return spot
	}

	cell.Find("div").Not(".lessonEmpty").Each(func(_ int, lessonEle *goquery.Selection) {
		subject := lessonEle.Find(".subject").First()
		if subject.Length() == 0 {
			return
		}

		lesson := Lesson{
			Subject: Name{
				Full:  subject.AttrOr("title", ""),
				Short: htmlutil.CleanText(subject.Text()),
			},
			Class: htmlutil.CleanText(lessonEle.Find(".class").First().Text()),
			Room:  htmlutil.CleanText(lessonEle.Find(".room").First().Text()),
			Group: htmlutil.CleanText(lessonEle.Find(".group").First().Text()),
		}

		employee := lessonEle.Find(".employee").First()
		if employee.Length() > 0 {
			lesson.Teacher = &Name{
				Full:  employee.AttrOr("title", ""),
				Short: htmlutil.CleanText(employee.Text()),
			}
		}

		spot.Lessons = append(spot.Lessons, lesson)
	})

	return spot
}

func parsePeriodOption(option *goquery.Selection) (PeriodOption, error) {
	text := htmlutil.CleanText(option.Text())

	id, err := strconv.Atoi(option.AttrOr("value", ""))
	if err != nil {
		return PeriodOption{}, fmt.Errorf("invalid period option value: %w", err)
	}

	parsed := PeriodOption{ID: id}
	_, parsed.Selected = option.Attr("selected")

	if match := periodOptionHeaderRegex.FindStringSubmatch(text); match != nil {
		parsed.Header = strings.TrimSuffix(match[0], match[1])
	}

	// "Od 1.9.2023 do 30.6.2024" or an open-ended "Od 1.9.2023"
	dates := periodOptionDatesRegex.Split(text, -1)
	if len(dates) < 2 {
		return PeriodOption{}, fmt.Errorf("period option %q has no dates", text)
	}
	parsed.From, err = schoolyear.ParseCzechDate(dates[1])
	if err != nil {
		return PeriodOption{}, err
	}
	if len(dates) > 2 {
		parsed.To, err = schoolyear.ParseCzechDate(dates[2])
		if err != nil {
			return PeriodOption{}, err
		}
	}

	return parsed, nil
}
