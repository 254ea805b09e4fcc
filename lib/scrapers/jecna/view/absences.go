package view

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"jecnaapi/lib/htmlutil"
	"jecnaapi/lib/schoolyear"

	"github.com/PuerkitoBio/goquery"
)

// AbsenceDay is one row of the absences table.
type AbsenceDay struct {
	Date       time.Time
	HoursTotal int
	// Note is the free text the class teacher appended after the hour
	// count, if any.
	Note string
}

// AbsencesPage is the parsed content of the student absences page.
type AbsencesPage struct {
	Days       []AbsenceDay
	SchoolYear schoolyear.SchoolYear
}

// Absences fetches the absences page for the currently selected school
// year.
func (c *Client) Absences(ctx context.Context) (*AbsencesPage, error) {
	ctx, span := tracer.Start(ctx, "view:Absences")
	defer span.End()

	doc, err := c.fetchDocument(ctx, absencesPath, nil)
	if err != nil {
		return nil, err
	}
	return ParseAbsencesPage(doc)
}

// AbsencesFor fetches the absences page for a specific school year.
func (c *Client) AbsencesFor(ctx context.Context, year schoolyear.SchoolYear) (*AbsencesPage, error) {
	ctx, span := tracer.Start(ctx, "view:AbsencesFor")
	defer span.End()

	query := url.Values{}
	key, value := year.QueryParam()
	query.Set(key, value)

	doc, err := c.fetchDocument(ctx, absencesPath, query)
	if err != nil {
		return nil, err
	}
	return ParseAbsencesPage(doc)
}

var hourCountRegex = regexp.MustCompile(`\d+`)

// ParseAbsencesPage parses the /absence/student page.
func ParseAbsencesPage(doc *goquery.Document) (*AbsencesPage, error) {
	page := &AbsencesPage{}

	year, err := selectedSchoolYear(doc)
	if err != nil {
		return nil, err
	}
	page.SchoolYear = year

	var parseErr error
	doc.Find(".absence-list > tbody > tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		dateCell, err := htmlutil.SelectFirst(row, ".date", "absence date")
		if err != nil {
			parseErr = err
			return false
		}
		countCell, err := htmlutil.SelectFirst(row, ".count", "absence hour count")
		if err != nil {
			parseErr = err
			return false
		}

		// the date is sometimes wrapped in a link to the day detail
		dateText := htmlutil.CleanText(dateCell.Text())
		if anchor := dateCell.Find("a").First(); anchor.Length() > 0 {
			dateText = htmlutil.CleanText(anchor.Text())
		}
		date, err := parseShortDate(doc, dateText)
		if err != nil {
			parseErr = err
			return false
		}

		countText := htmlutil.CleanText(countCell.Text())
		match := hourCountRegex.FindStringIndex(countText)
		if match == nil {
			// rows without an hour count carry no absence
			return true
		}
		hours, _ := strconv.Atoi(countText[match[0]:match[1]])

		page.Days = append(page.Days, AbsenceDay{
			Date:       date,
			HoursTotal: hours,
			Note:       htmlutil.CleanText(countText[match[1]:]),
		})
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	return page, nil
}
