package view

import (
	"fmt"
	"time"

	"jecnaapi/lib/htmlutil"
	"jecnaapi/lib/schoolyear"

	"github.com/PuerkitoBio/goquery"
)

// selectedOption returns the selected option of a dropdown by its
// element id.
func selectedOption(doc *goquery.Document, selectID string) (*goquery.Selection, error) {
	return htmlutil.SelectFirst(doc.Selection, "#"+selectID+" > option[selected]", "selected "+selectID+" option")
}

// selectedSchoolYear reads the year dropdown every period-scoped page
// carries.
func selectedSchoolYear(doc *goquery.Document) (schoolyear.SchoolYear, error) {
	option, err := selectedOption(doc, "schoolYearId")
	if err != nil {
		return schoolyear.SchoolYear{}, err
	}
	return schoolyear.Parse(htmlutil.CleanText(option.Text()))
}

// selectedHalf reads the school year half dropdown.
func selectedHalf(doc *goquery.Document) (schoolyear.Half, error) {
	option, err := selectedOption(doc, "schoolYearHalfId")
	if err != nil {
		return 0, err
	}
	switch text := htmlutil.CleanText(option.Text()); text {
	case "1. pololetí":
		return schoolyear.FirstHalf, nil
	case "2. pololetí":
		return schoolyear.SecondHalf, nil
	default:
		return 0, fmt.Errorf("unknown school year half: %q", text)
	}
}

// selectedMonth reads the month dropdown.
func selectedMonth(doc *goquery.Document) (time.Month, error) {
	option, err := selectedOption(doc, "schoolYearPartMonthId")
	if err != nil {
		return 0, err
	}
	return schoolyear.ParseMonthName(htmlutil.CleanText(option.Text()))
}

// pageDate resolves a day and month from a period-scoped page into a
// full date, taking the year from the page's year dropdown and falling
// back to the current school year.
func pageDate(doc *goquery.Document, day int, month time.Month) time.Time {
	year, err := selectedSchoolYear(doc)
	if err != nil {
		year = schoolyear.Current()
	}
	return schoolyear.Date(year.CalendarYear(month), month, day)
}
