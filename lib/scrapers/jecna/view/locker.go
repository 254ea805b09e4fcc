package view

import (
	"context"
	"regexp"
	"strings"
	"time"

	"jecnaapi/lib/htmlutil"
	"jecnaapi/lib/schoolyear"

	"github.com/PuerkitoBio/goquery"
)

// Locker is the student's assigned locker. Nothing is returned when no
// locker is assigned.
type Locker struct {
	Number       string
	Description  string
	AssignedFrom time.Time
	// AssignedUntil is zero while the assignment is still running.
	AssignedUntil time.Time
}

// Locker fetches the student's locker assignment. Returns nil without
// an error when the student has none.
func (c *Client) Locker(ctx context.Context) (*Locker, error) {
	ctx, span := tracer.Start(ctx, "view:Locker")
	defer span.End()

	doc, err := c.fetchDocument(ctx, lockerPath, nil)
	if err != nil {
		return nil, err
	}
	return ParseLockerPage(doc), nil
}

var (
	lockerNumberRegex      = regexp.MustCompile(`skříňka\s+č\.\s+(\d+)`)
	lockerDescriptionRegex = regexp.MustCompile(`\(([^)]+)\)`)
	lockerDatesRegex       = regexp.MustCompile(`od\s+([\d.]+)\s+do\s+(současnosti|[\d.]+)`)
)

// ParseLockerPage parses the /locker/student page. The locker entry is
// a single free text label, e.g. "skříňka č. 300 (Přízemí, 4. ulička)
// od 1.9.2022 do současnosti".
func ParseLockerPage(doc *goquery.Document) *Locker {
	label := doc.Find("ul.list li .item .label").First()
	if label.Length() == 0 {
		return nil
	}
	text := htmlutil.CleanText(label.Text())

	numberMatch := lockerNumberRegex.FindStringSubmatch(text)
	descriptionMatch := lockerDescriptionRegex.FindStringSubmatch(text)
	if numberMatch == nil || descriptionMatch == nil {
		return nil
	}

	locker := &Locker{
		Number:      numberMatch[1],
		Description: descriptionMatch[1],
	}

	if dates := lockerDatesRegex.FindStringSubmatch(text); dates != nil {
		if from, err := schoolyear.ParseCzechDate(dates[1]); err == nil {
			locker.AssignedFrom = from
		}
		if !strings.Contains(dates[2], "současnosti") {
			if until, err := schoolyear.ParseCzechDate(dates[2]); err == nil {
				locker.AssignedUntil = until
			}
		}
	}

	return locker
}
