package view

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"jecnaapi/lib/htmlutil"
	"jecnaapi/lib/schoolyear"

	"github.com/PuerkitoBio/goquery"
)

type NotificationType int

const (
	// NotificationGood is a commendation, shown with a tick icon.
	NotificationGood NotificationType = iota
	// NotificationBad is a reprimand, shown with a cross icon.
	NotificationBad
	// NotificationInformation is a neutral notice, shown with a gavel
	// icon.
	NotificationInformation
)

// NotificationReference points to a notification detail page.
type NotificationReference struct {
	Type     NotificationType
	Message  string
	RecordID int
}

// Notification is the full detail of one notification.
type Notification struct {
	Type NotificationType
	// ExactType is the server's own label, e.g. "pochvala třídního
	// učitele".
	ExactType  string
	Date       time.Time
	Message    string
	IssuedBy   *TeacherReference
	CaseNumber string
}

var notificationIDRegex = regexp.MustCompile(`userStudentRecordId=(\d+)`)

// Notifications fetches the list of the student's notifications.
func (c *Client) Notifications(ctx context.Context) ([]NotificationReference, error) {
	ctx, span := tracer.Start(ctx, "view:Notifications")
	defer span.End()

	doc, err := c.fetchDocument(ctx, notificationsPath, nil)
	if err != nil {
		return nil, err
	}
	return ParseNotifications(doc)
}

// Notification fetches the detail of a single notification.
func (c *Client) Notification(ctx context.Context, ref NotificationReference) (*Notification, error) {
	ctx, span := tracer.Start(ctx, "view:Notification")
	defer span.End()

	query := url.Values{}
	query.Set("userStudentRecordId", strconv.Itoa(ref.RecordID))
	doc, err := c.fetchDocument(ctx, notificationPath, query)
	if err != nil {
		return nil, err
	}
	return ParseNotification(doc)
}

// ParseNotifications parses the /user-student/record-list page.
func ParseNotifications(doc *goquery.Document) ([]NotificationReference, error) {
	var refs []NotificationReference
	var parseErr error
	doc.Find("ul.list li > a").EachWithBreak(func(_ int, anchor *goquery.Selection) bool {
		ref, err := parseNotificationAnchor(anchor)
		if err != nil {
			parseErr = err
			return false
		}
		// the list prefixes each message with its date, the reference
		// keeps the message alone
		if _, rest, found := strings.Cut(ref.Message, ", "); found {
			ref.Message = rest
		}
		refs = append(refs, ref)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return refs, nil
}

// ParseNotification parses a /user-student/record detail page.
func ParseNotification(doc *goquery.Document) (*Notification, error) {
	table, err := htmlutil.SelectFirst(doc.Selection, "table.userprofile", "notification table")
	if err != nil {
		return nil, err
	}
	icon, err := htmlutil.SelectFirst(doc.Selection, "h1 > span.icon", "notification icon")
	if err != nil {
		return nil, err
	}

	notification := &Notification{Type: notificationTypeFromIcon(icon)}

	rows := tableRowsByLabel(table)
	if value, ok := rows["Typ"]; ok {
		notification.ExactType = htmlutil.CleanText(value.Text())
	}
	if value, ok := rows["Sdělení"]; ok {
		notification.Message = htmlutil.CleanText(value.Text())
	}
	if value, ok := rows["Číslo jednací"]; ok {
		notification.CaseNumber = htmlutil.CleanText(value.Text())
	}
	if value, ok := rows["Datum"]; ok {
		date, err := schoolyear.ParseCzechDate(htmlutil.CleanText(value.Text()))
		if err != nil {
			return nil, err
		}
		notification.Date = date
	}
	if value, ok := rows["Udělil"]; ok {
		anchor := value.Find("a").First()
		if anchor.Length() > 0 {
			href := anchor.AttrOr("href", "")
			notification.IssuedBy = &TeacherReference{
				FullName: htmlutil.CleanText(anchor.Find(".label").Text()),
				Tag:      href[strings.LastIndex(href, "/")+1:],
			}
		}
	}

	return notification, nil
}

// tableRowsByLabel indexes a .userprofile table's value cells by their
// label cell text.
func tableRowsByLabel(table *goquery.Selection) map[string]*goquery.Selection {
	rows := map[string]*goquery.Selection{}
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		label := row.Find(".label").First()
		value := row.Find(".value,.link").First()
		if label.Length() > 0 && value.Length() > 0 {
			rows[htmlutil.CleanText(label.Text())] = value
		}
	})
	return rows
}

func parseNotificationAnchor(anchor *goquery.Selection) (NotificationReference, error) {
	icon, err := htmlutil.SelectFirst(anchor, ".sprite-icon-16", "notification icon")
	if err != nil {
		return NotificationReference{}, err
	}
	label, err := htmlutil.SelectFirst(anchor, ".label", "notification message")
	if err != nil {
		return NotificationReference{}, err
	}

	id := 0
	if match := notificationIDRegex.FindStringSubmatch(anchor.AttrOr("href", "")); match != nil {
		id, _ = strconv.Atoi(match[1])
	}

	return NotificationReference{
		Type:     notificationTypeFromIcon(icon),
		Message:  htmlutil.CleanText(label.Text()),
		RecordID: id,
	}, nil
}

func notificationTypeFromIcon(icon *goquery.Selection) NotificationType {
	switch {
	case icon.HasClass("sprite-icon-tick-16") || icon.HasClass("sprite-icon-tick-32"):
		return NotificationGood
	case icon.HasClass("sprite-icon-auction_hammer_gavel-16") || icon.HasClass("sprite-icon-auction_hammer_gavel-32"):
		return NotificationInformation
	default:
		return NotificationBad
	}
}
