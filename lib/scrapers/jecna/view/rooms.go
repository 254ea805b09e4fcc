package view

import (
	"context"
	"regexp"
	"strings"

	"jecnaapi/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// RoomReference points to a room's detail page. Code is the short room
// code used in URLs, e.g. "U12" in /ucebna/U12.
type RoomReference struct {
	Name string
	Code string
}

// Rooms fetches the list of all school rooms.
func (c *Client) Rooms(ctx context.Context) ([]RoomReference, error) {
	ctx, span := tracer.Start(ctx, "view:Rooms")
	defer span.End()

	doc, err := c.fetchDocument(ctx, roomsPath, nil)
	if err != nil {
		return nil, err
	}
	return ParseRoomsPage(doc), nil
}

var parenthesisRegex = regexp.MustCompile(`\(.*\)`)

// ParseRoomsPage parses the /ucebna listing.
func ParseRoomsPage(doc *goquery.Document) []RoomReference {
	var rooms []RoomReference
	doc.Find("ul.list a.item").Each(func(_ int, anchor *goquery.Selection) {
		href := strings.TrimSpace(anchor.AttrOr("href", ""))
		code := strings.TrimPrefix(href, roomsPath+"/")
		if code == "" || code == href {
			return
		}

		label := htmlutil.CleanText(anchor.Find(".label").First().Text())
		if label == "" {
			return
		}
		name := strings.TrimSpace(parenthesisRegex.ReplaceAllString(label, ""))

		rooms = append(rooms, RoomReference{Name: name, Code: code})
	})
	return rooms
}
