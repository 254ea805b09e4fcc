// Package view fetches pages from the school portal and parses them
// into typed data. Each page has a Parse function working on raw HTML
// and a Client method that fetches the page and parses it, so the
// parsers stay usable on saved pages.
package view

import (
	"context"
	"net/url"
	"strings"

	"jecnaapi/lib/scrapers/jecna/core"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("scrapers/jecna/view")

const (
	newsPath          = "/akce"
	gradesPath        = "/score/student"
	timetablePath     = "/timetable/class"
	attendancesPath   = "/absence/passing-student"
	absencesPath      = "/absence/student"
	teachersPath      = "/ucitel"
	roomsPath         = "/ucebna"
	studentPath       = "/student"
	lockerPath        = "/locker/student"
	notificationsPath = "/user-student/record-list"
	notificationPath  = "/user-student/record"
)

// Name is a full name with an optional shorthand, e.g. a subject
// "Matematika" with short "M" or a teacher "Jan Novák" with short "No".
type Name struct {
	Full  string
	Short string
}

func (n Name) String() string {
	if n.Short == "" {
		return n.Full
	}
	return n.Full + " (" + n.Short + ")"
}

// Client reads typed data from the portal.
type Client struct {
	core *core.Client
}

func NewClient(core *core.Client) *Client {
	return &Client{core: core}
}

// Core exposes the underlying session client.
func (c *Client) Core() *core.Client {
	return c.core
}

func (c *Client) fetchDocument(ctx context.Context, path string, query url.Values) (*goquery.Document, error) {
	body, err := c.core.QueryBody(ctx, path, query)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(strings.NewReader(body))
}
