// Package view reads menus, credit and the lunch exchange from an
// iCanteen portal. Parse functions work on raw HTML so they stay
// usable on saved pages, the Client methods fetch and parse.
package view

import (
	"bytes"
	"context"
	"net/url"
	"sync"
	"time"

	"jecnaapi/lib/scrapers/icanteen/core"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("scrapers/icanteen/view")

const (
	menuPath     = "faces/secured/mobile.jsp"
	dayMenuPath  = "faces/secured/db/dbJidelnicekOnDayView.jsp"
	creditPath   = "faces/secured/main.jsp"
	exchangePath = "faces/secured/burza.jsp"
)

// Client reads typed data from the canteen.
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
	return goquery.NewDocumentFromReader(bytes.NewReader(body))
}

// Menu fetches the whole visible menu plus the account credit in one
// page load. Prefer StreamDayMenus when only some days are needed.
func (c *Client) Menu(ctx context.Context) (*MenuPage, error) {
	ctx, span := tracer.Start(ctx, "view:Menu")
	defer span.End()

	doc, err := c.fetchDocument(ctx, menuPath, nil)
	if err != nil {
		return nil, err
	}
	return ParseMenuPage(doc)
}

// DayMenu fetches the menu of a single day through the same AJAX
// endpoint the web frontend uses.
func (c *Client) DayMenu(ctx context.Context, day time.Time) (*DayMenu, error) {
	ctx, span := tracer.Start(ctx, "view:DayMenu")
	defer span.End()

	query := url.Values{}
	query.Set("day", day.Format("2006-01-02"))
	doc, err := c.fetchDocument(ctx, dayMenuPath, query)
	if err != nil {
		return nil, err
	}
	return ParseDayMenu(doc)
}

// DayMenuResult is one result of a StreamDayMenus fan out.
type DayMenuResult struct {
	Menu *DayMenu
	Err  error
}

// StreamDayMenus fetches the menus of all given days concurrently and
// delivers them on the returned channel as they arrive, in no
// particular order. The channel is closed after the last result.
func (c *Client) StreamDayMenus(ctx context.Context, days []time.Time) <-chan DayMenuResult {
	ctx, span := tracer.Start(ctx, "view:StreamDayMenus")

	results := make(chan DayMenuResult, len(days))
	var wg sync.WaitGroup
	for _, day := range days {
		wg.Add(1)
		go func(day time.Time) {
			defer wg.Done()
			menu, err := c.DayMenu(ctx, day)
			results <- DayMenuResult{Menu: menu, Err: err}
		}(day)
	}
	go func() {
		wg.Wait()
		span.End()
		close(results)
	}()
	return results
}

// Credit fetches the current account credit in Kč.
func (c *Client) Credit(ctx context.Context) (float64, error) {
	ctx, span := tracer.Start(ctx, "view:Credit")
	defer span.End()

	doc, err := c.fetchDocument(ctx, creditPath, nil)
	if err != nil {
		return 0, err
	}
	return parseCreditElement(doc)
}

// Exchange fetches the items currently offered on the lunch exchange.
func (c *Client) Exchange(ctx context.Context) ([]ExchangeItem, error) {
	ctx, span := tracer.Start(ctx, "view:Exchange")
	defer span.End()

	doc, err := c.fetchDocument(ctx, exchangePath, nil)
	if err != nil {
		return nil, err
	}
	return ParseExchange(doc)
}
