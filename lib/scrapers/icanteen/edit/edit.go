// Package edit places and cancels lunch orders and moves them on and
// off the exchange. All operations go through the same dbProcessOrder
// AJAX endpoint the web frontend uses.
package edit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"sync"

	"jecnaapi/lib/htmlutil"
	"jecnaapi/lib/scrapers/icanteen/core"
	"jecnaapi/lib/scrapers/icanteen/view"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/icanteen/edit")

// ErrOrderRejected is reported when the portal refuses an order, most
// commonly because the deadline for the day already passed.
var ErrOrderRejected = errors.New("order rejected by canteen")

// CreditUnknown is returned in place of a credit amount when the
// portal's response carried none.
const CreditUnknown float64 = -1

// order paths embed a millisecond timestamp the server validates
// against the session. Every successful order returns a fresh one.
var orderTimeRegex = regexp.MustCompile(`(time=)\d{13}`)

// Client mutates orders on the canteen. Methods are safe for
// concurrent use, though the portal itself processes orders serially.
type Client struct {
	core *core.Client

	mu sync.Mutex
	// last order timestamp issued by the server, 0 before the first
	// order of the session
	lastTime int64
}

func NewClient(core *core.Client) *Client {
	return &Client{core: core}
}

// Core exposes the underlying session client.
func (c *Client) Core() *core.Client {
	return c.core
}

// Order toggles the order state of a menu item, ordering it when not
// ordered and cancelling it otherwise. Returns the new account credit,
// or CreditUnknown when the response carried none.
func (c *Client) Order(ctx context.Context, item view.MenuItem) (float64, error) {
	ctx, span := tracer.Start(ctx, "edit:Order")
	defer span.End()

	credit, err := c.processOrder(ctx, item.OrderPath)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return credit, err
}

// OrderFromExchange buys an offer from the exchange. The portal gives
// no usable feedback for these orders, refresh the exchange to confirm.
func (c *Client) OrderFromExchange(ctx context.Context, item view.ExchangeItem) error {
	ctx, span := tracer.Start(ctx, "edit:OrderFromExchange")
	defer span.End()

	// the endpoint answers exchange orders with a 500 even when the
	// order went through, so the error heuristic does not apply here
	_, err := c.core.QueryBody(ctx, "faces/secured/"+item.OrderPath, nil)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	// the state the timestamp belonged to is gone now
	c.mu.Lock()
	c.lastTime = 0
	c.mu.Unlock()
	return nil
}

// PutOnExchange offers an ordered menu item on the exchange.
func (c *Client) PutOnExchange(ctx context.Context, item view.MenuItem) error {
	ctx, span := tracer.Start(ctx, "edit:PutOnExchange")
	defer span.End()

	if item.PutOnExchangePath == "" {
		return fmt.Errorf("menu item %d cannot be offered on the exchange", item.Number)
	}
	_, err := c.processOrder(ctx, item.PutOnExchangePath)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// PutAwayFromExchange withdraws the item's offer from the exchange.
func (c *Client) PutAwayFromExchange(ctx context.Context, item view.MenuItem) error {
	ctx, span := tracer.Start(ctx, "edit:PutAwayFromExchange")
	defer span.End()

	if item.PutAwayFromExchangePath == "" {
		return fmt.Errorf("menu item %d is not on the exchange", item.Number)
	}
	_, err := c.processOrder(ctx, item.PutAwayFromExchangePath)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// processOrder fires one dbProcessOrder request with the path's
// timestamp refreshed and records the timestamp the server issued for
// the next order.
func (c *Client) processOrder(ctx context.Context, path string) (float64, error) {
	body, err := c.core.QueryBody(ctx, "faces/secured/"+c.freshenPath(path), nil)
	if err != nil {
		return 0, err
	}

	// same check the official frontend does
	if bytes.Contains(body, []byte("error")) {
		return 0, ErrOrderRejected
	}

	credit, time, err := parseOrderResponse(body)
	if err != nil {
		// the order went through, only the confirmation was odd
		return CreditUnknown, nil
	}

	c.mu.Lock()
	c.lastTime = time
	c.mu.Unlock()
	return credit, nil
}

// freshenPath substitutes the last server-issued timestamp into an
// order path. Paths from a stale menu page would otherwise be refused.
func (c *Client) freshenPath(path string) string {
	c.mu.Lock()
	lastTime := c.lastTime
	c.mu.Unlock()

	if lastTime == 0 {
		return path
	}
	return orderTimeRegex.ReplaceAllString(path, "${1}"+strconv.FormatInt(lastTime, 10))
}

func parseOrderResponse(body []byte) (credit float64, time int64, err error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return 0, 0, err
	}

	creditEle, err := htmlutil.SelectFirst(doc.Selection, "#Kredit", "credit")
	if err != nil {
		return 0, 0, err
	}
	timeEle, err := htmlutil.SelectFirst(doc.Selection, "#time", "order time")
	if err != nil {
		return 0, 0, err
	}

	credit, err = view.ParseCreditText(creditEle.Text())
	if err != nil {
		return 0, 0, err
	}
	time, err = strconv.ParseInt(htmlutil.CleanText(timeEle.Text()), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid order time: %w", err)
	}
	return credit, time, nil
}
