package view

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"jecnaapi/lib/htmlutil"
	"jecnaapi/lib/schoolyear"
	"jecnaapi/lib/timezone"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// ItemDescription is a menu item's food description split into the
// soup and the main course.
type ItemDescription struct {
	Soup string
	Main string
}

// MenuItem is one orderable lunch of a day.
type MenuItem struct {
	// Number is the lunch number, e.g. 2 for "Oběd 2".
	Number      int
	Description *ItemDescription
	Allergens   []string
	Price       float64
	// Enabled reports whether the order button is clickable.
	Enabled bool
	Ordered bool
	// InExchange reports whether the student's order of this item is
	// currently offered on the exchange.
	InExchange bool
	// OrderPath is the dbProcessOrder path that toggles the order.
	OrderPath string
	// PutOnExchangePath offers the ordered item on the exchange. Empty
	// when the item cannot be offered.
	PutOnExchangePath string
	// PutAwayFromExchangePath withdraws the item from the exchange.
	// Empty unless InExchange.
	PutAwayFromExchangePath string
}

// DayMenu is the menu of one day.
type DayMenu struct {
	Day   time.Time
	Items []MenuItem
}

// MenuPage is the whole visible menu plus the account credit.
type MenuPage struct {
	Days   []DayMenu
	Credit float64
}

// ExchangeItem is one offer on the lunch exchange.
type ExchangeItem struct {
	Number      int
	Description *ItemDescription
	Amount      int
	Day         time.Time
	// OrderPath is the dbProcessOrder path that buys the offer.
	OrderPath string
}

// ParseCreditText reads the credit amounts the portal prints, e.g.
// "1 234,50 Kč". Thousands may be separated by regular or non-breaking
// spaces.
func ParseCreditText(text string) (float64, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.ReplaceAll(cleaned, " Kč", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.ReplaceAll(cleaned, "\u00a0", "")
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid credit %q: %w", text, err)
	}
	return value, nil
}

func parseCreditElement(doc *goquery.Document) (float64, error) {
	credit, err := htmlutil.SelectFirst(doc.Selection, "#Kredit", "credit")
	if err != nil {
		return 0, err
	}
	return ParseCreditText(credit.Text())
}

// ParseMenuPage parses the mobile menu page with all visible days.
func ParseMenuPage(doc *goquery.Document) (*MenuPage, error) {
	page := &MenuPage{}

	var parseErr error
	doc.Find(".orderContent").EachWithBreak(func(_ int, dayEle *goquery.Selection) bool {
		menu, err := parseDayMenuElement(dayEle)
		if err != nil {
			parseErr = err
			return false
		}
		page.Days = append(page.Days, *menu)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	credit, err := parseCreditElement(doc)
	if err != nil {
		return nil, err
	}
	page.Credit = credit

	return page, nil
}

// ParseDayMenu parses a single day fetched through the AJAX day view.
func ParseDayMenu(doc *goquery.Document) (*DayMenu, error) {
	dayEle, err := htmlutil.SelectFirst(doc.Selection, ".orderContent", "day menu")
	if err != nil {
		return nil, err
	}
	return parseDayMenuElement(dayEle)
}

func parseDayMenuElement(dayEle *goquery.Selection) (*DayMenu, error) {
	// the element id carries the date: orderContent2023-09-08
	id := dayEle.AttrOr("id", "")
	day, err := time.ParseInLocation("2006-01-02", strings.TrimPrefix(id, "orderContent"), timezone.Location)
	if err != nil {
		return nil, fmt.Errorf("day menu id %q has no date: %w", id, err)
	}

	menu := &DayMenu{Day: day}
	var parseErr error
	dayEle.Find(".jidelnicekItem").EachWithBreak(func(_ int, item *goquery.Selection) bool {
		parsed, err := parseMenuItem(item)
		if err != nil {
			parseErr = err
			return false
		}
		menu.Items = append(menu.Items, parsed)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return menu, nil
}

var (
	// matches the dbProcessOrder path in the onclick of an order
	// button: ajaxOrder(this, 'db/dbProcessOrder.jsp?...', ...)
	ajaxOrderPathRegex = regexp.MustCompile(`ajaxOrder\s*\(.*?,\s*'([^']+\.jsp\?[^']*)'`)
	// matches the description "soup, ;main course" separator
	itemDescriptionRegex = regexp.MustCompile(`^(.*?), ;(.*)`)
)

func parseMenuItem(item *goquery.Selection) (MenuItem, error) {
	orderButton, err := htmlutil.SelectFirst(item, ".jidWrapLeft > a", "order button")
	if err != nil {
		return MenuItem{}, err
	}
	foodName, err := htmlutil.SelectFirst(item, ".jidWrapCenter", "food name")
	if err != nil {
		return MenuItem{}, err
	}
	numberEle, err := htmlutil.SelectFirst(orderButton, ".smallBoldTitle.button-link-align", "lunch number")
	if err != nil {
		return MenuItem{}, err
	}
	priceEle, err := htmlutil.SelectFirst(orderButton, ".important.warning.button-link-align", "order price")
	if err != nil {
		return MenuItem{}, err
	}

	number, err := strconv.Atoi(strings.TrimPrefix(htmlutil.CleanText(numberEle.Text()), "Oběd "))
	if err != nil {
		return MenuItem{}, fmt.Errorf("invalid lunch number: %w", err)
	}
	price, err := ParseCreditText(priceEle.Text())
	if err != nil {
		return MenuItem{}, err
	}

	orderPath, err := ajaxOrderPath(orderButton.AttrOr("onclick", ""))
	if err != nil {
		return MenuItem{}, err
	}

	parsed := MenuItem{
		Number:      number,
		Description: parseItemDescription(ownText(foodName)),
		Price:       price,
		Enabled:     !orderButton.HasClass("disabled"),
		Ordered:     orderButton.Find(".fa.fa-check.fa-2x").Length() > 0,
		OrderPath:   orderPath,
	}

	item.Find(".textGrey > .textGrey").Each(func(_ int, allergen *goquery.Selection) {
		if title, ok := allergen.Attr("title"); ok {
			parsed.Allergens = append(parsed.Allergens, htmlutil.CleanText(title))
		}
	})

	// the exchange button says "do burzy" before the item is offered
	// and "z burzy" after
	exchangeButton := findExchangeButton(item)
	if exchangeButton != nil {
		onclick := strings.TrimSpace(exchangeButton.AttrOr("onclick", ""))
		if strings.Contains(exchangeButton.Text(), "z burzy") {
			parsed.InExchange = true
			parsed.PutAwayFromExchangePath, err = ajaxOrderPath(onclick)
		} else {
			parsed.PutOnExchangePath, err = exchangePathWithAmountOne(onclick)
		}
		if err != nil {
			return MenuItem{}, err
		}
	}

	return parsed, nil
}

func findExchangeButton(item *goquery.Selection) *goquery.Selection {
	var found *goquery.Selection
	item.Find(".input-group *, .icons.jidWrapRight *").EachWithBreak(func(_ int, ele *goquery.Selection) bool {
		text := ownText(ele)
		if strings.Contains(text, "do burzy") || strings.Contains(text, "z burzy") {
			found = ele
			return false
		}
		return true
	})
	return found
}

func parseItemDescription(text string) *ItemDescription {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	match := itemDescriptionRegex.FindStringSubmatch(text)
	if match == nil {
		return nil
	}
	return &ItemDescription{
		Soup: htmlutil.CleanText(match[1]),
		Main: htmlutil.CleanText(match[2]),
	}
}

func ajaxOrderPath(onclick string) (string, error) {
	match := ajaxOrderPathRegex.FindStringSubmatch(onclick)
	if match == nil {
		return "", fmt.Errorf("no order path in onclick %q", onclick)
	}
	return match[1], nil
}

// exchangePathWithAmountOne reconstructs an exchange offer path from
// its onclick. The JS builds the URL by splicing an amount input value
// between two string literals:
//
//	ajaxOrder(this, 'db/dbProcessOrder.jsp?...&amount=' +
//	    $('#burza-amount123').val() + '&week=...', '...', '...')
//
// One portion is always offered, so the amount is fixed to 1.
func exchangePathWithAmountOne(onclick string) (string, error) {
	comma := strings.Index(onclick, ",")
	if comma < 0 {
		return "", fmt.Errorf("malformed exchange onclick %q", onclick)
	}
	rest := strings.TrimSpace(onclick[comma+1:])

	end := strings.Index(rest, "', '")
	if end < 0 {
		return "", fmt.Errorf("malformed exchange onclick %q", onclick)
	}
	expression := rest[:end]

	var literals []string
	for _, part := range strings.Split(expression, "+") {
		part = strings.TrimSpace(part)
		if !strings.HasPrefix(part, "'") || strings.Contains(part, "$(") {
			continue
		}
		literals = append(literals, strings.Trim(part, "'"))
	}
	if len(literals) < 2 || !strings.HasSuffix(literals[0], "amount=") {
		return "", fmt.Errorf("malformed exchange onclick %q", onclick)
	}

	return literals[0] + "1" + literals[1], nil
}

// ownText collects the direct text nodes of a selection, without the
// text of child elements.
func ownText(sel *goquery.Selection) string {
	var buf strings.Builder
	for _, node := range sel.Nodes {
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == html.TextNode {
				buf.WriteString(child.Data)
			}
		}
	}
	return buf.String()
}

// ParseExchange parses the burza page table.
func ParseExchange(doc *goquery.Document) ([]ExchangeItem, error) {
	table, err := htmlutil.SelectFirst(doc.Selection, "table.tableDataShow > tbody", "exchange table")
	if err != nil {
		return nil, err
	}

	var items []ExchangeItem
	var parseErr error
	table.Find(".mouseOutRow").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		item, err := parseExchangeRow(row)
		if err != nil {
			parseErr = err
			return false
		}
		items = append(items, item)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return items, nil
}

var exchangeOnclickPathRegex = regexp.MustCompile(`'([^']+)'`)

func parseExchangeRow(row *goquery.Selection) (ExchangeItem, error) {
	cells := row.Find("td")
	if cells.Length() < 6 {
		return ExchangeItem{}, fmt.Errorf("exchange row has %d cells, want 6", cells.Length())
	}

	number, err := strconv.Atoi(strings.TrimPrefix(htmlutil.CleanText(cells.Eq(0).Text()), "Oběd "))
	if err != nil {
		return ExchangeItem{}, fmt.Errorf("invalid exchange lunch number: %w", err)
	}

	dayStr := schoolyear.DateRegex.FindString(cells.Eq(1).Text())
	if dayStr == "" {
		return ExchangeItem{}, fmt.Errorf("no date in exchange row %q", cells.Eq(1).Text())
	}
	day, err := schoolyear.ParseCzechDate(dayStr)
	if err != nil {
		return ExchangeItem{}, err
	}

	amount, err := strconv.Atoi(strings.TrimSuffix(htmlutil.CleanText(cells.Eq(4).Text()), " ks"))
	if err != nil {
		return ExchangeItem{}, fmt.Errorf("invalid exchange amount: %w", err)
	}

	button, err := htmlutil.SelectFirst(cells.Eq(5), "input", "exchange order button")
	if err != nil {
		return ExchangeItem{}, err
	}
	path := ""
	if match := exchangeOnclickPathRegex.FindStringSubmatch(button.AttrOr("onclick", "")); match != nil {
		path = strings.ReplaceAll(match[1], "&amp;", "&")
	}

	return ExchangeItem{
		Number:      number,
		Description: parseItemDescription(cells.Eq(2).Text()),
		Amount:      amount,
		Day:         day,
		OrderPath:   path,
	}, nil
}
