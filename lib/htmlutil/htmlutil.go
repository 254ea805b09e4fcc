package htmlutil

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// ElementNotFoundError reports that a page is missing an element the
// scraper depends on. It usually means the site changed its markup or the
// client is looking at a different page than it thinks (e.g. an error
// page), as opposed to bad credentials or a transport failure.
type ElementNotFoundError struct {
	// human readable name of what was being looked for
	Name string
	// the selector that matched nothing, may be empty
	Selector string
}

func (e ElementNotFoundError) Error() string {
	if e.Selector == "" {
		return fmt.Sprintf("element not found: %s", e.Name)
	}
	return fmt.Sprintf("element not found: %s (selector %q)", e.Name, e.Selector)
}

// SelectFirst returns the first node matching the selector or an
// ElementNotFoundError naming the missing element.
func SelectFirst(root *goquery.Selection, selector, name string) (*goquery.Selection, error) {
	sel := root.Find(selector).First()
	if sel.Length() == 0 {
		return nil, ElementNotFoundError{Name: name, Selector: selector}
	}
	return sel, nil
}

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

// CleanText collapses runs of whitespace, strips non-printable runes and
// trims the result. Portal pages pad their labels with layout whitespace.
func CleanText(s string) string {
	out := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			out.WriteRune(c)
		}
	}
	cleaned := strings.Trim(out.String(), " \t\n")
	return innerWhitespace.ReplaceAllString(cleaned, " ")
}

// NormalizedText is sel.Text() run through CleanText, with non-breaking
// spaces folded into regular ones first.
func NormalizedText(sel *goquery.Selection) string {
	return CleanText(strings.ReplaceAll(sel.Text(), " ", " "))
}

type Anchor struct {
	Name string
	Href string
}

// GetAnchors collects the (cleaned label, href) pairs of all anchor nodes
// in the selection.
func GetAnchors(sel *goquery.Selection) []Anchor {
	anchors := []Anchor{}
	for _, n := range sel.Nodes {
		href := ""
		for _, a := range n.Attr {
			if a.Key == "href" {
				href = a.Val
				break
			}
		}
		anchors = append(anchors, Anchor{
			Name: CleanText(GetText(n)),
			Href: href,
		})
	}
	return anchors
}
