package view

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"jecnaapi/lib/htmlutil"
	"jecnaapi/lib/schoolyear"
	"jecnaapi/lib/timezone"

	"github.com/PuerkitoBio/goquery"
)

// ArticleFile is a downloadable attachment of an article.
type ArticleFile struct {
	Label        string
	DownloadPath string
}

// Article is one entry of the school news feed.
type Article struct {
	Title   string
	Content string
	// HTMLContent keeps the article body markup for rendering.
	HTMLContent string
	Date        time.Time
	Author      string
	// SchoolOnly articles are not shown to the public.
	SchoolOnly bool
	Files      []ArticleFile
	// Images are paths to the article's photo gallery.
	Images []string
}

// News fetches and parses the school news feed.
func (c *Client) News(ctx context.Context) ([]Article, error) {
	ctx, span := tracer.Start(ctx, "view:News")
	defer span.End()

	doc, err := c.fetchDocument(ctx, newsPath, nil)
	if err != nil {
		return nil, err
	}
	return ParseNewsPage(doc)
}

// articleDateRegex matches "5. září" style dates, with the month name
// in genitive.
var articleDateRegex = regexp.MustCompile(`(\d{1,2})\.\s*(\p{L}+)`)

// ParseNewsPage parses the /akce page.
func ParseNewsPage(doc *goquery.Document) ([]Article, error) {
	var articles []Article
	var parseErr error
	doc.Find(".event").EachWithBreak(func(_ int, event *goquery.Selection) bool {
		article, err := parseArticle(event)
		if err != nil {
			parseErr = err
			return false
		}
		articles = append(articles, article)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return articles, nil
}

func parseArticle(event *goquery.Selection) (Article, error) {
	title, err := htmlutil.SelectFirst(event, ".name", "article title")
	if err != nil {
		return Article{}, err
	}
	text, err := htmlutil.SelectFirst(event, ".text", "article text")
	if err != nil {
		return Article{}, err
	}
	footer, err := htmlutil.SelectFirst(event, ".footer", "article footer")
	if err != nil {
		return Article{}, err
	}

	article := Article{
		Title:   htmlutil.CleanText(title.Text()),
		Content: htmlutil.CleanText(text.Text()),
	}
	if html, err := text.Html(); err == nil {
		article.HTMLContent = strings.TrimSpace(html)
	}

	event.Find(".files li a").Each(func(_ int, anchor *goquery.Selection) {
		article.Files = append(article.Files, ArticleFile{
			Label:        htmlutil.CleanText(anchor.Find(".label").Text()),
			DownloadPath: anchor.AttrOr("href", ""),
		})
	})
	event.Find(".images a").Each(func(_ int, anchor *goquery.Selection) {
		if href, ok := anchor.Attr("href"); ok {
			article.Images = append(article.Images, href)
		}
	})

	// the date either has its own element or leads the footer, the
	// author and visibility follow in "|" separated fields
	footerFields := strings.Split(htmlutil.CleanText(footer.Text()), " | ")
	if dateEle := event.Find(".date").First(); dateEle.Length() > 0 {
		article.Date, err = parseArticleDate(htmlutil.CleanText(dateEle.Text()))
		if err != nil {
			return Article{}, err
		}
		article.Author = footerFields[0]
		article.SchoolOnly = len(footerFields) == 2
	} else {
		if len(footerFields) < 2 {
			return Article{}, fmt.Errorf("article footer %q has no author", footer.Text())
		}
		article.Date, err = parseArticleDate(footerFields[0])
		if err != nil {
			return Article{}, err
		}
		article.Author = footerFields[1]
		article.SchoolOnly = len(footerFields) == 3
	}

	return article, nil
}

// parseArticleDate reads a "5. září" date. The feed only shows the
// current school year, so the year comes from the clock.
func parseArticleDate(text string) (time.Time, error) {
	match := articleDateRegex.FindStringSubmatch(text)
	if match == nil {
		return time.Time{}, fmt.Errorf("no date in %q", text)
	}
	day, _ := strconv.Atoi(match[1])
	month, err := schoolyear.ParseMonthNameGenitive(match[2])
	if err != nil {
		return time.Time{}, err
	}
	return schoolyear.Date(timezone.Now().Year(), month, day), nil
}
