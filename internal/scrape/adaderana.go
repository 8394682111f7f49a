package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"truelens/internal/core"
	"truelens/internal/fetch"
	"truelens/internal/logger"
)

const (
	adaDeranaOutlet     = "Ada Derana"
	adaDeranaSystemName = "system-ada_derana"
	adaDeranaListURL    = "https://www.adaderana.lk/hot-news/?pageno=%d"
)

// adaDeranaIDPattern extracts the numeric article id embedded in URLs like
// https://www.adaderana.lk/news/123456/some-title.
var adaDeranaIDPattern = regexp.MustCompile(`news/(\d{1,6})`)

var adaDeranaLayouts = []string{
	"January 2, 2006 3:04 pm",
	"January 2, 2006 3:04 PM",
	"Jan 2, 2006 3:04 pm",
	"January 2, 2006 15:04",
}

// AdaDerana scrapes the Ada Derana hot-news listing. Listing pages are
// 1-based; every article carries the outlet's system byline since the site
// publishes without named reporters.
type AdaDerana struct {
	fetch *fetch.Client
	pages int
	log   *slog.Logger
}

// NewAdaDerana builds the adapter; pages defaults to 5 when non-positive.
func NewAdaDerana(fc *fetch.Client, pages int) *AdaDerana {
	if pages <= 0 {
		pages = 5
	}
	return &AdaDerana{fetch: fc, pages: pages, log: logger.Get()}
}

func (a *AdaDerana) Outlet() string { return adaDeranaOutlet }

func (a *AdaDerana) PageCount() int { return a.pages }

// ScrapePage scrapes one listing page and fills article bodies from the
// detail pages concurrently.
func (a *AdaDerana) ScrapePage(ctx context.Context, page int) ([]core.SourceArticle, error) {
	doc, err := a.fetch.Document(ctx, fmt.Sprintf(adaDeranaListURL, page+1))
	if err != nil {
		return nil, err
	}

	var articles []core.SourceArticle
	doc.Find("div > div.news-story").Each(func(_ int, sel *goquery.Selection) {
		header := sel.Find("h2 > a[target='_blank']").First()
		title := strings.TrimSpace(header.Text())
		href, ok := header.Attr("href")
		if !ok || title == "" {
			return
		}

		match := adaDeranaIDPattern.FindStringSubmatch(href)
		if match == nil {
			// Cross-category items without the id pattern are expected;
			// skip the item, not the page.
			a.log.Debug("skipping item without external id", "outlet", adaDeranaOutlet, "url", href)
			return
		}

		publishedText := strings.TrimPrefix(strings.TrimSpace(sel.Find("div.comments.pull-right span").Text()), "| ")
		publishedAt, ok := parseColomboTime(publishedText, adaDeranaLayouts)
		if !ok {
			publishedAt = time.Now().UTC()
		}

		articles = append(articles, core.SourceArticle{
			ExternalID:  match[1],
			Title:       title,
			URL:         href,
			PublishedAt: publishedAt,
			Body:        nil,
			Outlet:      adaDeranaOutlet,
			Author:      core.Author{Name: adaDeranaSystemName, IsSystem: true},
		})
	})

	var wg sync.WaitGroup
	for i := range articles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			detail, body, err := fetchArticleDoc(ctx, a.fetch, articles[i].URL, "div.news-content p")
			if err != nil {
				a.log.Warn("detail fetch aborted", "outlet", adaDeranaOutlet, "url", articles[i].URL, "error", err)
				return
			}
			articles[i].Body = body
			if detail != nil {
				if src, ok := detail.Find("div.news-banner img").First().Attr("src"); ok && src != "" {
					articles[i].CoverImageURL = src
				} else {
					articles[i].CoverImageURL = coverImage(detail)
				}
			}
		}(i)
	}
	wg.Wait()

	return articles, nil
}
