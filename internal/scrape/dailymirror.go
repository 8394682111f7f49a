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
	dailyMirrorOutlet     = "Daily Mirror"
	dailyMirrorSystemName = "system-daily_mirror"
	dailyMirrorListURL    = "https://www.dailymirror.lk/latest-news/108/%d"
	dailyMirrorPageSize   = 30
)

// dailyMirrorIDPattern extracts the numeric article id from URLs ending in
// /108-987654. The latest-news feed mixes in international and opinion pieces
// under other section ids; those simply don't match and are skipped.
var dailyMirrorIDPattern = regexp.MustCompile(`/108-(\d+)$`)

var dailyMirrorLayouts = []string{
	"2 January 2006 3:04 pm",
	"2 January 2006 3:04 PM",
	"2 Jan 2006 3:04 pm",
	"January 2, 2006 3:04 pm",
	"2006-01-02 15:04:05",
}

// DailyMirror scrapes the Daily Mirror breaking-news listing. Listing pages
// are addressed by a 0-based row offset in steps of 30. The detail page
// carries the byline and publication time, so those fields start as listing
// defaults and are overwritten by the detail fetch.
type DailyMirror struct {
	fetch *fetch.Client
	pages int
	log   *slog.Logger
}

// NewDailyMirror builds the adapter; pages defaults to 5 when non-positive.
func NewDailyMirror(fc *fetch.Client, pages int) *DailyMirror {
	if pages <= 0 {
		pages = 5
	}
	return &DailyMirror{fetch: fc, pages: pages, log: logger.Get()}
}

func (d *DailyMirror) Outlet() string { return dailyMirrorOutlet }

func (d *DailyMirror) PageCount() int { return d.pages }

// ScrapePage scrapes one listing page and enriches each article from its
// detail page concurrently.
func (d *DailyMirror) ScrapePage(ctx context.Context, page int) ([]core.SourceArticle, error) {
	doc, err := d.fetch.Document(ctx, fmt.Sprintf(dailyMirrorListURL, page*dailyMirrorPageSize))
	if err != nil {
		return nil, err
	}

	var articles []core.SourceArticle
	doc.Find("div.col-xl-9 > div.row > div.lineg > div.row").Each(func(_ int, sel *goquery.Selection) {
		header := sel.Find("h3.cat_title").First()
		title := strings.TrimSpace(header.Text())
		href, ok := header.Parent().Attr("href")
		if !ok || title == "" {
			return
		}

		match := dailyMirrorIDPattern.FindStringSubmatch(href)
		if match == nil {
			d.log.Debug("skipping item without external id", "outlet", dailyMirrorOutlet, "url", href)
			return
		}

		articles = append(articles, core.SourceArticle{
			ExternalID:  match[1],
			Title:       title,
			URL:         href,
			PublishedAt: time.Now().UTC(),
			Body:        nil,
			Outlet:      dailyMirrorOutlet,
			Author:      core.Author{Name: dailyMirrorSystemName, IsSystem: true},
		})
	})

	var wg sync.WaitGroup
	for i := range articles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d.fillDetail(ctx, &articles[i])
		}(i)
	}
	wg.Wait()

	return articles, nil
}

// fillDetail fetches the article page and fills body, byline, publication
// time and cover image in place.
func (d *DailyMirror) fillDetail(ctx context.Context, article *core.SourceArticle) {
	detail, body, err := fetchArticleDoc(ctx, d.fetch, article.URL, "div.a-content > p")
	if err != nil {
		d.log.Warn("detail fetch aborted", "outlet", dailyMirrorOutlet, "url", article.URL, "error", err)
		return
	}

	article.Body = body
	if detail == nil {
		return
	}

	meta := detail.Find("div.inner_news_body_area_end > div.container > div.row > div.col-xl-9 > div.row").First()

	publishedText := strings.TrimSpace(meta.Find("div.row > div.col-md-6 a").First().Text())
	publishedText = strings.TrimSpace(strings.TrimPrefix(publishedText, "Published :"))
	if publishedAt, ok := parseColomboTime(publishedText, dailyMirrorLayouts); ok {
		article.PublishedAt = publishedAt
	}

	if byline := strings.TrimSpace(meta.Find("div.row > div.row > div.col-8 > header > a").First().Text()); byline != "" {
		article.Author = core.Author{Name: titleCase(byline), IsSystem: false}
	}

	article.CoverImageURL = coverImage(detail)
}
