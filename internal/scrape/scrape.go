package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"truelens/internal/core"
	"truelens/internal/fetch"
	"truelens/internal/logger"
)

const (
	// bodyFetchAttempts bounds detail-page fetches when the body selector
	// yields no paragraphs: 1 initial attempt plus 4 retries.
	bodyFetchAttempts = 5
	bodyRetryBackoff  = time.Second
)

// colombo is the fixed UTC offset for outlet-local timestamps. Outlet pages
// publish wall-clock times without a zone; they must not be interpreted in
// the server's timezone.
var colombo = time.FixedZone("Asia/Colombo", 5*3600+30*60)

// Adapter scrapes one outlet. Page indexes passed to ScrapePage run from 0 to
// PageCount-1; each adapter maps them onto its own listing URL convention.
type Adapter interface {
	Outlet() string
	PageCount() int
	ScrapePage(ctx context.Context, page int) ([]core.SourceArticle, error)
}

// Runner fans out over every configured listing page of every adapter
// concurrently and collects the results into one flat slice. A failed listing
// page fails the whole run; per-item extraction problems are handled inside
// the adapters.
type Runner struct {
	adapters []Adapter
	log      *slog.Logger
}

// NewRunner builds a runner over the given outlet adapters.
func NewRunner(adapters ...Adapter) *Runner {
	return &Runner{adapters: adapters, log: logger.Get()}
}

// Run scrapes all adapters and returns the combined articles. Completion
// order between pages is not guaranteed; results are joined only after every
// page has settled.
func (r *Runner) Run(ctx context.Context) ([]core.SourceArticle, error) {
	type job struct {
		adapter Adapter
		page    int
	}

	var jobs []job
	for _, a := range r.adapters {
		for p := 0; p < a.PageCount(); p++ {
			jobs = append(jobs, job{adapter: a, page: p})
		}
	}

	// Result-slot join: each goroutine writes only its own index.
	slots := make([][]core.SourceArticle, len(jobs))
	errs := make([]error, len(jobs))

	var wg sync.WaitGroup
	for i, j := range jobs {
		wg.Add(1)
		go func(i int, j job) {
			defer wg.Done()
			articles, err := j.adapter.ScrapePage(ctx, j.page)
			if err != nil {
				errs[i] = fmt.Errorf("%s page %d: %w", j.adapter.Outlet(), j.page, err)
				return
			}
			slots[i] = articles
		}(i, j)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	var all []core.SourceArticle
	for _, page := range slots {
		all = append(all, page...)
	}

	r.log.Info("scrape run completed", "articles", len(all), "pages", len(jobs))
	return all, nil
}

// fetchArticleDoc fetches an article detail page, retrying with a fixed
// backoff while the body selector yields no paragraphs. After exhausting the
// attempts it returns whatever it has: callers persist an empty body rather
// than failing the batch. The returned document may be nil when every fetch
// failed outright.
func fetchArticleDoc(ctx context.Context, fc *fetch.Client, pageURL, bodySelector string) (*goquery.Document, []string, error) {
	var (
		doc  *goquery.Document
		body []string
	)

	for attempt := 1; attempt <= bodyFetchAttempts; attempt++ {
		fetched, err := fc.Document(ctx, pageURL)
		if err == nil {
			doc = fetched
			body = paragraphs(doc, bodySelector)
			if len(body) > 0 {
				return doc, body, nil
			}
		}

		if attempt == bodyFetchAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return doc, body, ctx.Err()
		case <-time.After(bodyRetryBackoff):
		}
	}

	return doc, body, nil
}

// paragraphs extracts trimmed, non-empty paragraph texts for a selector.
func paragraphs(doc *goquery.Document, selector string) []string {
	var out []string
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text != "" {
			out = append(out, text)
		}
	})
	return out
}

// coverImage returns the page's og:image URL, if declared.
func coverImage(doc *goquery.Document) string {
	content, _ := doc.Find("meta[property='og:image']").First().Attr("content")
	return content
}

// parseColomboTime parses an outlet-local timestamp against the given layouts
// and returns the UTC instant.
func parseColomboTime(value string, layouts []string) (time.Time, bool) {
	value = strings.Join(strings.Fields(value), " ")
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, value, colombo); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// titleCase normalizes a byline to name case: "jANE doe" -> "Jane Doe".
func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
