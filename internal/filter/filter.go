package filter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"truelens/internal/core"
	"truelens/internal/logger"
)

// Deduper answers whether an article is already present in the content store.
type Deduper interface {
	ArticleExists(ctx context.Context, outlet, externalID string) (bool, error)
	ArticleTitleExists(ctx context.Context, title string) (bool, error)
}

// IsMostlyEnglish reports whether more than 90% of the characters in s are
// ASCII (code point below 128). Empty strings are not English.
func IsMostlyEnglish(s string) bool {
	if s == "" {
		return false
	}
	total, ascii := 0, 0
	for _, r := range s {
		total++
		if r < 128 {
			ascii++
		}
	}
	return float64(ascii)/float64(total) > 0.9
}

// Eligible reduces scraped articles to the set worth processing: mostly
// English titles, published strictly after the sync watermark, and not
// already persisted. Dropped articles are logged, never errors.
func Eligible(ctx context.Context, articles []core.SourceArticle, watermark time.Time, dedup Deduper) ([]core.SourceArticle, error) {
	log := logger.Get()

	var eligible []core.SourceArticle
	for _, article := range articles {
		if !IsMostlyEnglish(article.Title) {
			log.Debug("dropping non-English article", "outlet", article.Outlet, "title", article.Title)
			continue
		}
		if !article.PublishedAt.After(watermark) {
			continue
		}

		seen, err := alreadyStored(ctx, article, dedup)
		if err != nil {
			return nil, fmt.Errorf("dedup lookup for %s/%s: %w", article.Outlet, article.ExternalID, err)
		}
		if seen {
			log.Debug("dropping already stored article", "outlet", article.Outlet, "external_id", article.ExternalID)
			continue
		}

		eligible = append(eligible, article)
	}

	logCounts(log, len(articles), len(eligible))
	return eligible, nil
}

func alreadyStored(ctx context.Context, article core.SourceArticle, dedup Deduper) (bool, error) {
	if dedup == nil {
		return false, nil
	}
	if exists, err := dedup.ArticleExists(ctx, article.Outlet, article.ExternalID); err != nil || exists {
		return exists, err
	}
	return dedup.ArticleTitleExists(ctx, article.Title)
}

func logCounts(log *slog.Logger, scraped, eligible int) {
	log.Info("filter pass completed", "scraped", scraped, "eligible", eligible, "dropped", scraped-eligible)
}
