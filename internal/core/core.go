package core

import (
	"strconv"
	"time"
)

// Author is the byline attached to a scraped article. When an outlet publishes
// without a named reporter the scraper synthesizes a system author named
// "system-<outlet_slug>" with IsSystem set.
type Author struct {
	Name     string `json:"name"`      // Reporter name, title-cased
	IsSystem bool   `json:"is_system"` // True for synthetic outlet bylines
}

// SourceArticle is a scraped, not-yet-persisted article record.
type SourceArticle struct {
	ExternalID    string    `json:"external_id"`               // Outlet-specific identifier extracted from the URL
	Title         string    `json:"title"`                     // Article headline
	URL           string    `json:"url"`                       // Canonical article URL
	CoverImageURL string    `json:"cover_image_url,omitempty"` // Lead image, if the detail page exposes one
	PublishedAt   time.Time `json:"published_at"`              // Publication instant, normalized to UTC
	Body          []string  `json:"body"`                      // Ordered body paragraphs; may be empty after retry exhaustion
	Outlet        string    `json:"outlet"`                    // Publisher display name
	Author        Author    `json:"author"`                    // Byline or synthetic system author
}

// SummarizedArticle is a SourceArticle plus its generated point-form summary
// and a factuality score. TempID correlates factuality scores back to articles
// within a single LLM call and is never persisted.
type SummarizedArticle struct {
	SourceArticle
	Summary    []string `json:"summary"`
	TempID     string   `json:"temp_id"`
	Factuality float64  `json:"factuality"`
}

// StoryFactualityReport maps each article's TempID to a factuality score in
// [0,1], where 0 is completely false and 1 is completely true.
type StoryFactualityReport map[string]float64

// ClusterKey identifies a bucket produced by the clustering engine: either a
// numbered cluster or the distinguished outlier bucket for articles that
// matched no other article.
type ClusterKey struct {
	id      int
	outlier bool
}

// Cluster returns the key for numbered cluster id.
func Cluster(id int) ClusterKey { return ClusterKey{id: id} }

// Outlier returns the key for the outlier bucket.
func Outlier() ClusterKey { return ClusterKey{outlier: true} }

// IsOutlier reports whether the key is the outlier bucket.
func (k ClusterKey) IsOutlier() bool { return k.outlier }

// ID returns the numeric cluster id. Only meaningful when IsOutlier is false.
func (k ClusterKey) ID() int { return k.id }

func (k ClusterKey) String() string {
	if k.outlier {
		return "outliers"
	}
	return strconv.Itoa(k.id)
}

// StoryStatus is the editorial lifecycle state of a persisted story.
type StoryStatus string

const (
	StoryNeedsApproval StoryStatus = "NEEDS_APPROVAL"
	StoryPublished     StoryStatus = "PUBLISHED"
)

// Story is the persisted representation of one cluster after summarization
// and factuality scoring.
type Story struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Summary   []string    `json:"summary"`   // Ordered point-form summary
	CoverURL  string      `json:"cover_url"` // Source URL of the cover image, if any
	Status    StoryStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Article is a persisted article belonging to exactly one story and reporter.
// ExternalID plus outlet uniquely identifies it; re-ingesting the same
// external id is a no-op.
type Article struct {
	ID          string    `json:"id"`
	StoryID     string    `json:"story_id"`
	ReporterID  string    `json:"reporter_id"`
	OutletID    string    `json:"outlet_id"`
	ExternalID  string    `json:"external_id"`
	ExternalURL string    `json:"external_url"`
	Title       string    `json:"title"`
	Content     string    `json:"content"` // Body paragraphs joined with newlines
	PublishedAt time.Time `json:"published_at"`
	Factuality  *float64  `json:"factuality,omitempty"` // Nil when scoring failed for this article's cluster
}

// Reporter is a persisted byline, looked up or created by name.
type Reporter struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	IsSystem bool   `json:"is_system"`
}

// Outlet is a persisted news publisher.
type Outlet struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	SiteURL string `json:"site_url"` // Origin URL, e.g. https://www.adaderana.lk
	LogoURL string `json:"logo_url"`
}

// Configuration keys persisted in the content store.
const (
	ConfigLastSyncDate        = "LAST_SYNC_DATE"
	ConfigBreakingNewsStoryID = "BREAKING_NEWS_STORY_ID"
)
