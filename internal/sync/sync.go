package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"truelens/internal/core"
	"truelens/internal/fetch"
	"truelens/internal/filter"
	"truelens/internal/logger"
)

// ErrSyncInProgress is returned when a pass is triggered while another pass
// is still running. Concurrent triggers are rejected, never queued.
var ErrSyncInProgress = errors.New("a sync pass is already in progress")

// State is the orchestrator's position in the current pass.
type State string

const (
	StateIdle           State = "IDLE"
	StateFetchingSource State = "FETCHING_SOURCE"
	StateFiltering      State = "FILTERING"
	StateClustering     State = "CLUSTERING"
	StateSummarizing    State = "SUMMARIZING"
	StatePersisting     State = "PERSISTING"
	StateError          State = "ERROR"
)

// Scraper produces the raw source snapshot for a pass.
type Scraper interface {
	Run(ctx context.Context) ([]core.SourceArticle, error)
}

// Clusterer groups filtered articles into story clusters.
type Clusterer interface {
	Cluster(ctx context.Context, articles []core.SourceArticle) (map[core.ClusterKey][]core.SourceArticle, error)
}

// Summarizer is the LLM-backed summarization and factuality client.
type Summarizer interface {
	Summarize(ctx context.Context, article core.SourceArticle) ([]string, error)
	Factualize(ctx context.Context, articles []core.SummarizedArticle) (core.StoryFactualityReport, error)
}

// ContentStore is the persistence surface the orchestrator needs.
type ContentStore interface {
	filter.Deduper
	LastSyncTime(ctx context.Context) (time.Time, error)
	SetLastSyncTime(ctx context.Context, t time.Time) error
	OutletExists(ctx context.Context, siteURL string) (bool, error)
	PersistCluster(ctx context.Context, story core.Story, articles []core.SummarizedArticle, outlets map[string]core.Outlet, scored bool) error
}

// OutletResolver resolves site metadata (origin, favicon) for new outlets.
// Nil lookups are fine; outlets then persist without logos.
type OutletResolver interface {
	Favicon(ctx context.Context, pageURL string) (string, error)
}

// Options tunes a pass.
type Options struct {
	// Pacing is the delay between consecutive per-article summarization
	// calls within a cluster.
	Pacing time.Duration
	// Deadline bounds a whole pass; zero means no deadline.
	Deadline time.Duration
}

// Orchestrator drives one sync pass at a time through the phases
// FETCHING_SOURCE, FILTERING, CLUSTERING, SUMMARIZING and PERSISTING.
type Orchestrator struct {
	scraper    Scraper
	clusterer  Clusterer
	summarizer Summarizer
	store      ContentStore
	resolver   OutletResolver
	opts       Options
	log        *slog.Logger

	running chan struct{} // 1-slot token; held while a pass runs

	stateMu sync.RWMutex
	state   State
}

// NewOrchestrator wires a sync orchestrator.
func NewOrchestrator(scraper Scraper, clusterer Clusterer, summarizer Summarizer, store ContentStore, resolver OutletResolver, opts Options) *Orchestrator {
	o := &Orchestrator{
		scraper:    scraper,
		clusterer:  clusterer,
		summarizer: summarizer,
		store:      store,
		resolver:   resolver,
		opts:       opts,
		log:        logger.Get(),
		running:    make(chan struct{}, 1),
		state:      StateIdle,
	}
	o.running <- struct{}{}
	return o
}

// State returns the orchestrator's current phase.
func (o *Orchestrator) State() State {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.stateMu.Lock()
	o.state = s
	o.stateMu.Unlock()
}

// Run executes one sync pass synchronously. A concurrent call while another
// pass is active returns ErrSyncInProgress immediately.
func (o *Orchestrator) Run(ctx context.Context) error {
	select {
	case <-o.running:
	default:
		return ErrSyncInProgress
	}
	defer func() { o.running <- struct{}{} }()

	return o.run(ctx)
}

// Start begins a pass asynchronously, reserving the single pass slot before
// returning. The trigger observes only pass-level acceptance; per-item
// degradations surface in persisted data and logs.
func (o *Orchestrator) Start(ctx context.Context) error {
	select {
	case <-o.running:
	default:
		return ErrSyncInProgress
	}

	go func() {
		defer func() { o.running <- struct{}{} }()
		if err := o.run(ctx); err != nil {
			o.log.Error("sync pass failed", "error", err)
		}
	}()

	return nil
}

func (o *Orchestrator) run(ctx context.Context) (err error) {
	if o.opts.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.Deadline)
		defer cancel()
	}

	started := time.Now()
	defer func() {
		if err != nil {
			o.setState(StateError)
		} else {
			o.setState(StateIdle)
		}
		o.log.Info("sync pass finished", "duration", time.Since(started).String(), "ok", err == nil)
	}()

	o.setState(StateFetchingSource)
	scraped, err := o.scraper.Run(ctx)
	if err != nil {
		return fmt.Errorf("fetching source: %w", err)
	}

	o.setState(StateFiltering)
	watermark, err := o.store.LastSyncTime(ctx)
	if err != nil {
		return fmt.Errorf("reading watermark: %w", err)
	}
	eligible, err := filter.Eligible(ctx, scraped, watermark, o.store)
	if err != nil {
		return fmt.Errorf("filtering: %w", err)
	}
	if len(eligible) == 0 {
		o.log.Info("no new articles, pass is a no-op")
		return nil
	}

	o.setState(StateClustering)
	clusters, err := o.clusterer.Cluster(ctx, eligible)
	if err != nil {
		return fmt.Errorf("clustering: %w", err)
	}

	// Persist cluster by cluster; a summarization or factuality failure is
	// fatal only for its own cluster. The outlier bucket holds articles that
	// matched nothing and never becomes a story.
	var (
		maxPersisted time.Time
		failures     int
	)
	for _, key := range sortedKeys(clusters) {
		articles := clusters[key]
		if err := ctx.Err(); err != nil {
			return o.finish(ctx, maxPersisted, err)
		}

		persistedMax, err := o.processCluster(ctx, key, articles)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return o.finish(ctx, maxPersisted, err)
			}
			o.log.Error("cluster failed", "cluster", key.String(), "error", err)
			failures++
			continue
		}
		if persistedMax.After(maxPersisted) {
			maxPersisted = persistedMax
		}
	}

	if err := o.finish(ctx, maxPersisted, nil); err != nil {
		return err
	}
	if failures > 0 {
		o.log.Warn("sync pass completed with cluster failures", "failed_clusters", failures)
	}
	return nil
}

// finish advances the watermark past the newest successfully persisted
// article, then returns cause. Already-committed clusters keep their state
// even when the pass aborts.
func (o *Orchestrator) finish(ctx context.Context, maxPersisted time.Time, cause error) error {
	if !maxPersisted.IsZero() {
		// Use a fresh context: the pass deadline must not block recording
		// work that already committed.
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := o.store.SetLastSyncTime(wctx, maxPersisted); err != nil {
			if cause == nil {
				return fmt.Errorf("advancing watermark: %w", err)
			}
			o.log.Error("failed to advance watermark", "error", err)
		}
	}
	return cause
}

// processCluster summarizes, factualizes and persists one cluster. It returns
// the newest published-at among the persisted articles.
func (o *Orchestrator) processCluster(ctx context.Context, key core.ClusterKey, articles []core.SourceArticle) (time.Time, error) {
	if key.IsOutlier() || len(articles) == 0 {
		return time.Time{}, nil
	}

	o.setState(StateSummarizing)
	o.log.Info("summarizing cluster", "cluster", key.String(), "articles", len(articles))

	var summarized []core.SummarizedArticle
	for i, article := range articles {
		if i > 0 && o.opts.Pacing > 0 {
			select {
			case <-ctx.Done():
				return time.Time{}, ctx.Err()
			case <-time.After(o.opts.Pacing):
			}
		}

		summary, err := o.summarizer.Summarize(ctx, article)
		if err != nil {
			if ctx.Err() != nil {
				return time.Time{}, ctx.Err()
			}
			// Exhausted retries exclude the article, not the cluster.
			o.log.Warn("summarization failed, excluding article",
				"outlet", article.Outlet, "external_id", article.ExternalID, "error", err)
			continue
		}

		summarized = append(summarized, core.SummarizedArticle{
			SourceArticle: article,
			Summary:       summary,
			TempID:        uuid.NewString(),
		})
	}
	if len(summarized) == 0 {
		return time.Time{}, fmt.Errorf("no articles in cluster %s could be summarized", key.String())
	}

	scored := true
	report, err := o.summarizer.Factualize(ctx, summarized)
	if err != nil {
		if ctx.Err() != nil {
			return time.Time{}, ctx.Err()
		}
		// The story still persists; its articles just carry no score.
		o.log.Warn("factuality scoring failed for cluster", "cluster", key.String(), "error", err)
		scored = false
	} else {
		for i := range summarized {
			summarized[i].Factuality = report[summarized[i].TempID]
		}
	}

	// The highest-scoring article names the story and provides its summary.
	selected := summarized[0]
	for _, article := range summarized[1:] {
		if article.Factuality > selected.Factuality {
			selected = article
		}
	}

	story := core.Story{
		Title:    selected.Title,
		Summary:  selected.Summary,
		CoverURL: clusterCover(summarized),
		Status:   core.StoryNeedsApproval,
	}

	o.setState(StatePersisting)
	outlets, err := o.resolveOutlets(ctx, summarized)
	if err != nil {
		return time.Time{}, err
	}
	if err := o.store.PersistCluster(ctx, story, summarized, outlets, scored); err != nil {
		return time.Time{}, fmt.Errorf("persisting cluster %s: %w", key.String(), err)
	}

	var newest time.Time
	for _, article := range summarized {
		if article.PublishedAt.After(newest) {
			newest = article.PublishedAt
		}
	}

	o.log.Info("cluster persisted", "cluster", key.String(), "story", story.Title, "articles", len(summarized))
	return newest, nil
}

// resolveOutlets builds the outlet metadata map for a cluster, fetching
// favicons only for outlets not yet persisted.
func (o *Orchestrator) resolveOutlets(ctx context.Context, articles []core.SummarizedArticle) (map[string]core.Outlet, error) {
	outlets := make(map[string]core.Outlet)
	for _, article := range articles {
		if _, done := outlets[article.Outlet]; done {
			continue
		}

		origin, err := fetch.Origin(article.URL)
		if err != nil {
			o.log.Warn("article has no usable origin", "url", article.URL, "error", err)
			outlets[article.Outlet] = core.Outlet{Name: article.Outlet}
			continue
		}

		info := core.Outlet{Name: article.Outlet, SiteURL: origin}
		exists, err := o.store.OutletExists(ctx, origin)
		if err != nil {
			return nil, err
		}
		if !exists && o.resolver != nil {
			if logo, err := o.resolver.Favicon(ctx, article.URL); err == nil {
				info.LogoURL = logo
			} else {
				o.log.Warn("favicon lookup failed", "outlet", article.Outlet, "error", err)
			}
		}
		outlets[article.Outlet] = info
	}
	return outlets, nil
}

func clusterCover(articles []core.SummarizedArticle) string {
	for _, article := range articles {
		if article.CoverImageURL != "" {
			return article.CoverImageURL
		}
	}
	return ""
}

func sortedKeys(clusters map[core.ClusterKey][]core.SourceArticle) []core.ClusterKey {
	keys := make([]core.ClusterKey, 0, len(clusters))
	for key := range clusters {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].IsOutlier() != keys[j].IsOutlier() {
			return !keys[i].IsOutlier()
		}
		return keys[i].ID() < keys[j].ID()
	})
	return keys
}
