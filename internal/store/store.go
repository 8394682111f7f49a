package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"truelens/internal/core"
)

// Store is the SQLite-backed content store: stories, articles, reporters,
// outlets and the configuration table that holds the sync watermark.
type Store struct {
	db   *sql.DB
	path string
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so the query helpers can run
// inside or outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// NewStore opens (creating if needed) the database under dataDir.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "truelens.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

func (s *Store) initialize() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS configuration (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS stories (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			summary TEXT NOT NULL,
			cover_url TEXT,
			status TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS outlets (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			site_url TEXT NOT NULL UNIQUE,
			logo_url TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS reporters (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL,
			is_system INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS articles (
			id TEXT PRIMARY KEY,
			story_id TEXT NOT NULL REFERENCES stories (id),
			reporter_id TEXT NOT NULL REFERENCES reporters (id),
			outlet_id TEXT NOT NULL REFERENCES outlets (id),
			external_id TEXT NOT NULL,
			external_url TEXT NOT NULL,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			published_at DATETIME NOT NULL,
			factuality REAL,
			UNIQUE (external_id, outlet_id)
		);`,
	}

	for _, table := range tables {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	// Seed the configuration keys the pipeline depends on.
	seed := `INSERT OR IGNORE INTO configuration (key, value) VALUES (?, ''), (?, '')`
	if _, err := s.db.Exec(seed, core.ConfigLastSyncDate, core.ConfigBreakingNewsStoryID); err != nil {
		return fmt.Errorf("failed to seed configuration: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetConfiguration returns the value for key, or empty string when unset.
func (s *Store) GetConfiguration(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM configuration WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get configuration %s: %w", key, err)
	}
	return value, nil
}

// SetConfiguration upserts the value for key.
func (s *Store) SetConfiguration(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO configuration (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set configuration %s: %w", key, err)
	}
	return nil
}

// LastSyncTime returns the sync watermark, or the zero time when no pass has
// completed yet.
func (s *Store) LastSyncTime(ctx context.Context) (time.Time, error) {
	value, err := s.GetConfiguration(ctx, core.ConfigLastSyncDate)
	if err != nil || value == "" {
		return time.Time{}, err
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s: %w", core.ConfigLastSyncDate, err)
	}
	return t, nil
}

// SetLastSyncTime advances the sync watermark. The watermark is monotonically
// non-decreasing: attempts to move it backwards are ignored.
func (s *Store) SetLastSyncTime(ctx context.Context, t time.Time) error {
	current, err := s.LastSyncTime(ctx)
	if err != nil {
		return err
	}
	if t.Before(current) {
		return nil
	}
	return s.SetConfiguration(ctx, core.ConfigLastSyncDate, t.UTC().Format(time.RFC3339))
}

// ArticleExists reports whether an article with the outlet and external id is
// already persisted.
func (s *Store) ArticleExists(ctx context.Context, outlet, externalID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM articles a JOIN outlets o ON a.outlet_id = o.id
		 WHERE o.name = ? AND a.external_id = ?`, outlet, externalID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("article exists lookup: %w", err)
	}
	return n > 0, nil
}

// ArticleTitleExists reports whether an article with the exact title is
// already persisted.
func (s *Store) ArticleTitleExists(ctx context.Context, title string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles WHERE title = ?`, title).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("article title lookup: %w", err)
	}
	return n > 0, nil
}

// OutletExists reports whether an outlet with the given site URL is persisted.
func (s *Store) OutletExists(ctx context.Context, siteURL string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outlets WHERE site_url = ?`, siteURL).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("outlet lookup: %w", err)
	}
	return n > 0, nil
}

// CreateStory persists a story. An empty ID is assigned a fresh UUID.
func (s *Store) CreateStory(ctx context.Context, story core.Story) (core.Story, error) {
	return createStory(ctx, s.db, story)
}

// CreateArticle persists an article. Re-ingesting an existing external id for
// the same outlet is a no-op.
func (s *Store) CreateArticle(ctx context.Context, article core.Article) error {
	return createArticle(ctx, s.db, article)
}

// FindReporterByName returns the reporter with the given name, or ok=false.
func (s *Store) FindReporterByName(ctx context.Context, name string) (core.Reporter, bool, error) {
	return findReporterByName(ctx, s.db, name)
}

// CreateReporter persists a reporter. An empty ID is assigned a fresh UUID.
func (s *Store) CreateReporter(ctx context.Context, reporter core.Reporter) (core.Reporter, error) {
	return createReporter(ctx, s.db, reporter)
}

// GetOrCreateOutlet returns the persisted outlet with the given name,
// creating it from the provided metadata when missing.
func (s *Store) GetOrCreateOutlet(ctx context.Context, outlet core.Outlet) (core.Outlet, error) {
	return getOrCreateOutlet(ctx, s.db, outlet)
}

// PersistCluster writes one cluster's story, articles and supporting reporter
// and outlet rows in a single transaction: either all rows for the cluster
// commit or none do. outlets maps outlet display names to their site metadata
// for get-or-create.
func (s *Store) PersistCluster(ctx context.Context, story core.Story, articles []core.SummarizedArticle, outlets map[string]core.Outlet, scored bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cluster transaction: %w", err)
	}
	defer tx.Rollback()

	persisted, err := createStory(ctx, tx, story)
	if err != nil {
		return err
	}

	for _, article := range articles {
		reporter, err := getOrCreateReporter(ctx, tx, article.Author, article.Outlet)
		if err != nil {
			return err
		}

		info := outlets[article.Outlet]
		info.Name = article.Outlet
		outlet, err := getOrCreateOutlet(ctx, tx, info)
		if err != nil {
			return err
		}

		row := core.Article{
			StoryID:     persisted.ID,
			ReporterID:  reporter.ID,
			OutletID:    outlet.ID,
			ExternalID:  article.ExternalID,
			ExternalURL: article.URL,
			Title:       article.Title,
			Content:     strings.Join(article.Body, "\n"),
			PublishedAt: article.PublishedAt,
		}
		if scored {
			factuality := article.Factuality
			row.Factuality = &factuality
		}

		if err := createArticle(ctx, tx, row); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cluster transaction: %w", err)
	}
	return nil
}

// Stats summarizes row counts, used for health reporting and tests.
type Stats struct {
	Stories   int `json:"stories"`
	Articles  int `json:"articles"`
	Reporters int `json:"reporters"`
	Outlets   int `json:"outlets"`
}

// Counts returns row counts per entity.
func (s *Store) Counts(ctx context.Context) (Stats, error) {
	var stats Stats
	for _, q := range []struct {
		table string
		out   *int
	}{
		{"stories", &stats.Stories},
		{"articles", &stats.Articles},
		{"reporters", &stats.Reporters},
		{"outlets", &stats.Outlets},
	} {
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+q.table).Scan(q.out); err != nil {
			return Stats{}, fmt.Errorf("count %s: %w", q.table, err)
		}
	}
	return stats, nil
}

func createStory(ctx context.Context, db dbtx, story core.Story) (core.Story, error) {
	if story.ID == "" {
		story.ID = uuid.NewString()
	}
	if story.Status == "" {
		story.Status = core.StoryNeedsApproval
	}
	now := time.Now().UTC()
	if story.CreatedAt.IsZero() {
		story.CreatedAt = now
	}
	story.UpdatedAt = now

	summary, err := json.Marshal(story.Summary)
	if err != nil {
		return core.Story{}, fmt.Errorf("marshal story summary: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO stories (id, title, summary, cover_url, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		story.ID, story.Title, string(summary), story.CoverURL, string(story.Status),
		story.CreatedAt, story.UpdatedAt)
	if err != nil {
		return core.Story{}, fmt.Errorf("create story: %w", err)
	}

	return story, nil
}

func createArticle(ctx context.Context, db dbtx, article core.Article) error {
	if article.ID == "" {
		article.ID = uuid.NewString()
	}

	var factuality any
	if article.Factuality != nil {
		factuality = *article.Factuality
	}

	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO articles
		 (id, story_id, reporter_id, outlet_id, external_id, external_url, title, content, published_at, factuality)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		article.ID, article.StoryID, article.ReporterID, article.OutletID,
		article.ExternalID, article.ExternalURL, article.Title, article.Content,
		article.PublishedAt, factuality)
	if err != nil {
		return fmt.Errorf("create article %s: %w", article.ExternalID, err)
	}
	return nil
}

func findReporterByName(ctx context.Context, db dbtx, name string) (core.Reporter, bool, error) {
	var reporter core.Reporter
	err := db.QueryRowContext(ctx,
		`SELECT id, name, email, is_system FROM reporters WHERE name = ?`, name).
		Scan(&reporter.ID, &reporter.Name, &reporter.Email, &reporter.IsSystem)
	if err == sql.ErrNoRows {
		return core.Reporter{}, false, nil
	}
	if err != nil {
		return core.Reporter{}, false, fmt.Errorf("find reporter %s: %w", name, err)
	}
	return reporter, true, nil
}

func createReporter(ctx context.Context, db dbtx, reporter core.Reporter) (core.Reporter, error) {
	if reporter.ID == "" {
		reporter.ID = uuid.NewString()
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO reporters (id, name, email, is_system) VALUES (?, ?, ?, ?)`,
		reporter.ID, reporter.Name, reporter.Email, reporter.IsSystem)
	if err != nil {
		return core.Reporter{}, fmt.Errorf("create reporter %s: %w", reporter.Name, err)
	}
	return reporter, nil
}

func getOrCreateReporter(ctx context.Context, db dbtx, author core.Author, outlet string) (core.Reporter, error) {
	existing, ok, err := findReporterByName(ctx, db, author.Name)
	if err != nil {
		return core.Reporter{}, err
	}
	if ok {
		return existing, nil
	}

	return createReporter(ctx, db, core.Reporter{
		Name:     author.Name,
		Email:    reporterEmail(author, outlet),
		IsSystem: author.IsSystem,
	})
}

// reporterEmail synthesizes a contact address for scraped bylines: system
// authors live under the truelens domain, named reporters under a slug of
// their outlet.
func reporterEmail(author core.Author, outlet string) string {
	cleanup := func(s string) string {
		return strings.ToLower(strings.Join(strings.Fields(s), ""))
	}
	if author.IsSystem {
		return author.Name + "@truelens.lk"
	}
	return cleanup(author.Name) + "@" + cleanup(outlet) + ".lk"
}

func getOrCreateOutlet(ctx context.Context, db dbtx, outlet core.Outlet) (core.Outlet, error) {
	var existing core.Outlet
	err := db.QueryRowContext(ctx,
		`SELECT id, name, site_url, logo_url FROM outlets WHERE name = ?`, outlet.Name).
		Scan(&existing.ID, &existing.Name, &existing.SiteURL, &existing.LogoURL)
	if err == nil {
		return existing, nil
	}
	if err != sql.ErrNoRows {
		return core.Outlet{}, fmt.Errorf("find outlet %s: %w", outlet.Name, err)
	}

	if outlet.ID == "" {
		outlet.ID = uuid.NewString()
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO outlets (id, name, site_url, logo_url) VALUES (?, ?, ?, ?)`,
		outlet.ID, outlet.Name, outlet.SiteURL, outlet.LogoURL)
	if err != nil {
		return core.Outlet{}, fmt.Errorf("create outlet %s: %w", outlet.Name, err)
	}
	return outlet, nil
}
