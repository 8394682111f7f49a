package handlers

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"truelens/internal/cluster"
	"truelens/internal/config"
	"truelens/internal/fetch"
	"truelens/internal/llm"
	"truelens/internal/scrape"
	"truelens/internal/store"
	syncpkg "truelens/internal/sync"
)

var cfgFile string

// NewRootCmd creates the base truelens command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "truelens",
		Short: "TrueLens ingests Sri Lankan news, clusters it into stories, and scores factuality",
		Long: `TrueLens scrapes Ada Derana and Daily Mirror, filters and deduplicates
new articles, clusters related coverage into stories, summarizes each
cluster with Gemini, and persists the result for editorial review.`,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .truelens.yaml)")

	rootCmd.AddCommand(NewSyncCmd())
	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewStatsCmd())

	return rootCmd
}

// Execute runs the CLI.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// pipeline bundles everything a sync pass needs.
type pipeline struct {
	orch  *syncpkg.Orchestrator
	store *store.Store
	cfg   *config.Config
}

func (p *pipeline) Close() {
	if p.store != nil {
		if err := p.store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing store: %s\n", err)
		}
	}
}

// buildPipeline wires config, scraping, clustering, LLM and storage into an
// orchestrator ready to run passes.
func buildPipeline(cmd *cobra.Command) (*pipeline, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	contentStore, err := store.NewStore(cfg.App.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	gemini, err := llm.NewGemini(cmd.Context(), cfg.Gemini)
	if err != nil {
		contentStore.Close()
		return nil, fmt.Errorf("initializing Gemini client: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.Scrape.TimeoutDuration()}
	fetchClient := fetch.NewClient(httpClient, cfg.Scrape.UserAgent)

	runner := scrape.NewRunner(
		scrape.NewAdaDerana(fetchClient, cfg.Scrape.AdaDeranaPages),
		scrape.NewDailyMirror(fetchClient, cfg.Scrape.DailyMirrorPages),
	)

	engine := cluster.NewEngine(cluster.NewEmbeddingScorer(gemini), cfg.Cluster.SimilarityThreshold)
	llmClient := llm.NewClient(gemini, cfg.Gemini)

	orch := syncpkg.NewOrchestrator(runner, engine, llmClient, contentStore, fetchClient, syncpkg.Options{
		Pacing:   cfg.Gemini.PacingDuration(),
		Deadline: cfg.Sync.DeadlineDuration(),
	})

	return &pipeline{orch: orch, store: contentStore, cfg: cfg}, nil
}
