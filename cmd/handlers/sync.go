package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"truelens/internal/logger"
)

// NewSyncCmd creates the one-shot sync command.
func NewSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run a single ingestion pass",
		Long: `Fetch the latest articles from all outlets, filter out anything already
seen, cluster related coverage, summarize each cluster with Gemini, and
persist the resulting stories.`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := runSync(cmd); err != nil {
				logger.Get().Error("sync failed", "error", err)
				fmt.Fprintf(os.Stderr, "sync failed: %s\n", err)
				os.Exit(1)
			}
		},
	}
}

func runSync(cmd *cobra.Command) error {
	p, err := buildPipeline(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	fmt.Println("Starting sync pass...")
	if err := p.orch.Run(cmd.Context()); err != nil {
		return err
	}

	stats, err := p.store.Counts(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("Sync complete: %d stories, %d articles, %d outlets, %d reporters\n",
		stats.Stories, stats.Articles, stats.Outlets, stats.Reporters)
	return nil
}
