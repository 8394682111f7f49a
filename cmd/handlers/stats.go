package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"truelens/internal/config"
	"truelens/internal/logger"
	"truelens/internal/store"
)

// NewStatsCmd creates the stats command.
func NewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show ingestion statistics",
		Long:  `Display counts of persisted stories, articles, outlets and reporters, plus the last sync time.`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := runStats(cmd); err != nil {
				logger.Get().Error("stats failed", "error", err)
				fmt.Fprintf(os.Stderr, "stats failed: %s\n", err)
				os.Exit(1)
			}
		},
	}
}

func runStats(cmd *cobra.Command) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	contentStore, err := store.NewStore(cfg.App.DataDir)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer contentStore.Close()

	stats, err := contentStore.Counts(cmd.Context())
	if err != nil {
		return err
	}

	lastSync, err := contentStore.LastSyncTime(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Println("Ingestion Statistics:")
	fmt.Println("=====================")
	fmt.Printf("Stories:   %d\n", stats.Stories)
	fmt.Printf("Articles:  %d\n", stats.Articles)
	fmt.Printf("Outlets:   %d\n", stats.Outlets)
	fmt.Printf("Reporters: %d\n", stats.Reporters)
	if lastSync.IsZero() {
		fmt.Println("Last sync: never")
	} else {
		fmt.Printf("Last sync: %s\n", lastSync.Format("2006-01-02 15:04:05 MST"))
	}
	return nil
}
