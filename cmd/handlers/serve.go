package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"truelens/internal/logger"
	"truelens/internal/server"
	syncpkg "truelens/internal/sync"
)

// NewServeCmd creates the long-running service command.
func NewServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sync service with its HTTP API",
		Long: `Start the HTTP API and the periodic sync scheduler. The scheduler runs
an immediate pass and then one per configured interval; POST /api/sync
triggers a pass on demand.`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := runServe(cmd); err != nil {
				logger.Get().Error("serve failed", "error", err)
				fmt.Fprintf(os.Stderr, "serve failed: %s\n", err)
				os.Exit(1)
			}
		},
	}

	serveCmd.Flags().Bool("no-scheduler", false, "Disable the periodic scheduler, serve the API only")
	return serveCmd
}

func runServe(cmd *cobra.Command) error {
	p, err := buildPipeline(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	noScheduler, _ := cmd.Flags().GetBool("no-scheduler")
	if !noScheduler {
		scheduler := syncpkg.NewScheduler(p.orch, p.cfg.Sync.IntervalDuration())
		go scheduler.Run(ctx)
	}

	srv := server.New(p.orch, p.cfg.Server.Host, p.cfg.Server.Port)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}
