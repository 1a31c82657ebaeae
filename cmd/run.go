package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/trending-crawler/internal/api"
)

func newRunCmd() *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Crawl every pending trending page",
		Long: `Loads the checkpoint, dispatches the pending trending pages across the
worker pool, then deduplicates and sorts the output and writes the metrics
report. Interrupting the run keeps every page finished so far.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, workers)
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 0, "number of workers (overrides scheduler.workers)")
	return cmd
}

func runCrawl(cmd *cobra.Command, workers int) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger()
	coord, err := appInstance.Coordinator(workers)
	if err != nil {
		return fmt.Errorf("build coordinator: %w", err)
	}

	serverCtx, stopServer := context.WithCancel(cmd.Context())
	defer stopServer()
	g, gctx := errgroup.WithContext(serverCtx)
	if cfg := appInstance.Config().Server; cfg.Enabled {
		srv := api.NewServer(coord, logger)
		g.Go(func() error {
			return srv.ListenAndServe(gctx, fmt.Sprintf(":%d", cfg.Port))
		})
	}

	combined, runErr := coord.Run(cmd.Context(), appInstance.Jobs())
	stopServer()
	if err := g.Wait(); err != nil {
		logger.Warn("status server stopped with error", zap.Error(err))
	}
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			logger.Warn("run interrupted; checkpoint keeps finished pages")
		}
		return fmt.Errorf("run crawler: %w", runErr)
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(),
		"run %s: %d jobs (%d ok, %d failed), %d duplicates removed in %.2fs\n",
		combined.RunID, combined.JobsTotal, combined.JobsSuccess, combined.JobsFailed,
		combined.DuplicatesRemoved, combined.ElapsedS,
	)
	return err
}
