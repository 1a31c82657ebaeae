// Package cmd defines the trendcrawl command tree.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/trending-crawler/internal/app"
	"github.com/JakeFAU/trending-crawler/internal/config"
	"github.com/JakeFAU/trending-crawler/internal/logging"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const (
	appKey    appKeyType = "app"
	holderKey appKeyType = "app-holder"
)

// appHolder carries the App out of the command tree so it is closed even
// when RunE fails. Cobra skips PersistentPostRun on error.
type appHolder struct {
	app *app.App
}

// closeApp releases the App's backends. Tests replace it to observe closing.
var closeApp = (*app.App).Close

// newApp is the application factory. Tests replace it to control wiring.
var newApp = func(ctx context.Context, cfgFile string) (*app.App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return a, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "trendcrawl",
		Short: "Checkpointed, resumable crawler for GitHub trending pages.",
		Long: `trendcrawl enumerates GitHub trending pages, spreads them across a pool
of workers and checkpoints every finished page so an interrupted run resumes
where it stopped. Results land in a deduplicated, sorted CSV together with a
JSON metrics report.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			if holder, ok := cmd.Context().Value(holderKey).(*appHolder); ok {
				holder.app = appInstance
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); TRENDCRAWL_* env vars override it")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newJobsCmd())
	cmd.AddCommand(newCheckpointCmd())
	cmd.AddCommand(newReconcileCmd())
	return cmd
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// runRoot executes root and closes the App it built, whatever the outcome.
func runRoot(ctx context.Context, root *cobra.Command) error {
	holder := &appHolder{}
	defer func() {
		if holder.app != nil {
			closeApp(holder.app)
		}
	}()
	return root.ExecuteContext(context.WithValue(ctx, holderKey, holder))
}

// Execute runs the command tree until it finishes or the process is signaled.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := runRoot(ctx, newRootCmd())
	stop()
	if err != nil {
		os.Exit(1)
	}
}
