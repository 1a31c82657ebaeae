package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Deduplicate and sort the output CSV without crawling",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			cfg := appInstance.Config()
			dups, err := appInstance.Reconciler().Reconcile(
				cmd.Context(), cfg.Paths.OutputCSV, cfg.Output.DedupeKey, cfg.Output.SortKeys,
			)
			if err != nil {
				return fmt.Errorf("reconcile %s: %w", cfg.Paths.OutputCSV, err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d duplicates removed\n", cfg.Paths.OutputCSV, dups)
			return err
		},
	}
}
