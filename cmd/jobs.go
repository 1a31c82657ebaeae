package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/trending-crawler/internal/hash/sha256"
)

func newJobsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "Print the trending URLs a run would crawl",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			jobs := appInstance.Jobs().Generate()
			fp, err := sha256.Fingerprint(sha256.New(), jobs)
			if err != nil {
				return fmt.Errorf("fingerprint jobs: %w", err)
			}
			out := cmd.OutOrStdout()
			for _, job := range jobs {
				if _, err := fmt.Fprintln(out, job); err != nil {
					return err
				}
			}
			_, err = fmt.Fprintf(out, "# %d jobs, fingerprint %s\n", len(jobs), fp)
			return err
		},
	}
}
