package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/trending-crawler/internal/checkpoint"
)

func newCheckpointCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect or reset the stored checkpoint",
	}
	cmd.AddCommand(newCheckpointShowCmd(), newCheckpointResetCmd())
	return cmd
}

func newCheckpointShowCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored checkpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			state, err := appInstance.Checkpoints().Peek(cmd.Context())
			if errors.Is(err, checkpoint.ErrNotFound) {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "no checkpoint stored")
				return err
			}
			if err != nil {
				return fmt.Errorf("peek checkpoint: %w", err)
			}
			var out []byte
			if asJSON {
				out, err = json.MarshalIndent(state, "", "  ")
				out = append(out, '\n')
			} else {
				out, err = yaml.Marshal(state)
			}
			if err != nil {
				return fmt.Errorf("render checkpoint: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of YAML")
	return cmd
}

func newCheckpointResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Overwrite the checkpoint with an empty state for the current job list",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			state, err := appInstance.Checkpoints().Reset(cmd.Context(), appInstance.Jobs().Generate())
			if err != nil {
				return fmt.Errorf("reset checkpoint: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "checkpoint reset: %d jobs pending, fingerprint %s\n",
				len(state.AllJobs), state.Fingerprint)
			return err
		},
	}
}
