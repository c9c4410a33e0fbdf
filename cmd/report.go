package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"bootctl/internal/config"
	"bootctl/internal/history"
	"bootctl/internal/reporting"
)

func newReportCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show recent boot runs from the run history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return errors.New("--limit must be at least 1")
			}
			settings, err := config.LoadSettings()
			if err != nil {
				return err
			}
			if !settings.HistoryEnabled {
				return errors.New("run history is disabled (BOOTCTL_HISTORY_ENABLED=false)")
			}

			store, err := history.Open(settings.HistoryDB)
			if err != nil {
				return fmt.Errorf("failed to open run history: %w", err)
			}
			defer store.Close()

			runs, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), reporting.RenderHistory(runs))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to show")
	return cmd
}
