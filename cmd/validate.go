package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"bootctl/internal/config"
	"bootctl/internal/reporting"
)

func newValidateCmd() *cobra.Command {
	var phasesFile, phasesDir string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check settings and the phase declaration without starting anything",
		Long: `Loads BOOTCTL_* settings and the layered phase declaration exactly as a
boot run would, validates them and prints the resulting boot plan.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.LoadSettings()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("file") {
				settings.PhasesFile = phasesFile
			}
			if cmd.Flags().Changed("dir") {
				settings.PhasesDir = phasesDir
			}

			phases, defaults, err := config.LoadPhases(settings)
			if err != nil {
				return err
			}
			if _, err := settings.RemoteAccessSpec(defaults); err != nil {
				return fmt.Errorf("invalid remote access service: %w", err)
			}

			fmt.Fprint(cmd.OutOrStdout(), reporting.RenderPlan(phases))
			return nil
		},
	}

	cmd.Flags().StringVar(&phasesFile, "file", "", "Phase file to validate instead of BOOTCTL_PHASES_FILE")
	cmd.Flags().StringVar(&phasesDir, "dir", "", "Drop-in directory instead of BOOTCTL_PHASES_DIR")
	return cmd
}
