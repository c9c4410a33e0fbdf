package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"bootctl/internal/app"
)

var debug bool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bootctl",
	Short: "Bring services and workload containers up after a restart",
	Long: `bootctl runs the host's boot sequence: operator-declared phases of
OS services and containers, started in order with bounded retries and health
checks. A failing critical phase puts the host into recovery mode with a
fallback address and remote access, and exits with code 3.

Run without arguments from the service manager once per boot. All settings are
optional BOOTCTL_* environment variables; phases are read from
/etc/bootctl/phases.yaml and /etc/bootctl/phases.d.`,
	Args: cobra.NoArgs,
	// SilenceUsage is set to true to prevent printing usage message on errors
	// handled by us (e.g. failed phases, lock conflicts)
	SilenceUsage: true,
	RunE:         runBoot,
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "bootctl version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(app.ExitCode(err))
	}
}

func runBoot(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApplication(app.NewConfig(debug))
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer application.Close()

	return application.Run(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newReportCmd())
}
