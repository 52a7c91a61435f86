package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var (
	configPath string
	installDir string
	logsDir    string
	verbose    bool
	outputJSON bool
)

// Execute runs the root cobra command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "hostkit",
		Short:         "Provision host build and debug tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to hostkit.yaml (default: user config dir)")
	cmd.PersistentFlags().StringVar(&installDir, "dir", "", "Installation directory")
	cmd.PersistentFlags().StringVar(&logsDir, "logs-dir", "", "Directory for log files")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug output on the console")
	cmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output machine-readable JSON")

	cmd.AddCommand(newInstallCmd())
	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newEnvCmd())
	cmd.AddCommand(newRunnersCmd())

	return cmd
}
