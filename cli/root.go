package cli

import (
	"fmt"

	"github.com/provisio/provisio/pkg/logger"
	"github.com/provisio/provisio/pkg/version"
	"github.com/spf13/cobra"
)

// RootCmd builds the provisio command tree.
func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provisio",
		Short: "Workflow execution and callback reconciliation for cloud provisioning",
		Long: "provisio submits declarative provisioning workflows to an external " +
			"workflow engine and reconciles their outcome back into the owning " +
			"application's state through authenticated callbacks.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logLevel, logJSON, logSource, err := logger.GetLoggerConfig(cmd)
			if err != nil {
				return err
			}
			logger.SetupLogger(logLevel, logJSON, logSource)
			return nil
		},
	}
	cmd.PersistentFlags().String("config", "", "path to the provisio config file")
	cmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().Bool("log-json", false, "emit logs as JSON")
	cmd.PersistentFlags().Bool("log-source", false, "include source locations in logs")
	cmd.AddCommand(serveCmd())
	cmd.AddCommand(submitCmd())
	cmd.AddCommand(versionCmd())
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			info := version.Get()
			fmt.Fprintf(cmd.OutOrStdout(), "provisio %s (commit %s, built %s)\n",
				info.Version, info.CommitHash, info.BuildDate)
		},
	}
}
