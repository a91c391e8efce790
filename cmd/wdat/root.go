package main

import (
	"time"

	"github.com/spf13/cobra"
)

// newRootCommand creates the wdat command tree.
func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "wdat - data access for G-Node repositories",
		Long: `wdat loads, stores and deletes objects on a G-Node repository server.

It serves requests from websocket clients, runs dispatcher workers that
take requests from NATS, and answers one-shot queries from the command line.`,
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return validateFlags(opts)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c",
		getEnv("WDAT_CONFIG", ""),
		"Path to a YAML or JSON config file (env: WDAT_CONFIG)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level",
		getEnv("WDAT_LOG_LEVEL", ""),
		"Log level: debug, info, warn, error (env: WDAT_LOG_LEVEL)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format",
		getEnv("WDAT_LOG_FORMAT", ""),
		"Log format: json, text (env: WDAT_LOG_FORMAT)")
	cmd.PersistentFlags().DurationVar(&opts.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("WDAT_SHUTDOWN_TIMEOUT", 30*time.Second),
		"Graceful shutdown timeout (env: WDAT_SHUTDOWN_TIMEOUT)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newWorkerCommand(opts))
	cmd.AddCommand(newGetCommand(opts))
	cmd.AddCommand(newFetchCommand(opts))
	cmd.AddCommand(newValidateCommand(opts))
	cmd.AddCommand(newVersionCommand())

	return cmd
}
