package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/G-Node/wdat2-sub001/config"
)

func newValidateCommand(rootOpts *rootOptions) *cobra.Command {
	var printConfig bool

	cmd := &cobra.Command{
		Use:   "validate [config-file]",
		Short: "Check a configuration file",
		Long: `Check a configuration file against the schema and the cross-field rules
and exit. Without an argument the --config file is checked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.ConfigPath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("no config file given")
			}

			cfg, err := config.NewLoader().LoadFile(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "configuration valid: %s\n", path)
			if printConfig {
				_, _ = fmt.Fprintln(out, cfg.String())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&printConfig, "print", false, "Print the effective configuration")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s (built %s, %s %s/%s)\n",
				appName, Version, BuildTime, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
