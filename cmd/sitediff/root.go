package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/nao1215/sitediff/internal/log"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for sitediff.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitediff",
		Short: "Visual regression testing for websites",
		Long: `sitediff is a visual regression testing tool for websites.

It crawls a website and captures a full-page screenshot of every page it
finds. Later it renders the same pages again, optionally on another domain
such as a staging server, and reports how much of each page changed.

A typical session:
  sitediff init
  sitediff capture
  sitediff compare
  sitediff report --format html`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewCaptureCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewReportCmd())
	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	return getBoolFlag(cmd, "verbose")
}

// getLogJSONFlag retrieves the log-json flag from the command or its parent.
func getLogJSONFlag(cmd *cobra.Command) bool {
	return getBoolFlag(cmd, "log-json")
}

func getBoolFlag(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return v
}

// setupLogger creates the structured logger of a command and installs it
// as the default. Credentials never reach the log output.
func setupLogger(cmd *cobra.Command) *slog.Logger {
	var logger *slog.Logger
	if getLogJSONFlag(cmd) {
		logger = log.NewSecureJSONLogger(cmd.ErrOrStderr(), getVerboseFlag(cmd))
	} else {
		logger = log.NewSecureLogger(cmd.ErrOrStderr(), getVerboseFlag(cmd))
	}
	slog.SetDefault(logger)
	return logger
}
