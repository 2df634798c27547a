// Package cmd provides the CLI commands for the semantic code search engine.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/codesearch/semindex/internal/logging"
	"github.com/codesearch/semindex/pkg/version"
)

// Debug logging flag
var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the semindex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "semindex",
		Short: "Semantic code search indexing engine",
		Long: `semindex scans a codebase, chunks it, embeds the chunks, and keeps a
vector index in sync as files change.

Run "semindex sync" for a one-shot index build or incremental update, or
"semindex watch" to keep the index up to date continuously.`,
		Version: version.Version,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.SetVersionTemplate("semindex version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.semindex/logs/")
	cmd.PersistentPreRunE = startDebugLogging
	cmd.PersistentPostRunE = stopDebugLogging

	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newWatchCmd())

	return cmd
}

// startDebugLogging enables file logging for the whole command invocation when --debug is set.
// sync and watch set up their own file logger regardless, so this only changes the level.
func startDebugLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}
	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return err
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

func stopDebugLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
