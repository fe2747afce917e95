// Package cmd provides the CLI commands for reelvibe.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/reelvibe/internal/logging"
	"github.com/Aman-CERP/reelvibe/internal/profiling"
	"github.com/Aman-CERP/reelvibe/pkg/version"
)

// rootFlags are the persistent flags shared by every subcommand.
type rootFlags struct {
	debug     bool
	configDir string
	logLevel  string
	profile   profiling.Options
}

// NewRootCmd creates the root command for the reelvibe CLI.
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}
	var loggingCleanup func()
	var profile *profiling.Session

	cmd := &cobra.Command{
		Use:   "reelvibe",
		Short: "Find films by vibe",
		Long: `reelvibe finds films from a free-text description of a mood or theme.

Suggestions come from a language model or from the local catalog's
semantic and keyword indexes, and are checked against the catalog
before they are ranked.`,
		Version:      version.Version,
		SilenceUsage: true,
	}
	cmd.SetVersionTemplate("reelvibe version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "Enable debug logging to ~/.reelvibe/logs/ and stderr")
	cmd.PersistentFlags().StringVar(&flags.configDir, "config-dir", ".", "Directory holding .reelvibe.yaml and .env")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "Log level for the log file (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&flags.profile.CPU, "cpuprofile", "", "Write a CPU profile to this file")
	cmd.PersistentFlags().StringVar(&flags.profile.Heap, "memprofile", "", "Write a heap profile to this file on exit")
	cmd.PersistentFlags().StringVar(&flags.profile.Trace, "trace", "", "Write an execution trace to this file")

	cmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		logCfg := logging.StdioConfig(flags.logLevel)
		if flags.debug {
			logCfg = logging.DebugConfig()
		}
		logger, cleanup, err := logging.Setup(logCfg)
		if err != nil {
			return fmt.Errorf("failed to setup logging: %w", err)
		}
		loggingCleanup = cleanup
		slog.SetDefault(logger)
		if flags.debug {
			slog.Debug("Debug logging enabled", slog.String("log_file", logCfg.FilePath))
		}
		if flags.profile.Enabled() {
			if profile, err = profiling.Start(flags.profile); err != nil {
				cleanup()
				loggingCleanup = nil
				return err
			}
		}
		return nil
	}
	cmd.PersistentPostRunE = func(_ *cobra.Command, _ []string) error {
		if profile != nil {
			if err := profile.Stop(); err != nil {
				slog.Warn("Failed to write profiles", slog.String("error", err.Error()))
			}
			profile = nil
		}
		if loggingCleanup != nil {
			loggingCleanup()
			loggingCleanup = nil
		}
		return nil
	}

	cmd.AddCommand(newSearchCmd(flags))
	cmd.AddCommand(newDetailsCmd(flags))
	cmd.AddCommand(newExplainCmd(flags))
	cmd.AddCommand(newServeCmd(flags))
	cmd.AddCommand(newCatalogCmd(flags))
	cmd.AddCommand(newDoctorCmd(flags))
	cmd.AddCommand(newConfigCmd(flags))
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
