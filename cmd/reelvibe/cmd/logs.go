package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/reelvibe/internal/logging"
)

type logsOptions struct {
	lines   int
	level   string
	event   string
	logFile string
}

func newLogsCmd() *cobra.Command {
	opts := logsOptions{}

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent log entries",
		Long: `Show the last entries of the reelvibe log file.

Examples:
  reelvibe logs                          # Last 50 entries
  reelvibe logs --level warn             # Warnings and errors only
  reelvibe logs --event search_failed    # One event type`,
		// Logs must be readable without opening a new log file.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := logging.FindLogFile(opts.logFile)
			if err != nil {
				return err
			}
			entries, err := logging.Tail(path, opts.lines, logging.Filter{Level: opts.level, Event: opts.event})
			if err != nil {
				return err
			}
			for _, e := range entries {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), e.Format()); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "Number of entries to show (0 for all)")
	cmd.Flags().StringVar(&opts.level, "level", "", "Minimum level (debug|info|warn|error)")
	cmd.Flags().StringVar(&opts.event, "event", "", "Only show entries with this event name")
	cmd.Flags().StringVar(&opts.logFile, "file", "", "Path to log file")

	return cmd
}
