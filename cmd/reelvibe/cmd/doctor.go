package cmd

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/reelvibe/internal/preflight"
)

// errCheckFailed is returned when a required check fails.
var errCheckFailed = errors.New("system check failed")

type doctorReport struct {
	Status string                  `json:"status"`
	Checks []preflight.CheckResult `json:"checks"`
}

func newDoctorCmd(root *rootFlags) *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
		offline    bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the catalog, providers and caches",
		Long: `Run diagnostics to ensure reelvibe can serve searches.

Checks:
  - Disk space and write access in ~/.reelvibe
  - Catalog presence and vector coverage
  - Embeddings and generator reachability
  - Moderation API key when the safety check is on
  - Redis connectivity when it backs the caches

Provider checks are warnings: search degrades instead of failing.`,
		Example: `  reelvibe doctor
  reelvibe doctor --verbose
  reelvibe doctor --json --offline`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(appOptions{configDir: root.configDir})
			if err != nil {
				return err
			}

			checker := preflight.New(cfg,
				preflight.WithOffline(offline),
				preflight.WithVerbose(verbose),
				preflight.WithOutput(cmd.OutOrStdout()),
			)
			results := checker.RunAll(cmd.Context())

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(doctorReport{Status: checker.SummaryStatus(results), Checks: results}); err != nil {
					return err
				}
			} else {
				checker.PrintResults(results)
			}

			if checker.HasCriticalFailures(results) {
				return errCheckFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip network checks")

	return cmd
}
