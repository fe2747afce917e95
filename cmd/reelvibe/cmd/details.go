package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/reelvibe/internal/output"
)

func newDetailsCmd(root *rootFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "details <id>",
		Short: "Show the catalog record for a film",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, appOptions{configDir: root.configDir, offline: true})
			if err != nil {
				return reportError(cmd, err)
			}
			defer func() { _ = a.Close() }()

			entry, err := a.engine.Details(ctx, args[0])
			if err != nil {
				return reportError(cmd, err)
			}

			out := output.New(cmd.OutOrStdout())
			if asJSON {
				return out.JSON(entry)
			}
			out.Details(entry)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
