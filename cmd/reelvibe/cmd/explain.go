package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/reelvibe/internal/output"
)

func newExplainCmd(root *rootFlags) *cobra.Command {
	var (
		asJSON  bool
		offline bool
	)

	cmd := &cobra.Command{
		Use:   "explain <id> <query...>",
		Short: "Explain why a film fits a search",
		Long: `Explain why a catalog film fits a search.

The explanation is grounded in the film's tags and its semantic similarity
to the query. With --offline, or when the generator is unreachable, a fixed
sentence built from the same evidence is printed instead.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, appOptions{configDir: root.configDir, offline: offline})
			if err != nil {
				return reportError(cmd, err)
			}
			defer func() { _ = a.Close() }()

			x, err := a.engine.Explain(ctx, strings.Join(args[1:], " "), args[0])
			if err != nil {
				return reportError(cmd, err)
			}

			out := output.New(cmd.OutOrStdout())
			if asJSON {
				return out.JSON(x)
			}
			out.Explanation(x)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the generator and print the fixed explanation")
	return cmd
}
