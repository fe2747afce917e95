package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	rverrors "github.com/Aman-CERP/reelvibe/internal/errors"
	"github.com/Aman-CERP/reelvibe/internal/output"
)

type searchOptions struct {
	limit    int
	offset   int
	format   string
	regime   string
	offline  bool
	trending bool
}

func newSearchCmd(root *rootFlags) *cobra.Command {
	opts := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "search <vibe>",
		Short: "Find films matching a mood or theme",
		Long: `Search the catalog for films that match a free-text vibe.

Examples:
  reelvibe search "rainy neo-noir with a melancholy detective"
  reelvibe search "best sci-fi" -n 5
  reelvibe search "heist" --regime hybrid --offline -f json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, root, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Page size (0 uses search.default_limit)")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "Number of results to skip")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().StringVar(&opts.regime, "regime", "", "Candidate regime: generative, hybrid (overrides config)")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "Use static embeddings and skip network calls")
	cmd.Flags().BoolVar(&opts.trending, "trending", false, "Favour popular films (overrides search.trending)")

	return cmd
}

func runSearch(cmd *cobra.Command, root *rootFlags, q string, opts *searchOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("invalid format %q: must be text or json", opts.format)
	}
	if opts.offset < 0 {
		return fmt.Errorf("offset must be non-negative, got %d", opts.offset)
	}

	ctx := cmd.Context()
	out := output.New(cmd.OutOrStdout())

	a, err := openApp(ctx, appOptions{
		configDir: root.configDir,
		regime:    opts.regime,
		offline:   opts.offline,
		trending:  opts.trending,
	})
	if err != nil {
		return reportError(cmd, err)
	}
	defer func() { _ = a.Close() }()

	resp, err := a.engine.Search(ctx, q, opts.limit, opts.offset)
	if err != nil {
		return reportError(cmd, err)
	}

	if opts.format == "json" {
		return out.JSON(resp)
	}
	out.Results(resp)
	return nil
}

// reportError prints structured errors with their suggestion and returns
// err so the process exits non-zero.
func reportError(cmd *cobra.Command, err error) error {
	if _, ok := rverrors.As(err); ok {
		_, _ = fmt.Fprint(cmd.ErrOrStderr(), rverrors.FormatForCLI(err))
		cmd.SilenceErrors = true
	}
	return err
}
