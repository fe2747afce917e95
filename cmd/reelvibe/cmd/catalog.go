package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/reelvibe/internal/catalog"
	"github.com/Aman-CERP/reelvibe/internal/output"
)

func newCatalogCmd(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the local film catalog",
	}
	cmd.AddCommand(newCatalogImportCmd(root))
	cmd.AddCommand(newCatalogInfoCmd(root))
	return cmd
}

func newCatalogImportCmd(root *rootFlags) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "import <file.json>",
		Short: "Import films from a JSON array",
		Long: `Import films into the catalog. Each record needs at least a title;
records without an embedding are embedded with the configured provider.
Records with an existing id replace the stored row.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := output.New(cmd.OutOrStdout())

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer func() { _ = f.Close() }()

			entries, err := catalog.ReadEntries(f)
			if err != nil {
				return reportError(cmd, err)
			}

			cfg, err := loadConfig(appOptions{configDir: root.configDir, offline: offline})
			if err != nil {
				return err
			}
			embedder, store, err := openCatalog(ctx, cfg, offline, nil)
			if err != nil {
				return reportError(cmd, err)
			}
			defer func() {
				_ = store.Close()
				_ = embedder.Close()
			}()

			n, err := catalog.Import(ctx, store, entries, embedder)
			if err != nil {
				return reportError(cmd, err)
			}
			out.Successf("Imported %d films into %s (%d embedded)", len(entries), cfg.Catalog.Path, n)
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Embed with the static embedder instead of the configured provider")
	return cmd
}

func newCatalogInfoCmd(root *rootFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show catalog statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(appOptions{configDir: root.configDir, offline: true})
			if err != nil {
				return err
			}
			embedder, store, err := openCatalog(ctx, cfg, true, nil)
			if err != nil {
				return reportError(cmd, err)
			}
			defer func() {
				_ = store.Close()
				_ = embedder.Close()
			}()

			st, err := store.Stats(ctx)
			if err != nil {
				return reportError(cmd, err)
			}

			out := output.New(cmd.OutOrStdout())
			if asJSON {
				return out.JSON(st)
			}
			out.Stats(st)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
