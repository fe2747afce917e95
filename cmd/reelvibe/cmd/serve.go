package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/reelvibe/internal/catalog"
	"github.com/Aman-CERP/reelvibe/internal/mcp"
	"github.com/Aman-CERP/reelvibe/internal/profiling"
)

type serveOptions struct {
	transport   string
	metricsAddr string
	watch       bool
	regime      string
	offline     bool
}

func newServeCmd(root *rootFlags) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the MCP server on stdio for AI assistants.

The server exposes the search_movies and movie_details tools. All logs go
to the log file so stdout stays reserved for the protocol.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.transport, "transport", "stdio", "Transport type (stdio)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides server.metrics_addr)")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Reload the vector index when the catalog changes on disk")
	cmd.Flags().StringVar(&opts.regime, "regime", "", "Candidate regime: generative, hybrid (overrides config)")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "Use static embeddings and skip network calls")

	return cmd
}

func runServe(ctx context.Context, root *rootFlags, opts *serveOptions) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, appOptions{configDir: root.configDir, regime: opts.regime, offline: opts.offline})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	addr := opts.metricsAddr
	if addr == "" {
		addr = a.cfg.Server.MetricsAddr
	}
	if addr != "" {
		shutdown := serveMetrics(a, addr)
		defer shutdown()
	}

	if opts.watch {
		w, err := catalog.NewWatcher(a.store, catalog.DefaultReloadDebounce, a.logger)
		if err != nil {
			return err
		}
		defer func() { _ = w.Close() }()
		go w.Run(ctx)
	}

	srv, err := mcp.NewServer(a.engine, a.logger)
	if err != nil {
		return err
	}
	if err := srv.Serve(ctx, opts.transport); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// serveMetrics starts the /metrics and /debug/pprof/ endpoints and returns
// their shutdown func.
func serveMetrics(a *app, addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	profiling.RegisterHandlers(mux)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		a.logger.Info("Metrics endpoint listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Metrics endpoint failed", slog.String("error", err.Error()))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
