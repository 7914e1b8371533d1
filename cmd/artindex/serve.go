package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/artifact-index/internal/mcp"
	"github.com/dshills/artifact-index/internal/watcher"
)

var (
	serveVault       string
	serveWatch       bool
	serveMetricsAddr string
)

func init() {
	serveCmd.Flags().StringVar(&serveVault, "vault", "", "vault root for rebuild_index and watching (default vault.root)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "re-sync metadata files as they change (default vault.watch)")
	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9464 (default metrics.addr)")
}

// serveCmd runs the MCP server on stdio
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server on stdio",
	Long: `Run the Model Context Protocol server on stdin/stdout.

Stdout is reserved for the protocol; logs go to stderr.

Examples:
  # Serve the configured vault
  artindex serve

  # Serve a vault, keep it in sync, and expose metrics
  artindex serve --vault ~/vault --watch --metrics-addr :9464`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.close() }()

	if serveVault != "" {
		a.cfg.Vault.Root = serveVault
	}
	if cmd.Flags().Changed("watch") {
		a.cfg.Vault.Watch = serveWatch
	}
	if serveMetricsAddr != "" {
		a.cfg.Metrics.Addr = serveMetricsAddr
	}

	if a.cfg.Metrics.Addr != "" {
		srv := startMetrics(a.cfg.Metrics.Addr, a.logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	var root string
	if a.cfg.Vault.Root != "" {
		if root, err = a.vaultRoot(nil); err != nil {
			return err
		}
	}

	if a.cfg.Vault.Watch {
		if root == "" {
			return errors.New("--watch needs a vault root")
		}
		w, err := watcher.New(root, a.indexer, watcher.Options{
			Logger:   a.logger,
			OnChange: a.searcher.InvalidateCache,
		})
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer w.Stop()
	}

	server, err := mcp.NewServer(mcp.Options{
		Index:     a.index,
		Indexer:   a.indexer,
		Searcher:  a.searcher,
		VaultRoot: root,
		Version:   version,
		Logger:    a.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	a.logger.Info("artindex serving",
		zap.String("version", version),
		zap.String("vault", root),
		zap.Bool("watch", a.cfg.Vault.Watch))
	return server.Serve(ctx)
}

// startMetrics serves /metrics in the background
func startMetrics(addr string, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics endpoint listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics endpoint failed", zap.Error(err))
		}
	}()
	return srv
}
