package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/bucketlint/bucketlint/internal/watcher"
	"github.com/bucketlint/bucketlint/telemetry"
	"github.com/bucketlint/bucketlint/types"
)

var (
	watchDir          string
	watchRegion       string
	watchEnvironment  string
	watchProject      string
	watchPolicyDir    string
	watchInterval     time.Duration
	watchMetricsAddr  string
	watchHistoryPath  string
	watchOTELEndpoint string
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Continuously revalidate a spec tree",
	Long: `Run bucketlint in watch mode for continuous spec validation.

The watcher revalidates the tree at the configured interval, exports
Prometheus metrics on /metrics, answers health checks on /healthz, and
optionally records every run in a local history database. Shuts down
gracefully on SIGTERM/SIGINT.`,
	Example: `  bucketlint watch                        # Watch ./ with defaults
  bucketlint watch --interval 1m          # Revalidate every minute
  bucketlint watch --metrics :9090        # Custom metrics address
  bucketlint watch --history ./runs.db    # Record every run`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVarP(&watchDir, "dir", "d", ".", "Spec tree directory")
	watchCmd.Flags().StringVarP(&watchRegion, "region", "r", "us-east-1", "Target region")
	watchCmd.Flags().StringVarP(&watchEnvironment, "environment", "e", "prod", "Target environment")
	watchCmd.Flags().StringVarP(&watchProject, "project", "p", "acme", "Project name prefix")
	watchCmd.Flags().StringVar(&watchPolicyDir, "policies", "", "Directory of advisory policy files (*.rego)")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 5*time.Minute, "Revalidation interval")
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics", ":2112", "Metrics HTTP server address")
	watchCmd.Flags().StringVar(&watchHistoryPath, "history", "", "Record runs in this history database")
	watchCmd.Flags().StringVar(&watchOTELEndpoint, "otel-endpoint", "", "OTLP endpoint for push-based export (e.g. localhost:4317)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	ctx := cmd.Context()

	shutdown, err := telemetry.InitOTEL(ctx, telemetry.Config{
		ServiceName:    "bucketlint",
		ServiceVersion: version,
		Environment:    watchEnvironment,
		OTELEndpoint:   watchOTELEndpoint,
		Insecure:       true,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	w, err := watcher.New(watcher.Config{
		SpecDir:   watchDir,
		PolicyDir: resolvePolicyDir(watchPolicyDir, watchDir),
		Params: types.Params{
			Region:      watchRegion,
			Environment: watchEnvironment,
			ProjectName: watchProject,
		},
		Interval:    watchInterval,
		HistoryPath: watchHistoryPath,
	})
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	var group run.Group

	// Signal handling
	group.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))

	// Validation loop
	watchCtx, watchCancel := context.WithCancel(ctx)
	group.Add(
		func() error { return w.Start(watchCtx) },
		func(error) { watchCancel() },
	)

	// Metrics and health server
	server := &http.Server{
		Addr:              watchMetricsAddr,
		Handler:           watchMux(w),
		ReadHeaderTimeout: 5 * time.Second,
	}
	group.Add(
		func() error {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
		func(error) {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		},
	)

	err = group.Run()
	if _, ok := err.(run.SignalError); ok {
		return nil
	}
	return err
}

// watchMux builds the metrics and health endpoints for watch mode
func watchMux(w *watcher.Watcher) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		telemetry.PrometheusRegistry,
		promhttp.HandlerOpts{},
	))
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(w.Health())
	})
	return mux
}
