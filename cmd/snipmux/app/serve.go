package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/snipmux/snipmux/internal/api"
	"github.com/snipmux/snipmux/internal/config"
	"github.com/snipmux/snipmux/internal/engine"
	"github.com/snipmux/snipmux/internal/status"
	"github.com/snipmux/snipmux/internal/telemetry"
	"github.com/snipmux/snipmux/internal/versions"
	"github.com/snipmux/snipmux/internal/watch"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the snippet daemon",
	Long: `Run the snippet daemon: publish the merged snippet table over HTTP and
keep it fresh by watching the snippet folders, watching the configuration
file, and syncing on the configured interval.

Without --config the daemon serves an empty table until a configuration
file with snippet sources is provided.`,
	RunE: runServe,
}

const (
	defaultGracefulTimeout = 30 * time.Second  // Enough for an in-flight cycle to finish publishing
	serverRequestTimeout   = 2 * time.Minute   // POST /api/v0/sync waits for a full cycle, pulls included
	serverReadTimeout      = 10 * time.Second  // Enough for headers and small requests
	serverWriteTimeout     = 125 * time.Second // Must be > serverRequestTimeout to let middleware handle timeout
	serverIdleTimeout      = 60 * time.Second  // Keep connections alive for reuse

	// daemonLockName guards a data directory against two concurrent daemons
	daemonLockName = "daemon.lock"
)

func init() {
	serveCmd.Flags().String("address", "", "Address to listen on (defaults to the configured address)")

	if err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address")); err != nil {
		slog.Error("Error binding address flag", "error", err)
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	// The change callback is bound once the coordinator and watcher exist;
	// the Watch goroutine that invokes it starts after the assignment.
	var onConfigChange func(*config.Settings)
	mgr, err := config.NewManager(viper.GetString("config"),
		config.WithOnChange(func(s *config.Settings) {
			if onConfigChange != nil {
				onConfigChange(s)
			}
		}),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			slog.Error("Failed to close config manager", "error", err)
		}
	}()

	settings := mgr.Current()
	applyDebug(settings)

	address := viper.GetString("address")
	if address == "" {
		address = settings.Address
	}

	dir := dataDir(settings)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create data directory %s: %w", dir, err)
	}

	// One daemon per data directory. The sync and status commands go
	// through the shared snapshot lock instead, so they stay usable while
	// the daemon runs.
	daemonLock := flock.New(filepath.Join(dir, daemonLockName))
	locked, err := daemonLock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock data directory %s: %w", dir, err)
	}
	if !locked {
		return fmt.Errorf("another snipmux daemon is already serving %s", dir)
	}
	defer func() { _ = daemonLock.Unlock() }()

	info := versions.GetVersionInfo()
	slog.Info("Starting snipmux",
		"version", info.Version,
		"address", address,
		"data_dir", dir)

	// Telemetry is a no-op meter provider unless enabled in the settings.
	registry := prometheus.NewRegistry()
	meterProvider, err := telemetry.NewMeterProvider(ctx,
		telemetry.WithTelemetryConfig(settings.Telemetry),
		telemetry.WithPrometheusRegistry(registry),
		telemetry.WithMeterServiceVersion(info.Version),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx, meterProvider); err != nil {
			slog.Error("Failed to shut down telemetry", "error", err)
		}
	}()

	cycleMetrics, err := telemetry.NewCycleMetrics(meterProvider)
	if err != nil {
		return fmt.Errorf("failed to create cycle metrics: %w", err)
	}
	httpMetrics, err := telemetry.NewHTTPMetrics(meterProvider)
	if err != nil {
		return fmt.Errorf("failed to create HTTP metrics: %w", err)
	}

	eng, err := engine.New(mgr.Current,
		engine.WithSnapshotStore(engine.NewFileSnapshotStore(dir)),
		engine.WithCycleMetrics(cycleMetrics),
	)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	coord := engine.NewCoordinator(eng, func() time.Duration {
		return mgr.Current().SyncInterval()
	})

	watcher := watch.NewWatcher(watchPaths(eng), func() {
		coord.Trigger(engine.OptionsFor(status.TriggerFileChange))
	})

	onConfigChange = func(s *config.Settings) {
		applyDebug(s)
		watcher.Refresh()
		coord.Trigger(engine.OptionsFor(status.TriggerConfigChange))
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	go func() {
		if err := coord.Start(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Sync coordinator stopped", "error", err)
		}
	}()
	go func() {
		if err := watcher.Start(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Snippet watcher stopped", "error", err)
		}
	}()
	go func() {
		if err := mgr.Watch(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Config watcher stopped", "error", err)
		}
	}()

	serverOpts := []api.ServerOption{
		api.WithMiddlewares(
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(serverRequestTimeout),
			api.LoggingMiddleware,
			httpMetrics.Middleware,
		),
	}
	if settings.Telemetry.IsEnabled() {
		serverOpts = append(serverOpts, api.WithMetricsHandler(
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}
	router := api.NewServer(eng, serverOpts...)

	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "address", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		slog.Info("Shutting down", "signal", sig.String())
	}

	if err := watcher.Stop(); err != nil {
		slog.Error("Failed to stop snippet watcher", "error", err)
	}
	if err := coord.Stop(); err != nil {
		slog.Error("Failed to stop sync coordinator", "error", err)
	}
	cancelRun()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return err
	}
	if err := eng.Shutdown(shutdownCtx); err != nil {
		slog.Error("Failed to shut down engine", "error", err)
	}

	slog.Info("Server shutdown complete")
	return nil
}

// watchPaths resolves the snippet folders of the currently configured
// sources for the folder watcher. Resolution failures log and yield no
// paths; the next refresh tries again.
func watchPaths(eng engine.Engine) watch.PathsFunc {
	return func() []string {
		descriptors, err := eng.Descriptors(context.Background())
		if err != nil {
			slog.Error("Failed to resolve sources for watching", "error", err)
			return nil
		}
		paths := make([]string, 0, len(descriptors))
		for _, d := range descriptors {
			paths = append(paths, d.SnippetsDir())
		}
		return paths
	}
}
