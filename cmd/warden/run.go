package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"irondiscipline/warden/pkg/cache"
	"irondiscipline/warden/pkg/cli"
	"irondiscipline/warden/pkg/config"
	"irondiscipline/warden/pkg/containment"
	"irondiscipline/warden/pkg/notify"
	"irondiscipline/warden/pkg/scheduler"
	"irondiscipline/warden/pkg/server"
	"irondiscipline/warden/pkg/session"
	"irondiscipline/warden/pkg/store"
	"irondiscipline/warden/pkg/telemetry/health"
	"irondiscipline/warden/pkg/telemetry/logging"
	"irondiscipline/warden/pkg/telemetry/metrics"
	"irondiscipline/warden/pkg/telemetry/tracing"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the warden service",
	Long: `Start the warden service with the specified configuration.

The service restores confinement membership from the store, runs the cache
maintenance jobs and serves the admin API until interrupted. The
configuration file is watched; changes of the confinement location and
radius apply without a restart, as does SIGHUP.

Examples:
  # Start with default config
  warden run

  # Start with custom config
  warden run --config /etc/warden/warden.yaml

  # Override the admin listen address
  warden run --listen 0.0.0.0:8090

  # Validate config without starting
  warden run --dry-run`,
	Args: cobra.NoArgs,
	RunE: runService,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override admin listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting")
}

func runService(cmd *cobra.Command, args []string) error {
	cfg, path, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if runFlags.listenAddress != "" {
		cfg.Admin.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging))
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	if runFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "Configuration valid")
		return nil
	}

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	logger.Info("starting warden", "version", Version, "config", path, "store", cfg.Store.Backend)
	return cli.NewCommandError("run", serve(ctx, cfg, path, logger))
}

// serve wires the service together and blocks until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, path string, logger *slog.Logger) error {
	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)

	tracer, err := tracing.New(cfg.Telemetry.Tracing, Version)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}()

	backend, err := store.Open(ctx, cfg.Store, logger, collector)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer backend.Close()

	layer := cache.New(cache.WithObserver(collector), cache.WithLogger(logger))
	sched := scheduler.New(scheduler.Config{
		Shards:       cfg.Scheduler.Shards,
		RegionChunks: cfg.Scheduler.RegionChunks,
		Debug:        cfg.Scheduler.Debug,
		Logger:       logger,
		Observer:     collector,
	})
	defer sched.Close()

	sessions := session.NewRegistry()
	locations := config.NewLocationSource(cfg.Containment)

	ctrl, err := containment.New(containment.Deps{
		Store:     backend,
		Cache:     layer,
		Scheduler: sched,
		Sessions:  sessions,
		Location:  locations,
		Notifier:  notify.LogSink{Logger: logger.With("component", "notify")},
		Metrics:   collector,
		Tracer:    tracer.Tracer(),
		Logger:    logger,
	}, settingsFrom(cfg.Containment))
	if err != nil {
		return err
	}

	if _, err := ctrl.Bootstrap(ctx); err != nil {
		return fmt.Errorf("failed to restore confinements: %w", err)
	}

	janitor := cache.NewJanitor(logger)
	if err := janitor.AddJob("tombstone-prune", cfg.Cache.PruneSchedule,
		cache.PruneJob(layer, cfg.Cache.TombstoneRetention)); err != nil {
		return err
	}
	if err := janitor.AddJob("membership-sweep", cfg.Cache.SweepSchedule, sweepJob(ctrl, logger)); err != nil {
		return err
	}
	if err := janitor.Start(ctx); err != nil {
		return err
	}
	defer janitor.Stop()

	checker := health.New(2 * time.Second)
	checker.RegisterCheck("store", health.StoreCheck(backend))
	checker.RegisterCheck("location", health.LocationCheck(locations))

	g, gctx := errgroup.WithContext(ctx)

	reload := func(next *config.Config) {
		locations.Update(next.Containment)
		logger.Info("confinement area reloaded",
			"location", next.Containment.Location,
			"radius", next.Containment.Radius)
	}
	if path != "" {
		watcher, err := config.NewWatcher(path, 0, logger)
		if err != nil {
			return err
		}
		defer func() { _ = watcher.Stop() }()
		g.Go(func() error { return watcher.Watch(gctx, reload) })
		g.Go(func() error { return reloadOnSignal(gctx, path, reload, logger) })
	}

	if cfg.Admin.Enabled {
		dispatcher := containment.NewDispatcher(ctrl)
		srv, err := server.New(cfg.Admin, server.Deps{
			Controller:  ctrl,
			Dispatcher:  dispatcher,
			Sessions:    sessions,
			Health:      checker,
			Metrics:     metricsFor(cfg, collector),
			MetricsPath: cfg.Telemetry.Metrics.Path,
			Logger:      logger,
			Version:     Version,
			Commit:      GitCommit,
			BuildTime:   BuildDate,
		})
		if err != nil {
			return err
		}
		g.Go(func() error { return srv.Start(gctx) })
	}

	logger.Info("warden started",
		"confined", len(ctrl.Confined()),
		"admin", cfg.Admin.Enabled,
		"next_maintenance", janitor.NextRun())

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	err = g.Wait()
	logger.Info("warden stopped")
	return err
}

func settingsFrom(cfg config.ContainmentConfig) containment.Settings {
	confined, _ := session.ParseGameMode(cfg.ConfinedGameMode)
	released, _ := session.ParseGameMode(cfg.ReleaseGameMode)
	return containment.Settings{
		BoundaryInterval: cfg.BoundaryInterval,
		ConfinedMode:     confined,
		ReleaseMode:      released,
		OfflineReason:    cfg.OfflineReason,
	}
}

// metricsFor returns the collector to serve, or nil when metrics are off.
func metricsFor(cfg *config.Config, collector *metrics.Collector) *metrics.Collector {
	if !cfg.Telemetry.Metrics.Enabled {
		return nil
	}
	return collector
}

func sweepJob(ctrl *containment.Controller, logger *slog.Logger) func(ctx context.Context) {
	return func(ctx context.Context) {
		res, err := ctrl.Sweep(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "membership sweep failed", "error", err)
			return
		}
		if res.Added+res.Removed > 0 {
			logger.InfoContext(ctx, "membership sweep corrected drift",
				"added", res.Added, "removed", res.Removed, "skipped", res.Skipped)
		}
	}
}

// reloadOnSignal reloads the configuration file on SIGHUP.
func reloadOnSignal(ctx context.Context, path string, onReload func(*config.Config), logger *slog.Logger) error {
	sigs, stop := cli.ReloadSignals()
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sigs:
			next, err := config.LoadConfigWithEnvOverrides(path)
			if err != nil {
				logger.Error("ignoring invalid configuration on reload", "error", err)
				continue
			}
			onReload(next)
		}
	}
}
