package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"skyroute-hq/skyroute/pkg/cache"
	"skyroute-hq/skyroute/pkg/config"
	"skyroute-hq/skyroute/pkg/convert"
	"skyroute-hq/skyroute/pkg/geo"
	"skyroute-hq/skyroute/pkg/proxy"
	"skyroute-hq/skyroute/pkg/routing"
	"skyroute-hq/skyroute/pkg/server"
	"skyroute-hq/skyroute/pkg/stats"
	"skyroute-hq/skyroute/pkg/telemetry/logging"
	"skyroute-hq/skyroute/pkg/telemetry/metrics"
	"skyroute-hq/skyroute/pkg/upstream"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	routesFile    string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Skyroute gateway",
	Long: `Start the Skyroute gateway with the specified configuration.

The gateway listens on the configured address, resolves each request against
the route table, and serves it through the cache-aware fetch pipeline.

Examples:
  # Start with default config
  skyroute run

  # Start with custom config
  skyroute run --config /etc/skyroute/config.yaml

  # Override listen address
  skyroute run --listen 0.0.0.0:8080

  # Validate config without starting the gateway
  skyroute run --dry-run`,
	RunE: runGateway,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().StringVar(&runFlags.routesFile, "routes", "", "override route-table file")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the gateway")
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if runFlags.routesFile != "" {
		cfg.Routes.File = runFlags.routesFile
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	if err := config.Validate(cfg); err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Telemetry.Logging.Level,
		Format: cfg.Telemetry.Logging.Format,
	})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	if runFlags.dryRun {
		if _, err := routing.LoadTable(cfg.Routes.File); err != nil {
			return err
		}
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Skyroute v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	// Route table
	provider, err := routing.NewProvider(cfg.Routes.File)
	if err != nil {
		return fmt.Errorf("failed to load route table: %w", err)
	}
	fmt.Printf("✓ Route table loaded (%d routes)\n", provider.Table().Len())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Routes.Watch {
		watcher := routing.NewWatcher(provider, logger)
		go func() {
			if err := watcher.Watch(ctx); err != nil {
				slog.Warn("route table watcher stopped", "error", err)
			}
		}()
		fmt.Println("✓ Route table hot reload enabled")
	}

	// Response cache
	responseCache, err := cache.New(cache.Options{
		Directory:    cfg.Cache.Directory,
		TTL:          cfg.Cache.TTL.Std(),
		MaxSizeBytes: cfg.Cache.MaxSizeBytes,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	fmt.Printf("✓ Cache opened (%d entries)\n", responseCache.Stats().Count)

	// Document converter
	converter, err := convert.New(convert.Options{
		WorkDir:    cfg.Convert.WorkDir,
		Rasterizer: cfg.Convert.Rasterizer,
		Compositor: cfg.Convert.Compositor,
		Timeout:    cfg.Convert.Timeout.Std(),
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create converter: %w", err)
	}

	collector := metrics.NewCollector(cfg.Telemetry.Metrics.Namespace)

	pipeline := proxy.New(proxy.Options{
		Cache: responseCache,
		Upstream: upstream.NewClient(upstream.Options{
			Timeout:             cfg.Upstream.Timeout.Std(),
			MaxIdleConns:        cfg.Upstream.MaxIdleConns,
			MaxIdleConnsPerHost: cfg.Upstream.MaxIdleConnsPerHost,
			IdleConnTimeout:     cfg.Upstream.IdleConnTimeout.Std(),
		}),
		Converter: converter,
		Fallback:  &proxy.Fallback{AssetPath: cfg.Fallback.AssetPath},
		Stats:     stats.Nop{},
		Geo:       geo.Nop{},
		Metrics:   collector,
		Logger:    logger,
	})

	// Scheduled cache maintenance
	if cfg.Cache.CleanupSchedule != "" {
		scheduler := cron.New()
		_, err := scheduler.AddFunc(cfg.Cache.CleanupSchedule, func() {
			removed := responseCache.Cleanup()
			cacheStats := responseCache.Stats()
			collector.SetCacheStats(cacheStats.Count, cacheStats.TotalSize)
			slog.Info("scheduled cache cleanup completed",
				"removed", removed,
				"entries", cacheStats.Count,
				"total_size", cacheStats.TotalSize,
			)
		})
		if err != nil {
			return fmt.Errorf("invalid cleanup schedule %q: %w", cfg.Cache.CleanupSchedule, err)
		}
		scheduler.Start()
		defer scheduler.Stop()
		fmt.Printf("✓ Cache cleanup scheduled (%s)\n", cfg.Cache.CleanupSchedule)
	}

	srv := server.NewServer(cfg, pipeline.Handler(provider), responseCache, collector)

	fmt.Println()
	fmt.Printf("✓ Gateway listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/healthz\n", cfg.Server.ListenAddress)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", cfg.Server.ListenAddress)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	return srv.Start(ctx)
}
