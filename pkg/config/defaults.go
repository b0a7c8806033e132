package config

import (
	"os"
	"path/filepath"
	"time"
)

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 120 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// Route table defaults
	DefaultRoutesFile = "routes.yaml"

	// Cache defaults
	DefaultCacheDirectory   = "data/cache"
	DefaultCacheTTL         = 24 * time.Hour
	DefaultCacheMaxSize     = int64(1 << 30) // 1GB
	DefaultCleanupSchedule  = "0 * * * *"    // hourly

	// Converter defaults
	DefaultRasterizer     = "pdftoppm"
	DefaultCompositor     = "convert"
	DefaultConvertTimeout = 2 * time.Minute

	// Upstream client defaults
	DefaultUpstreamTimeout     = 30 * time.Second
	DefaultMaxIdleConns        = 100
	DefaultMaxIdleConnsPerHost = 10
	DefaultIdleConnTimeout     = 90 * time.Second

	// Fallback defaults
	DefaultFallbackAssetPath = "assets/rate-limited.png"

	// Telemetry defaults
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultMetricsNamespace = "skyroute"
)

// ApplyDefaults fills in default values for any zero-valued fields.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = Duration(DefaultReadTimeout)
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = Duration(DefaultWriteTimeout)
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = Duration(DefaultIdleTimeout)
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(DefaultShutdownTimeout)
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	if cfg.Routes.File == "" {
		cfg.Routes.File = DefaultRoutesFile
	}

	if cfg.Cache.Directory == "" {
		cfg.Cache.Directory = DefaultCacheDirectory
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = Duration(DefaultCacheTTL)
	}
	if cfg.Cache.MaxSizeBytes == 0 {
		cfg.Cache.MaxSizeBytes = DefaultCacheMaxSize
	}
	if cfg.Cache.CleanupSchedule == "" {
		cfg.Cache.CleanupSchedule = DefaultCleanupSchedule
	}

	if cfg.Convert.WorkDir == "" {
		cfg.Convert.WorkDir = filepath.Join(os.TempDir(), "skyroute-convert")
	}
	if cfg.Convert.Rasterizer == "" {
		cfg.Convert.Rasterizer = DefaultRasterizer
	}
	if cfg.Convert.Compositor == "" {
		cfg.Convert.Compositor = DefaultCompositor
	}
	if cfg.Convert.Timeout == 0 {
		cfg.Convert.Timeout = Duration(DefaultConvertTimeout)
	}

	if cfg.Upstream.Timeout == 0 {
		cfg.Upstream.Timeout = Duration(DefaultUpstreamTimeout)
	}
	if cfg.Upstream.MaxIdleConns == 0 {
		cfg.Upstream.MaxIdleConns = DefaultMaxIdleConns
	}
	if cfg.Upstream.MaxIdleConnsPerHost == 0 {
		cfg.Upstream.MaxIdleConnsPerHost = DefaultMaxIdleConnsPerHost
	}
	if cfg.Upstream.IdleConnTimeout == 0 {
		cfg.Upstream.IdleConnTimeout = Duration(DefaultIdleConnTimeout)
	}

	if cfg.Fallback.AssetPath == "" {
		cfg.Fallback.AssetPath = DefaultFallbackAssetPath
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
}

// NewDefaultConfig returns a configuration with all defaults applied.
func NewDefaultConfig() *Config {
	cfg := &Config{
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{Enabled: true},
		},
		Admin: AdminConfig{Enabled: true},
	}
	ApplyDefaults(cfg)
	return cfg
}
