package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Skyroute gateway.
type Config struct {
	// Server contains HTTP server configuration including listen address,
	// timeouts, and graceful shutdown settings.
	Server ServerConfig `yaml:"server"`

	// Routes contains the route-table file location and hot-reload settings.
	Routes RoutesConfig `yaml:"routes"`

	// Cache contains the response cache configuration: on-disk directory,
	// TTL, size bound, and scheduled cleanup.
	Cache CacheConfig `yaml:"cache"`

	// Convert contains the document-to-image converter configuration.
	Convert ConvertConfig `yaml:"convert"`

	// Upstream contains the upstream HTTP client configuration.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Fallback contains the rate-limit fallback asset configuration.
	Fallback FallbackConfig `yaml:"fallback"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Admin controls the cache administration HTTP endpoints.
	Admin AdminConfig `yaml:"admin"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port". Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out response
	// writes. Retried upstream fetches can legitimately take the full retry
	// budget, so this must exceed it. Default: 120s
	WriteTimeout Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout. Default: 120s
	IdleTimeout Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful
	// shutdown. Default: 30s
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits request header size. Default: 1MB
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// RoutesConfig contains the route-table source settings.
type RoutesConfig struct {
	// File is the path to the YAML route-table file.
	// Default: "routes.yaml"
	File string `yaml:"file"`

	// Watch enables hot reload of the route table when the file changes.
	// Default: false
	Watch bool `yaml:"watch"`
}

// CacheConfig contains configuration for the response cache.
type CacheConfig struct {
	// Directory is the on-disk directory for persisted cache records.
	// Default: "data/cache"
	Directory string `yaml:"directory"`

	// TTL is how long an entry stays valid after creation. Default: 24h
	TTL Duration `yaml:"ttl"`

	// MaxSizeBytes bounds the total size of cached bodies. When exceeded,
	// least-recently-accessed entries are evicted. Zero disables the bound.
	// Default: 1GB
	MaxSizeBytes int64 `yaml:"max_size_bytes"`

	// CleanupSchedule is a cron expression for periodic cleanup (TTL purge
	// plus size-bound enforcement). Empty disables scheduled cleanup.
	// Default: "0 * * * *" (hourly)
	CleanupSchedule string `yaml:"cleanup_schedule"`
}

// ConvertConfig contains configuration for the PDF-to-image converter.
type ConvertConfig struct {
	// WorkDir is the directory for per-job temporary files.
	// Default: os.TempDir()/skyroute-convert
	WorkDir string `yaml:"work_dir"`

	// Rasterizer is the executable that renders PDF pages to images.
	// Default: "pdftoppm"
	Rasterizer string `yaml:"rasterizer"`

	// Compositor is the executable that stacks page images into one
	// composite. Default: "convert"
	Compositor string `yaml:"compositor"`

	// Timeout bounds a single external tool invocation. Default: 2m
	Timeout Duration `yaml:"timeout"`
}

// UpstreamConfig contains configuration for the upstream HTTP client.
type UpstreamConfig struct {
	// Timeout is the per-attempt request timeout. Default: 30s
	Timeout Duration `yaml:"timeout"`

	// MaxIdleConns is the connection pool size. Default: 100
	MaxIdleConns int `yaml:"max_idle_conns"`

	// MaxIdleConnsPerHost is the per-host pool size. Default: 10
	MaxIdleConnsPerHost int `yaml:"max_idle_conns_per_host"`

	// IdleConnTimeout is how long idle connections are kept. Default: 90s
	IdleConnTimeout Duration `yaml:"idle_conn_timeout"`
}

// FallbackConfig contains the rate-limit fallback asset settings.
type FallbackConfig struct {
	// AssetPath is the image served with status 429 when the retry budget
	// is exhausted. If unreadable, a plain-text body is substituted.
	// Default: "assets/rate-limited.png"
	AssetPath string `yaml:"asset_path"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format: "json" or "text". Default: "json"
	Format string `yaml:"format"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether /metrics is exposed. Default: true
	Enabled bool `yaml:"enabled"`

	// Namespace is the metric name prefix. Default: "skyroute"
	Namespace string `yaml:"namespace"`
}

// AdminConfig controls the cache administration endpoints.
type AdminConfig struct {
	// Enabled controls whether /admin/cache endpoints are exposed.
	// Default: true
	Enabled bool `yaml:"enabled"`
}

// Duration wraps time.Duration so YAML values can be written as strings
// like "30s" or "24h". yaml.v3 has no native duration decoding.
type Duration time.Duration

// UnmarshalYAML decodes a duration from a YAML scalar. Bare integers are
// taken as seconds; string values are parsed with time.ParseDuration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var secs int64
	if err := value.Decode(&secs); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}

	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("invalid duration value %q", value.Value)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML encodes the duration as a string like "30s".
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
