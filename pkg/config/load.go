package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any
// errors. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention SKYROUTE_SECTION_FIELD (e.g., SKYROUTE_SERVER_LISTEN_ADDRESS)
// and always take precedence over file-based configuration.
//
// The loading sequence is:
//  1. Load YAML from file
//  2. Apply default values
//  3. Apply environment variable overrides
//  4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Environment variables use the format SKYROUTE_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	if val := os.Getenv("SKYROUTE_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("SKYROUTE_SERVER_READ_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ReadTimeout = Duration(d)
		}
	}
	if val := os.Getenv("SKYROUTE_SERVER_WRITE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.WriteTimeout = Duration(d)
		}
	}
	if val := os.Getenv("SKYROUTE_SERVER_SHUTDOWN_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ShutdownTimeout = Duration(d)
		}
	}

	// Route table overrides
	if val := os.Getenv("SKYROUTE_ROUTES_FILE"); val != "" {
		cfg.Routes.File = val
	}
	if val := os.Getenv("SKYROUTE_ROUTES_WATCH"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Routes.Watch = b
		}
	}

	// Cache overrides
	if val := os.Getenv("SKYROUTE_CACHE_DIRECTORY"); val != "" {
		cfg.Cache.Directory = val
	}
	if val := os.Getenv("SKYROUTE_CACHE_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Cache.TTL = Duration(d)
		}
	}
	if val := os.Getenv("SKYROUTE_CACHE_MAX_SIZE_BYTES"); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Cache.MaxSizeBytes = i
		}
	}
	if val := os.Getenv("SKYROUTE_CACHE_CLEANUP_SCHEDULE"); val != "" {
		cfg.Cache.CleanupSchedule = val
	}

	// Converter overrides
	if val := os.Getenv("SKYROUTE_CONVERT_WORK_DIR"); val != "" {
		cfg.Convert.WorkDir = val
	}
	if val := os.Getenv("SKYROUTE_CONVERT_RASTERIZER"); val != "" {
		cfg.Convert.Rasterizer = val
	}
	if val := os.Getenv("SKYROUTE_CONVERT_COMPOSITOR"); val != "" {
		cfg.Convert.Compositor = val
	}

	// Fallback overrides
	if val := os.Getenv("SKYROUTE_FALLBACK_ASSET_PATH"); val != "" {
		cfg.Fallback.AssetPath = val
	}

	// Telemetry overrides
	if val := os.Getenv("SKYROUTE_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("SKYROUTE_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("SKYROUTE_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
}
