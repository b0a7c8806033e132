package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field
	// (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration. All validation errors are
// collected and returned together as a ValidationError; nil means valid.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateRoutes(&cfg.Routes)...)
	errs = append(errs, validateCache(&cfg.Cache)...)
	errs = append(errs, validateConvert(&cfg.Convert)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{"server.listen_address", "must not be empty"})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{"server.listen_address", fmt.Sprintf("invalid address: %v", err)})
	}

	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{"server.read_timeout", "must not be negative"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{"server.write_timeout", "must not be negative"})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{"server.shutdown_timeout", "must not be negative"})
	}
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{"server.max_header_bytes", "must not be negative"})
	}

	return errs
}

func validateRoutes(cfg *RoutesConfig) []FieldError {
	var errs []FieldError

	if cfg.File == "" {
		errs = append(errs, FieldError{"routes.file", "must not be empty"})
	}

	return errs
}

func validateCache(cfg *CacheConfig) []FieldError {
	var errs []FieldError

	if cfg.Directory == "" {
		errs = append(errs, FieldError{"cache.directory", "must not be empty"})
	}
	if cfg.TTL <= 0 {
		errs = append(errs, FieldError{"cache.ttl", "must be positive"})
	}
	if cfg.MaxSizeBytes < 0 {
		errs = append(errs, FieldError{"cache.max_size_bytes", "must not be negative"})
	}
	if cfg.CleanupSchedule != "" {
		if _, err := cron.ParseStandard(cfg.CleanupSchedule); err != nil {
			errs = append(errs, FieldError{"cache.cleanup_schedule", fmt.Sprintf("invalid cron expression: %v", err)})
		}
	}

	return errs
}

func validateConvert(cfg *ConvertConfig) []FieldError {
	var errs []FieldError

	if cfg.Rasterizer == "" {
		errs = append(errs, FieldError{"convert.rasterizer", "must not be empty"})
	}
	if cfg.Compositor == "" {
		errs = append(errs, FieldError{"convert.compositor", "must not be empty"})
	}
	if cfg.Timeout <= 0 {
		errs = append(errs, FieldError{"convert.timeout", "must be positive"})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{"telemetry.logging.level",
			fmt.Sprintf("must be one of debug, info, warn, error; got %q", cfg.Logging.Level)})
	}

	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{"telemetry.logging.format",
			fmt.Sprintf("must be json or text; got %q", cfg.Logging.Format)})
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Namespace == "" {
		errs = append(errs, FieldError{"telemetry.metrics.namespace", "must not be empty when metrics are enabled"})
	}

	return errs
}
