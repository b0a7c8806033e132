// Package config provides configuration loading, validation, and defaults
// for the Skyroute gateway.
//
// Configuration is loaded from a YAML file, defaults are applied for any
// omitted fields, environment variable overrides (SKYROUTE_SECTION_FIELD)
// are applied on top, and the final result is validated before use.
//
// Example configuration:
//
//	server:
//	  listen_address: "127.0.0.1:8080"
//	routes:
//	  file: "routes.yaml"
//	  watch: true
//	cache:
//	  directory: "data/cache"
//	  ttl: "24h"
//	  max_size_bytes: 1073741824
//	  cleanup_schedule: "0 * * * *"
//	convert:
//	  work_dir: "/tmp/skyroute-convert"
//	  rasterizer: "pdftoppm"
//	  compositor: "convert"
//	fallback:
//	  asset_path: "assets/rate-limited.png"
//	telemetry:
//	  logging:
//	    level: "info"
//	    format: "json"
//	  metrics:
//	    enabled: true
//	    namespace: "skyroute"
package config
