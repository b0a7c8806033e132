// Skyroute is a cache-aware reverse proxy gateway.
//
// It routes inbound requests by domain and path prefix to configured
// upstream targets, providing:
//   - Per-route CORS policies (disabled, permissive, or structured)
//   - A disk-backed, per-identity response cache with TTL and size bounds
//   - Automatic retry with backoff for rate-limited upstreams
//   - On-demand PDF-to-image conversion via external tools
//
// Usage:
//
//	# Start gateway with default configuration
//	skyroute run
//
//	# Start with custom configuration file
//	skyroute run --config /path/to/config.yaml
//
//	# Validate configuration and route table
//	skyroute validate
//
//	# Inspect or clear the response cache
//	skyroute cache stats
//	skyroute cache clear --identity user:alice
//
//	# Show version information
//	skyroute version
package main

func main() {
	Execute()
}
