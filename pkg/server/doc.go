// Package server provides the gateway's HTTP server.
//
// This package ties together the proxy pipeline, middleware, and the
// operational endpoints, and provides server lifecycle management including
// start, graceful shutdown, and health checks.
//
// # Routes
//
// The server reserves a small set of operational paths:
//
//   - GET /healthz - Liveness probe (always returns 200)
//   - GET /metrics - Prometheus metrics (when enabled)
//   - /admin/cache/ - Cache administration (when enabled)
//
// Every other request falls through to the proxy pipeline, which resolves
// the route from the request's Host header and path.
//
// # Middleware Chain
//
// Requests pass through the following middleware (innermost to outermost):
//  1. RequestID: Generates unique request ID for tracing
//  2. Logging: Logs request/response details
//  3. Recovery: Recovers from panics and returns 500 error
//
// CORS is applied per route inside the pipeline, not here.
//
// # Graceful Shutdown
//
// The server handles graceful shutdown automatically when receiving SIGTERM
// or SIGINT:
//  1. Stops accepting new connections
//  2. Waits for active connections to complete (up to shutdown timeout)
//  3. Forces connection closure if timeout exceeded
package server
