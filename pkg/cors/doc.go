// Package cors implements the Cross-Origin Resource Sharing header policy
// for gateway routes.
//
// A route's CORS configuration is written in YAML as either a boolean or a
// structured object. The union is resolved once at route-load time into a
// tagged Policy value (Disabled, Permissive, or Configured); request-time
// code only branches on the resolved variant.
//
// The same policy is used in two places: to decorate proxied or cached
// responses with CORS headers, and as stand-alone middleware for routes that
// only need preflight handling.
package cors
