// Package routing loads and serves the gateway's route table.
//
// Routes are declared in a YAML file keyed by domain and path prefix, each
// pointing at an upstream target with its own CORS policy, header-forwarding
// list, and error-response override. The table is resolved at load time into
// immutable Route values; request-time lookup picks the route with the
// matching domain and the longest matching path prefix.
//
// When watching is enabled, the table is reloaded on file changes via
// fsnotify with debouncing. A reload that fails validation keeps the
// previous table.
package routing
