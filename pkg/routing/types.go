package routing

import (
	"skyroute-hq/skyroute/pkg/cors"
)

// Route is one resolved route-table entry. Routes are immutable once loaded;
// the pipeline holds read-only references per request.
type Route struct {
	// Domain is the inbound Host this route serves.
	Domain string

	// PathPrefix is the inbound path prefix this route serves.
	PathPrefix string

	// Target is the upstream base URL requests are forwarded to.
	Target string

	// Type tags the route for statistics and logging (e.g. "api",
	// "static").
	Type string

	// CORS is the resolved CORS policy for this route.
	CORS cors.Policy

	// ForwardHeaders lists the inbound request headers forwarded
	// upstream. Empty means forward none beyond what the transport adds.
	ForwardHeaders []string

	// ErrorOverride customizes the error response for upstream transport
	// failures. Nil uses the generic default.
	ErrorOverride *ErrorOverride
}

// ErrorOverride customizes a route's transport-failure response.
type ErrorOverride struct {
	// Code is the machine-readable error code.
	Code string `yaml:"code" json:"code"`

	// Message is the human-readable error message.
	Message string `yaml:"message" json:"message"`

	// Status is the HTTP status to respond with. Zero means 500.
	Status int `yaml:"status" json:"status"`
}

// ID identifies the route in logs and error responses.
func (r *Route) ID() string {
	return r.Domain + r.PathPrefix
}

// TargetFor joins the route target with the request's path and query,
// stripping the route's path prefix.
func (r *Route) TargetFor(path, rawQuery string) string {
	suffix := path
	if r.PathPrefix != "/" && len(path) >= len(r.PathPrefix) {
		suffix = path[len(r.PathPrefix):]
	}
	if suffix == "" || suffix[0] != '/' {
		suffix = "/" + suffix
	}

	target := r.Target + suffix
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	return target
}
