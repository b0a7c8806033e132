package cors

import (
	"net/http"
	"strconv"
	"strings"
)

// Mode identifies the resolved CORS variant for a route.
type Mode int

const (
	// ModeDisabled adds no headers and never short-circuits.
	ModeDisabled Mode = iota

	// ModePermissive mirrors the request origin (or "*") and allows a
	// generous fixed set of methods and headers.
	ModePermissive

	// ModeConfigured applies an explicitly configured policy.
	ModeConfigured
)

// OriginMode identifies how the Access-Control-Allow-Origin header is chosen
// for a configured policy.
type OriginMode int

const (
	// OriginMirror mirrors the request's Origin header when present.
	OriginMirror OriginMode = iota

	// OriginExact emits a fixed origin string.
	OriginExact

	// OriginWhitelist mirrors the request origin only when it appears in
	// the whitelist. A non-listed origin gets no header at all; the
	// request itself is never blocked.
	OriginWhitelist
)

// Fixed header sets used by the permissive variant.
var (
	permissiveMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"}
	permissiveHeaders = []string{"Authorization", "Content-Type", "Accept", "Origin", "X-Requested-With"}
	permissiveExposed = []string{"Content-Length", "Content-Type"}
)

// PermissiveMaxAge is the preflight cache lifetime for the permissive
// variant, in seconds.
const PermissiveMaxAge = 86400

// DefaultOptionsStatus is the status returned for short-circuited preflight
// requests unless the policy overrides it.
const DefaultOptionsStatus = http.StatusNoContent

// Policy is a route's resolved CORS policy. The zero value is the disabled
// policy.
type Policy struct {
	Mode Mode

	// Fields below apply only when Mode is ModeConfigured.
	OriginMode       OriginMode
	Origin           string   // OriginExact only
	OriginWhitelist  []string // OriginWhitelist only
	AllowCredentials bool
	Methods          []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	MaxAge           int
	OptionsStatus    int
}

// Disabled returns the disabled policy.
func Disabled() Policy {
	return Policy{Mode: ModeDisabled}
}

// Permissive returns the permissive policy.
func Permissive() Policy {
	return Policy{Mode: ModePermissive}
}

// Headers computes the response headers this policy attaches for a request
// with the given Origin header value. An empty map means no headers.
func (p Policy) Headers(origin string) map[string]string {
	switch p.Mode {
	case ModePermissive:
		h := map[string]string{
			"Access-Control-Allow-Methods":  strings.Join(permissiveMethods, ", "),
			"Access-Control-Allow-Headers":  strings.Join(permissiveHeaders, ", "),
			"Access-Control-Expose-Headers": strings.Join(permissiveExposed, ", "),
			"Access-Control-Max-Age":        strconv.Itoa(PermissiveMaxAge),
		}
		if origin != "" {
			h["Access-Control-Allow-Origin"] = origin
		} else {
			h["Access-Control-Allow-Origin"] = "*"
		}
		return h

	case ModeConfigured:
		h := make(map[string]string)

		switch p.OriginMode {
		case OriginMirror:
			if origin != "" {
				h["Access-Control-Allow-Origin"] = origin
			}
		case OriginExact:
			h["Access-Control-Allow-Origin"] = p.Origin
		case OriginWhitelist:
			for _, allowed := range p.OriginWhitelist {
				if allowed == origin {
					h["Access-Control-Allow-Origin"] = origin
					break
				}
			}
		}

		if p.AllowCredentials {
			h["Access-Control-Allow-Credentials"] = "true"
		}
		if len(p.Methods) > 0 {
			h["Access-Control-Allow-Methods"] = strings.Join(p.Methods, ", ")
		}
		if len(p.AllowedHeaders) > 0 {
			h["Access-Control-Allow-Headers"] = strings.Join(p.AllowedHeaders, ", ")
		}
		if len(p.ExposedHeaders) > 0 {
			h["Access-Control-Expose-Headers"] = strings.Join(p.ExposedHeaders, ", ")
		}
		if p.MaxAge > 0 {
			h["Access-Control-Max-Age"] = strconv.Itoa(p.MaxAge)
		}
		return h

	default:
		return nil
	}
}

// PreflightStatus reports whether an OPTIONS request should be
// short-circuited under this policy and, if so, with which status.
func (p Policy) PreflightStatus() (int, bool) {
	switch p.Mode {
	case ModePermissive:
		return DefaultOptionsStatus, true
	case ModeConfigured:
		if p.OptionsStatus > 0 {
			return p.OptionsStatus, true
		}
		return DefaultOptionsStatus, true
	default:
		return 0, false
	}
}

// Apply writes this policy's headers for the given request origin onto w.
func (p Policy) Apply(w http.ResponseWriter, origin string) {
	for k, v := range p.Headers(origin) {
		w.Header().Set(k, v)
	}
}

// Middleware wraps a handler with this policy for routes that only need
// header decoration and preflight handling. OPTIONS requests are
// short-circuited when the policy calls for it; all other requests pass
// through with headers attached.
func Middleware(p Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p.Mode == ModeDisabled {
				next.ServeHTTP(w, r)
				return
			}

			p.Apply(w, r.Header.Get("Origin"))

			if r.Method == http.MethodOptions {
				if status, ok := p.PreflightStatus(); ok {
					w.WriteHeader(status)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
