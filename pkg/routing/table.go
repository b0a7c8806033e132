package routing

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"skyroute-hq/skyroute/pkg/cors"
)

// routeSpec is the YAML form of one route.
type routeSpec struct {
	Domain         string         `yaml:"domain"`
	PathPrefix     string         `yaml:"path_prefix"`
	Target         string         `yaml:"target"`
	Type           string         `yaml:"type"`
	CORS           cors.Spec      `yaml:"cors"`
	ForwardHeaders []string       `yaml:"forward_headers"`
	ErrorResponse  *ErrorOverride `yaml:"error_response"`
}

// tableSpec is the YAML form of the route-table file.
type tableSpec struct {
	Routes []routeSpec `yaml:"routes"`
}

// Table is an immutable set of resolved routes.
type Table struct {
	routes []*Route
}

// LoadTable reads and resolves the route-table file at path.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read route table %q: %w", path, err)
	}

	var spec tableSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse route table %q: %w", path, err)
	}

	return buildTable(spec)
}

func buildTable(spec tableSpec) (*Table, error) {
	routes := make([]*Route, 0, len(spec.Routes))

	for i, rs := range spec.Routes {
		if rs.Domain == "" {
			return nil, fmt.Errorf("route %d: domain must not be empty", i)
		}
		if rs.Target == "" {
			return nil, fmt.Errorf("route %d (%s): target must not be empty", i, rs.Domain)
		}

		target, err := url.Parse(rs.Target)
		if err != nil || !target.IsAbs() {
			return nil, fmt.Errorf("route %d (%s): target %q must be an absolute URL", i, rs.Domain, rs.Target)
		}

		prefix := rs.PathPrefix
		if prefix == "" {
			prefix = "/"
		}
		if !strings.HasPrefix(prefix, "/") {
			return nil, fmt.Errorf("route %d (%s): path_prefix %q must start with /", i, rs.Domain, prefix)
		}

		routes = append(routes, &Route{
			Domain:         strings.ToLower(rs.Domain),
			PathPrefix:     prefix,
			Target:         strings.TrimSuffix(rs.Target, "/"),
			Type:           rs.Type,
			CORS:           rs.CORS.Policy(),
			ForwardHeaders: rs.ForwardHeaders,
			ErrorOverride:  rs.ErrorResponse,
		})
	}

	// Longest prefix first so Lookup can take the first match.
	sort.SliceStable(routes, func(i, j int) bool {
		return len(routes[i].PathPrefix) > len(routes[j].PathPrefix)
	})

	return &Table{routes: routes}, nil
}

// Lookup returns the route for an inbound host and path, or nil if none
// matches. The host's port is ignored; among domain matches, the longest
// matching path prefix wins.
func (t *Table) Lookup(host, path string) *Route {
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	host = strings.ToLower(host)

	for _, r := range t.routes {
		if r.Domain != host {
			continue
		}
		if r.PathPrefix == "/" || strings.HasPrefix(path, r.PathPrefix) {
			return r
		}
	}
	return nil
}

// Len returns the number of routes in the table.
func (t *Table) Len() int {
	return len(t.routes)
}

// Provider holds the current route table and swaps it atomically on reload.
type Provider struct {
	path  string
	table atomic.Pointer[Table]
}

// NewProvider loads the initial table from path.
func NewProvider(path string) (*Provider, error) {
	table, err := LoadTable(path)
	if err != nil {
		return nil, err
	}

	p := &Provider{path: path}
	p.table.Store(table)
	return p, nil
}

// Lookup resolves a route against the current table.
func (p *Provider) Lookup(host, path string) *Route {
	return p.table.Load().Lookup(host, path)
}

// Table returns the current table.
func (p *Provider) Table() *Table {
	return p.table.Load()
}

// Reload re-reads the route file and swaps in the new table. On failure the
// previous table stays in effect and the error is returned.
func (p *Provider) Reload() error {
	table, err := LoadTable(p.path)
	if err != nil {
		return err
	}
	p.table.Store(table)
	return nil
}
