package cors

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Spec is the YAML form of a route's CORS configuration. It accepts the
// boolean-or-object union and resolves it into a tagged Policy at decode
// time:
//
//	cors: false          # disabled
//	cors: true           # permissive
//	cors:
//	  enabled: false     # disabled
//	cors:
//	  origin: "https://app.example"        # exact origin
//	  credentials: true
//	  methods: [GET, POST]
//	  allowed_headers: [Content-Type]
//	  exposed_headers: [Content-Length]
//	  max_age: 600
//	  options_status: 200
//
// The origin field may be omitted (mirror the request origin), a string
// (exact), or a list (whitelist). The zero Spec resolves to disabled.
type Spec struct {
	policy Policy
}

// configuredSpec is the structured YAML object form.
type configuredSpec struct {
	Enabled        *bool     `yaml:"enabled"`
	Origin         yaml.Node `yaml:"origin"`
	Credentials    bool      `yaml:"credentials"`
	Methods        []string  `yaml:"methods"`
	AllowedHeaders []string  `yaml:"allowed_headers"`
	ExposedHeaders []string  `yaml:"exposed_headers"`
	MaxAge         int       `yaml:"max_age"`
	OptionsStatus  int       `yaml:"options_status"`
}

// UnmarshalYAML resolves the boolean-or-object union.
func (s *Spec) UnmarshalYAML(value *yaml.Node) error {
	// Boolean form: false = disabled, true = permissive.
	var b bool
	if err := value.Decode(&b); err == nil {
		if b {
			s.policy = Permissive()
		} else {
			s.policy = Disabled()
		}
		return nil
	}

	var raw configuredSpec
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("invalid cors configuration: %w", err)
	}

	if raw.Enabled != nil && !*raw.Enabled {
		s.policy = Disabled()
		return nil
	}

	p := Policy{
		Mode:             ModeConfigured,
		AllowCredentials: raw.Credentials,
		Methods:          raw.Methods,
		AllowedHeaders:   raw.AllowedHeaders,
		ExposedHeaders:   raw.ExposedHeaders,
		MaxAge:           raw.MaxAge,
		OptionsStatus:    raw.OptionsStatus,
	}

	if err := resolveOrigin(&p, raw.Origin); err != nil {
		return err
	}

	s.policy = p
	return nil
}

// resolveOrigin resolves the origin union: omitted = mirror, string = exact,
// list = whitelist.
func resolveOrigin(p *Policy, node yaml.Node) error {
	if node.IsZero() {
		p.OriginMode = OriginMirror
		return nil
	}

	var list []string
	if err := node.Decode(&list); err == nil {
		p.OriginMode = OriginWhitelist
		p.OriginWhitelist = list
		return nil
	}

	var exact string
	if err := node.Decode(&exact); err == nil {
		p.OriginMode = OriginExact
		p.Origin = exact
		return nil
	}

	return fmt.Errorf("invalid cors origin: must be a string or a list of strings")
}

// Policy returns the resolved policy. The zero Spec resolves to disabled.
func (s Spec) Policy() Policy {
	return s.policy
}
