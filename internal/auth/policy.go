package auth

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// EndpointRule grants access to one endpoint. Path may end in "*" for a
// prefix match; otherwise matching tolerates a missing or extra trailing
// slash. Host "*" matches any host.
type EndpointRule struct {
	Path   string `yaml:"path"`
	Method string `yaml:"method"`
	Host   string `yaml:"host"`
}

// Policy maps roles to the endpoints they may call. Exempt paths skip
// the gate entirely.
type Policy struct {
	ExemptPaths    []string                  `yaml:"exempt_paths"`
	ExemptPrefixes []string                  `yaml:"exempt_prefixes"`
	Roles          map[string][]EndpointRule `yaml:"roles"`
}

// LoadPolicyFile reads a policy from a YAML file.
func LoadPolicyFile(path string) (Policy, error) {
	var policy Policy
	raw, err := os.ReadFile(path)
	if err != nil {
		return policy, fmt.Errorf("read policy file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &policy); err != nil {
		return policy, fmt.Errorf("parse policy file: %w", err)
	}
	return policy, nil
}

// DefaultPolicy guards the API surface when no policy file is given:
// admins may call anything under /api/, operators may ingest and read,
// viewers may only read. Health and metrics endpoints stay open.
func DefaultPolicy() Policy {
	return Policy{
		ExemptPaths:    []string{"/healthz"},
		ExemptPrefixes: []string{"/metrics"},
		Roles: map[string][]EndpointRule{
			string(RoleAdmin): {
				{Path: "/api/*", Method: "GET", Host: "*"},
				{Path: "/api/*", Method: "POST", Host: "*"},
				{Path: "/api/*", Method: "PUT", Host: "*"},
				{Path: "/api/*", Method: "DELETE", Host: "*"},
			},
			string(RoleOperator): {
				{Path: "/api/ingest/", Method: "POST", Host: "*"},
				{Path: "/api/data/*", Method: "GET", Host: "*"},
				{Path: "/api/exports/*", Method: "GET", Host: "*"},
			},
			string(RoleViewer): {
				{Path: "/api/data/*", Method: "GET", Host: "*"},
				{Path: "/api/exports/*", Method: "GET", Host: "*"},
			},
		},
	}
}

// IsExempt returns true when a request should skip the gate.
func (p Policy) IsExempt(r *http.Request) bool {
	if r == nil {
		return true
	}
	for _, path := range p.ExemptPaths {
		if r.URL.Path == path {
			return true
		}
	}
	for _, prefix := range p.ExemptPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// Allows reports whether the role may perform the request.
func (p Policy) Allows(role Role, r *http.Request) bool {
	if r == nil {
		return false
	}
	rules, ok := p.Roles[string(role)]
	if !ok {
		return false
	}
	for _, rule := range rules {
		if rule.matches(r.Method, r.URL.Path, r.Host) {
			return true
		}
	}
	return false
}

func (rule EndpointRule) matches(method, path, host string) bool {
	if rule.Method != method {
		return false
	}
	if rule.Host != "*" && rule.Host != "" && rule.Host != host {
		return false
	}
	if strings.HasSuffix(rule.Path, "*") {
		return strings.HasPrefix(path, strings.TrimSuffix(rule.Path, "*"))
	}
	if rule.Path == path {
		return true
	}
	// Tolerate a trailing-slash mismatch in either direction.
	if strings.HasSuffix(rule.Path, "/") {
		return path == strings.TrimSuffix(rule.Path, "/")
	}
	return path == rule.Path+"/"
}
