package scopes

import (
	"encoding/json"
	"os"

	"github.com/vantak/gatehouse/pkg/errx"
)

// Wildcard is the child meaning "every scope in the system".
const Wildcard = "*"

// Graph maps a scope name to the ordered set of scope names it implies.
// The table is administrator-authored and static for the process lifetime;
// it is loaded once at startup and never mutated afterwards.
type Graph map[string][]string

// LoadGraph reads a scope graph from a JSON file of the form
// {"users:manage": ["users:read", "users:write"], "admin": ["*"]}.
func LoadGraph(path string) (Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errx.Wrap(err, "failed to read scope graph", errx.TypeInternal).
			WithDetail("path", path)
	}
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, errx.Wrap(err, "failed to parse scope graph", errx.TypeValidation).
			WithDetail("path", path)
	}
	return g, nil
}

// DefaultGraph returns the built-in platform scope hierarchy.
func DefaultGraph() Graph {
	return Graph{
		"admin":          {Wildcard},
		"tenants:manage": {"tenants:read", "tenants:write", "tenants:delete"},
		"users:manage":   {"users:read", "users:write", "users:delete"},
		"roles:manage":   {"roles:read", "roles:write"},
		"tokens:manage":  {"tokens:read", "tokens:revoke"},
		"reports:manage": {"reports:read", "reports:export"},
		"audit:manage":   {"audit:read"},
	}
}

// Universe returns every scope declared in the graph, keys and children
// alike, excluding the wildcard itself.
func (g Graph) Universe() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		if s == Wildcard {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for name, children := range g {
		add(name)
		for _, child := range children {
			add(child)
		}
	}
	return out
}
