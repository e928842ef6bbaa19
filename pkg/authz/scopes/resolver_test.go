package scopes_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantak/gatehouse/pkg/authz/scopes"
)

func TestExpandIncludesSelf(t *testing.T) {
	r := scopes.NewResolver(scopes.Graph{
		"users:manage": {"users:read", "users:write"},
	})

	expanded := r.Expand("users:manage")
	assert.ElementsMatch(t, []string{"users:manage", "users:read", "users:write"}, expanded)
}

func TestExpandUnknownScopeIsItself(t *testing.T) {
	r := scopes.NewResolver(scopes.DefaultGraph())

	expanded := r.Expand("custom:thing")
	assert.Equal(t, []string{"custom:thing"}, expanded)
}

func TestExpandTransitive(t *testing.T) {
	r := scopes.NewResolver(scopes.Graph{
		"org:admin":    {"users:manage", "billing:read"},
		"users:manage": {"users:read", "users:write"},
	})

	expanded := r.Expand("org:admin")
	assert.ElementsMatch(t, []string{
		"org:admin", "users:manage", "billing:read", "users:read", "users:write",
	}, expanded)
}

func TestExpandWildcardCoversUniverse(t *testing.T) {
	graph := scopes.DefaultGraph()
	r := scopes.NewResolver(graph)

	expanded := r.Expand("admin")

	set := make(map[string]struct{}, len(expanded))
	for _, s := range expanded {
		set[s] = struct{}{}
	}
	for _, declared := range graph.Universe() {
		_, ok := set[declared]
		require.True(t, ok, "admin expansion missing %q", declared)
	}
	_, ok := set[scopes.Wildcard]
	assert.True(t, ok, "admin expansion should carry the wildcard itself")
}

func TestExpandCyclicGraphTerminates(t *testing.T) {
	r := scopes.NewResolver(scopes.Graph{
		"a": {"b"},
		"b": {"a"},
	})

	expanded := r.Expand("a")
	assert.ElementsMatch(t, []string{"a", "b"}, expanded)
}

func TestExpandMemoReturnsCopy(t *testing.T) {
	r := scopes.NewResolver(scopes.Graph{
		"users:manage": {"users:read"},
	})

	first := r.Expand("users:manage")
	first[0] = "mutated"

	second := r.Expand("users:manage")
	assert.NotContains(t, second, "mutated")
}

func TestIsAuthorized(t *testing.T) {
	r := scopes.NewResolver(scopes.DefaultGraph())

	tests := []struct {
		name     string
		granted  []string
		required []string
		want     bool
	}{
		{"empty required always passes", []string{}, nil, true},
		{"exact match", []string{"users:read"}, []string{"users:read"}, true},
		{"implied by manage", []string{"users:manage"}, []string{"users:delete"}, true},
		{"admin satisfies everything", []string{"admin"}, []string{"audit:read", "tokens:revoke"}, true},
		{"resource wildcard", []string{"users:*"}, []string{"users:read"}, true},
		{"missing scope", []string{"users:read"}, []string{"users:write"}, false},
		{"partial coverage fails", []string{"users:manage"}, []string{"users:read", "tenants:read"}, false},
		{"no grants", nil, []string{"users:read"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.IsAuthorized(tt.granted, tt.required))
		})
	}
}
