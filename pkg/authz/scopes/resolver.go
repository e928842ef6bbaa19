// Package scopes expands the hierarchical scope graph into flat permission
// sets. The resolver is pure and side-effect free; expansions are memoized
// because the graph is static for the lifetime of the process.
package scopes

import (
	"strings"
	"sync"
)

// Resolver expands granted scopes against a static Graph.
type Resolver struct {
	graph Graph

	mu   sync.RWMutex
	memo map[string][]string
}

// NewResolver creates a resolver over the given graph.
func NewResolver(graph Graph) *Resolver {
	if graph == nil {
		graph = Graph{}
	}
	return &Resolver{
		graph: graph,
		memo:  make(map[string][]string),
	}
}

// Expand returns the full set of scopes implied by granted, including
// granted itself. A wildcard child expands to every scope declared in the
// graph. Already-visited scopes are absorbed silently, so a cyclic graph
// terminates instead of recursing forever.
func (r *Resolver) Expand(granted string) []string {
	r.mu.RLock()
	cached, ok := r.memo[granted]
	r.mu.RUnlock()
	if ok {
		return append([]string(nil), cached...)
	}

	visited := make(map[string]struct{})
	var result []string

	stack := []string{granted}
	for len(stack) > 0 {
		scope := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, seen := visited[scope]; seen {
			continue
		}
		visited[scope] = struct{}{}
		result = append(result, scope)

		if scope == Wildcard {
			// The wildcard implies every declared scope.
			for _, s := range r.graph.Universe() {
				if _, seen := visited[s]; !seen {
					stack = append(stack, s)
				}
			}
			continue
		}

		children := r.graph[scope]
		// Push in reverse so expansion follows declaration order.
		for i := len(children) - 1; i >= 0; i-- {
			if _, seen := visited[children[i]]; !seen {
				stack = append(stack, children[i])
			}
		}
	}

	r.mu.Lock()
	r.memo[granted] = result
	r.mu.Unlock()
	return append([]string(nil), result...)
}

// ExpandAll expands every granted scope and unions the results.
func (r *Resolver) ExpandAll(granted []string) map[string]struct{} {
	union := make(map[string]struct{})
	for _, g := range granted {
		for _, s := range r.Expand(g) {
			union[s] = struct{}{}
		}
	}
	return union
}

// IsAuthorized reports whether the granted scopes satisfy every required
// scope. A required scope is satisfied when it is present in the expanded
// union, when the union holds the universal wildcard, or when the union
// holds "<resource>:*" for a required "<resource>:<action>".
func (r *Resolver) IsAuthorized(granted, required []string) bool {
	if len(required) == 0 {
		return true
	}

	union := r.ExpandAll(granted)
	if _, ok := union[Wildcard]; ok {
		return true
	}

	for _, req := range required {
		if _, ok := union[req]; ok {
			continue
		}
		if resource, _, found := strings.Cut(req, ":"); found {
			if _, ok := union[resource+":"+Wildcard]; ok {
				continue
			}
		}
		return false
	}
	return true
}
