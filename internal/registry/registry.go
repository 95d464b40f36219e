// Package registry holds the in-process catalog of routes a service wants
// reconciled into the policy database. Handlers declare their routes with
// ownership metadata; the apisync reconciler reads the registry and writes
// the endpoint catalog.
package registry

import (
	"fmt"
	"sort"
	"sync"
)

// Operation declares one HTTP method on a route. ActionCode is empty when
// the method default (GET=view, POST=create, ...) applies.
type Operation struct {
	HTTPMethod string
	ActionCode string
}

// Route declares one path template and the module that owns it. Path uses
// {name} placeholders for parameterized segments.
type Route struct {
	Path          string
	ModuleCode    string
	ModuleName    string
	SubModuleCode string
	SubModuleName string
	Operations    []Operation
}

// Registry collects route declarations. Safe for concurrent registration.
type Registry struct {
	mu     sync.RWMutex
	routes map[string]*Route // keyed by path
}

func New() *Registry {
	return &Registry{routes: make(map[string]*Route)}
}

// Register adds a route declaration. Registering the same path twice merges
// the operation lists; conflicting ownership is an error.
func (r *Registry) Register(route Route) error {
	if route.Path == "" {
		return fmt.Errorf("registry: route path is empty")
	}
	if route.ModuleCode == "" {
		return fmt.Errorf("registry: route %s has no module code", route.Path)
	}
	if len(route.Operations) == 0 {
		return fmt.Errorf("registry: route %s declares no operations", route.Path)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.routes[route.Path]
	if !ok {
		cp := route
		cp.Operations = append([]Operation(nil), route.Operations...)
		r.routes[route.Path] = &cp
		return nil
	}

	if existing.ModuleCode != route.ModuleCode || existing.SubModuleCode != route.SubModuleCode {
		return fmt.Errorf("registry: route %s already owned by %s/%s",
			route.Path, existing.ModuleCode, existing.SubModuleCode)
	}
	for _, op := range route.Operations {
		if existing.hasMethod(op.HTTPMethod) {
			continue
		}
		existing.Operations = append(existing.Operations, op)
	}
	return nil
}

// MustRegister panics on a registration error. Intended for package-level
// route declarations where a conflict is a programming bug.
func (r *Registry) MustRegister(route Route) {
	if err := r.Register(route); err != nil {
		panic(err)
	}
}

// Routes returns the declared routes ordered by path.
func (r *Registry) Routes() []Route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Route, 0, len(r.routes))
	for _, route := range r.routes {
		cp := *route
		cp.Operations = append([]Operation(nil), route.Operations...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (rt *Route) hasMethod(method string) bool {
	for _, op := range rt.Operations {
		if op.HTTPMethod == method {
			return true
		}
	}
	return false
}

// Default is the process-wide registry most services use.
var Default = New()

// Register adds a route to the default registry.
func Register(route Route) error { return Default.Register(route) }

// MustRegister adds a route to the default registry, panicking on error.
func MustRegister(route Route) { Default.MustRegister(route) }
