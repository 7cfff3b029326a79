// Package plugin defines the inventory source plugin interface for Nimbus.
package plugin

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/yairfalse/nimbus/pkg/resource"
)

// Plugin is a source of inventory snapshots.
// Scan returns raw resources; risk fields are derived later by the compliance engine.
type Plugin interface {
	// Name returns the plugin identifier (e.g., "fixture", "aws")
	Name() string

	// Scan returns the current resources. It must honour ctx cancellation.
	Scan(ctx context.Context) ([]resource.Resource, error)
}

// Registry holds the available source plugins by name.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
}

// NewRegistry creates a registry with the given plugins.
func NewRegistry(plugins ...Plugin) *Registry {
	r := &Registry{plugins: make(map[string]Plugin, len(plugins))}
	for _, p := range plugins {
		r.Register(p)
	}
	return r
}

// Register adds a plugin, replacing any plugin with the same name.
func (r *Registry) Register(p Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins[p.Name()] = p
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	return p, ok
}

// Lookup is Get with an error naming the registered plugins.
func (r *Registry) Lookup(name string) (Plugin, error) {
	if p, ok := r.Get(name); ok {
		return p, nil
	}
	return nil, fmt.Errorf("unknown source plugin %q (available: %v)", name, r.Names())
}

// Names returns the registered plugin names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Func adapts a function into a Plugin.
type Func struct {
	ID     string
	ScanFn func(ctx context.Context) ([]resource.Resource, error)
}

// Name returns the plugin identifier.
func (f Func) Name() string { return f.ID }

// Scan calls ScanFn.
func (f Func) Scan(ctx context.Context) ([]resource.Resource, error) {
	return f.ScanFn(ctx)
}
