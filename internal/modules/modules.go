// Package modules holds the server features built on top of the engine.
// Each feature is a module that hooks its callbacks into the reactor when
// it is added to a Registry.
package modules

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/energizer-project/craftflow/internal/config"
	"github.com/energizer-project/craftflow/internal/events"
	"github.com/energizer-project/craftflow/internal/network"
)

// Host is what a module sees of the server it is added to.
type Host interface {
	Reactor() *events.Reactor
	Connections() *network.ConnectionRegistry
	Config() *config.Config
}

// Module is a server feature.
type Module interface {
	Name() string
	// Register hooks the module into the host. It is called once.
	Register(h Host) error
}

// Registry keeps one module per concrete type, so modules can find each
// other by type.
type Registry struct {
	mu      sync.RWMutex
	modules map[reflect.Type]Module
	order   []Module
}

// NewRegistry creates an empty module registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[reflect.Type]Module)}
}

// Add registers m with the host and records it. Adding a second module of
// the same type is an error.
func (r *Registry) Add(h Host, m Module) error {
	t := reflect.TypeOf(m)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.modules[t]; ok {
		return fmt.Errorf("module %s already registered", m.Name())
	}
	if err := m.Register(h); err != nil {
		return fmt.Errorf("failed to register module %s: %w", m.Name(), err)
	}
	r.modules[t] = m
	r.order = append(r.order, m)
	return nil
}

// Names returns the module names in the order they were added.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	for i, m := range r.order {
		names[i] = m.Name()
	}
	return names
}

// Get returns the module of type M.
func Get[M Module](r *Registry) (M, bool) {
	var zero M
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[reflect.TypeOf(zero)]
	if !ok {
		return zero, false
	}
	return m.(M), true
}
