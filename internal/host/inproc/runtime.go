// Package inproc is the in-process reference implementation of the
// host runtime contract. The daemon's default deployment runs on it and
// the package tests use it as a live collaborator.
package inproc

import (
	"fmt"
	"sort"
	"sync"

	"github.com/stelliform/plughost/internal/host"
	"github.com/stelliform/plughost/internal/manifest"
)

// ModuleSpec describes a module to install.
type ModuleSpec struct {
	Name     string
	Version  string
	Location string
	// Constructors maps executable extension type names to their
	// constructors.
	Constructors map[string]host.Constructor
}

// Runtime is an in-process host runtime.
type Runtime struct {
	services *serviceRegistry

	mu      sync.RWMutex
	nextID  int64
	order   []int64
	modules map[int64]*Module
	subs    map[int64]func(host.ModuleEvent)
	nextSub int64
}

var _ host.Runtime = (*Runtime)(nil)

// New returns an empty runtime.
func New() *Runtime {
	return &Runtime{
		services: newServiceRegistry(),
		modules:  make(map[int64]*Module),
		subs:     make(map[int64]func(host.ModuleEvent)),
	}
}

// Install registers a new module and leaves it in the installed state.
func (r *Runtime) Install(spec ModuleSpec) (*Module, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("module name is required")
	}

	ctors := make(map[string]host.Constructor, len(spec.Constructors))
	for name, ctor := range spec.Constructors {
		ctors[name] = ctor
	}

	r.mu.Lock()
	r.nextID++
	m := &Module{
		id:       r.nextID,
		name:     spec.Name,
		version:  spec.Version,
		location: spec.Location,
		rt:       r,
		state:    host.StateInstalled,
		ctors:    ctors,
	}
	r.modules[m.id] = m
	r.order = append(r.order, m.id)
	r.mu.Unlock()

	r.notify(host.ModuleEvent{Type: host.ModuleInstalled, Module: m})
	return m, nil
}

// Uninstall stops the module if it is active and removes it from the
// runtime.
func (r *Runtime) Uninstall(id int64) error {
	r.mu.Lock()
	m, ok := r.modules[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("no module with id %d", id)
	}
	delete(r.modules, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	events := make([]host.ModuleEvent, 0, 2)
	m.mu.Lock()
	if m.state == host.StateActive {
		m.state = host.StateResolved
		events = append(events, host.ModuleEvent{Type: host.ModuleStopped, Module: m})
	}
	m.state = host.StateUninstalled
	events = append(events, host.ModuleEvent{Type: host.ModuleUninstalled, Module: m})
	m.mu.Unlock()

	r.notify(events...)
	return nil
}

// Modules returns the installed modules in install order.
func (r *Runtime) Modules() []host.Module {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]host.Module, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.modules[id])
	}
	return out
}

// Module returns the module with the given identifier, or nil.
func (r *Runtime) Module(id int64) host.Module {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.modules[id]
	if !ok {
		return nil
	}
	return m
}

// ModuleByName returns the earliest-installed module with the given
// symbolic name, or nil.
func (r *Runtime) ModuleByName(name string) host.Module {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		if m := r.modules[id]; m.name == name {
			return m
		}
	}
	return nil
}

// SubscribeModules delivers module lifecycle events to fn.
func (r *Runtime) SubscribeModules(fn func(host.ModuleEvent)) host.Subscription {
	r.mu.Lock()
	r.nextSub++
	id := r.nextSub
	r.subs[id] = fn
	r.mu.Unlock()

	return &subscription{cancel: func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}}
}

// Services returns the runtime's service registry.
func (r *Runtime) Services() host.ServiceRegistry {
	return r.services
}

// notify delivers events to the current subscribers in subscription
// order. Events from concurrent transitions may interleave; consumers
// are expected to tolerate reordering and duplicates.
func (r *Runtime) notify(events ...host.ModuleEvent) {
	r.mu.RLock()
	ids := make([]int64, 0, len(r.subs))
	for id := range r.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(host.ModuleEvent), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, r.subs[id])
	}
	r.mu.RUnlock()

	for _, evt := range events {
		for _, fn := range fns {
			fn(evt)
		}
	}
}

// Module is a module installed in an in-process runtime.
type Module struct {
	id       int64
	name     string
	version  string
	location string
	rt       *Runtime
	ctors    map[string]host.Constructor

	mu    sync.RWMutex
	state host.State
}

var _ host.Module = (*Module)(nil)

// ID returns the runtime-assigned identifier.
func (m *Module) ID() int64 { return m.id }

// Name returns the symbolic name.
func (m *Module) Name() string { return m.name }

// Version returns the module version string.
func (m *Module) Version() string { return m.version }

// Location returns the install location.
func (m *Module) Location() string { return m.location }

// State returns the current lifecycle state.
func (m *Module) State() host.State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// ManifestPath reports the module manifest if the install location
// carries one.
func (m *Module) ManifestPath() string {
	return manifest.Locate(m.location)
}

// Constructor resolves a named extension constructor.
func (m *Module) Constructor(typeName string) (host.Constructor, error) {
	ctor, ok := m.ctors[typeName]
	if !ok {
		return nil, fmt.Errorf("module %s does not export type %q", m.name, typeName)
	}
	return ctor, nil
}

// Start resolves and activates the module.
func (m *Module) Start() error {
	m.mu.Lock()
	switch m.state {
	case host.StateUninstalled:
		m.mu.Unlock()
		return fmt.Errorf("module %s is uninstalled", m.name)
	case host.StateActive:
		m.mu.Unlock()
		return nil
	default:
	}

	events := make([]host.ModuleEvent, 0, 2)
	if m.state == host.StateInstalled {
		m.state = host.StateResolved
		events = append(events, host.ModuleEvent{Type: host.ModuleResolved, Module: m})
	}
	m.state = host.StateActive
	events = append(events, host.ModuleEvent{Type: host.ModuleStarted, Module: m})
	m.mu.Unlock()

	m.rt.notify(events...)
	return nil
}

// Stop deactivates the module. Stopping a module that is not active is
// a no-op.
func (m *Module) Stop() error {
	m.mu.Lock()
	if m.state != host.StateActive {
		m.mu.Unlock()
		return nil
	}
	m.state = host.StateResolved
	m.mu.Unlock()

	m.rt.notify(host.ModuleEvent{Type: host.ModuleStopped, Module: m})
	return nil
}

// subscription cancels one event subscription.
type subscription struct {
	once   sync.Once
	cancel func()
}

func (s *subscription) Cancel() { s.once.Do(s.cancel) }
