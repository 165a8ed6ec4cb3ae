package inproc

import (
	"fmt"
	"sort"
	"sync"

	"github.com/stelliform/plughost/internal/host"
)

// serviceRegistry is the in-process host.ServiceRegistry.
type serviceRegistry struct {
	mu      sync.RWMutex
	nextID  int64
	regs    map[string][]*registration
	subs    map[string]map[int64]func(host.ServiceEvent)
	nextSub int64
}

var _ host.ServiceRegistry = (*serviceRegistry)(nil)

func newServiceRegistry() *serviceRegistry {
	return &serviceRegistry{
		regs: make(map[string][]*registration),
		subs: make(map[string]map[int64]func(host.ServiceEvent)),
	}
}

// Register publishes instance under the named capability.
func (sr *serviceRegistry) Register(capability string, instance any, props map[string]any) (host.Registration, error) {
	if capability == "" {
		return nil, fmt.Errorf("capability is required")
	}
	if instance == nil {
		return nil, fmt.Errorf("service instance is required")
	}

	sr.mu.Lock()
	sr.nextID++
	reg := &registration{
		sr:         sr,
		capability: capability,
		id:         sr.nextID,
		instance:   instance,
		props:      copyProps(props),
	}
	sr.regs[capability] = append(sr.regs[capability], reg)
	sr.mu.Unlock()

	sr.notify(capability, host.ServiceEvent{Type: host.ServiceRegistered, Ref: reg})
	return reg, nil
}

// References returns the current registrations ordered by registration
// ID. The slice is empty, never nil, when nothing matches.
func (sr *serviceRegistry) References(capability string) []host.ServiceRef {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	refs := make([]host.ServiceRef, 0, len(sr.regs[capability]))
	for _, reg := range sr.regs[capability] {
		refs = append(refs, reg)
	}
	return refs
}

// Subscribe delivers registration events for the named capability to fn.
func (sr *serviceRegistry) Subscribe(capability string, fn func(host.ServiceEvent)) host.Subscription {
	sr.mu.Lock()
	sr.nextSub++
	id := sr.nextSub
	if sr.subs[capability] == nil {
		sr.subs[capability] = make(map[int64]func(host.ServiceEvent))
	}
	sr.subs[capability][id] = fn
	sr.mu.Unlock()

	return &subscription{cancel: func() {
		sr.mu.Lock()
		delete(sr.subs[capability], id)
		sr.mu.Unlock()
	}}
}

func (sr *serviceRegistry) notify(capability string, evt host.ServiceEvent) {
	sr.mu.RLock()
	ids := make([]int64, 0, len(sr.subs[capability]))
	for id := range sr.subs[capability] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(host.ServiceEvent), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, sr.subs[capability][id])
	}
	sr.mu.RUnlock()

	for _, fn := range fns {
		fn(evt)
	}
}

func (sr *serviceRegistry) remove(reg *registration) {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	regs := sr.regs[reg.capability]
	for i, r := range regs {
		if r == reg {
			sr.regs[reg.capability] = append(regs[:i], regs[i+1:]...)
			break
		}
	}
}

// registration implements both the owner-side handle and the reference
// other parties observe.
type registration struct {
	sr         *serviceRegistry
	capability string
	id         int64

	mu            sync.RWMutex
	instance      any
	props         map[string]any
	unregistering bool
	dead          bool
}

var (
	_ host.Registration = (*registration)(nil)
	_ host.ServiceRef   = (*registration)(nil)
)

// Ref returns the reference other parties observe.
func (r *registration) Ref() host.ServiceRef { return r }

// ID returns the registration identifier.
func (r *registration) ID() int64 { return r.id }

// Property returns the value registered under key, or nil.
func (r *registration) Property(key string) any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.props[key]
}

// Instance returns the service object, or nil once the registration has
// been withdrawn.
func (r *registration) Instance() any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.dead {
		return nil
	}
	return r.instance
}

// SetProperties replaces the registration properties and emits a
// modified event.
func (r *registration) SetProperties(props map[string]any) error {
	r.mu.Lock()
	if r.dead || r.unregistering {
		r.mu.Unlock()
		return host.ErrUnregistered
	}
	r.props = copyProps(props)
	r.mu.Unlock()

	r.sr.notify(r.capability, host.ServiceEvent{Type: host.ServiceModified, Ref: r})
	return nil
}

// Unregister withdraws the service. The unregistering event is emitted
// while the reference still resolves, matching consumers that need a
// last look at the instance.
func (r *registration) Unregister() error {
	r.mu.Lock()
	if r.dead || r.unregistering {
		r.mu.Unlock()
		return host.ErrUnregistered
	}
	r.unregistering = true
	r.mu.Unlock()

	r.sr.notify(r.capability, host.ServiceEvent{Type: host.ServiceUnregistering, Ref: r})

	r.mu.Lock()
	r.dead = true
	r.mu.Unlock()

	r.sr.remove(r)
	return nil
}

func copyProps(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}
