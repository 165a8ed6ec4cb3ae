package plugin

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/stelliform/plughost/internal/host"
)

// Registry tracks the set of registered notification plugins in dispatch
// order. Order is maintained at insertion time, ranking descending with
// later-registered participants first among equal rankings, so Snapshot
// is a plain copy.
//
// A Registry is safe for concurrent use.
type Registry struct {
	services host.ServiceRegistry

	mu      sync.Mutex
	open    bool
	sub     host.Subscription
	entries []Participant
}

// NewRegistry creates a registry over the given service registry. The
// registry does not track anything until Open is called.
func NewRegistry(services host.ServiceRegistry) *Registry {
	return &Registry{services: services}
}

// Open subscribes to plugin service events and then adopts the plugins
// already registered with the host. The subscription is established before
// the adoption pass so a plugin arriving in between is seen by at least one
// of the two paths; Register is an upsert, so being seen by both is
// harmless. Open is idempotent.
func (r *Registry) Open() {
	sub := r.services.Subscribe(Capability, r.handleEvent)

	r.mu.Lock()
	if r.open {
		r.mu.Unlock()
		sub.Cancel()
		return
	}
	r.open = true
	r.sub = sub
	r.mu.Unlock()

	for _, ref := range r.services.References(Capability) {
		r.Register(ref)
	}
}

// Close cancels the event subscription and drops all tracked participants.
// Close is idempotent.
func (r *Registry) Close() {
	r.mu.Lock()
	if !r.open {
		r.mu.Unlock()
		return
	}
	r.open = false
	sub := r.sub
	r.sub = nil
	r.entries = nil
	r.mu.Unlock()

	sub.Cancel()
}

// Register adds the referenced plugin to the ordered set, reading its
// ranking and target filter from the current service properties. If a
// participant with the same identity is already present it is replaced,
// which makes Register serve both first registration and property updates.
func (r *Registry) Register(ref host.ServiceRef) {
	p := newParticipant(ref)

	r.mu.Lock()
	r.removeLocked(ref.ID())
	r.insertLocked(p)
	size := len(r.entries)
	r.mu.Unlock()

	slog.Debug("notification plugin registered",
		"plugin", ref.ID(),
		"ranking", p.Ranking,
		"participants", size,
	)
}

// Unregister removes the participant with the given identity. Removing an
// unknown identity is a no-op. An in-flight dispatch keeps using the
// snapshot it already took.
func (r *Registry) Unregister(id int64) {
	r.mu.Lock()
	removed := r.removeLocked(id)
	size := len(r.entries)
	r.mu.Unlock()

	if removed {
		slog.Debug("notification plugin unregistered", "plugin", id, "participants", size)
	}
}

// Snapshot returns a point-in-time copy of the ordered participant set.
// The result is never nil; no participants yields an empty slice. The
// copy is taken under the lock and the lock is released before returning,
// so callers can iterate without blocking registration.
func (r *Registry) Snapshot() []Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Participant, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of tracked participants.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) handleEvent(ev host.ServiceEvent) {
	switch ev.Type {
	case host.ServiceRegistered, host.ServiceModified:
		r.Register(ev.Ref)
	case host.ServiceUnregistering:
		r.Unregister(ev.Ref.ID())
	}
}

// insertLocked places p at its ordered position: ranking descending, and
// among equal rankings identity descending so the later-registered
// participant sorts first.
func (r *Registry) insertLocked(p Participant) {
	id := p.Ref.ID()
	i := sort.Search(len(r.entries), func(i int) bool {
		e := r.entries[i]
		return e.Ranking < p.Ranking || (e.Ranking == p.Ranking && e.Ref.ID() < id)
	})

	r.entries = append(r.entries, Participant{})
	copy(r.entries[i+1:], r.entries[i:])
	r.entries[i] = p
}

func (r *Registry) removeLocked(id int64) bool {
	for i, e := range r.entries {
		if e.Ref.ID() == id {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}
