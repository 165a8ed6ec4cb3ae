package extension

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/stelliform/plughost/internal/versions"
)

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithChangeListener registers fn to observe registry mutations. It is
// called once per committed add, overwrite, or removal, after the
// registry lock has been released, so the listener may call back into
// the registry.
func WithChangeListener(fn func(rec ComponentRecord, removed bool)) RegistryOption {
	return func(r *Registry) {
		r.listener = fn
	}
}

// Registry is the concurrency-safe component index. Registration is
// idempotent: adding a record that is already present with identical
// data is a no-op, which lets the bulk scan and the live event stream
// feed the registry without coordinating with each other.
type Registry struct {
	listener func(rec ComponentRecord, removed bool)

	mu              sync.RWMutex
	records         map[string]ComponentRecord
	filledFromCache bool
}

// NewRegistry creates an empty component registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		records: make(map[string]ComponentRecord),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddComponent registers rec. Registering the same identifier with
// identical data is a no-op. A record with different data overwrites
// the stored one only when its manifest timestamp is not older; a
// version downgrade is logged. Reports whether the registry changed.
func (r *Registry) AddComponent(rec ComponentRecord) bool {
	r.mu.Lock()
	existing, ok := r.records[rec.ID]
	if ok {
		if equalRecords(existing, rec) {
			r.mu.Unlock()
			return false
		}
		if rec.Timestamp < existing.Timestamp {
			r.mu.Unlock()
			slog.Debug("ignoring stale component record",
				"component", rec.ID,
				"stored_timestamp", existing.Timestamp,
				"incoming_timestamp", rec.Timestamp)
			return false
		}
	}
	r.records[rec.ID] = rec
	r.mu.Unlock()

	if ok && existing.Version != "" && rec.Version != "" &&
		versions.IsNewerVersion(existing.Version, rec.Version) {
		slog.Warn("component version downgraded",
			"component", rec.ID,
			"from", existing.Version,
			"to", rec.Version)
	}

	if r.listener != nil {
		r.listener(rec, false)
	}
	return true
}

// RemoveComponent removes the record with the given identifier.
// Reports whether a record was removed.
func (r *Registry) RemoveComponent(id string) bool {
	r.mu.Lock()
	rec, ok := r.records[id]
	if ok {
		delete(r.records, id)
	}
	r.mu.Unlock()

	if ok && r.listener != nil {
		r.listener(rec, true)
	}
	return ok
}

// Component returns the record with the given identifier.
func (r *Registry) Component(id string) (ComponentRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	return rec, ok
}

// Components returns a copy of all records, ordered by identifier.
func (r *Registry) Components() []ComponentRecord {
	r.mu.RLock()
	out := make([]ComponentRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of registered components.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// SetFilledFromCache marks whether the registry content came from a
// persisted cache snapshot rather than a manifest scan.
func (r *Registry) SetFilledFromCache(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filledFromCache = v
}

// FilledFromCache reports whether the registry was filled from a
// persisted cache snapshot.
func (r *Registry) FilledFromCache() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.filledFromCache
}
