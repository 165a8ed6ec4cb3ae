package host

import "errors"

// ErrUnregistered is returned when operating on a registration that has
// already been withdrawn.
var ErrUnregistered = errors.New("service registration already withdrawn")

// ServiceRef is a read-only handle to a registered service.
type ServiceRef interface {
	// ID returns the registration identifier. IDs increase
	// monotonically in registration order and are never reused.
	ID() int64

	// Property returns the value registered under key, or nil.
	Property(key string) any

	// Instance returns the service object, or nil when the
	// registration has been withdrawn.
	Instance() any
}

// Registration is the owner-side handle to a published service.
type Registration interface {
	// Ref returns the reference other parties observe.
	Ref() ServiceRef

	// SetProperties replaces the registration properties and emits a
	// ServiceModified event.
	SetProperties(props map[string]any) error

	// Unregister withdraws the service. A ServiceUnregistering event is
	// emitted before the reference goes dark.
	Unregister() error
}

// ServiceRegistry publishes services under interface names and fans out
// registration events.
type ServiceRegistry interface {
	// Register publishes instance under the named interface with the
	// given properties.
	Register(iface string, instance any, props map[string]any) (Registration, error)

	// References returns the current registrations under the named
	// interface, ordered by registration ID. The slice is empty, never
	// nil, when nothing matches.
	References(iface string) []ServiceRef

	// Subscribe delivers registration events for the named interface to
	// fn until the subscription is cancelled.
	Subscribe(iface string, fn func(ServiceEvent)) Subscription
}
