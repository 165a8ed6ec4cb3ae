package host

// ModuleEventType identifies a module lifecycle transition.
type ModuleEventType int

// Module lifecycle event types.
const (
	ModuleInstalled ModuleEventType = iota + 1
	ModuleResolved
	ModuleStarted
	ModuleStopped
	ModuleUpdated
	ModuleUninstalled
)

// String returns the lowercase event name.
func (t ModuleEventType) String() string {
	switch t {
	case ModuleInstalled:
		return "installed"
	case ModuleResolved:
		return "resolved"
	case ModuleStarted:
		return "started"
	case ModuleStopped:
		return "stopped"
	case ModuleUpdated:
		return "updated"
	case ModuleUninstalled:
		return "uninstalled"
	default:
		return "unknown"
	}
}

// ModuleEvent describes one module lifecycle transition.
type ModuleEvent struct {
	Type   ModuleEventType
	Module Module
}

// ServiceEventType identifies a change to a service registration.
type ServiceEventType int

// Service registration event types.
const (
	ServiceRegistered ServiceEventType = iota + 1
	ServiceModified
	ServiceUnregistering
)

// String returns the lowercase event name.
func (t ServiceEventType) String() string {
	switch t {
	case ServiceRegistered:
		return "registered"
	case ServiceModified:
		return "modified"
	case ServiceUnregistering:
		return "unregistering"
	default:
		return "unknown"
	}
}

// ServiceEvent describes one change to a service registration.
type ServiceEvent struct {
	Type ServiceEventType
	Ref  ServiceRef
}

// Subscription is a handle to an event subscription.
type Subscription interface {
	// Cancel stops delivery. Safe to call more than once.
	Cancel()
}
