// Package host defines the runtime surface the plughost packages are
// built against: modules (deployable units), the service registry they
// publish into, and the event streams both emit.
//
// Implementations live elsewhere; the in-process reference runtime is
// in the inproc subpackage.
package host

// Well-known service property keys.
const (
	// PropRanking orders notification plugins. The value is an int;
	// higher ranked plugins are invoked first. Missing or non-int
	// values rank as zero.
	PropRanking = "plughost.plugin.ranking"

	// PropTargets restricts a notification plugin to specific subjects.
	// The value is a string or []string of subject IDs. Absent means
	// the plugin receives every notification.
	PropTargets = "plughost.plugin.targets"
)

// State is the lifecycle state of a module.
type State int

// Module lifecycle states, in the order a healthy module moves
// through them.
const (
	StateInstalled State = iota
	StateResolved
	StateStarting
	StateActive
	StateStopping
	StateUninstalled
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateInstalled:
		return "installed"
	case StateResolved:
		return "resolved"
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	case StateStopping:
		return "stopping"
	case StateUninstalled:
		return "uninstalled"
	default:
		return "unknown"
	}
}

// Constructor builds one instance of an extension type exported by a
// module.
type Constructor func() (any, error)

// Module is a deployable unit known to the runtime.
type Module interface {
	// ID returns the runtime-assigned identifier. IDs are unique for
	// the lifetime of the process and never reused.
	ID() int64

	// Name returns the symbolic name declared in the module manifest.
	Name() string

	// Version returns the module version string.
	Version() string

	// Location returns the filesystem path the module was installed
	// from.
	Location() string

	// State returns the current lifecycle state.
	State() State

	// ManifestPath returns the path of the module's component manifest,
	// or "" when the module does not contribute components.
	ManifestPath() string

	// Constructor resolves a named extension constructor exported by
	// the module. Unknown type names return an error.
	Constructor(typeName string) (Constructor, error)
}

// Runtime is the host a plughost daemon runs inside.
type Runtime interface {
	// Modules returns every module currently installed, in install
	// order.
	Modules() []Module

	// Module returns the module with the given identifier, or nil when
	// no such module is installed.
	Module(id int64) Module

	// ModuleByName returns the installed module with the given symbolic
	// name, or nil.
	ModuleByName(name string) Module

	// SubscribeModules delivers module lifecycle events to fn until the
	// subscription is cancelled. Events are delivered synchronously in
	// the order the transitions happen.
	SubscribeModules(fn func(ModuleEvent)) Subscription

	// Services returns the runtime's service registry.
	Services() ServiceRegistry
}
