package app

import (
	"github.com/stelliform/plughost/internal/extension"
	"github.com/stelliform/plughost/internal/host/inproc"
	"github.com/stelliform/plughost/internal/plugin"
	"github.com/stelliform/plughost/internal/service"
)

// HostComponents groups all components of a running plugin host
type HostComponents struct {
	// Runtime hosts the installed plugin modules
	Runtime *inproc.Runtime

	// Components is the extension component registry
	Components *extension.Registry

	// Populator keeps the component registry aligned with the module set
	Populator *extension.Populator

	// Plugins tracks the registered notification participants
	Plugins *plugin.Registry

	// Dispatcher delivers notifications to participants in ranking order
	Dispatcher *plugin.Dispatcher

	// Factory instantiates executable extensions declared by components
	Factory *extension.Factory

	// RegistryService provides the host business logic
	RegistryService service.RegistryService
}
