// Package local provides the default RegistryService implementation,
// backed by the in-process host runtime.
package local

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/stelliform/plughost/internal/extension"
	"github.com/stelliform/plughost/internal/host"
	"github.com/stelliform/plughost/internal/host/inproc"
	"github.com/stelliform/plughost/internal/plugin"
	"github.com/stelliform/plughost/internal/service"
)

// hostSvc implements the RegistryService interface
type hostSvc struct {
	runtime    *inproc.Runtime
	components *extension.Registry
	populator  *extension.Populator
	plugins    *plugin.Registry
	dispatcher *plugin.Dispatcher
}

var _ service.RegistryService = (*hostSvc)(nil)

// New creates the registry service over the host runtime. Every
// collaborator is required.
func New(
	runtime *inproc.Runtime,
	components *extension.Registry,
	populator *extension.Populator,
	plugins *plugin.Registry,
	dispatcher *plugin.Dispatcher,
) (service.RegistryService, error) {
	if runtime == nil {
		return nil, fmt.Errorf("host runtime is required")
	}
	if components == nil {
		return nil, fmt.Errorf("component registry is required")
	}
	if populator == nil {
		return nil, fmt.Errorf("registry populator is required")
	}
	if plugins == nil {
		return nil, fmt.Errorf("plugin registry is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("notification dispatcher is required")
	}

	return &hostSvc{
		runtime:    runtime,
		components: components,
		populator:  populator,
		plugins:    plugins,
		dispatcher: dispatcher,
	}, nil
}

// CheckReadiness reports ready once the populator has reached its
// terminal phase.
func (s *hostSvc) CheckReadiness(_ context.Context) error {
	if phase := s.populator.Phase(); phase != extension.PhaseReady {
		return fmt.Errorf("%w: population phase %s", service.ErrNotReady, phase)
	}
	return nil
}

// ListComponents returns the registered components in identifier order,
// narrowed by the given filters. Pagination walks the identifier order
// with an opaque cursor.
func (s *hostSvc) ListComponents(
	_ context.Context,
	opts ...service.Option[service.ListComponentsOptions],
) ([]extension.ComponentRecord, string, error) {
	var options service.ListComponentsOptions
	for _, opt := range opts {
		if err := opt(&options); err != nil {
			return nil, "", fmt.Errorf("invalid option: %w", err)
		}
	}

	after, err := service.DecodeCursor(options.Cursor)
	if err != nil {
		return nil, "", err
	}

	records := s.components.Components()
	filtered := make([]extension.ComponentRecord, 0, len(records))
	for _, rec := range records {
		if after != "" && rec.ID <= after {
			continue
		}
		if options.Point != "" && rec.Point != options.Point {
			continue
		}
		if options.ModuleID != 0 && rec.ModuleID != options.ModuleID {
			continue
		}
		if options.Tag != "" && !slices.Contains(rec.Tags, options.Tag) {
			continue
		}
		filtered = append(filtered, rec)
	}

	nextCursor := ""
	if options.Limit > 0 && len(filtered) > options.Limit {
		filtered = filtered[:options.Limit]
		nextCursor = service.EncodeCursor(filtered[len(filtered)-1].ID)
	}

	return filtered, nextCursor, nil
}

// GetComponent returns a single component by identifier.
func (s *hostSvc) GetComponent(_ context.Context, componentID string) (extension.ComponentRecord, error) {
	rec, ok := s.components.Component(componentID)
	if !ok {
		return extension.ComponentRecord{}, fmt.Errorf("%w: %s", service.ErrComponentNotFound, componentID)
	}
	return rec, nil
}

// ListParticipants returns the notification participants in the order
// the dispatcher would invoke them.
func (s *hostSvc) ListParticipants(_ context.Context) ([]service.ParticipantInfo, error) {
	snapshot := s.plugins.Snapshot()
	out := make([]service.ParticipantInfo, 0, len(snapshot))
	for _, p := range snapshot {
		out = append(out, service.ParticipantInfo{
			ServiceID: p.Ref.ID(),
			Ranking:   p.Ranking,
			Targets:   p.Targets(),
		})
	}
	return out, nil
}

// Notify validates the request and hands it to the dispatch pipeline
// without waiting for the pipeline to finish. The returned identifier
// names the accepted request in the logs.
func (s *hostSvc) Notify(ctx context.Context, opts ...service.Option[service.NotifyOptions]) (string, error) {
	var options service.NotifyOptions
	for _, opt := range opts {
		if err := opt(&options); err != nil {
			return "", fmt.Errorf("invalid option: %w", err)
		}
	}
	if options.SubjectID == "" {
		return "", fmt.Errorf("subject is required")
	}

	notificationID := uuid.NewString()

	// The dispatch must not die with the request context.
	dispatchCtx := context.WithoutCancel(ctx)
	go s.dispatcher.Dispatch(dispatchCtx, options.SubjectID, options.Props)

	slog.Info("notification accepted",
		"notification_id", notificationID,
		"subject", options.SubjectID,
	)
	return notificationID, nil
}

// ListModules returns the installed modules in install order.
func (s *hostSvc) ListModules(_ context.Context) ([]service.ModuleInfo, error) {
	modules := s.runtime.Modules()
	out := make([]service.ModuleInfo, 0, len(modules))
	for _, mod := range modules {
		out = append(out, moduleInfo(mod))
	}
	return out, nil
}

// InstallModule installs a module and optionally starts it.
func (s *hostSvc) InstallModule(
	_ context.Context,
	opts ...service.Option[service.InstallModuleOptions],
) (*service.ModuleInfo, error) {
	var options service.InstallModuleOptions
	for _, opt := range opts {
		if err := opt(&options); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}

	mod, err := s.runtime.Install(inproc.ModuleSpec{
		Name:     options.Name,
		Version:  options.Version,
		Location: options.Location,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to install module: %w", err)
	}

	if options.AutoStart {
		if err := mod.Start(); err != nil {
			return nil, fmt.Errorf("failed to start module %s: %w", mod.Name(), err)
		}
	}

	info := moduleInfo(mod)
	slog.Info("module installed",
		"module_id", info.ID,
		"module", info.Name,
		"version", info.Version,
	)
	return &info, nil
}

// UninstallModule removes a module from the runtime.
func (s *hostSvc) UninstallModule(_ context.Context, moduleID int64) error {
	if mod := s.runtime.Module(moduleID); mod == nil {
		return fmt.Errorf("%w: %d", service.ErrModuleNotFound, moduleID)
	}
	if err := s.runtime.Uninstall(moduleID); err != nil {
		return fmt.Errorf("failed to uninstall module: %w", err)
	}

	slog.Info("module uninstalled", "module_id", moduleID)
	return nil
}

func moduleInfo(mod host.Module) service.ModuleInfo {
	return service.ModuleInfo{
		ID:           mod.ID(),
		Name:         mod.Name(),
		Version:      mod.Version(),
		Location:     mod.Location(),
		State:        mod.State().String(),
		ManifestPath: mod.ManifestPath(),
	}
}
