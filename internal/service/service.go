// Package service provides the business logic for the plugin host API
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/stelliform/plughost/internal/extension"
)

var (
	// ErrNotReady is returned while the component registry is still populating
	ErrNotReady = errors.New("component registry is not ready")
	// ErrComponentNotFound is returned when a component is not found
	ErrComponentNotFound = errors.New("component not found")
	// ErrModuleNotFound is returned when a module is not found
	ErrModuleNotFound = errors.New("module not found")
)

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks -source=service.go RegistryService

// RegistryService defines the interface for plugin host operations
type RegistryService interface {
	// CheckReadiness checks if the component registry is ready to serve requests
	CheckReadiness(ctx context.Context) error

	// ListComponents returns registered components, optionally filtered and paginated
	ListComponents(ctx context.Context, opts ...Option[ListComponentsOptions]) ([]extension.ComponentRecord, string, error) // returns components, next cursor, error

	// GetComponent returns a single component by identifier
	GetComponent(ctx context.Context, componentID string) (extension.ComponentRecord, error)

	// ListParticipants returns the notification participants in dispatch order
	ListParticipants(ctx context.Context) ([]ParticipantInfo, error)

	// Notify feeds a subject change through the notification pipeline
	Notify(ctx context.Context, opts ...Option[NotifyOptions]) (string, error) // returns notification id, error

	// ListModules returns the installed modules in install order
	ListModules(ctx context.Context) ([]ModuleInfo, error)

	// InstallModule installs a module into the host runtime
	InstallModule(ctx context.Context, opts ...Option[InstallModuleOptions]) (*ModuleInfo, error)

	// UninstallModule removes a module from the host runtime
	UninstallModule(ctx context.Context, moduleID int64) error
}

// ParticipantInfo describes one notification participant
type ParticipantInfo struct {
	ServiceID int64    `json:"serviceId"`
	Ranking   int      `json:"ranking"`
	Targets   []string `json:"targets,omitempty"`
}

// ModuleInfo describes one installed module
type ModuleInfo struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Version      string `json:"version,omitempty"`
	Location     string `json:"location,omitempty"`
	State        string `json:"state"`
	ManifestPath string `json:"manifestPath,omitempty"`
}

// Option is a function that sets an option for the ListComponentsOptions,
// NotifyOptions, or InstallModuleOptions
type Option[T ListComponentsOptions | NotifyOptions | InstallModuleOptions] func(*T) error

// ListComponentsOptions is the options for the ListComponents operation
type ListComponentsOptions struct {
	Point    string
	Tag      string
	ModuleID int64
	Cursor   string
	Limit    int
}

// NotifyOptions is the options for the Notify operation
type NotifyOptions struct {
	SubjectID string
	Props     map[string]any
}

// InstallModuleOptions is the options for the InstallModule operation
type InstallModuleOptions struct {
	Name      string
	Version   string
	Location  string
	AutoStart bool
}

// WithPoint restricts the ListComponents operation to one extension point
func WithPoint(point string) Option[ListComponentsOptions] {
	return func(o *ListComponentsOptions) error {
		if point == "" {
			return fmt.Errorf("invalid point: %s", point)
		}
		o.Point = point
		return nil
	}
}

// WithTag restricts the ListComponents operation to components carrying the tag
func WithTag(tag string) Option[ListComponentsOptions] {
	return func(o *ListComponentsOptions) error {
		if tag == "" {
			return fmt.Errorf("invalid tag: %s", tag)
		}
		o.Tag = tag
		return nil
	}
}

// WithModule restricts the ListComponents operation to one contributing module
func WithModule(moduleID int64) Option[ListComponentsOptions] {
	return func(o *ListComponentsOptions) error {
		if moduleID <= 0 {
			return fmt.Errorf("invalid module id: %d", moduleID)
		}
		o.ModuleID = moduleID
		return nil
	}
}

// WithCursor sets the cursor for the ListComponents operation
func WithCursor(cursor string) Option[ListComponentsOptions] {
	return func(o *ListComponentsOptions) error {
		if cursor == "" {
			return fmt.Errorf("invalid cursor: %s", cursor)
		}
		o.Cursor = cursor
		return nil
	}
}

// WithLimit sets the page size for the ListComponents operation
func WithLimit(limit int) Option[ListComponentsOptions] {
	return func(o *ListComponentsOptions) error {
		if limit <= 0 {
			return fmt.Errorf("invalid limit: %d", limit)
		}
		o.Limit = limit
		return nil
	}
}

// WithSubject sets the changed subject for the Notify operation
func WithSubject(subjectID string) Option[NotifyOptions] {
	return func(o *NotifyOptions) error {
		if subjectID == "" {
			return fmt.Errorf("invalid subject: %s", subjectID)
		}
		o.SubjectID = subjectID
		return nil
	}
}

// WithProps sets the changed subject's properties for the Notify operation.
// A Notify without properties announces a deleted subject.
func WithProps(props map[string]any) Option[NotifyOptions] {
	return func(o *NotifyOptions) error {
		if props == nil {
			return fmt.Errorf("props are required")
		}
		o.Props = props
		return nil
	}
}

// WithModuleName sets the module name for the InstallModule operation
func WithModuleName(name string) Option[InstallModuleOptions] {
	return func(o *InstallModuleOptions) error {
		if name == "" {
			return fmt.Errorf("invalid module name: %s", name)
		}
		o.Name = name
		return nil
	}
}

// WithModuleVersion sets the module version for the InstallModule operation
func WithModuleVersion(version string) Option[InstallModuleOptions] {
	return func(o *InstallModuleOptions) error {
		if version == "" {
			return fmt.Errorf("invalid module version: %s", version)
		}
		o.Version = version
		return nil
	}
}

// WithModuleLocation sets the module location for the InstallModule operation
func WithModuleLocation(location string) Option[InstallModuleOptions] {
	return func(o *InstallModuleOptions) error {
		if location == "" {
			return fmt.Errorf("invalid module location: %s", location)
		}
		o.Location = location
		return nil
	}
}

// WithAutoStart makes the InstallModule operation start the module after
// installing it
func WithAutoStart(autoStart bool) Option[InstallModuleOptions] {
	return func(o *InstallModuleOptions) error {
		o.AutoStart = autoStart
		return nil
	}
}
