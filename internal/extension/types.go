package extension

import (
	"context"
	"errors"
	"reflect"

	"github.com/stelliform/plughost/internal/host"
)

// ErrUnknownModule is returned (wrapped in a CreateError) when the
// contributing module of an extension cannot be resolved.
var ErrUnknownModule = errors.New("unknown contributing module")

// ErrNoManifestParser is returned when no manifest parser service is
// published in the host service registry.
var ErrNoManifestParser = errors.New("no manifest parser service available")

// ComponentRecord is one contributed component held by the registry.
type ComponentRecord struct {
	// ID is the registry-wide component identifier.
	ID string `json:"id"`

	// Point names the extension point the component plugs into.
	Point string `json:"point,omitempty"`

	// Type is the executable extension type name, when the component
	// declares one.
	Type string `json:"type,omitempty"`

	// Version is the component version from the manifest.
	Version string `json:"version,omitempty"`

	// ManifestPath locates the descriptor the record was read from.
	ManifestPath string `json:"manifestPath"`

	// Timestamp is the manifest modification time in Unix milliseconds.
	Timestamp int64 `json:"timestamp"`

	// ModuleID identifies the contributing module in the host runtime.
	ModuleID int64 `json:"moduleId"`

	// ModuleName is the contributing module's symbolic name.
	ModuleName string `json:"moduleName,omitempty"`

	// Tags are the component's manifest tags.
	Tags []string `json:"tags,omitempty"`

	// Properties carries the component's configuration properties.
	Properties map[string]any `json:"properties,omitempty"`
}

// equalRecords reports whether two records carry identical data.
func equalRecords(a, b ComponentRecord) bool {
	return reflect.DeepEqual(a, b)
}

// CacheSnapshot is the persisted form of the registry between runs.
type CacheSnapshot struct {
	// Timestamp is the contributions timestamp of the module set the
	// snapshot was taken from.
	Timestamp int64 `json:"contributionsTimestamp"`

	// Components are the records the registry held.
	Components []ComponentRecord `json:"components"`
}

// CacheStore persists registry snapshots between runs and computes the
// contributions timestamp used to decide whether a stored snapshot is
// still valid. The file-based implementation is in internal/store.
type CacheStore interface {
	// Load returns the stored snapshot, or nil when none exists.
	Load(ctx context.Context) (*CacheSnapshot, error)

	// Save writes a snapshot, replacing any previous one.
	Save(ctx context.Context, snap *CacheSnapshot) error

	// ContributionsTimestamp derives a fingerprint of the given module
	// set from the modification times of their manifests. It returns 0
	// when any manifest cannot be inspected.
	ContributionsTimestamp(modules []host.Module) int64
}
