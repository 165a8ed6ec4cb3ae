package extension

import (
	"context"
	"fmt"

	"github.com/stelliform/plughost/internal/host"
	"github.com/stelliform/plughost/internal/identity"
)

// CreateError reports a failed executable extension creation. It names
// the contributor and the extension type and wraps the underlying
// cause.
type CreateError struct {
	// Contributor is the contributing module, by name when it could be
	// resolved and by raw identifier otherwise.
	Contributor string

	// TypeName is the extension type whose creation failed.
	TypeName string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *CreateError) Error() string {
	return fmt.Sprintf("failed to create extension type %q from contributor %q: %v", e.TypeName, e.Contributor, e.Err)
}

// Unwrap returns the underlying cause.
func (e *CreateError) Unwrap() error {
	return e.Err
}

// Factory creates executable extension instances. Unlike dispatch,
// where an unavailable participant is skipped silently, creation was
// requested explicitly, so every failure comes back to the caller as a
// *CreateError.
type Factory struct {
	runtime  host.Runtime
	identity *identity.Cache
}

// NewFactory creates a factory resolving contributors through runtime
// and the given identity cache.
func NewFactory(runtime host.Runtime, cache *identity.Cache) *Factory {
	return &Factory{
		runtime:  runtime,
		identity: cache,
	}
}

// CreateExtension instantiates the named extension type. The
// contributing module is resolved from contributor, the numeric module
// identifier recorded with the component; a non-empty
// overrideContributor resolves by symbolic module name instead.
func (f *Factory) CreateExtension(_ context.Context, contributor, typeName, overrideContributor string) (any, error) {
	label := contributor
	var mod host.Module
	if overrideContributor != "" {
		label = overrideContributor
		mod = f.runtime.ModuleByName(overrideContributor)
	} else {
		mod = f.identity.Resolve(contributor)
	}
	if mod == nil {
		return nil, &CreateError{Contributor: label, TypeName: typeName, Err: ErrUnknownModule}
	}

	ctor, err := mod.Constructor(typeName)
	if err != nil {
		return nil, &CreateError{Contributor: mod.Name(), TypeName: typeName, Err: err}
	}

	instance, err := construct(ctor)
	if err != nil {
		return nil, &CreateError{Contributor: mod.Name(), TypeName: typeName, Err: err}
	}
	return instance, nil
}

// construct invokes a module-supplied constructor, converting a panic
// into an error.
func construct(ctor host.Constructor) (instance any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("constructor panicked: %v", rec)
		}
	}()
	return ctor()
}
