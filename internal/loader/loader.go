// Package loader implements bus.ModuleLoader: it opens a Go plug-in
// (stdlib plugin.Open, the Go analogue of dlopen), validates its four
// exported ABI symbols (ReadPluginAPIVersion, ReadModuleInfo,
// CreateModule, DestroyModule) against the expected signatures, and
// wraps them into a bus.Plugin. Grounded on original_source's
// module_loader.cpp / module_api.h (dlopen/dlsym) and on the pack's use
// of hashicorp/go-multierror to aggregate independent failures into one
// error.
package loader

import (
	"fmt"
	"plugin"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/aergo-project/aergo-core/internal/bus"
	"github.com/aergo-project/aergo-core/internal/cmn"
	"github.com/aergo-project/aergo-core/internal/moduleapi"
	"github.com/aergo-project/aergo-core/internal/nlog"
)

const (
	symAPIVersion = "ReadPluginAPIVersion"
	symModuleInfo = "ReadModuleInfo"
	symCreate     = "CreateModule"
	symDestroy    = "DestroyModule"
)

// ReadPluginAPIVersionFunc is the expected signature of a plug-in's
// ReadPluginAPIVersion symbol.
type ReadPluginAPIVersionFunc = func() uint64

// ReadModuleInfoFunc is the expected signature of a plug-in's
// ReadModuleInfo symbol.
type ReadModuleInfoFunc = func() moduleapi.ModuleManifest

// CreateModuleFunc is the expected signature of a plug-in's CreateModule
// symbol - the wire form of create_module from §6.1.
type CreateModuleFunc = func(dataDir string, core moduleapi.ICore, bindings moduleapi.ChannelBindings, logger *nlog.Logger, moduleID uint64) (bus.ModuleInstance, error)

// DestroyModuleFunc is the expected signature of a plug-in's
// DestroyModule symbol.
type DestroyModuleFunc = func(bus.ModuleInstance)

// Loader opens Go plug-ins from disk and validates their ABI surface.
type Loader struct{}

// New constructs a Loader. It carries no state - each Load call opens an
// independent *.so file.
func New() *Loader { return &Loader{} }

// Load implements bus.ModuleLoader.
func (l *Loader) Load(path string) (*bus.Plugin, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "loader: open %s", path)
	}

	var merr *multierror.Error

	versionFn, verr := lookupSymbol[ReadPluginAPIVersionFunc](p, symAPIVersion)
	merr = multierror.Append(merr, verr)

	infoFn, ierr := lookupSymbol[ReadModuleInfoFunc](p, symModuleInfo)
	merr = multierror.Append(merr, ierr)

	createFn, cerr := lookupSymbol[CreateModuleFunc](p, symCreate)
	merr = multierror.Append(merr, cerr)

	destroyFn, derr := lookupSymbol[DestroyModuleFunc](p, symDestroy)
	merr = multierror.Append(merr, derr)

	if merr.ErrorOrNil() != nil {
		return nil, &cmn.ErrLoaderFailure{Module: path, Cause: merr.ErrorOrNil()}
	}

	return &bus.Plugin{
		Manifest:   infoFn(),
		APIVersion: versionFn(),
		Create:     createFn,
		Destroy:    destroyFn,
	}, nil
}

func lookupSymbol[T any](p *plugin.Plugin, name string) (T, error) {
	var zero T
	sym, err := p.Lookup(name)
	if err != nil {
		return zero, fmt.Errorf("symbol %s: %w", name, err)
	}
	fn, ok := sym.(T)
	if !ok {
		return zero, fmt.Errorf("symbol %s: unexpected type %T", name, sym)
	}
	return fn, nil
}
