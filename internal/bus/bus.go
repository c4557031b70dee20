package bus

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/aergo-project/aergo-core/internal/memsys"
	"github.com/aergo-project/aergo-core/internal/metrics"
	"github.com/aergo-project/aergo-core/internal/moduleapi"
	"github.com/aergo-project/aergo-core/internal/nlog"
)

// ModuleLoader is the external collaborator the bus consumes to turn a
// file path into a loadable plug-in. Its concrete implementation
// (internal/loader, backed by the stdlib plugin package) is out of the
// bus's scope - the bus only ever sees this interface.
type ModuleLoader interface {
	Load(path string) (*Plugin, error)
}

// Plugin is what a ModuleLoader hands back for one successfully opened
// library: its manifest, declared API version, and factory/destroy
// functions. Mirrors the four-symbol dlopen ABI described by
// original_source/module_api.h.
type Plugin struct {
	Manifest   moduleapi.ModuleManifest
	APIVersion uint64
	Create     func(dataDir string, core moduleapi.ICore, bindings moduleapi.ChannelBindings, logger *nlog.Logger, moduleID uint64) (ModuleInstance, error)
	Destroy    func(ModuleInstance)
}

// FacadeFactory builds the per-module ICore view handed to create_module.
// Injected rather than imported directly: internal/facade imports this
// package to call routing entry points, so the bus cannot import facade
// back without a cycle. main wires facade.New in as this factory.
type FacadeFactory func(b *Bus, id RunningModuleID) moduleapi.ICore

// Bus owns all graph state: the loaded and running module tables, the
// channel-type indices, and the single process-wide lock serializing
// every mutation and every routing lookup.
type Bus struct {
	mu sync.Mutex

	loader  ModuleLoader
	newCore FacadeFactory
	metrics *metrics.Registry
	tracer  trace.Tracer

	threadTimeout time.Duration

	loaded  []LoadedModule
	running []RunningModule

	nextRunningID  uint64
	mappingStateID uint64

	publishIndex  channelIndex
	responseIndex channelIndex
	autoSubIndex  channelIndex
	autoReqIndex  channelIndex

	allocators map[string]memsys.Allocator
}

// Config tunes a Bus instance.
type Config struct {
	ThreadStartStopTimeout time.Duration // default 2s
}

// New constructs an empty Bus. Call Initialize to load and auto-create
// modules from disk.
func New(loader ModuleLoader, newCore FacadeFactory, reg *metrics.Registry, tracer trace.Tracer, cfg Config) *Bus {
	timeout := cfg.ThreadStartStopTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if tracer == nil {
		tracer = otel.Tracer("github.com/aergo-project/aergo-core/bus")
	}
	return &Bus{
		loader:        loader,
		newCore:       newCore,
		metrics:       reg,
		tracer:        tracer,
		threadTimeout: timeout,
		publishIndex:  newChannelIndex(),
		responseIndex: newChannelIndex(),
		autoSubIndex:  newChannelIndex(),
		autoReqIndex:  newChannelIndex(),
		allocators:    make(map[string]memsys.Allocator),
	}
}

// span starts a trace span named op and returns a func to end it. The
// bus has no request-scoped context (its API is purely synchronous), so
// spans are rooted in context.Background(); with the default (unwired)
// tracer provider this costs nothing.
func (b *Bus) span(op string) func() {
	_, sp := b.tracer.Start(context.Background(), op)
	return func() { sp.End() }
}

// present reports whether id names a Present running module, and returns
// a pointer into the running table if so. Must be called with mu held.
func (b *Bus) present(id RunningModuleID) (*RunningModule, bool) {
	if id >= RunningModuleID(len(b.running)) {
		return nil, false
	}
	rm := &b.running[id]
	if rm.state != statePresent {
		return nil, false
	}
	return rm, true
}
