// Package bus implements the module registry and router: the bus lock,
// the loaded/running module tables, the channel-type indices, and the
// add/remove/route operations that keep the bidirectional connection
// graph consistent.
//
// Grounded on xact/xreg/xreg.go's registry/entries split (an
// RWMutex-guarded table of entries addressed by small integer ids) and on
// original_source/core.cpp for the exact wiring and teardown order, which
// the teacher has no equivalent of.
package bus

import (
	"github.com/aergo-project/aergo-core/internal/cos"
	"github.com/aergo-project/aergo-core/internal/moduleapi"
	"github.com/aergo-project/aergo-core/internal/nlog"
	"github.com/aergo-project/aergo-core/internal/worker"
)

// RunningModuleID is the index of a module instance in the running
// table. Never reused: once assigned it identifies that slot for the
// life of the bus, Present or Tombstoned.
type RunningModuleID uint64

// LoadedModuleID is the index of a loaded library in load order.
type LoadedModuleID int

// ModuleInstance is the capability surface a plug-in's create_module
// returns: the object the worker dispatches dequeued events to.
type ModuleInstance = worker.Processor

// LoadedModule is a loaded dynamic library: a stable unique name, an
// optional data directory, its manifest, and the factory/destroy
// functions used to spawn and tear down running instances.
type LoadedModule struct {
	Name       string
	DataDir    string
	HasDataDir bool
	Manifest   moduleapi.ModuleManifest
	APIVersion uint64

	Create  func(dataDir string, core moduleapi.ICore, bindings moduleapi.ChannelBindings, logger *nlog.Logger, moduleID uint64) (ModuleInstance, error)
	Destroy func(ModuleInstance)
}

type moduleState int

const (
	statePresent moduleState = iota
	stateTombstoned
)

// RunningModule is a live instance spawned from a LoadedModule. The
// connection map is four parallel vectors, one per channel kind, indexed
// by the module's own local channel index; each entry is the set of peer
// endpoints currently wired to that channel.
type RunningModule struct {
	state         moduleState
	loadedID      LoadedModuleID
	correlationID string
	logger        *nlog.Logger
	worker        *worker.Worker
	instance      ModuleInstance

	publishEdges   [][]moduleapi.Endpoint
	responseEdges  [][]moduleapi.Endpoint
	subscribeEdges [][]moduleapi.Endpoint
	requestEdges   [][]moduleapi.Endpoint
}

func newRunningModule(loadedID LoadedModuleID, manifest moduleapi.ModuleManifest, logger *nlog.Logger, w *worker.Worker, inst ModuleInstance) *RunningModule {
	return &RunningModule{
		state:          statePresent,
		loadedID:       loadedID,
		correlationID:  cos.GenUUID(),
		logger:         logger,
		worker:         w,
		instance:       inst,
		publishEdges:   make([][]moduleapi.Endpoint, len(manifest.PublishProducers)),
		responseEdges:  make([][]moduleapi.Endpoint, len(manifest.ResponseProducers)),
		subscribeEdges: make([][]moduleapi.Endpoint, len(manifest.SubscribeConsumers)),
		requestEdges:   make([][]moduleapi.Endpoint, len(manifest.RequestConsumers)),
	}
}

// CorrelationID is the running module's diagnostics-facing unique id,
// independent of its reused-never RunningModuleID slot.
func (rm *RunningModule) CorrelationID() string { return rm.correlationID }

func edgesOf(rm *RunningModule, kind moduleapi.ChannelKind) [][]moduleapi.Endpoint {
	switch kind {
	case moduleapi.KindPublish:
		return rm.publishEdges
	case moduleapi.KindResponse:
		return rm.responseEdges
	case moduleapi.KindSubscribe:
		return rm.subscribeEdges
	case moduleapi.KindRequest:
		return rm.requestEdges
	default:
		return nil
	}
}

func edgeContains(edges []moduleapi.Endpoint, e moduleapi.Endpoint) bool {
	for _, x := range edges {
		if x == e {
			return true
		}
	}
	return false
}

func edgeRemove(edges []moduleapi.Endpoint, e moduleapi.Endpoint) ([]moduleapi.Endpoint, bool) {
	for i, x := range edges {
		if x == e {
			return append(edges[:i], edges[i+1:]...), true
		}
	}
	return edges, false
}

// addEdge wires channel idx of kind on rm to peer e, without touching the
// back-edge - callers always add both directions.
func addEdge(rm *RunningModule, kind moduleapi.ChannelKind, idx uint32, e moduleapi.Endpoint) {
	edges := edgesOf(rm, kind)
	if int(idx) >= len(edges) {
		return
	}
	edges[idx] = append(edges[idx], e)
}

// removeEdge erases peer e from channel idx of kind on rm, reporting
// whether it was found.
func removeEdge(rm *RunningModule, kind moduleapi.ChannelKind, idx uint32, e moduleapi.Endpoint) bool {
	edges := edgesOf(rm, kind)
	if int(idx) >= len(edges) {
		return false
	}
	newEdges, found := edgeRemove(edges[idx], e)
	edges[idx] = newEdges
	return found
}
