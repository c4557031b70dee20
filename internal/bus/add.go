package bus

import (
	"os"

	"github.com/aergo-project/aergo-core/internal/moduleapi"
	"github.com/aergo-project/aergo-core/internal/nlog"
	"github.com/aergo-project/aergo-core/internal/worker"
)

// AddModule instantiates a running module from loadedID, wires it into
// the connection graph according to bindings, and starts its worker
// threads. Returns the assigned id and whether the operation succeeded;
// on failure no module is added and mapping_state_id is not bumped. A
// failure after binding validation (factory or thread start) still
// consumes the running id it had been assigned.
func (b *Bus) AddModule(loadedID LoadedModuleID, bindings moduleapi.ChannelBindings) (RunningModuleID, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addModuleLocked(loadedID, bindings)
}

func (b *Bus) addModuleLocked(loadedID LoadedModuleID, bindings moduleapi.ChannelBindings) (RunningModuleID, bool) {
	defer b.span("bus.add_module")()

	if loadedID < 0 || int(loadedID) >= len(b.loaded) {
		nlog.Errorf("add_module: loaded id %d out of range", loadedID)
		return 0, false
	}
	lm := b.loaded[loadedID]

	if err := b.validateBindings(lm.Manifest, bindings); err != nil {
		nlog.Errorf("add_module(%s): invalid bindings: %v", lm.Name, err)
		return 0, false
	}

	// Supplemented feature: re-check the data path at creation time, not
	// only when the LoadedModule was first registered.
	dataDir := ""
	if lm.HasDataDir {
		if _, err := os.Stat(lm.DataDir); err == nil {
			dataDir = lm.DataDir
		} else {
			nlog.Warningf("add_module(%s): configured data dir %s no longer exists", lm.Name, lm.DataDir)
		}
	}

	newID := RunningModuleID(b.nextRunningID)
	b.nextRunningID++

	logger := nlog.Named(lm.Name, uint64(newID))
	core := b.newCore(b, newID)

	inst, err := lm.Create(dataDir, core, bindings, logger, uint64(newID))
	if err != nil || inst == nil {
		nlog.Errorf("add_module(%s): factory failed: %v", lm.Name, err)
		return 0, false
	}

	w := worker.New(lm.Name, inst, &lm.Manifest, b.metrics, worker.Config{})
	if !w.ThreadStart(b.threadTimeout) {
		nlog.Errorf("add_module(%s): worker threads failed to start within timeout", lm.Name)
		w.ThreadStop(b.threadTimeout)
		return 0, false
	}

	rm := newRunningModule(loadedID, lm.Manifest, logger, w, inst)
	b.appendRunning(newID, rm)
	nlog.Infof("add_module(%s): running id %d, correlation %s", lm.Name, newID, rm.CorrelationID())

	b.publishModuleChannels(newID, lm.Manifest)
	b.wireNewModule(newID, lm.Manifest, bindings)

	b.mappingStateID++
	return newID, true
}

// appendRunning places rm at slot newID, extending the running table as
// needed (auto-create / sequential adds keep it exactly in lockstep, but
// this stays correct even if a slot is ever skipped).
func (b *Bus) appendRunning(id RunningModuleID, rm *RunningModule) {
	for RunningModuleID(len(b.running)) <= id {
		b.running = append(b.running, RunningModule{state: stateTombstoned})
	}
	b.running[id] = *rm
}

// publishModuleChannels inserts the new module's own publish, response
// and AutoAll subscribe/request channels into the indices.
func (b *Bus) publishModuleChannels(id RunningModuleID, manifest moduleapi.ModuleManifest) {
	for i, p := range manifest.PublishProducers {
		b.publishIndex.add(p.Type, moduleapi.Endpoint{Module: uint64(id), Channel: uint32(i)})
	}
	for i, p := range manifest.ResponseProducers {
		b.responseIndex.add(p.Type, moduleapi.Endpoint{Module: uint64(id), Channel: uint32(i)})
	}
	for i, c := range manifest.SubscribeConsumers {
		if c.Cardinality.Kind == moduleapi.AutoAll {
			b.autoSubIndex.add(c.Type, moduleapi.Endpoint{Module: uint64(id), Channel: uint32(i)})
		}
	}
	for i, c := range manifest.RequestConsumers {
		if c.Cardinality.Kind == moduleapi.AutoAll {
			b.autoReqIndex.add(c.Type, moduleapi.Endpoint{Module: uint64(id), Channel: uint32(i)})
		}
	}
}

// wireNewModule performs the three fixed-order wiring passes from
// §4.3.2: (a) explicit non-AutoAll bindings, (b) the new module's own
// AutoAll consumers against pre-existing producers, (c) pre-existing
// AutoAll consumers against the new module's producers.
func (b *Bus) wireNewModule(id RunningModuleID, manifest moduleapi.ModuleManifest, bindings moduleapi.ChannelBindings) {
	b.wireExplicit(id, moduleapi.KindSubscribe, moduleapi.KindPublish, bindings.Subscribe)
	b.wireExplicit(id, moduleapi.KindRequest, moduleapi.KindResponse, bindings.Request)

	b.wireNewAutoAllConsumers(id, manifest.SubscribeConsumers, moduleapi.KindSubscribe, moduleapi.KindPublish, b.publishIndex)
	b.wireNewAutoAllConsumers(id, manifest.RequestConsumers, moduleapi.KindRequest, moduleapi.KindResponse, b.responseIndex)

	b.wireExistingAutoAllConsumers(id, manifest.PublishProducers, moduleapi.KindPublish, moduleapi.KindSubscribe, b.autoSubIndex)
	b.wireExistingAutoAllConsumers(id, manifest.ResponseProducers, moduleapi.KindResponse, moduleapi.KindRequest, b.autoReqIndex)
}

// wireExplicit wires pass (a): the new module's declared bindings.
func (b *Bus) wireExplicit(id RunningModuleID, consumerKind, producerKind moduleapi.ChannelKind, bindings [][]moduleapi.Endpoint) {
	for ch, peers := range bindings {
		for _, peer := range peers {
			b.link(moduleapi.Endpoint{Module: uint64(id), Channel: uint32(ch)}, consumerKind, peer, producerKind)
		}
	}
}

// wireNewAutoAllConsumers wires pass (b): the new module's own AutoAll
// consumers bind to every producer currently advertising the matching
// type.
func (b *Bus) wireNewAutoAllConsumers(id RunningModuleID, consumers []moduleapi.Consumer, consumerKind, producerKind moduleapi.ChannelKind, producerIdx channelIndex) {
	for ch, c := range consumers {
		if c.Cardinality.Kind != moduleapi.AutoAll {
			continue
		}
		for _, peer := range producerIdx.lookup(c.Type) {
			b.link(moduleapi.Endpoint{Module: uint64(id), Channel: uint32(ch)}, consumerKind, peer, producerKind)
		}
	}
}

// wireExistingAutoAllConsumers wires pass (c): every pre-existing AutoAll
// consumer of a type the new module now produces gets bound to the new
// module's producer channel.
func (b *Bus) wireExistingAutoAllConsumers(id RunningModuleID, producers []moduleapi.Producer, producerKind, consumerKind moduleapi.ChannelKind, autoIdx channelIndex) {
	for ch, p := range producers {
		producerEp := moduleapi.Endpoint{Module: uint64(id), Channel: uint32(ch)}
		for _, consumerEp := range autoIdx.lookup(p.Type) {
			if consumerEp.Module == uint64(id) {
				continue // the new module can't auto-consume its own producer in the same pass
			}
			b.link(consumerEp, consumerKind, producerEp, producerKind)
		}
	}
}

// link adds the bidirectional edge consumerEp.<consumerKind> <-> producerEp.<producerKind>.
func (b *Bus) link(consumerEp moduleapi.Endpoint, consumerKind moduleapi.ChannelKind, producerEp moduleapi.Endpoint, producerKind moduleapi.ChannelKind) {
	if consumerRM, ok := b.present(RunningModuleID(consumerEp.Module)); ok {
		addEdge(consumerRM, consumerKind, consumerEp.Channel, producerEp)
	}
	if producerRM, ok := b.present(RunningModuleID(producerEp.Module)); ok {
		addEdge(producerRM, producerKind, producerEp.Channel, consumerEp)
	}
}
