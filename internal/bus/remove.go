package bus

import (
	"github.com/aergo-project/aergo-core/internal/debug"
	"github.com/aergo-project/aergo-core/internal/moduleapi"
	"github.com/aergo-project/aergo-core/internal/nlog"
)

// RemoveResult is the outcome of a remove_module call.
type RemoveResult int

const (
	Success RemoveResult = iota
	DoesNotExist
	HasDependencies
	ThreadStopFailed
)

func (r RemoveResult) String() string {
	switch r {
	case Success:
		return "Success"
	case DoesNotExist:
		return "DoesNotExist"
	case HasDependencies:
		return "HasDependencies"
	case ThreadStopFailed:
		return "ThreadStopFailed"
	default:
		return "Unknown"
	}
}

// RemoveModule tears down id and, if recursive, everything depending on
// it. Dependents are computed as the closure reachable via non-AutoAll
// outgoing edges (publish->subscribers, response->requesters); AutoAll
// consumers tolerate producers disappearing and are excluded.
func (b *Bus) RemoveModule(id RunningModuleID, recursive bool) RemoveResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	defer b.span("bus.remove_module")()

	if _, ok := b.present(id); !ok {
		return DoesNotExist
	}

	closure := b.collectDependenciesLocked(id)
	if len(closure) > 1 && !recursive {
		return HasDependencies
	}

	stopSuccess := true
	for i := len(closure) - 1; i >= 0; i-- {
		if !b.teardownOne(closure[i]) {
			stopSuccess = false
		}
	}

	b.mappingStateID++
	if !stopSuccess {
		return ThreadStopFailed
	}
	return Success
}

// CollectDependencies returns the dependents closure of id without
// mutating any state (§4.3.6 observability).
func (b *Bus) CollectDependencies(id RunningModuleID) []RunningModuleID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.collectDependenciesLocked(id)
}

func (b *Bus) collectDependenciesLocked(id RunningModuleID) []RunningModuleID {
	visited := map[RunningModuleID]bool{id: true}
	order := []RunningModuleID{id}
	queue := []RunningModuleID{id}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		rm, ok := b.present(cur)
		if !ok {
			continue
		}
		for ch, peers := range rm.publishEdges {
			for _, peer := range peers {
				if b.isNonAutoAllConsumer(peer, moduleapi.KindSubscribe) && !visited[RunningModuleID(peer.Module)] {
					_ = ch
					visited[RunningModuleID(peer.Module)] = true
					order = append(order, RunningModuleID(peer.Module))
					queue = append(queue, RunningModuleID(peer.Module))
				}
			}
		}
		for ch, peers := range rm.responseEdges {
			for _, peer := range peers {
				if b.isNonAutoAllConsumer(peer, moduleapi.KindRequest) && !visited[RunningModuleID(peer.Module)] {
					_ = ch
					visited[RunningModuleID(peer.Module)] = true
					order = append(order, RunningModuleID(peer.Module))
					queue = append(queue, RunningModuleID(peer.Module))
				}
			}
		}
	}
	return order
}

// isNonAutoAllConsumer reports whether peer's channel of kind (Subscribe
// or Request) on its own manifest is declared with non-AutoAll
// cardinality.
func (b *Bus) isNonAutoAllConsumer(peer moduleapi.Endpoint, kind moduleapi.ChannelKind) bool {
	rm, ok := b.present(RunningModuleID(peer.Module))
	if !ok {
		return false
	}
	consumers := b.loaded[rm.loadedID].Manifest.SubscribeConsumers
	if kind == moduleapi.KindRequest {
		consumers = b.loaded[rm.loadedID].Manifest.RequestConsumers
	}
	if int(peer.Channel) >= len(consumers) {
		return false
	}
	return consumers[peer.Channel].Cardinality.Kind != moduleapi.AutoAll
}

// teardownOne erases all of id's back-edges from its peers, removes it
// from the channel indices, stops its worker, and marks it Tombstoned.
// Returns whether the worker stop succeeded cleanly.
func (b *Bus) teardownOne(id RunningModuleID) bool {
	rm, ok := b.present(id)
	if !ok {
		return true
	}

	for ch, peers := range rm.publishEdges {
		for _, peer := range peers {
			b.eraseBackEdge(peer, moduleapi.KindSubscribe, moduleapi.Endpoint{Module: uint64(id), Channel: uint32(ch)})
		}
	}
	for ch, peers := range rm.responseEdges {
		for _, peer := range peers {
			b.eraseBackEdge(peer, moduleapi.KindRequest, moduleapi.Endpoint{Module: uint64(id), Channel: uint32(ch)})
		}
	}
	for ch, peers := range rm.subscribeEdges {
		for _, peer := range peers {
			b.eraseBackEdge(peer, moduleapi.KindPublish, moduleapi.Endpoint{Module: uint64(id), Channel: uint32(ch)})
		}
	}
	for ch, peers := range rm.requestEdges {
		for _, peer := range peers {
			b.eraseBackEdge(peer, moduleapi.KindResponse, moduleapi.Endpoint{Module: uint64(id), Channel: uint32(ch)})
		}
	}

	manifest := b.loaded[rm.loadedID].Manifest
	for i, p := range manifest.PublishProducers {
		b.publishIndex.remove(p.Type, moduleapi.Endpoint{Module: uint64(id), Channel: uint32(i)})
	}
	for i, p := range manifest.ResponseProducers {
		b.responseIndex.remove(p.Type, moduleapi.Endpoint{Module: uint64(id), Channel: uint32(i)})
	}
	for i, c := range manifest.SubscribeConsumers {
		if c.Cardinality.Kind == moduleapi.AutoAll {
			b.autoSubIndex.remove(c.Type, moduleapi.Endpoint{Module: uint64(id), Channel: uint32(i)})
		}
	}
	for i, c := range manifest.RequestConsumers {
		if c.Cardinality.Kind == moduleapi.AutoAll {
			b.autoReqIndex.remove(c.Type, moduleapi.Endpoint{Module: uint64(id), Channel: uint32(i)})
		}
	}

	stopOK := rm.worker.ThreadStop(b.threadTimeout)
	if lm := b.loaded[rm.loadedID]; lm.Destroy != nil {
		lm.Destroy(rm.instance)
	}
	nlog.Infof("remove_module: running id %d, correlation %s, stopped=%t", id, rm.CorrelationID(), stopOK)

	rm.state = stateTombstoned
	rm.worker = nil
	rm.instance = nil
	rm.publishEdges = nil
	rm.responseEdges = nil
	rm.subscribeEdges = nil
	rm.requestEdges = nil
	return stopOK
}

// eraseBackEdge removes the reverse edge pointing at target from peer's
// channel map of kind. A missing back-edge is a structural invariant
// violation: the graph was supposed to be bidirectionally consistent.
func (b *Bus) eraseBackEdge(peer moduleapi.Endpoint, kind moduleapi.ChannelKind, target moduleapi.Endpoint) {
	prm, ok := b.present(RunningModuleID(peer.Module))
	if !ok {
		debug.Assertf(false, "back-edge peer module %d not present while erasing %s edge to %+v", peer.Module, kind, target)
		nlog.Fatalf("invariant violation: back-edge peer module %d not present while erasing %s edge to %+v", peer.Module, kind, target)
		return
	}
	if !removeEdge(prm, kind, peer.Channel, target) {
		debug.Assertf(false, "expected back-edge %s[%d] -> %+v not found", kind, peer.Channel, target)
		nlog.Fatalf("invariant violation: expected back-edge %s[%d] -> %+v not found", kind, peer.Channel, target)
	}
}
