package bus

import (
	"github.com/aergo-project/aergo-core/internal/moduleapi"
	"github.com/aergo-project/aergo-core/internal/nlog"
	"github.com/aergo-project/aergo-core/internal/worker"
)

// SendMessage fans a message out from source (a publish endpoint) to
// every wired subscriber. Each destination is enqueued independently; an
// invalid peer is skipped with a warning rather than aborting the whole
// fan-out - lossy-by-destination is the documented contract (see §9 open
// question 1).
func (b *Bus) SendMessage(source moduleapi.Endpoint, msg moduleapi.MessageHeader) {
	b.mu.Lock()
	defer b.mu.Unlock()
	defer b.span("bus.send_message")()

	rm, ok := b.present(RunningModuleID(source.Module))
	if !ok || int(source.Channel) >= len(rm.publishEdges) {
		nlog.Errorf("send_message: invalid source endpoint %+v", source)
		return
	}

	for _, dest := range rm.publishEdges[source.Channel] {
		b.enqueueTo(dest, moduleapi.KindSubscribe, source, msg)
	}
}

// SendRequest routes an addressed request from source (a request
// endpoint) to target (a response endpoint).
func (b *Bus) SendRequest(source moduleapi.Endpoint, target moduleapi.Endpoint, msg moduleapi.MessageHeader) {
	b.mu.Lock()
	defer b.mu.Unlock()
	defer b.span("bus.send_request")()

	rm, ok := b.present(RunningModuleID(source.Module))
	if !ok || int(source.Channel) >= len(rm.requestEdges) {
		nlog.Errorf("send_request: invalid source endpoint %+v", source)
		return
	}
	b.enqueueTo(target, moduleapi.KindResponse, source, msg)
}

// SendResponse routes an addressed response from source (a response
// endpoint) back to target (a request endpoint).
func (b *Bus) SendResponse(source moduleapi.Endpoint, target moduleapi.Endpoint, msg moduleapi.MessageHeader) {
	b.mu.Lock()
	defer b.mu.Unlock()
	defer b.span("bus.send_response")()

	rm, ok := b.present(RunningModuleID(source.Module))
	if !ok || int(source.Channel) >= len(rm.responseEdges) {
		nlog.Errorf("send_response: invalid source endpoint %+v", source)
		return
	}
	b.enqueueTo(target, moduleapi.KindRequest, source, msg)
}

// enqueueTo checks that dest is a Present module and hands the
// destination worker a deep copy of msg; the copy takes its own blob
// references, so once send_* returns the caller may release its own
// immediately. A channel index the destination has no queue for is
// rejected (and the copy released) by the worker's Enqueue.
func (b *Bus) enqueueTo(dest moduleapi.Endpoint, destKind moduleapi.ChannelKind, source moduleapi.Endpoint, msg moduleapi.MessageHeader) {
	drm, ok := b.present(RunningModuleID(dest.Module))
	if !ok {
		nlog.Warningf("route: destination module %d not present, message dropped", dest.Module)
		return
	}
	drm.worker.Enqueue(worker.Event{
		Kind:    destKind,
		Channel: dest.Channel,
		Source:  source,
		Msg:     msg.Clone(),
	})
}
