// Package worker wraps one module instance: its per-channel inbound
// queues, priority classification, admission policy and worker threads.
// Grounded on the original dll_module_wrapper.h (per-channel std::queue,
// two condition variables, a persistent round-robin index) and on
// aistore's transport package's send-queue/send-completion-queue
// pairing for the two-loop (regular/prioritized) shape.
package worker

import (
	"sync"
	"time"

	"github.com/aergo-project/aergo-core/internal/metrics"
	"github.com/aergo-project/aergo-core/internal/moduleapi"
	"github.com/aergo-project/aergo-core/internal/nlog"
)

// Processor is the module's processing routines - the callee side of the
// worker's dispatch, implemented by the plug-in's created instance (or,
// in tests, by a synthetic module).
type Processor interface {
	ProcessMessage(channel uint32, source moduleapi.Endpoint, msg moduleapi.MessageHeader)
	ProcessRequest(channel uint32, source moduleapi.Endpoint, msg moduleapi.MessageHeader)
	ProcessResponse(channel uint32, source moduleapi.Endpoint, msg moduleapi.MessageHeader)
}

// ChannelConfig overrides the default capacity/priority/policy for one
// inbound channel. Channels not listed get DefaultQueueCapacity, Regular
// priority and DefaultIngressPolicy.
type ChannelConfig struct {
	Capacity int
	Priority PriorityClass
	Policy   IngressPolicy
}

// Config tunes a Worker's queues and thread pool sizes.
type Config struct {
	Subscribe []ChannelConfig // parallel to the manifest's SubscribeConsumers
	Response  []ChannelConfig // parallel to the manifest's ResponseProducers (inbound requests)
	Request   []ChannelConfig // parallel to the manifest's RequestConsumers (inbound responses)

	RegularWorkers     int // default 1
	PrioritizedWorkers int // default 1
}

// Worker serializes inbound events for one running module: it owns one
// bounded FIFO per inbound channel, classifies channels into a regular or
// prioritized pool, and runs a small fixed pool of goroutines that drain
// queues round-robin within their class.
type Worker struct {
	name      string
	processor Processor

	mu      sync.Mutex
	cond    *sync.Cond // regular pool wakeup
	condPri *sync.Cond // prioritized pool wakeup

	regular     []*channelQueue
	prioritized []*channelQueue
	nextRegular int
	nextPri     int

	regularWorkers     int
	prioritizedWorkers int

	stop bool
	done sync.WaitGroup
}

// New builds a Worker for one running module instance. manifest is used
// only to size and order the queue arrays; cfg supplies per-channel
// tuning.
func New(name string, processor Processor, manifest *moduleapi.ModuleManifest, reg *metrics.Registry, cfg Config) *Worker {
	w := &Worker{
		name:               name,
		processor:          processor,
		regularWorkers:     orDefault(cfg.RegularWorkers, 1),
		prioritizedWorkers: orDefault(cfg.PrioritizedWorkers, 1),
	}
	w.cond = sync.NewCond(&w.mu)
	w.condPri = sync.NewCond(&w.mu)

	w.buildQueues(moduleapi.KindSubscribe, len(manifest.SubscribeConsumers), cfg.Subscribe, reg)
	w.buildQueues(moduleapi.KindResponse, len(manifest.ResponseProducers), cfg.Response, reg)
	w.buildQueues(moduleapi.KindRequest, len(manifest.RequestConsumers), cfg.Request, reg)

	return w
}

func orDefault(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}

func (w *Worker) buildQueues(kind moduleapi.ChannelKind, count int, cfgs []ChannelConfig, reg *metrics.Registry) {
	for i := 0; i < count; i++ {
		var c ChannelConfig
		if i < len(cfgs) {
			c = cfgs[i]
		}
		m := reg.ForChannel(w.name, kind.String(), uint32(i))
		q := newChannelQueue(kind, uint32(i), c.Capacity, c.Priority, c.Policy, m)
		if q.priority == Prioritized {
			w.prioritized = append(w.prioritized, q)
		} else {
			w.regular = append(w.regular, q)
		}
	}
}

// Enqueue admits one inbound event, taking only the worker's own queue
// lock - by contract short and non-reentrant, callable from inside the
// bus lock.
func (w *Worker) Enqueue(ev Event) {
	q := w.queueFor(ev.Kind, ev.Channel)
	if q == nil {
		nlog.Errorf("%s: enqueue to unknown channel kind=%s idx=%d", w.name, ev.Kind, ev.Channel)
		ev.Msg.Release()
		return
	}

	w.mu.Lock()
	q.offer(ev)
	w.mu.Unlock()

	if q.priority == Prioritized {
		w.condPri.Broadcast()
	} else {
		w.cond.Broadcast()
	}
}

func (w *Worker) queueFor(kind moduleapi.ChannelKind, idx uint32) *channelQueue {
	for _, q := range w.regular {
		if q.kind == kind && q.channel == idx {
			return q
		}
	}
	for _, q := range w.prioritized {
		if q.kind == kind && q.channel == idx {
			return q
		}
	}
	return nil
}

// ThreadStart spawns the worker goroutines and waits up to timeout for
// all of them to be observed running.
func (w *Worker) ThreadStart(timeout time.Duration) bool {
	total := w.regularWorkers + w.prioritizedWorkers
	w.done.Add(total)

	startedCh := make(chan struct{}, total)
	for i := 0; i < w.regularWorkers; i++ {
		go w.runLoop(Regular, startedCh)
	}
	for i := 0; i < w.prioritizedWorkers; i++ {
		go w.runLoop(Prioritized, startedCh)
	}

	deadline := time.After(timeout)
	for n := 0; n < total; n++ {
		select {
		case <-startedCh:
		case <-deadline:
			return false
		}
	}
	return true
}

// ThreadStop signals all goroutines to stop, wakes both condition
// variables and waits up to timeout for them to join. Idempotent once
// begun: a second call observes the already-set stop flag and simply
// waits again.
func (w *Worker) ThreadStop(timeout time.Duration) bool {
	w.mu.Lock()
	w.stop = true
	w.mu.Unlock()
	w.cond.Broadcast()
	w.condPri.Broadcast()

	doneCh := make(chan struct{})
	go func() {
		w.done.Wait()
		close(doneCh)
	}()

	select {
	case <-doneCh:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (w *Worker) runLoop(class PriorityClass, startedCh chan struct{}) {
	defer w.done.Done()
	startedCh <- struct{}{}

	cond := w.cond
	if class == Prioritized {
		cond = w.condPri
	}

	for {
		w.mu.Lock()
		for !w.stop && w.classEmpty(class) {
			cond.Wait()
		}
		if w.stop && w.classEmpty(class) {
			w.mu.Unlock()
			return
		}
		ev, ok := w.popNext(class)
		w.mu.Unlock()

		if ok {
			w.dispatch(ev)
		}
	}
}

func (w *Worker) classEmpty(class PriorityClass) bool {
	qs := w.regular
	if class == Prioritized {
		qs = w.prioritized
	}
	for _, q := range qs {
		if !q.empty() {
			return false
		}
	}
	return true
}

// popNext drains queues round-robin across channels of class, so no
// channel is starved; the round-robin index persists across wakeups.
// Must be called with w.mu held.
func (w *Worker) popNext(class PriorityClass) (Event, bool) {
	qs := &w.regular
	idx := &w.nextRegular
	if class == Prioritized {
		qs = &w.prioritized
		idx = &w.nextPri
	}
	n := len(*qs)
	if n == 0 {
		return Event{}, false
	}
	for i := 0; i < n; i++ {
		pos := (*idx + i) % n
		if ev, ok := (*qs)[pos].pop(); ok {
			*idx = (pos + 1) % n
			return ev, true
		}
	}
	return Event{}, false
}

func (w *Worker) dispatch(ev Event) {
	defer ev.Msg.Release()
	switch ev.Kind {
	case moduleapi.KindSubscribe:
		w.processor.ProcessMessage(ev.Channel, ev.Source, ev.Msg)
	case moduleapi.KindResponse:
		w.processor.ProcessRequest(ev.Channel, ev.Source, ev.Msg)
	case moduleapi.KindRequest:
		w.processor.ProcessResponse(ev.Channel, ev.Source, ev.Msg)
	default:
		nlog.Errorf("%s: dispatch of unexpected channel kind %s", w.name, ev.Kind)
	}
}
