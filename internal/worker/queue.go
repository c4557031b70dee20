package worker

import (
	"github.com/aergo-project/aergo-core/internal/metrics"
	"github.com/aergo-project/aergo-core/internal/moduleapi"
)

// Event is one dequeued unit of work: kind tag, local channel index,
// source endpoint, and the message itself - exactly the fields the
// original ProcessingData struct carried.
type Event struct {
	Kind    moduleapi.ChannelKind
	Channel uint32
	Source  moduleapi.Endpoint
	Msg     moduleapi.MessageHeader
}

// channelQueue is one bounded per-channel FIFO: a fixed capacity, a
// priority class, an admission policy and its own metrics handle. It
// holds no lock of its own - the owning Worker's mutex guards all queues.
type channelQueue struct {
	kind     moduleapi.ChannelKind
	channel  uint32
	capacity int
	priority PriorityClass
	policy   IngressPolicy
	metrics  *metrics.ChannelCounters

	items []Event
}

func newChannelQueue(kind moduleapi.ChannelKind, channel uint32, capacity int, priority PriorityClass, policy IngressPolicy, m *metrics.ChannelCounters) *channelQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	if policy == nil {
		policy = DefaultIngressPolicy
	}
	return &channelQueue{
		kind:     kind,
		channel:  channel,
		capacity: capacity,
		priority: priority,
		policy:   policy,
		metrics:  m,
		items:    make([]Event, 0, capacity),
	}
}

// offer applies the admission policy and returns true if the event was
// enqueued. Must be called with the owning Worker's mutex held.
func (q *channelQueue) offer(ev Event) bool {
	q.metrics.SampleDepth(len(q.items))

	decision := q.policy(len(q.items), q.capacity)
	switch decision {
	case Drop:
		q.metrics.IncDroppedPolicy()
		ev.Msg.Release()
		return false
	case AcceptDropQueueFirst:
		if len(q.items) >= q.capacity && len(q.items) > 0 {
			q.items[0].Msg.Release()
			q.items = q.items[1:]
			q.metrics.IncEvicted("drop_queue_first")
		}
	case AcceptReplaceQueue:
		for _, old := range q.items {
			old.Msg.Release()
			q.metrics.IncEvicted("replace_queue")
		}
		q.items = q.items[:0]
	case Accept:
		if len(q.items) >= q.capacity {
			q.metrics.IncDroppedFull()
			ev.Msg.Release()
			return false
		}
	}

	q.items = append(q.items, ev)
	q.metrics.IncReceived()
	return true
}

// pop removes and returns the oldest event, if any.
func (q *channelQueue) pop() (Event, bool) {
	if len(q.items) == 0 {
		return Event{}, false
	}
	ev := q.items[0]
	q.items = q.items[1:]
	return ev, true
}

func (q *channelQueue) empty() bool { return len(q.items) == 0 }
