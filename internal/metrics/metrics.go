// Package metrics exposes per-channel worker counters as Prometheus
// counters, grounded on aistore's own prometheus/client_golang
// dependency (its stats package) and on
// Jeeves-Cluster-Organization-jeeves-core's identical choice of library.
//
// Registry.WriteText renders them as text for a diagnostic dump; nothing
// in this repository (the CLI included) calls it.
package metrics

import (
	"bytes"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// Registry wraps a dedicated prometheus.Registry so the core's metrics
// don't collide with a module's own instrumentation.
type Registry struct {
	reg *prometheus.Registry

	received  *prometheus.CounterVec
	droppedBy *prometheus.CounterVec // label "reason": policy | full
	evicted   *prometheus.CounterVec // label "variant": drop_queue_first | replace_queue
	depth     *prometheus.CounterVec // label "bucket": 0 | 1 | >1
}

const (
	labelModule  = "module"
	labelKind    = "kind"
	labelChannel = "channel"
)

// NewRegistry builds an empty, independent metrics registry for one bus
// instance.
func NewRegistry() *Registry {
	r := &Registry{reg: prometheus.NewRegistry()}

	labels := []string{labelModule, labelKind, labelChannel}
	r.received = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aergo_channel_received_total",
		Help: "Inbound events accepted into a channel's queue.",
	}, labels)
	r.droppedBy = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aergo_channel_dropped_total",
		Help: "Inbound events dropped, by reason (policy|full).",
	}, append(append([]string{}, labels...), "reason"))
	r.evicted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aergo_channel_evicted_total",
		Help: "Queued events evicted by an admission variant.",
	}, append(append([]string{}, labels...), "variant"))
	r.depth = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aergo_channel_queue_depth_samples_total",
		Help: "Queue-depth histogram samples, bucketed to {0, 1, >1}.",
	}, append(append([]string{}, labels...), "bucket"))

	r.reg.MustRegister(r.received, r.droppedBy, r.evicted, r.depth)
	return r
}

// ChannelCounters is the per-channel metrics handle a worker holds for
// the lifetime of one inbound queue.
type ChannelCounters struct {
	received      prometheus.Counter
	droppedPolicy prometheus.Counter
	droppedFull   prometheus.Counter
	evictDropQF   prometheus.Counter
	evictReplace  prometheus.Counter
	depth0        prometheus.Counter
	depth1        prometheus.Counter
	depthMany     prometheus.Counter
}

// ForChannel returns (creating on first use) the counters for one
// (module, channel-kind, channel-index) triple.
func (r *Registry) ForChannel(module, kind string, channel uint32) *ChannelCounters {
	ch := itoa(channel)
	return &ChannelCounters{
		received:      r.received.WithLabelValues(module, kind, ch),
		droppedPolicy: r.droppedBy.WithLabelValues(module, kind, ch, "policy"),
		droppedFull:   r.droppedBy.WithLabelValues(module, kind, ch, "full"),
		evictDropQF:   r.evicted.WithLabelValues(module, kind, ch, "drop_queue_first"),
		evictReplace:  r.evicted.WithLabelValues(module, kind, ch, "replace_queue"),
		depth0:        r.depth.WithLabelValues(module, kind, ch, "0"),
		depth1:        r.depth.WithLabelValues(module, kind, ch, "1"),
		depthMany:     r.depth.WithLabelValues(module, kind, ch, ">1"),
	}
}

func (c *ChannelCounters) IncReceived()      { c.received.Inc() }
func (c *ChannelCounters) IncDroppedPolicy() { c.droppedPolicy.Inc() }
func (c *ChannelCounters) IncDroppedFull()   { c.droppedFull.Inc() }

func (c *ChannelCounters) IncEvicted(variant string) {
	switch variant {
	case "drop_queue_first":
		c.evictDropQF.Inc()
	case "replace_queue":
		c.evictReplace.Inc()
	}
}

// SampleDepth records one queue-depth observation into the {0,1,>1}
// histogram buckets described by the design.
func (c *ChannelCounters) SampleDepth(n int) {
	switch {
	case n <= 0:
		c.depth0.Inc()
	case n == 1:
		c.depth1.Inc()
	default:
		c.depthMany.Inc()
	}
}

// WriteText dumps the registry in Prometheus text-exposition format for a
// human-readable diagnostic dump; no caller in this repository uses it.
func (r *Registry) WriteText() (string, error) {
	var buf bytes.Buffer
	mfs, err := r.reg.Gather()
	if err != nil {
		return "", err
	}
	for _, mf := range mfs {
		if _, err := buf.WriteString(mf.String() + "\n"); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

// Value reads back one counter's current total; used by tests asserting
// on the metrics a scenario produced. Grounded on the prometheus
// ecosystem's own testutil package for reading counter values in tests.
func Value(c prometheus.Counter) float64 { return testutil.ToFloat64(c) }

func itoa(n uint32) string {
	if n == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
