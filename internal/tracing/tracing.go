// Package tracing wires an optional OpenTelemetry tracer into the bus:
// running-module creation/removal and each send_* fan-out emit spans
// when a real tracer is configured, and are free no-ops otherwise.
// Grounded on Jeeves-Cluster-Organization-jeeves-core's go.mod, the only
// example repo in the pack carrying go.opentelemetry.io/otel.
package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Name is the tracer name registered with the global OTel provider.
const Name = "github.com/aergo-project/aergo-core/bus"

// NewNoop returns a tracer backed by whatever global TracerProvider is
// currently registered - the default (before a real exporter is wired by
// the host process) is OTel's own no-op provider, so spans cost nothing
// unless the process configures a real one.
func NewNoop() trace.Tracer {
	return otel.Tracer(Name)
}
