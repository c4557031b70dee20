package bus

import (
	"fmt"

	"github.com/aergo-project/aergo-core/internal/cmn"
	"github.com/aergo-project/aergo-core/internal/moduleapi"
)

// validateBindings checks a candidate ChannelBindings against manifest,
// per §4.3.3: binding-array length, per-consumer cardinality, and that
// every listed endpoint names a Present producer of the matching type.
// An empty binding array (EmptyBindings) stands for zero endpoints on
// every consumer of that side. Must be called with mu held (it reads the running table). Failures are
// the ConfigurationError kind from the error taxonomy (§7): rejected
// locally, no state change.
func (b *Bus) validateBindings(manifest moduleapi.ModuleManifest, bindings moduleapi.ChannelBindings) error {
	if err := b.validateSide(bindings.Subscribe, manifest.SubscribeConsumers, moduleapi.KindPublish); err != nil {
		return cmn.NewErrConfiguration("subscribe bindings: %v", err)
	}
	if err := b.validateSide(bindings.Request, manifest.RequestConsumers, moduleapi.KindResponse); err != nil {
		return cmn.NewErrConfiguration("request bindings: %v", err)
	}
	return nil
}

func (b *Bus) validateSide(bindings [][]moduleapi.Endpoint, consumers []moduleapi.Consumer, producerKind moduleapi.ChannelKind) error {
	if len(bindings) == 0 {
		bindings = make([][]moduleapi.Endpoint, len(consumers))
	}
	if len(bindings) != len(consumers) {
		return fmt.Errorf("expected %d binding entries, got %d", len(consumers), len(bindings))
	}
	for i, c := range consumers {
		eps := bindings[i]
		if err := validateCardinality(c.Cardinality, len(eps)); err != nil {
			return fmt.Errorf("consumer %d: %w", i, err)
		}
		for _, e := range eps {
			if err := b.validateProducerEndpoint(e, producerKind, c.Type); err != nil {
				return fmt.Errorf("consumer %d endpoint %+v: %w", i, e, err)
			}
		}
	}
	return nil
}

func validateCardinality(c moduleapi.Cardinality, count int) error {
	switch c.Kind {
	case moduleapi.Single:
		if count != 1 {
			return fmt.Errorf("cardinality Single requires exactly 1 binding, got %d", count)
		}
	case moduleapi.Range:
		if uint32(count) < c.Min || uint32(count) > c.Max {
			return fmt.Errorf("cardinality Range[%d,%d] violated by count %d", c.Min, c.Max, count)
		}
	case moduleapi.AutoAll:
		if count != 0 {
			return fmt.Errorf("cardinality AutoAll requires 0 explicit bindings, got %d", count)
		}
	}
	return nil
}

// validateProducerEndpoint checks that e names a Present running module
// whose producerKind channel list has e.Channel in range and of type t.
func (b *Bus) validateProducerEndpoint(e moduleapi.Endpoint, producerKind moduleapi.ChannelKind, t moduleapi.ChannelType) error {
	rm, ok := b.present(RunningModuleID(e.Module))
	if !ok {
		return cmn.NewErrNotFound("running module %d", e.Module)
	}
	producers := b.loaded[rm.loadedID].Manifest.PublishProducers
	if producerKind == moduleapi.KindResponse {
		producers = b.loaded[rm.loadedID].Manifest.ResponseProducers
	}
	if int(e.Channel) >= len(producers) {
		return fmt.Errorf("channel %d out of range for module %d", e.Channel, e.Module)
	}
	if producers[e.Channel].Type != t {
		return fmt.Errorf("channel type mismatch: consumer wants %q, producer is %q", t, producers[e.Channel].Type)
	}
	return nil
}
