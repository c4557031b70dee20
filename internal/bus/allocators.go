package bus

import (
	"fmt"

	"github.com/aergo-project/aergo-core/internal/memsys"
	"github.com/aergo-project/aergo-core/internal/nlog"
)

// CreateDynamicAllocator builds and registers a heap-backed allocator
// under name, proxied from the facade (§4.4). Registering it on the bus
// (rather than only handing the pointer back to the module) is the
// supplemented allocator-registry feature from original_source's
// Core::allocators_: it ties allocator lifetime to bus teardown and lets
// DeleteAllocator look one up by name.
func (b *Bus) CreateDynamicAllocator(name string) memsys.Allocator {
	b.mu.Lock()
	defer b.mu.Unlock()

	a := memsys.NewDynamicAllocator(name, nil)
	b.allocators[name] = a
	return a
}

// CreateBufferAllocator builds and registers a fixed-slot pool allocator.
// Construction fails (and nothing is registered) if any slot cannot be
// pre-allocated.
func (b *Bus) CreateBufferAllocator(name string, slotBytes uint64, slotCount uint32) (memsys.Allocator, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	a, err := memsys.NewPoolAllocator(name, slotBytes, slotCount, nil)
	if err != nil {
		return nil, fmt.Errorf("create_buffer_allocator(%s): %w", name, err)
	}
	b.allocators[name] = a
	return a, nil
}

// DeleteAllocator unregisters name from the bus. The allocator object
// itself outlives this call as long as any BlockHandle still references
// it directly - Go's GC, not the registry, governs its actual lifetime.
func (b *Bus) DeleteAllocator(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.allocators[name]; !ok {
		nlog.Warningf("delete_allocator: %q not registered", name)
		return
	}
	delete(b.allocators, name)
}
