package memsys

import (
	"fmt"
	"sync"

	"github.com/aergo-project/aergo-core/internal/debug"
	"github.com/aergo-project/aergo-core/internal/nlog"
)

type poolSlot struct {
	data      []byte
	allocated bool
	refcount  uint64
}

// PoolAllocator is a fixed-slot allocator: all slots are pre-allocated at
// construction time, handed out from a free-list, and returned to the
// free-list (never freed individually) when their last owner releases.
//
// Grounded on StaticAllocator (static_allocator.cpp): a deque-based
// free-list of slot indices plus the same allocated-addresses guard as
// the dynamic allocator.
type PoolAllocator struct {
	name      string
	slotBytes uint64

	mu       sync.Mutex
	slots    []poolSlot
	freeList []blockID
}

// NewPoolAllocator pre-allocates slotCount slots of slotBytes each via
// raw (the process heap if nil). Construction fails if any slot
// allocation fails - a ResourceExhaustion at startup, fatal to the
// caller's intent to run this allocator at all.
func NewPoolAllocator(name string, slotBytes uint64, slotCount uint32, raw RawAllocator) (*PoolAllocator, error) {
	if raw == nil {
		raw = heapRawAllocator{}
	}
	a := &PoolAllocator{
		name:      name,
		slotBytes: slotBytes,
		slots:     make([]poolSlot, slotCount),
		freeList:  make([]blockID, 0, slotCount),
	}
	for i := uint32(0); i < slotCount; i++ {
		data := raw.Malloc(slotBytes)
		if data == nil {
			return nil, fmt.Errorf("memsys: pool allocator %q: failed to pre-allocate slot %d of %d", name, i, slotCount)
		}
		a.slots[i] = poolSlot{data: data}
		a.freeList = append(a.freeList, blockID(i))
	}
	return a, nil
}

func (a *PoolAllocator) Name() string { return a.name }

// SlotBytes is the fixed per-slot size; callers must read it (or
// BlockHandle.Size) since Allocate ignores its requested size argument.
func (a *PoolAllocator) SlotBytes() uint64 { return a.slotBytes }

// Allocate ignores nBytes for sizing - every slot is the same fixed size -
// but a caller requesting more than a slot holds is a bug worth catching in
// debug builds; it pops a free slot, or reports failure if the pool is
// drained.
func (a *PoolAllocator) Allocate(nBytes uint64) (BlockHandle, bool) {
	debug.Assertf(nBytes <= a.slotBytes, "pool allocator %q: requested %d bytes exceeds slot size %d", a.name, nBytes, a.slotBytes)

	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.freeList) == 0 {
		nlog.Infof("pool allocator %q: exhausted, %d slots in use", a.name, len(a.slots))
		return BlockHandle{}, false
	}
	id := a.freeList[0]
	a.freeList = a.freeList[1:]

	slot := &a.slots[id]
	slot.allocated = true
	slot.refcount = 1

	return BlockHandle{allocator: a, id: id, data: slot.data}, true
}

func (a *PoolAllocator) addOwner(id blockID) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if int(id) >= len(a.slots) || !a.slots[id].allocated {
		logUnknown(a, "add-owner-on")
		return
	}
	a.slots[id].refcount++
}

func (a *PoolAllocator) removeOwner(id blockID) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if int(id) >= len(a.slots) || !a.slots[id].allocated {
		logUnknown(a, "remove-owner-on")
		return
	}
	slot := &a.slots[id]
	slot.refcount--
	if slot.refcount == 0 {
		slot.allocated = false
		a.freeList = append(a.freeList, id)
	}
}

// FreeSlots reports how many slots are currently available, for tests and
// diagnostics.
func (a *PoolAllocator) FreeSlots() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.freeList)
}
