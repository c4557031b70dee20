package memsys

import (
	"sync"

	"github.com/aergo-project/aergo-core/internal/nlog"
)

// RawAllocator is the pluggable backing allocator the DynamicAllocator
// asks for memory; the default is the process heap (make([]byte, n)).
// A custom one can be supplied for testing (e.g. to force exhaustion).
type RawAllocator interface {
	Malloc(n uint64) []byte // returns nil on failure
}

type heapRawAllocator struct{}

func (heapRawAllocator) Malloc(n uint64) []byte {
	if n == 0 {
		return []byte{}
	}
	return make([]byte, n)
}

type dynBlock struct {
	data     []byte
	refcount uint64
}

// DynamicAllocator maps an internal allocation id to a block descriptor
// and frees the backing bytes when the last owner releases. Grounded on
// DynamicAllocator (dynamic_allocator.cpp): a monotonic allocation-id
// counter, a raw allocator indirection, and a side set of live block ids
// so addOwner/removeOwner can reject unknown handles.
type DynamicAllocator struct {
	name string
	raw  RawAllocator

	mu     sync.Mutex
	nextID blockID
	blocks map[blockID]*dynBlock
}

// NewDynamicAllocator constructs a DynamicAllocator using the process
// heap. raw, if non-nil, overrides the backing allocator (for tests).
func NewDynamicAllocator(name string, raw RawAllocator) *DynamicAllocator {
	if raw == nil {
		raw = heapRawAllocator{}
	}
	return &DynamicAllocator{
		name:   name,
		raw:    raw,
		blocks: make(map[blockID]*dynBlock),
	}
}

func (a *DynamicAllocator) Name() string { return a.name }

func (a *DynamicAllocator) Allocate(nBytes uint64) (BlockHandle, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.nextID
	a.nextID++

	data := a.raw.Malloc(nBytes)
	if data == nil {
		nlog.Warningf("dynamic allocator %q: failed to allocate %d bytes", a.name, nBytes)
		return BlockHandle{}, false
	}

	a.blocks[id] = &dynBlock{data: data, refcount: 1}
	return BlockHandle{allocator: a, id: id, data: data}, true
}

func (a *DynamicAllocator) addOwner(id blockID) {
	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.blocks[id]
	if !ok {
		logUnknown(a, "add-owner-on")
		return
	}
	b.refcount++
}

func (a *DynamicAllocator) removeOwner(id blockID) {
	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.blocks[id]
	if !ok {
		logUnknown(a, "remove-owner-on")
		return
	}
	b.refcount--
	if b.refcount == 0 {
		delete(a.blocks, id)
	}
}

// LiveCount reports how many blocks are currently outstanding; used by
// tests verifying the refcount-roundtrip invariant.
func (a *DynamicAllocator) LiveCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.blocks)
}
