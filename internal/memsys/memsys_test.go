package memsys_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aergo-project/aergo-core/internal/memsys"
)

func TestDynamicAllocator_RefcountRoundtrip(t *testing.T) {
	a := memsys.NewDynamicAllocator("dyn", nil)

	h, ok := a.Allocate(1000)
	require.True(t, ok)
	require.True(t, h.Valid())
	assert.Equal(t, 1, a.LiveCount())

	// n copies followed by n drops returns the block to zero exactly once.
	const n = 5
	copies := make([]memsys.BlockHandle, n)
	for i := range copies {
		copies[i] = h.Copy()
	}
	assert.Equal(t, 1, a.LiveCount())

	for _, c := range copies {
		c.Release()
	}
	assert.Equal(t, 1, a.LiveCount(), "original owner's reference still outstanding")

	h.Release()
	assert.Equal(t, 0, a.LiveCount())
}

func TestDynamicAllocator_AllocationFailureIsNotFatal(t *testing.T) {
	a := memsys.NewDynamicAllocator("dyn", failingRaw{})
	_, ok := a.Allocate(10)
	assert.False(t, ok)
	assert.Equal(t, 0, a.LiveCount())
}

func TestPoolAllocator_FixedSlots(t *testing.T) {
	a, err := memsys.NewPoolAllocator("pool", 64, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, a.FreeSlots())

	h1, ok := a.Allocate(999) // requested size is ignored
	require.True(t, ok)
	assert.Equal(t, uint64(64), h1.Size())
	assert.Equal(t, 1, a.FreeSlots())

	h2, ok := a.Allocate(0)
	require.True(t, ok)
	assert.Equal(t, 0, a.FreeSlots())

	_, ok = a.Allocate(1)
	assert.False(t, ok, "pool should be drained")

	h1.Release()
	assert.Equal(t, 1, a.FreeSlots())
	h2.Release()
	assert.Equal(t, 2, a.FreeSlots())
}

func TestPoolAllocator_ConstructionFailsOnExhaustion(t *testing.T) {
	_, err := memsys.NewPoolAllocator("pool", 64, 4, failingRaw{})
	require.Error(t, err)
}

func TestBlockHandle_Empty(t *testing.T) {
	var h memsys.BlockHandle
	assert.False(t, h.Valid())
	assert.Nil(t, h.Data())
	assert.NotPanics(t, func() { h.Release() })
	assert.NotPanics(t, func() { h.Copy() })
}

// concurrent allocate/copy/release under the allocator's own lock should
// never corrupt the live set.
func TestDynamicAllocator_ConcurrentStress(t *testing.T) {
	a := memsys.NewDynamicAllocator("stress", nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, ok := a.Allocate(128)
			if !ok {
				return
			}
			c := h.Copy()
			c.Release()
			h.Release()
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, a.LiveCount())
}

type failingRaw struct{}

func (failingRaw) Malloc(uint64) []byte { return nil }
