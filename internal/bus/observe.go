package bus

import "github.com/aergo-project/aergo-core/internal/moduleapi"

// LoadedModulesCount returns the number of loaded libraries.
func (b *Bus) LoadedModulesCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.loaded)
}

// LoadedModuleInfo returns the LoadedModule at id, if in range.
func (b *Bus) LoadedModuleInfo(id LoadedModuleID) (LoadedModule, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if id < 0 || int(id) >= len(b.loaded) {
		return LoadedModule{}, false
	}
	return b.loaded[id], true
}

// RunningModulesCount returns the size of the running table, including
// Tombstoned slots - used to allocate ids stably.
func (b *Bus) RunningModulesCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.running)
}

// RunningModuleInfo reports whether id is Present and, if so, its loaded
// module id.
func (b *Bus) RunningModuleInfo(id RunningModuleID) (loadedID LoadedModuleID, present bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rm, ok := b.present(id)
	if !ok {
		return 0, false
	}
	return rm.loadedID, true
}

// MappingStateID returns the monotonic counter bumped on every successful
// add or remove.
func (b *Bus) MappingStateID() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mappingStateID
}

// PublishChannels returns the endpoints currently advertising publish
// producer type t.
func (b *Bus) PublishChannels(t moduleapi.ChannelType) []moduleapi.Endpoint {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.publishIndex.lookup(t)
}

// ResponseChannels returns the endpoints currently advertising response
// producer type t.
func (b *Bus) ResponseChannels(t moduleapi.ChannelType) []moduleapi.Endpoint {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.responseIndex.lookup(t)
}
