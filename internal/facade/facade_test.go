package facade_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aergo-project/aergo-core/internal/bus"
	"github.com/aergo-project/aergo-core/internal/facade"
	"github.com/aergo-project/aergo-core/internal/metrics"
	"github.com/aergo-project/aergo-core/internal/moduleapi"
	"github.com/aergo-project/aergo-core/internal/nlog"
)

type noopInstance struct{}

func (noopInstance) ProcessMessage(uint32, moduleapi.Endpoint, moduleapi.MessageHeader)  {}
func (noopInstance) ProcessRequest(uint32, moduleapi.Endpoint, moduleapi.MessageHeader)  {}
func (noopInstance) ProcessResponse(uint32, moduleapi.Endpoint, moduleapi.MessageHeader) {}

// recordingInstance stashes every message it's asked to process, so a
// test can assert on what the facade stamped before routing it.
type recordingInstance struct {
	mu       sync.Mutex
	messages []moduleapi.MessageHeader
}

func (r *recordingInstance) ProcessMessage(_ uint32, _ moduleapi.Endpoint, msg moduleapi.MessageHeader) {
	r.mu.Lock()
	r.messages = append(r.messages, msg)
	r.mu.Unlock()
}
func (r *recordingInstance) ProcessRequest(uint32, moduleapi.Endpoint, moduleapi.MessageHeader)  {}
func (r *recordingInstance) ProcessResponse(uint32, moduleapi.Endpoint, moduleapi.MessageHeader) {}

func (r *recordingInstance) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

func (r *recordingInstance) last() moduleapi.MessageHeader {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.messages[len(r.messages)-1]
}

// fakeLoader hands back one canned plug-in regardless of path, so
// bus.Initialize can be driven against a directory holding a single
// placeholder file.
type fakeLoader struct {
	manifest moduleapi.ModuleManifest
	captured *moduleapi.ICore
}

func (f *fakeLoader) Load(string) (*bus.Plugin, error) {
	return &bus.Plugin{
		Manifest:   f.manifest,
		APIVersion: moduleapi.CoreAPIVersion,
		Create: func(dataDir string, core moduleapi.ICore, bindings moduleapi.ChannelBindings, logger *nlog.Logger, moduleID uint64) (bus.ModuleInstance, error) {
			*f.captured = core
			return noopInstance{}, nil
		},
		Destroy: func(bus.ModuleInstance) {},
	}, nil
}

// twoModuleLoader loads a producer (load order 0) and an AutoAll
// subscriber (load order 1), keyed by the alphabetically-sorted file
// names bus.Initialize reads the directory in.
type twoModuleLoader struct {
	producerCore *moduleapi.ICore
	subscriber   *recordingInstance
}

func (l *twoModuleLoader) Load(path string) (*bus.Plugin, error) {
	if filepath.Base(path) == "a_producer.so" {
		return &bus.Plugin{
			Manifest:   moduleapi.ModuleManifest{PublishProducers: []moduleapi.Producer{{Type: "t"}}},
			APIVersion: moduleapi.CoreAPIVersion,
			Create: func(dataDir string, core moduleapi.ICore, bindings moduleapi.ChannelBindings, logger *nlog.Logger, moduleID uint64) (bus.ModuleInstance, error) {
				*l.producerCore = core
				return noopInstance{}, nil
			},
			Destroy: func(bus.ModuleInstance) {},
		}, nil
	}
	return &bus.Plugin{
		Manifest: moduleapi.ModuleManifest{
			SubscribeConsumers: []moduleapi.Consumer{{Type: "t", Cardinality: moduleapi.AutoAllCardinality()}},
			AutoCreate:         true,
		},
		APIVersion: moduleapi.CoreAPIVersion,
		Create: func(dataDir string, core moduleapi.ICore, bindings moduleapi.ChannelBindings, logger *nlog.Logger, moduleID uint64) (bus.ModuleInstance, error) {
			return l.subscriber, nil
		},
		Destroy: func(bus.ModuleInstance) {},
	}, nil
}

func newTestBus(t *testing.T, manifest moduleapi.ModuleManifest) (*bus.Bus, moduleapi.ICore) {
	t.Helper()
	modulesDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(modulesDir, "mod.so"), []byte{}, 0o644))

	var captured moduleapi.ICore
	loader := &fakeLoader{manifest: manifest, captured: &captured}

	b := bus.New(loader, facade.New, metrics.NewRegistry(), nil, bus.Config{})
	require.NoError(t, b.Initialize(modulesDir, t.TempDir()))

	_, ok := b.AddModule(0, moduleapi.EmptyBindings())
	require.True(t, ok)
	require.NotNil(t, captured)
	return b, captured
}

func TestCore_SendMessageStampsTimestamp(t *testing.T) {
	modulesDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(modulesDir, "a_producer.so"), []byte{}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(modulesDir, "b_subscriber.so"), []byte{}, 0o644))

	var producerCore moduleapi.ICore
	sub := &recordingInstance{}
	loader := &twoModuleLoader{producerCore: &producerCore, subscriber: sub}

	b := bus.New(loader, facade.New, metrics.NewRegistry(), nil, bus.Config{})
	require.NoError(t, b.Initialize(modulesDir, t.TempDir()))

	_, ok := b.AddModule(0, moduleapi.EmptyBindings())
	require.True(t, ok)
	require.NotNil(t, producerCore)

	before := time.Now().UnixNano()
	producerCore.SendMessage(0, moduleapi.MessageHeader{Data: []byte("hi")})

	require.Eventually(t, func() bool { return sub.count() == 1 }, time.Second, time.Millisecond)
	got := sub.last()
	assert.Equal(t, []byte("hi"), got.Data)
	assert.GreaterOrEqual(t, got.Timestamp, before)
}

func TestCore_SendRequestAssignsMonotonicIDs(t *testing.T) {
	_, core := newTestBus(t, moduleapi.ModuleManifest{
		RequestConsumers: []moduleapi.Consumer{{Type: "t", Cardinality: moduleapi.RangeCardinality(0, 1)}},
	})

	id1 := core.SendRequest(0, moduleapi.Endpoint{}, moduleapi.MessageHeader{})
	id2 := core.SendRequest(0, moduleapi.Endpoint{}, moduleapi.MessageHeader{})
	assert.NotEqual(t, uint64(0), id1)
	assert.Greater(t, id2, id1)
}

func TestCore_AllocatorsProxyToBus(t *testing.T) {
	b, core := newTestBus(t, moduleapi.ModuleManifest{})

	alloc := core.CreateDynamicAllocator("facade-test")
	require.NotNil(t, alloc)

	block, ok := alloc.Allocate(16)
	require.True(t, ok)
	block.Release()

	core.DeleteAllocator("facade-test")
	_ = b
}
