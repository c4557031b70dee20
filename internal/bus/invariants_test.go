package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/aergo-project/aergo-core/internal/moduleapi"
)

// checkBidirectional scans every Present module's four edge vectors and
// asserts the reverse edge exists on the peer, per spec.md §8 invariant 1.
func checkBidirectional(t *rapid.T, b *Bus) {
	t.Helper()
	for id := RunningModuleID(0); int(id) < len(b.running); id++ {
		rm, ok := b.present(id)
		if !ok {
			continue
		}
		checkSide(t, b, id, rm.publishEdges, moduleapi.KindSubscribe)
		checkSide(t, b, id, rm.responseEdges, moduleapi.KindRequest)
		checkSide(t, b, id, rm.subscribeEdges, moduleapi.KindPublish)
		checkSide(t, b, id, rm.requestEdges, moduleapi.KindResponse)
	}
}

func checkSide(t *rapid.T, b *Bus, id RunningModuleID, edges [][]moduleapi.Endpoint, backKind moduleapi.ChannelKind) {
	t.Helper()
	for ch, peers := range edges {
		for _, peer := range peers {
			prm, ok := b.present(RunningModuleID(peer.Module))
			if !ok {
				t.Fatalf("edge to non-present peer %+v", peer)
			}
			back := edgesOf(prm, backKind)
			if int(peer.Channel) >= len(back) {
				t.Fatalf("peer %+v has no channel %d of kind %s", peer, peer.Channel, backKind)
			}
			if !edgeContains(back[peer.Channel], moduleapi.Endpoint{Module: uint64(id), Channel: uint32(ch)}) {
				t.Fatalf("missing back-edge: %+v.%s[%d] should contain {%d,%d}", peer, backKind, peer.Channel, id, ch)
			}
		}
	}
}

// TestInvariant_BidirectionalConsistency_Rapid is the pgregory.net/rapid
// property test named in SPEC_FULL.md §9: for any sequence of add/remove
// operations, the connection graph stays bidirectionally consistent. The
// module pool is built entirely from AutoAll producers/consumers over a
// small type alphabet so every generated add succeeds (EmptyBindings is
// always valid for an AutoAll-only manifest), keeping the generator's focus
// on the three-pass wiring and cascade-teardown code paths rather than on
// manufacturing valid explicit bindings.
func TestInvariant_BidirectionalConsistency_Rapid(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		b := testBus()
		types := []moduleapi.ChannelType{"t0", "t1", "t2"}

		poolSize := rapid.IntRange(3, 6).Draw(rt, "poolSize")
		for i := 0; i < poolSize; i++ {
			pubType := types[rapid.IntRange(0, len(types)-1).Draw(rt, "pubType")]
			subType := types[rapid.IntRange(0, len(types)-1).Draw(rt, "subType")]
			addLoaded(b, "pool", moduleapi.ModuleManifest{
				PublishProducers:   []moduleapi.Producer{{Type: pubType}},
				SubscribeConsumers: []moduleapi.Consumer{{Type: subType, Cardinality: moduleapi.AutoAllCardinality()}},
			})
		}

		var live []RunningModuleID
		steps := rapid.IntRange(5, 30).Draw(rt, "steps")
		for s := 0; s < steps; s++ {
			if len(live) == 0 || rapid.Bool().Draw(rt, "doAdd") {
				loadedID := LoadedModuleID(rapid.IntRange(0, poolSize-1).Draw(rt, "loadedID"))
				if id, ok := b.AddModule(loadedID, moduleapi.EmptyBindings()); ok {
					live = append(live, id)
				}
			} else {
				i := rapid.IntRange(0, len(live)-1).Draw(rt, "removeIdx")
				id := live[i]
				recursive := rapid.Bool().Draw(rt, "recursive")
				if res := b.RemoveModule(id, recursive); res == Success {
					live = append(live[:i], live[i+1:]...)
					// a recursive remove may have torn down more than id;
					// prune anything no longer Present from the live set.
					kept := live[:0]
					for _, lid := range live {
						if _, ok := b.present(lid); ok {
							kept = append(kept, lid)
						}
					}
					live = kept
				}
			}
			checkBidirectional(rt, b)
		}
	})
}

func TestInvariant_NoRunningIdReuse(t *testing.T) {
	b := testBus()
	a, bb, _, _, _ := catalogue(b)

	var seen []RunningModuleID
	assign := func(id RunningModuleID) {
		for _, s := range seen {
			require.NotEqual(t, s, id, "RunningModuleID reused")
		}
		seen = append(seen, id)
	}

	id1, ok := b.AddModule(a, moduleapi.EmptyBindings())
	require.True(t, ok)
	assign(id1)

	id2, ok := b.AddModule(bb, moduleapi.ChannelBindings{Subscribe: [][]moduleapi.Endpoint{{ep(uint64(id1), 1)}}})
	require.True(t, ok)
	assign(id2)

	require.Equal(t, Success, b.RemoveModule(id1, true))

	id3, ok := b.AddModule(a, moduleapi.EmptyBindings())
	require.True(t, ok)
	assign(id3)
	assert.NotEqual(t, id1, id3)
}

func TestInvariant_MonotonicMappingID(t *testing.T) {
	b := testBus()
	a, bb, _, _, _ := catalogue(b)

	state := b.MappingStateID()

	id, ok := b.AddModule(a, moduleapi.EmptyBindings())
	require.True(t, ok)
	require.Greater(t, b.MappingStateID(), state)
	state = b.MappingStateID()

	// a rejected add (bad binding) must not move mapping_state_id.
	_, ok = b.AddModule(bb, moduleapi.ChannelBindings{Subscribe: [][]moduleapi.Endpoint{{ep(uint64(id), 0)}}})
	require.False(t, ok)
	require.Equal(t, state, b.MappingStateID())

	// a rejected remove (unknown id) must not move it either.
	res := b.RemoveModule(RunningModuleID(999), false)
	require.Equal(t, DoesNotExist, res)
	require.Equal(t, state, b.MappingStateID())

	require.Equal(t, Success, b.RemoveModule(id, true))
	require.Greater(t, b.MappingStateID(), state)
}

func TestInvariant_DependentsClosure(t *testing.T) {
	b := testBus()
	a, bb, c, _, _ := catalogue(b)
	b.autoCreateIfEligible(4) // E

	aID, _ := b.AddModule(a, moduleapi.EmptyBindings())
	bID, ok := b.AddModule(bb, moduleapi.ChannelBindings{Subscribe: [][]moduleapi.Endpoint{{ep(uint64(aID), 1)}}})
	require.True(t, ok)
	cID, ok := b.AddModule(c, moduleapi.ChannelBindings{
		Subscribe: [][]moduleapi.Endpoint{{ep(uint64(aID), 1)}},
		Request:   [][]moduleapi.Endpoint{{}},
	})
	require.True(t, ok)

	closure := b.CollectDependencies(aID)
	assert.ElementsMatch(t, []RunningModuleID{aID, bID, cID}, closure)

	// E is an AutoAll subscriber of A's m6 producer, so it must NOT be
	// part of A's non-AutoAll dependents closure.
	assert.NotContains(t, closure, RunningModuleID(0))
}

func TestInvariant_AutoAllCompleteness(t *testing.T) {
	b := testBus()
	a, bb, _, _, _ := catalogue(b)
	b.autoCreateIfEligible(4) // E, AutoAll-subscribes m6

	aID, _ := b.AddModule(a, moduleapi.EmptyBindings())
	bID, ok := b.AddModule(bb, moduleapi.ChannelBindings{Subscribe: [][]moduleapi.Endpoint{{ep(uint64(aID), 1)}}})
	require.True(t, ok)

	for _, producer := range []moduleapi.Endpoint{ep(uint64(aID), 0), ep(uint64(bID), 0)} {
		prm, ok := b.present(RunningModuleID(producer.Module))
		require.True(t, ok)
		assert.True(t, edgeContains(prm.publishEdges[producer.Channel], ep(0, 0)),
			"producer %+v missing edge to E's AutoAll consumer", producer)
	}

	eRM, ok := b.present(0)
	require.True(t, ok)
	for _, producer := range []moduleapi.Endpoint{ep(uint64(aID), 0), ep(uint64(bID), 0)} {
		assert.True(t, edgeContains(eRM.subscribeEdges[0], producer),
			"E's AutoAll consumer missing edge to producer %+v", producer)
	}
}
