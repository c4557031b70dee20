package bus

import (
	"github.com/aergo-project/aergo-core/internal/cos"
	"github.com/aergo-project/aergo-core/internal/moduleapi"
)

// typeBucket holds one ChannelType's endpoint multiset within a shard;
// several types can land in the same shard on a hash collision.
type typeBucket struct {
	t  moduleapi.ChannelType
	es []moduleapi.Endpoint
}

// channelIndex maps a ChannelType to the multiset of endpoints currently
// advertising it - one index per (publish, response, AutoAll-subscribe,
// AutoAll-request). Non-AutoAll subscribe/request consumers are never
// indexed; they don't self-discover producers.
//
// Sharded by cos.HashChannelType rather than keyed on the ChannelType
// string directly, so a growing set of distinct channel types spreads
// across buckets instead of hashing (Go's map does that internally too,
// but on the full string every time); collisions within a shard are
// resolved by a short linear scan.
type channelIndex struct {
	buckets map[uint64][]typeBucket
}

func newChannelIndex() channelIndex {
	return channelIndex{buckets: make(map[uint64][]typeBucket)}
}

func (idx channelIndex) findBucket(t moduleapi.ChannelType) (shard uint64, pos int, ok bool) {
	shard = cos.HashChannelType(string(t))
	for i, b := range idx.buckets[shard] {
		if b.t == t {
			return shard, i, true
		}
	}
	return shard, -1, false
}

func (idx channelIndex) add(t moduleapi.ChannelType, e moduleapi.Endpoint) {
	shard, pos, ok := idx.findBucket(t)
	if !ok {
		idx.buckets[shard] = append(idx.buckets[shard], typeBucket{t: t, es: []moduleapi.Endpoint{e}})
		return
	}
	idx.buckets[shard][pos].es = append(idx.buckets[shard][pos].es, e)
}

func (idx channelIndex) remove(t moduleapi.ChannelType, e moduleapi.Endpoint) {
	shard, pos, ok := idx.findBucket(t)
	if !ok {
		return
	}
	newEs, found := edgeRemove(idx.buckets[shard][pos].es, e)
	if !found {
		return
	}
	if len(newEs) == 0 {
		idx.buckets[shard] = append(idx.buckets[shard][:pos], idx.buckets[shard][pos+1:]...)
		if len(idx.buckets[shard]) == 0 {
			delete(idx.buckets, shard)
		}
		return
	}
	idx.buckets[shard][pos].es = newEs
}

// lookup returns a copy of the endpoints currently advertising t, so
// callers can iterate without holding the index's backing array live.
func (idx channelIndex) lookup(t moduleapi.ChannelType) []moduleapi.Endpoint {
	shard, pos, ok := idx.findBucket(t)
	if !ok {
		return nil
	}
	es := idx.buckets[shard][pos].es
	out := make([]moduleapi.Endpoint, len(es))
	copy(out, es)
	return out
}
