package moduleapi

import "github.com/aergo-project/aergo-core/internal/memsys"

// MessageHeader is the transport envelope carried on every send_*: an
// inline POD byte buffer copied on enqueue, a set of blob handles whose
// refcounts are bumped on enqueue, a correlation id, a send timestamp and
// a success flag (meaningful on responses).
type MessageHeader struct {
	Data      []byte
	Blobs     []memsys.BlockHandle
	ID        uint64
	Timestamp int64 // unix nanoseconds
	Success   bool
}

// Clone deep-copies the inline byte buffer and takes one reference on
// each blob, matching the enqueue-time copying discipline: once send_*
// returns, the caller may release its own references immediately.
func (h MessageHeader) Clone() MessageHeader {
	out := MessageHeader{
		ID:        h.ID,
		Timestamp: h.Timestamp,
		Success:   h.Success,
	}
	if h.Data != nil {
		out.Data = make([]byte, len(h.Data))
		copy(out.Data, h.Data)
	}
	if len(h.Blobs) > 0 {
		out.Blobs = make([]memsys.BlockHandle, len(h.Blobs))
		for i, b := range h.Blobs {
			out.Blobs[i] = b.Copy()
		}
	}
	return out
}

// Release drops this header's references on all of its blobs. Called once
// a worker is done processing a dequeued message.
func (h MessageHeader) Release() {
	for _, b := range h.Blobs {
		b.Release()
	}
}
