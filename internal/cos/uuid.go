// Package cos provides low-level id and hashing utilities used by the
// bus, grounded on the teacher's cmn/cos package.
package cos

import (
	"github.com/OneOfOne/xxhash"
	"github.com/google/uuid"
)

// GenUUID returns a fresh correlation-friendly unique string. Used as each
// RunningModule's correlation id, surfaced in diagnostics (not for
// MessageHeader.ID, which is a plain monotonic counter assigned by the
// facade).
func GenUUID() string { return uuid.NewString() }

// HashChannelType hashes a ChannelType string into a shard key. The bus's
// channel index buckets by this key so a growing set of distinct channel
// types spreads across buckets instead of every lookup hashing the full
// string against the same bucket.
func HashChannelType(s string) uint64 { return xxhash.ChecksumString64(s) }
