package scrape

import "time"

// Event is anything the scrape loop emits onto its output channel. The
// stats store type-switches over concrete Event implementations; see
// spec.md §4.3.
type Event interface{ event() }

// PartitionOffsets reports one successful high-watermark fetch.
type PartitionOffsets struct {
	Now       time.Time
	Topic     string
	Partition int32
	Offset    int64
}

func (PartitionOffsets) event() {}

// RoundFinished marks that every scheduled partition for Topic has been
// processed (fetched, skipped for quarantine, or failed) this round.
type RoundFinished struct {
	Now   time.Time
	Topic string
}

func (RoundFinished) event() {}

// MetadataQueryFail reports that a round's metadata fetch failed; no
// partitions were scheduled for it.
type MetadataQueryFail struct {
	Err error
}

func (MetadataQueryFail) event() {}
