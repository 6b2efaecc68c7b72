package bucket_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twmb/ktop/internal/bucket"
	"github.com/twmb/ktop/internal/scrape"
	"github.com/twmb/ktop/internal/stats"
)

func buildStore(t *testing.T, scrapeInterval time.Duration, evs ...scrape.Event) *stats.Store {
	t.Helper()
	s := stats.New(scrapeInterval)
	ch := make(chan scrape.Event, len(evs))
	for _, e := range evs {
		ch <- e
	}
	close(ch)
	_, err := s.Ingest(ch)
	require.ErrorIs(t, err, stats.ErrDisconnected)
	return s
}

// TestSingleBucketMassConservation is scenario E1's bucket half: one
// partition, 100->200 offset over one 10s interval that's exactly one
// bucket wide, must yield a single bucket at rate 10.
func TestSingleBucketMassConservation(t *testing.T) {
	t0 := time.Now()
	t1 := t0.Add(10 * time.Second)

	s := buildStore(t, 10*time.Second,
		scrape.PartitionOffsets{Now: t0, Topic: "orders", Partition: 0, Offset: 100},
		scrape.RoundFinished{Now: t0, Topic: "orders"},
		scrape.PartitionOffsets{Now: t1, Topic: "orders", Partition: 0, Offset: 200},
		scrape.RoundFinished{Now: t1, Topic: "orders"},
	)

	td := s.Generation(stats.TopicID{Name: "orders", Generation: 0})
	require.NotNil(t, td)

	points, maxY, ok := bucket.Compute(td, t1, 10*time.Second)
	require.True(t, ok)
	require.Len(t, points, 1)
	assert.InDelta(t, 10.0, points[0].Rate, 0.001)
	assert.InDelta(t, 10.0, maxY, 0.001)
}

// TestStraddlingBoundaryDistributesMass is scenario E2: a sample interval
// that spans two buckets must have its rate mass split proportionally, and
// the split must sum back to the undistributed total (mass conservation,
// invariant 3).
func TestStraddlingBoundaryDistributesMass(t *testing.T) {
	t0 := time.Now()
	// Sample interval 15s long, offsets 0 -> 150 (rate 10/s), straddling a
	// bucket boundary at the 10s mark when bucket_size=10s.
	t1 := t0.Add(15 * time.Second)
	t2 := t0.Add(20 * time.Second)

	s := buildStore(t, 5*time.Second,
		scrape.PartitionOffsets{Now: t0, Topic: "orders", Partition: 0, Offset: 0},
		scrape.RoundFinished{Now: t0, Topic: "orders"},
		scrape.PartitionOffsets{Now: t1, Topic: "orders", Partition: 0, Offset: 150},
		scrape.RoundFinished{Now: t1, Topic: "orders"},
		scrape.PartitionOffsets{Now: t2, Topic: "orders", Partition: 0, Offset: 150},
		scrape.RoundFinished{Now: t2, Topic: "orders"},
	)

	td := s.Generation(stats.TopicID{Name: "orders", Generation: 0})
	require.NotNil(t, td)

	points, _, ok := bucket.Compute(td, t2, 10*time.Second)
	require.True(t, ok)
	require.Len(t, points, 2)

	var total float64
	for _, p := range points {
		total += p.Rate * 10.0
	}
	assert.InDelta(t, 150.0, total, 0.001)
}

func TestComputeWithoutCommittedIntervalIsNotOK(t *testing.T) {
	// A sample with no RoundFinished: the generation exists but has never
	// committed a scraped interval.
	now := time.Now()
	s := buildStore(t, time.Second,
		scrape.PartitionOffsets{Now: now, Topic: "ghost", Partition: 0, Offset: 1},
	)
	td := s.Generation(stats.TopicID{Name: "ghost", Generation: 0})
	require.NotNil(t, td)

	_, _, ok := bucket.Compute(td, now, time.Second)
	assert.False(t, ok)
}
