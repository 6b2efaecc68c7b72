package scrape

import (
	"context"
	"errors"
	"io"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twmb/ktop/internal/kafkaclient"
)

// fakeClient is a scripted kafkaclient.Client for tests.
type fakeClient struct {
	mu        sync.Mutex
	meta      kafkaclient.ClusterMeta
	metaErr   error
	failing   map[string]bool // "topic/partition" -> fail this fetch
	watermark map[string]int64
	calls     []string
}

func (f *fakeClient) FetchMetadata(context.Context, time.Duration) (kafkaclient.ClusterMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.meta, f.metaErr
}

func (f *fakeClient) FetchWatermark(_ context.Context, topic string, partition int32, _ time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := partKey(topic, partition)
	f.calls = append(f.calls, key)
	if f.failing[key] {
		return 0, errors.New("boom")
	}
	return f.watermark[key], nil
}

func partKey(topic string, partition int32) string {
	return topic + "/" + strconv.Itoa(int(partition))
}

func discardLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func twoPartitionMeta(topic string) kafkaclient.ClusterMeta {
	return kafkaclient.ClusterMeta{
		Topics: map[string]kafkaclient.TopicMeta{
			topic: {
				Name: topic,
				Partitions: map[int32]kafkaclient.PartitionMeta{
					0: {ID: 0, Leader: 1},
					1: {ID: 1, Leader: 2},
				},
			},
		},
	}
}

func TestJitterIsDeterministic(t *testing.T) {
	a := hash01("orders")
	b := hash01("orders")
	assert.Equal(t, a, b)
	assert.GreaterOrEqual(t, a, 0.0)
	assert.Less(t, a, 1.0)
}

func TestJitterVariesByTopic(t *testing.T) {
	assert.NotEqual(t, hash01("orders"), hash01("payments"))
}

func TestScheduleIsTimeOrdered(t *testing.T) {
	s := &Scraper{cfg: Config{ScrapeInterval: 10 * time.Second}}
	meta := kafkaclient.ClusterMeta{
		Topics: map[string]kafkaclient.TopicMeta{
			"b": {Name: "b", Partitions: map[int32]kafkaclient.PartitionMeta{0: {ID: 0, Leader: 1}}},
			"a": {Name: "a", Partitions: map[int32]kafkaclient.PartitionMeta{
				0: {ID: 0, Leader: 1},
				1: {ID: 1, Leader: 1},
			}},
		},
	}
	t0 := time.Now()
	tasks := s.schedule(meta, t0)
	require.Len(t, tasks, 3)
	for i := 1; i < len(tasks); i++ {
		assert.False(t, tasks[i].when.Before(tasks[i-1].when), "tasks must be time-ordered")
	}
}

func TestQuarantineHealing(t *testing.T) {
	fc := &fakeClient{
		meta:      twoPartitionMeta("orders"),
		failing:   map[string]bool{"orders/0": true},
		watermark: map[string]int64{"orders/1": 100},
	}
	s := New(fc, Config{ScrapeInterval: time.Hour, ScrapeTimeout: time.Second}, discardLogger())

	ctx := context.Background()
	// Start the round one interval ago so every scheduled fetch is already
	// due and round() does not sleep.
	require.NoError(t, s.round(ctx, time.Now().Add(-time.Hour)))
	bad := s.q.snapshot()
	_, quarantined := bad[1]
	assert.True(t, quarantined, "leader 1 should be quarantined after a failed fetch")

	// Heal it.
	fc.mu.Lock()
	fc.failing["orders/0"] = false
	fc.mu.Unlock()
	s.probeRound(ctx)

	bad = s.q.snapshot()
	_, stillQuarantined := bad[1]
	assert.False(t, stillQuarantined, "leader 1 should heal once its watermark fetch succeeds")
}

func TestMetadataFailureEmitsEvent(t *testing.T) {
	fc := &fakeClient{metaErr: errors.New("cluster down")}
	s := New(fc, Config{ScrapeInterval: time.Hour, ScrapeTimeout: time.Second}, discardLogger())
	require.NoError(t, s.round(context.Background(), time.Now()))
	ev := <-s.Events()
	fail, ok := ev.(MetadataQueryFail)
	require.True(t, ok)
	assert.EqualError(t, fail.Err, "cluster down")
}

func TestRoundFinishedEmittedOncePerTopic(t *testing.T) {
	fc := &fakeClient{
		meta:      twoPartitionMeta("orders"),
		watermark: map[string]int64{"orders/0": 10, "orders/1": 20},
	}
	s := New(fc, Config{ScrapeInterval: time.Hour, ScrapeTimeout: time.Second}, discardLogger())
	// Round started one interval ago: all fetches are due, no sleeping.
	require.NoError(t, s.round(context.Background(), time.Now().Add(-time.Hour)))

	var offsets, finished int
	for i := 0; i < 3; i++ {
		switch (<-s.Events()).(type) {
		case PartitionOffsets:
			offsets++
		case RoundFinished:
			finished++
		}
	}
	assert.Equal(t, 2, offsets)
	assert.Equal(t, 1, finished)
}
