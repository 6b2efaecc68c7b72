// Package scrape implements the concurrent, per-partition offset poller
// described in spec.md §4.1/§4.2: a scrape loop that schedules watermark
// fetches spread evenly across the polling interval, and a probe loop that
// quarantines and heals brokers that fail to answer.
package scrape

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/twmb/ktop/internal/kafkaclient"
)

// eventChanCapacity matches the original program's sync channel: large
// enough that a slow consumer never makes the scrape loop block under
// normal sample rates (spec.md §5).
const eventChanCapacity = 1_000_000

// Config controls the scrape and probe loops.
type Config struct {
	ScrapeInterval time.Duration
	ScrapeTimeout  time.Duration
}

// Scraper owns the two background loops and the quarantine set they share.
type Scraper struct {
	client Client
	cfg    Config
	q      *quarantine
	events chan Event
	log    *logrus.Entry
}

// Client is the broker-protocol contract the scraper needs. It is
// satisfied by *kafkaclient.KadmClient.
type Client = kafkaclient.Client

// New constructs a Scraper. Call Run and RunProbe in separate goroutines.
func New(client Client, cfg Config, log *logrus.Entry) *Scraper {
	return &Scraper{
		client: client,
		cfg:    cfg,
		q:      newQuarantine(),
		events: make(chan Event, eventChanCapacity),
		log:    log,
	}
}

// Events returns the channel the stats store should drain.
func (s *Scraper) Events() <-chan Event { return s.events }

// queryTask is one scheduled watermark fetch.
type queryTask struct {
	when      time.Time
	topic     string
	partition int32
	leader    int32
}

// Run executes the scrape loop until ctx is cancelled. It returns an error
// (ctx.Err()) only when ctx is cancelled while an event send is pending,
// which is how the consumer going away reaches it (spec.md §7 "channel-send
// error in scraper"); a cancellation during a sleep returns nil.
func (s *Scraper) Run(ctx context.Context) error {
	// RunProbe never writes to s.events, so closing it here on exit is safe
	// and gives the store's Ingest loop a real-time ErrDisconnected signal
	// (spec.md §4.3/§7) instead of relying on the caller to notice.
	defer close(s.events)
	t0 := time.Now()
	for {
		if err := s.round(ctx, t0); err != nil {
			return err
		}
		t0 = t0.Add(s.cfg.ScrapeInterval)
		now := time.Now()
		if now.After(t0) {
			// The round overran; don't accumulate debt (spec.md §4.1 step 6).
			t0 = now
		} else if err := sleepCtx(ctx, t0.Sub(now)); err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// round performs one scrape round starting at t0.
func (s *Scraper) round(ctx context.Context, t0 time.Time) error {
	meta, err := s.client.FetchMetadata(ctx, s.cfg.ScrapeTimeout)
	if err != nil {
		return s.emit(ctx, MetadataQueryFail{Err: err})
	}

	tasks := s.schedule(meta, t0)
	remaining := make(map[string]int, len(meta.Topics))
	for _, t := range tasks {
		remaining[t.topic]++
	}

	bad := s.q.snapshot()
	for _, task := range tasks {
		if _, quarantined := bad[task.leader]; quarantined {
			if done := s.finishPartition(ctx, task.topic, remaining); done != nil {
				return done
			}
			continue
		}
		if sleep := time.Until(task.when); sleep > 0 {
			if err := sleepCtx(ctx, sleep); err != nil {
				return nil
			}
		}
		offset, err := s.client.FetchWatermark(ctx, task.topic, task.partition, s.cfg.ScrapeTimeout)
		if err != nil {
			s.q.add(task.leader)
			bad[task.leader] = struct{}{}
		} else if err := s.emit(ctx, PartitionOffsets{
			Now:       time.Now(),
			Topic:     task.topic,
			Partition: task.partition,
			Offset:    offset,
		}); err != nil {
			return err
		}
		if done := s.finishPartition(ctx, task.topic, remaining); done != nil {
			return done
		}
	}
	return nil
}

// finishPartition decrements the remaining count for topic and, once it
// reaches zero, emits RoundFinished. Returns a non-nil error only on a
// fatal send failure.
func (s *Scraper) finishPartition(ctx context.Context, topic string, remaining map[string]int) error {
	remaining[topic]--
	if remaining[topic] != 0 {
		return nil
	}
	return s.emit(ctx, RoundFinished{Now: time.Now(), Topic: topic})
}

// schedule builds the deterministically-jittered, time-ordered list of
// watermark fetches for one round, per spec.md §4.1 steps 2-3.
func (s *Scraper) schedule(meta kafkaclient.ClusterMeta, t0 time.Time) []queryTask {
	var tasks []queryTask
	interval := s.cfg.ScrapeInterval
	for name, topic := range meta.Topics {
		n := len(topic.Partitions)
		if n == 0 {
			continue
		}
		perPartition := interval / time.Duration(n)
		jitter := time.Duration(float64(perPartition) * hash01(name))
		ids := make([]int32, 0, n)
		for pid := range topic.Partitions {
			ids = append(ids, pid)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for i, pid := range ids {
			part := topic.Partitions[pid]
			tasks = append(tasks, queryTask{
				when:      t0.Add(jitter).Add(perPartition * time.Duration(i)),
				topic:     name,
				partition: pid,
				leader:    part.Leader,
			})
		}
	}
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].when.Equal(tasks[j].when) {
			return tasks[i].when.Before(tasks[j].when)
		}
		if tasks[i].topic != tasks[j].topic {
			return tasks[i].topic < tasks[j].topic
		}
		return tasks[i].partition < tasks[j].partition
	})
	return tasks
}

// emit sends an event, treating a cancelled context as the "consumer gone"
// case spec.md §7 describes as fatal for the scrape loop.
func (s *Scraper) emit(ctx context.Context, ev Event) error {
	select {
	case s.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
