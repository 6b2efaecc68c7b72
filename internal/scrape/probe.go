package scrape

import (
	"context"
	"time"
)

// RunProbe executes the probe loop until ctx is cancelled: it periodically
// re-tests quarantined brokers so transient failures heal without blocking
// the scrape loop, per spec.md §4.2.
func (s *Scraper) RunProbe(ctx context.Context) error {
	t0 := time.Now()
	for {
		s.probeRound(ctx)
		t0 = t0.Add(s.cfg.ScrapeInterval)
		now := time.Now()
		if now.After(t0) {
			t0 = now
		} else if err := sleepCtx(ctx, t0.Sub(now)); err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// probeRound drains the shared quarantine set, tests each bad broker at
// most once (via any one partition it leads), and writes back the set of
// brokers still failing. Only this loop ever writes the authoritative
// quarantine state (spec.md §9 "stale quarantine accumulation").
func (s *Scraper) probeRound(ctx context.Context) {
	drained := s.q.drain()
	if len(drained) == 0 {
		// Still need fresh metadata so a broker that stops leading anything
		// doesn't linger; but with nothing quarantined there's nothing to
		// test, so skip the round's work entirely.
		return
	}
	tested := make(map[int32]bool, len(drained))
	for _, b := range drained {
		tested[b] = false
	}

	meta, err := s.client.FetchMetadata(ctx, s.cfg.ScrapeTimeout)
	if err != nil {
		// Metadata failed; keep everything quarantined as-is and retry
		// next round.
		s.q.replace(drained)
		return
	}

	for _, topic := range meta.Topics {
		for _, part := range topic.Partitions {
			already, known := tested[part.Leader]
			if !known || already {
				continue
			}
			_, err := s.client.FetchWatermark(ctx, topic.Name, part.ID, s.cfg.ScrapeTimeout)
			if err != nil {
				tested[part.Leader] = true
			} else {
				delete(tested, part.Leader)
			}
		}
	}

	var stillBad []int32
	for broker, failed := range tested {
		if failed {
			stillBad = append(stillBad, broker)
		}
	}
	s.q.replace(stillBad)
}
