package stats

import (
	"fmt"
	"sort"
	"time"

	"github.com/twmb/ktop/internal/scrape"
)

// ErrDisconnected is returned by Ingest when the scrape event channel has
// been closed, which spec.md §4.3/§7 treats as "metadata gatherer bailed":
// a fatal condition for the top-level driver.
var ErrDisconnected = fmt.Errorf("metadata gatherer bailed")

// Store is the mapping topic_name -> ordered list of TopicData, index 0
// the oldest generation and the last element the live one. The exposed
// TopicID.Generation numbering is inverted from slice index: generation 0
// is always the live (last) element, per spec.md §3.
type Store struct {
	scrapeInterval time.Duration
	generations    map[string][]*TopicData
	metadataErr    error
}

// New constructs an empty Store. scrapeInterval is the margin DiscardBefore
// keeps before its cutoff.
func New(scrapeInterval time.Duration) *Store {
	return &Store{
		scrapeInterval: scrapeInterval,
		generations:    make(map[string][]*TopicData),
	}
}

func (s *Store) live(topic string) *TopicData {
	gens := s.generations[topic]
	if len(gens) == 0 {
		td := newTopicData()
		s.generations[topic] = []*TopicData{td}
		return td
	}
	return gens[len(gens)-1]
}

// Ingest drains every event currently queued on ch without blocking,
// applying each to the store, and reports whether anything changed that
// warrants a redraw. It returns ErrDisconnected if the channel has been
// closed (spec.md §4.3/§7).
func (s *Store) Ingest(ch <-chan scrape.Event) (changed bool, err error) {
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return changed, ErrDisconnected
			}
			if s.apply(ev) {
				changed = true
			}
		default:
			return changed, nil
		}
	}
}

// apply handles a single event per spec.md §4.3.
func (s *Store) apply(ev scrape.Event) (changed bool) {
	switch e := ev.(type) {
	case scrape.PartitionOffsets:
		return s.applyPartitionOffsets(e)
	case scrape.RoundFinished:
		return s.applyRoundFinished(e)
	case scrape.MetadataQueryFail:
		s.metadataErr = e.Err
		return true
	}
	return false
}

func (s *Store) applyPartitionOffsets(e scrape.PartitionOffsets) bool {
	td := s.live(e.Topic)
	ph := td.partition(e.Partition)
	if last, ok := ph.last(); ok && e.Offset < last.offset {
		td.decreased++
		td.scraped++
		return false
	}
	ph.insert(e.Now, e.Offset)
	td.scraped++
	return false
}

func (s *Store) applyRoundFinished(e scrape.RoundFinished) bool {
	td := s.live(e.Topic)
	defer func() {
		td.scraped = 0
		td.decreased = 0
	}()

	if td.scraped == 0 {
		return false
	}

	if td.decreased <= len(td.partitions)/2 {
		if !td.interval.set {
			td.interval.start = e.Now
			td.interval.set = true
		}
		td.interval.end = e.Now
		return true
	}

	// Majority-decreased round: generation break. The post-reset samples
	// that triggered this already landed (and were rejected) in the old
	// generation; the new generation starts empty.
	s.generations[e.Topic] = append(s.generations[e.Topic], newTopicData())
	return true
}

// DiscardBefore ages out old samples, per spec.md §4.3: the effective
// retention threshold is cutoff minus one scrape_interval of margin, so a
// sample landing exactly on a round boundary a full scrape_interval before
// cutoff is still retained (spec.md §8-E6).
func (s *Store) DiscardBefore(cutoff time.Time) {
	threshold := cutoff.Add(-s.scrapeInterval)
	for _, gens := range s.generations {
		for _, td := range gens {
			for _, ph := range td.partitions {
				ph.discardBefore(threshold)
			}
		}
	}
}

// TopicStats is the derived, per-generation summary of spec.md §3.
type TopicStats struct {
	Topic TopicID
	Total int64
	Seen  int64
	Rate  *float64
}

// BaseStats computes total/seen/rate for every retained generation of
// every topic, per spec.md §3's TopicStats definition.
func (s *Store) BaseStats() []TopicStats {
	var out []TopicStats
	for name, gens := range s.generations {
		for idx, td := range gens {
			gen := len(gens) - 1 - idx // index 0 is oldest; generation 0 is live (spec.md §3)
			var seen, total int64
			var rateSum float64
			var hasRate bool
			for _, ph := range td.partitions {
				if len(ph.samples) == 0 {
					continue
				}
				first := ph.samples[0]
				last := ph.samples[len(ph.samples)-1]
				seen += last.offset - first.offset
				total += last.offset
				if len(ph.samples) >= 2 {
					prev := ph.samples[len(ph.samples)-2]
					dur := last.t.Sub(prev.t).Seconds()
					if dur > 0 {
						rateSum += float64(last.offset-prev.offset) / dur
						hasRate = true
					}
				}
			}
			ts := TopicStats{
				Topic: TopicID{Name: name, Generation: gen},
				Total: total,
				Seen:  seen,
			}
			if hasRate {
				r := rateSum
				ts.Rate = &r
			}
			out = append(out, ts)
		}
	}
	sortBaseStats(out)
	return out
}

// sortBaseStats orders by (generation, desc(seen, total)), per spec.md §4.5.
func sortBaseStats(stats []TopicStats) {
	sort.Slice(stats, func(i, j int) bool {
		a, b := stats[i], stats[j]
		if a.Topic.Generation != b.Topic.Generation {
			return a.Topic.Generation < b.Topic.Generation
		}
		if a.Seen != b.Seen {
			return a.Seen > b.Seen
		}
		return a.Total > b.Total
	})
}

// Generation returns the TopicData for a given topic/generation, or nil.
// Used by the bucketizer, which operates on one generation at a time.
// Generation 0 is the live generation (spec.md §3), so it maps to the last
// slice element; the mapping is the same inversion BaseStats applies.
func (s *Store) Generation(id TopicID) *TopicData {
	gens := s.generations[id.Name]
	if id.Generation < 0 || id.Generation >= len(gens) {
		return nil
	}
	return gens[len(gens)-1-id.Generation]
}

// LastMetadataError returns the error from the most recent
// MetadataQueryFail event, or nil if every metadata fetch has succeeded so
// far this run (spec.md §4.3, "record err in metadata_error").
func (s *Store) LastMetadataError() error {
	return s.metadataErr
}

// Topics returns every (name, generation) currently retained; used by
// callers that need to iterate all generations without computing stats.
// Generation 0 is always the live one (spec.md §3), matching BaseStats.
func (s *Store) Topics() []TopicID {
	var ids []TopicID
	for name, gens := range s.generations {
		for idx := range gens {
			ids = append(ids, TopicID{Name: name, Generation: len(gens) - 1 - idx})
		}
	}
	return ids
}
