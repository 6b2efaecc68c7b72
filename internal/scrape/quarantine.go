package scrape

import "sync"

// quarantine is the set of broker IDs currently excluded from scraping.
// It is shared between the scrape loop and the probe loop; every access is
// a short read-or-swap with no broker I/O taken under the lock, per
// spec.md §5/§9: the probe loop's final write is authoritative; the scrape
// loop reads a cloned snapshot and only ever adds single brokers, never
// replacing the set.
type quarantine struct {
	mu  sync.Mutex
	bad map[int32]struct{}
}

func newQuarantine() *quarantine {
	return &quarantine{bad: make(map[int32]struct{})}
}

// snapshot returns a read-only copy for the scrape loop to consult for the
// duration of one round.
func (q *quarantine) snapshot() map[int32]struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make(map[int32]struct{}, len(q.bad))
	for k := range q.bad {
		out[k] = struct{}{}
	}
	return out
}

// add puts a broker into quarantine. Called by the scrape loop on a failed
// watermark fetch.
func (q *quarantine) add(broker int32) {
	q.mu.Lock()
	q.bad[broker] = struct{}{}
	q.mu.Unlock()
}

// drain empties the set and returns what was in it, for the probe loop to
// re-test locally.
func (q *quarantine) drain() []int32 {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]int32, 0, len(q.bad))
	for k := range q.bad {
		out = append(out, k)
	}
	q.bad = make(map[int32]struct{})
	return out
}

// replace overwrites the set with exactly the given brokers. Only the probe
// loop calls this; it is the authoritative write for a round.
func (q *quarantine) replace(brokers []int32) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.bad = make(map[int32]struct{}, len(brokers))
	for _, b := range brokers {
		q.bad[b] = struct{}{}
	}
}
