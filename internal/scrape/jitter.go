package scrape

import (
	"github.com/dchest/siphash"
)

// jitterKey0/jitterKey1 seed the SipHash used for per-topic jitter. They
// are fixed for the process lifetime: spec.md only requires jitter to be
// stable "across rounds" within one run (§4.1, §8 E5), not across restarts.
const (
	jitterKey0 = 0x9e3779b97f4a7c15
	jitterKey1 = 0xbf58476d1ce4e5b9
)

// hash01 maps a topic name to a deterministic, approximately uniform draw
// in [0, 1) using a keyed SipHash-2-4, per spec.md §4.1 / §9.
func hash01(topic string) float64 {
	h := siphash.Hash(jitterKey0, jitterKey1, []byte(topic))
	// Top 53 bits over 2^53: exact in float64, so the result stays below 1.
	return float64(h>>11) / (1 << 53)
}
