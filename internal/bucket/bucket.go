// Package bucket implements the rate bucketizer described in spec.md §4.4:
// it takes irregularly-sampled monotonic counter values for a single topic
// generation and produces a fixed-width array of per-time-bucket rates,
// distributing rate mass proportionally across bucket boundaries whenever
// a sample interval spans more than one bucket.
package bucket

import (
	"math"
	"time"

	"github.com/twmb/ktop/internal/stats"
)

// Point is one (x_seconds, rate) sample of the series, x negative and
// measured in seconds before now (spec.md §4.4).
type Point struct {
	X    float64
	Rate float64
}

// Compute derives the rate series for one topic generation over
// [scrapeStart, scrapeEnd], the generation's committed scraped interval.
// It returns ok=false if the generation has no committed interval yet, or
// if the scrape start inexplicably lies in the future (defensive, spec.md
// §4.4).
func Compute(td *stats.TopicData, now time.Time, bucketSize time.Duration) (points []Point, maxY float64, ok bool) {
	scrapeStart, scrapeEnd, have := td.ScrapedInterval()
	if !have || scrapeStart.After(now) {
		return nil, 0, false
	}

	n := int((scrapeEnd.Sub(scrapeStart)) / bucketSize)
	if n <= 0 {
		return nil, 0, true
	}
	buckets := make([]float64, n)
	bucketSizeSec := bucketSize.Seconds()

	for _, samples := range td.Partitions() {
		for i := 1; i < len(samples); i++ {
			a, b := samples[i-1], samples[i]
			diff := float64(b.Offset - a.Offset)
			dur := b.T.Sub(a.T).Seconds()
			if dur <= 0 {
				continue
			}
			rate := diff / dur

			aedgeSec := a.T.Sub(scrapeStart).Seconds()
			bedgeSec := b.T.Sub(scrapeStart).Seconds()
			aidx := int(math.Floor(aedgeSec / bucketSizeSec))
			bidx := int(math.Floor(bedgeSec / bucketSizeSec))

			if aidx == bidx {
				if aidx >= 0 && aidx < n {
					buckets[aidx] += diff / bucketSizeSec
				}
				continue
			}

			if aidx >= 0 && aidx < n {
				buckets[aidx] += rate * (float64(aidx+1) - aedgeSec/bucketSizeSec)
			}

			start := aidx + 1
			if start < 0 {
				start = 0
			}
			end := bidx - 1
			if end > n-1 {
				end = n - 1
			}
			for k := start; k <= end; k++ {
				buckets[k] += rate
			}

			if bidx >= 0 && bidx < n {
				buckets[bidx] += rate * (bedgeSec/bucketSizeSec - float64(bidx))
			}
		}
	}

	sinceStart := now.Sub(scrapeStart).Seconds()
	points = make([]Point, n)
	maxY = 0
	for k, v := range buckets {
		points[k] = Point{
			X:    float64(k)*bucketSizeSec - (sinceStart + bucketSizeSec/2),
			Rate: v,
		}
		if v > maxY {
			maxY = v
		}
	}
	return points, maxY, true
}
