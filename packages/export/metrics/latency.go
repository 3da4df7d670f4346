package metrics

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	minTrackable = 1                       // 1µs
	maxTrackable = int64(time.Hour / 1000) // 1h in µs
	sigFigs      = 3
)

// Latency summarizes scenario durations.
type Latency struct {
	Count int           `json:"count"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Mean  time.Duration `json:"mean"`
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
	P99   time.Duration `json:"p99"`
}

// Summarize builds a Latency from durations. Values beyond one hour are
// clamped. An empty input yields the zero Latency.
func Summarize(durations []time.Duration) Latency {
	if len(durations) == 0 {
		return Latency{}
	}

	h := hdrhistogram.New(minTrackable, maxTrackable, sigFigs)
	for _, d := range durations {
		us := d.Microseconds()
		if us < minTrackable {
			us = minTrackable
		}
		if us > maxTrackable {
			us = maxTrackable
		}
		_ = h.RecordValue(us)
	}

	return Latency{
		Count: len(durations),
		Min:   time.Duration(h.Min()) * time.Microsecond,
		Max:   time.Duration(h.Max()) * time.Microsecond,
		Mean:  time.Duration(h.Mean()) * time.Microsecond,
		P50:   time.Duration(h.ValueAtQuantile(50)) * time.Microsecond,
		P95:   time.Duration(h.ValueAtQuantile(95)) * time.Microsecond,
		P99:   time.Duration(h.ValueAtQuantile(99)) * time.Microsecond,
	}
}
