package stats

import (
	"math"
	"slices"
)

// Summary is the aggregate over the successful latencies of a run, in
// whole milliseconds.
type Summary struct {
	Count int
	AvgMs int64
	P50Ms int64
	P95Ms int64
	P99Ms int64
	MinMs int64
	MaxMs int64
}

// Summarize sorts a copy of latencies and derives the summary. An empty
// input yields a zero Summary.
func Summarize(latencies []int64) Summary {
	n := len(latencies)
	if n == 0 {
		return Summary{}
	}

	sorted := slices.Clone(latencies)
	slices.Sort(sorted)

	var sum int64
	for _, v := range sorted {
		sum += v
	}

	return Summary{
		Count: n,
		AvgMs: sum / int64(n),
		P50Ms: Percentile(sorted, 50),
		P95Ms: Percentile(sorted, 95),
		P99Ms: Percentile(sorted, 99),
		MinMs: sorted[0],
		MaxMs: sorted[n-1],
	}
}

// Percentile returns the nearest-rank percentile of an ascending slice:
// index ceil(p/100*n)-1, clamped to the slice bounds.
func Percentile(sorted []int64, p float64) int64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(n))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return sorted[idx]
}
