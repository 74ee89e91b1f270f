// Package stats summarizes repeated chain head probes: tail latency, success
// rate and a coarse health status per chain.
package stats

import (
	"math"
	"sort"
	"time"
)

// TailLatency holds p50, p95, p99, and max latency values.
type TailLatency struct {
	P50 time.Duration `json:"p50"`
	P95 time.Duration `json:"p95"`
	P99 time.Duration `json:"p99"`
	Max time.Duration `json:"max"`
}

// CalculateTailLatency computes P50, P95, P99 and Max from head probe samples
// using the nearest-rank method.
//
// Parameters:
//   - latencies: Latencies of successful probes (may be empty)
//
// Returns:
//   - TailLatency: Zero value when there are no samples
//
// Algorithm:
//  1. Copy and sort ascending; the input slice is not modified
//  2. Take nearest-rank percentiles from the sorted copy
//  3. With few samples P95/P99 equal Max
func CalculateTailLatency(latencies []time.Duration) TailLatency {
	// Every probe failed
	if len(latencies) == 0 {
		return TailLatency{}
	}

	sorted := make([]time.Duration, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	return TailLatency{
		P50: Percentile(sorted, 0.50),
		P95: Percentile(sorted, 0.95),
		P99: Percentile(sorted, 0.99),
		Max: sorted[len(sorted)-1],
	}
}

// Percentile returns the value at percentile p (0.95 for P95) of an
// ascending slice.
//
// Formula: index = ceil(n * p) - 1, clamped to [0, n-1]
func Percentile(sorted []time.Duration, p float64) time.Duration {
	n := len(sorted)
	if n == 0 {
		return 0
	}

	index := int(math.Ceil(float64(n)*p)) - 1
	if index >= n {
		index = n - 1
	}
	if index < 0 {
		index = 0
	}

	return sorted[index]
}

// Average returns the arithmetic mean, or zero for no samples.
func Average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var total time.Duration
	for _, d := range durations {
		total += d
	}
	return total / time.Duration(len(durations))
}
