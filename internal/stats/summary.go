package stats

import (
	"time"
)

// Status is the coarse health of a chain's full tier, judged from head probes.
type Status string

const (
	StatusUp       Status = "UP"
	StatusSlow     Status = "SLOW"
	StatusDegraded Status = "DEGRADED"
	StatusDown     Status = "DOWN"
)

// Health thresholds.
const (
	DownBelow     = 50.0 // success rate (%) under which a chain is DOWN
	DegradedBelow = 90.0 // success rate (%) under which a chain is DEGRADED
	SlowAbove     = 500 * time.Millisecond
)

// Sample is one head probe.
type Sample struct {
	Latency time.Duration
	Block   uint64
	Err     error
}

// Summary aggregates the samples of one chain.
type Summary struct {
	Samples      int           `json:"samples"`
	Failures     int           `json:"failures"`
	SuccessRate  float64       `json:"successRate"`
	Average      time.Duration `json:"average"`
	Latency      TailLatency   `json:"latency"`
	HighestBlock uint64        `json:"highestBlock"` // largest head among successful samples
	LastError    string        `json:"lastError,omitempty"`
	Status       Status        `json:"status"`
}

// Summarize reduces samples to a Summary. Latencies of failed samples are
// ignored.
func Summarize(samples []Sample) Summary {
	s := Summary{Samples: len(samples)}
	if len(samples) == 0 {
		s.Status = StatusDown
		return s
	}

	latencies := make([]time.Duration, 0, len(samples))
	for _, sample := range samples {
		if sample.Err != nil {
			s.Failures++
			s.LastError = sample.Err.Error()
			continue
		}
		latencies = append(latencies, sample.Latency)
		if sample.Block > s.HighestBlock {
			s.HighestBlock = sample.Block
		}
	}

	s.SuccessRate = float64(len(latencies)) / float64(len(samples)) * 100
	s.Average = Average(latencies)
	s.Latency = CalculateTailLatency(latencies)
	s.Status = DetermineStatus(s.SuccessRate, s.Latency.P95)
	return s
}

// DetermineStatus maps success rate and P95 latency to a Status.
func DetermineStatus(successRate float64, p95 time.Duration) Status {
	switch {
	case successRate < DownBelow:
		return StatusDown
	case successRate < DegradedBelow:
		return StatusDegraded
	case p95 > SlowAbove:
		return StatusSlow
	default:
		return StatusUp
	}
}
