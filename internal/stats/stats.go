package stats

import (
	"sync/atomic"
	"time"
)

// Stats holds live counters for a run in progress. The final figures of a
// run come from Summarize, not from here.
type Stats struct {
	Requests uint64
	Success  uint64
	Fail     uint64

	// Acquire + execute time of successful calls (microseconds)
	ServiceTime *SafeHistogram
}

func NewStats() *Stats {
	return &Stats{
		ServiceTime: NewSafeHistogram(),
	}
}

func (s *Stats) AddSuccess(latency time.Duration) {
	atomic.AddUint64(&s.Requests, 1)
	atomic.AddUint64(&s.Success, 1)
	_ = s.ServiceTime.Record(latency)
}

func (s *Stats) AddFailure() {
	s.AddFailures(1)
}

// AddFailures counts n failed calls at once.
func (s *Stats) AddFailures(n uint64) {
	atomic.AddUint64(&s.Requests, n)
	atomic.AddUint64(&s.Fail, n)
}

func (s *Stats) ErrorRate() float64 {
	reqs := atomic.LoadUint64(&s.Requests)
	if reqs == 0 {
		return 0
	}
	fails := atomic.LoadUint64(&s.Fail)
	return (float64(fails) / float64(reqs)) * 100
}

func (s *Stats) GetP50Service() float64 {
	return float64(s.ServiceTime.ValueAtQuantile(50)) / 1000.0 // ms
}

func (s *Stats) GetP90Service() float64 {
	return float64(s.ServiceTime.ValueAtQuantile(90)) / 1000.0
}

func (s *Stats) GetP99Service() float64 {
	return float64(s.ServiceTime.ValueAtQuantile(99)) / 1000.0
}

func (s *Stats) MeanServiceMs() float64 {
	return s.ServiceTime.Mean() / 1000.0
}
