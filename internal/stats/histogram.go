package stats

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	histMinUs   = 1
	histMaxUs   = int64(10 * time.Minute / time.Microsecond)
	histSigFigs = 3
)

// SafeHistogram is a thread-safe wrapper around hdrhistogram.
// Values are microseconds; anything above ten minutes is clamped.
type SafeHistogram struct {
	hist *hdrhistogram.Histogram
	mu   sync.Mutex
}

func NewSafeHistogram() *SafeHistogram {
	return &SafeHistogram{hist: hdrhistogram.New(histMinUs, histMaxUs, histSigFigs)}
}

// Record stores a duration.
func (h *SafeHistogram) Record(d time.Duration) error {
	us := d.Microseconds()
	if us < histMinUs {
		us = histMinUs
	}
	if us > histMaxUs {
		us = histMaxUs
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.RecordValue(us)
}

func (h *SafeHistogram) ValueAtQuantile(q float64) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.ValueAtQuantile(q)
}

func (h *SafeHistogram) Mean() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.Mean()
}

func (h *SafeHistogram) Max() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.Max()
}
