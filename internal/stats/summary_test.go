package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeNearestRank(t *testing.T) {
	lat := []int64{100, 30, 10, 90, 20, 80, 40, 70, 50, 60}
	s := Summarize(lat)

	assert.Equal(t, 10, s.Count)
	assert.Equal(t, int64(55), s.AvgMs)
	assert.Equal(t, int64(50), s.P50Ms)
	assert.Equal(t, int64(100), s.P95Ms)
	assert.Equal(t, int64(100), s.P99Ms)
	assert.Equal(t, int64(10), s.MinMs)
	assert.Equal(t, int64(100), s.MaxMs)

	// input is left untouched
	assert.Equal(t, int64(100), lat[0])
}

func TestSummarizeSingleValue(t *testing.T) {
	s := Summarize([]int64{42})
	assert.Equal(t, int64(42), s.AvgMs)
	assert.Equal(t, int64(42), s.P50Ms)
	assert.Equal(t, int64(42), s.P95Ms)
	assert.Equal(t, int64(42), s.P99Ms)
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestSummarizeAverageTruncates(t *testing.T) {
	s := Summarize([]int64{1, 2})
	assert.Equal(t, int64(1), s.AvgMs)
}

func TestPercentileClamps(t *testing.T) {
	sorted := []int64{5, 6, 7}
	assert.Equal(t, int64(5), Percentile(sorted, 0))
	assert.Equal(t, int64(7), Percentile(sorted, 100))
	assert.Equal(t, int64(7), Percentile(sorted, 250))
	assert.Equal(t, int64(0), Percentile(nil, 50))
}

func TestLiveStats(t *testing.T) {
	s := NewStats()
	s.AddSuccess(10 * time.Millisecond)
	s.AddSuccess(20 * time.Millisecond)
	s.AddFailure()

	require.Equal(t, uint64(3), s.Requests)
	assert.Equal(t, uint64(2), s.Success)
	assert.Equal(t, uint64(1), s.Fail)
	assert.InDelta(t, 33.3, s.ErrorRate(), 0.1)
	assert.InDelta(t, 20.0, s.GetP99Service(), 0.1)

	s.AddFailures(5)
	assert.Equal(t, uint64(8), s.Requests)
	assert.Equal(t, uint64(6), s.Fail)
	assert.InDelta(t, 75.0, s.ErrorRate(), 0.01)

	assert.Equal(t, 0.0, NewStats().ErrorRate())
}
