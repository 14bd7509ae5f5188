package runner

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsQuery(t *testing.T) {
	cases := map[string]bool{
		"  SELECT 1":                       true,
		"with x as (select 1) select *":    true,
		"WITH\nx AS (SELECT 1) SELECT * x": false,
		"UPDATE t SET a=1":                 false,
		"":                                 false,
		"exec sp_who":                      false,
		"selectivity_probe":                true,
	}
	for in, want := range cases {
		assert.Equal(t, want, IsQuery(in), "%q", in)
	}
}

func TestNormalize(t *testing.T) {
	c := Config{Iterations: 0, Concurrency: -2, DelayMs: -5, TimeoutSec: 0, MaxRows: -1, TargetRate: -1}.Normalize()
	assert.Equal(t, 1, c.Iterations)
	assert.Equal(t, 1, c.Concurrency)
	assert.Equal(t, 0, c.DelayMs)
	assert.Equal(t, 1, c.TimeoutSec)
	assert.Equal(t, 0, c.MaxRows)
	assert.Equal(t, 0.0, c.TargetRate)

	d := DefaultConfig()
	assert.Equal(t, d, d.Normalize())
}

func TestParseResultMode(t *testing.T) {
	m, err := ParseResultMode("ROWS")
	require.NoError(t, err)
	assert.Equal(t, ResultRows, m)

	m, err = ParseResultMode("")
	require.NoError(t, err)
	assert.Equal(t, ResultNone, m)

	_, err = ParseResultMode("table")
	assert.Error(t, err)

	var back ResultMode
	require.NoError(t, back.UnmarshalText([]byte("scalar")))
	assert.Equal(t, ResultScalar, back)
}

func TestCallError(t *testing.T) {
	base := errors.New("boom")
	err := error(&CallError{Kind: KindStatement, Err: base})
	assert.Equal(t, "StatementError: boom", err.Error())
	assert.ErrorIs(t, err, base)
	assert.Equal(t, KindStatement, KindOf(err))
	assert.Equal(t, KindUnknown, KindOf(base))
}

func TestSinkCapUnderContention(t *testing.T) {
	s := NewSink[int](5)
	var wg sync.WaitGroup
	var kept sync.Map
	for i := range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Add(i) {
				kept.Store(i, true)
			}
		}()
	}
	wg.Wait()

	assert.True(t, s.Full())
	assert.Equal(t, 5, s.Len())
	n := 0
	kept.Range(func(any, any) bool { n++; return true })
	assert.Equal(t, 5, n)
}

func TestSinkZeroCap(t *testing.T) {
	s := NewSink[string](0)
	assert.True(t, s.Full())
	assert.False(t, s.Add("x"))
	assert.Empty(t, s.Snapshot())
}
