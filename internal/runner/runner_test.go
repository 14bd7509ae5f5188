package runner

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlstress/internal/pool"
)

type fakeProvider struct {
	acquireErr error
	exec       func(ctx context.Context) (sql.Result, error)

	acquired atomic.Int64
	released atomic.Int64
}

func (p *fakeProvider) Acquire(ctx context.Context) (pool.Conn, error) {
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	p.acquired.Add(1)
	return &fakeConn{p: p}, nil
}

type fakeConn struct {
	p      *fakeProvider
	closed atomic.Bool
}

func (c *fakeConn) ExecContext(ctx context.Context, _ string, _ ...any) (sql.Result, error) {
	if c.p.exec == nil {
		return driver.RowsAffected(1), nil
	}
	return c.p.exec(ctx)
}

func (c *fakeConn) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errors.New("fake connection cannot query")
}

func (c *fakeConn) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		c.p.released.Add(1)
	}
	return nil
}

func sleepExec(d time.Duration) func(ctx context.Context) (sql.Result, error) {
	return func(ctx context.Context) (sql.Result, error) {
		select {
		case <-time.After(d):
			return driver.RowsAffected(1), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func openSQLite(t *testing.T) *pool.DB {
	t.Helper()
	p, err := pool.Open(context.Background(), pool.Settings{
		Driver:  pool.DriverSQLite,
		DSN:     filepath.Join(t.TempDir(), "runner.db"),
		MinIdle: 2,
		MaxPool: 8,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	_, err = p.SQL().Exec(`CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT, note TEXT);
		INSERT INTO items (id, name, note) VALUES (1, 'alpha', NULL), (2, 'beta', 'b'), (3, 'gamma', 'c');
		CREATE TABLE hits (n INTEGER);`)
	require.NoError(t, err)
	return p
}

func run(t *testing.T, cfg Config, p pool.Provider) *Result {
	t.Helper()
	res, err := NewRunner(cfg, p, nil).Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Equal(t, res.TotalIterations, res.SuccessCount+res.ErrorCount)
	return res
}

func cfgFor(sqlText string, iterations, concurrency int, mode ResultMode, maxRows int) Config {
	return Config{
		SQL:         sqlText,
		Iterations:  iterations,
		Concurrency: concurrency,
		TimeoutSec:  5,
		ResultMode:  mode,
		MaxRows:     maxRows,
	}
}

func TestRunAllSucceed(t *testing.T) {
	p := openSQLite(t)
	res := run(t, cfgFor("SELECT 1", 40, 8, ResultNone, 10), p)

	assert.Equal(t, 40, res.SuccessCount)
	assert.Equal(t, 0, res.ErrorCount)
	assert.Empty(t, res.ErrorSamples)
	assert.Empty(t, res.SampleRows)
	assert.NotEmpty(t, res.ID)
	assert.False(t, res.Cancelled)
	assert.LessOrEqual(t, res.P50Ms, res.P95Ms)
	assert.LessOrEqual(t, res.P95Ms, res.P99Ms)
	assert.False(t, res.FinishedAt.Before(res.StartedAt))
}

func TestRunScalarCapturesFirstColumn(t *testing.T) {
	p := openSQLite(t)
	res := run(t, cfgFor("SELECT name, id FROM items ORDER BY id", 1, 1, ResultScalar, 10), p)

	require.Len(t, res.SampleRows, 1)
	assert.Equal(t, []string{"alpha"}, res.SampleRows[0])
}

func TestRunScalarRespectsGlobalCap(t *testing.T) {
	p := openSQLite(t)
	res := run(t, cfgFor("SELECT name FROM items", 20, 4, ResultScalar, 3), p)
	assert.Len(t, res.SampleRows, 3)
}

func TestRunRowsCapturesColumns(t *testing.T) {
	p := openSQLite(t)
	res := run(t, cfgFor("SELECT id, name, note FROM items ORDER BY id", 1, 1, ResultRows, 10), p)

	require.Len(t, res.SampleRows, 3)
	assert.Equal(t, []string{"1", "alpha", "NULL"}, res.SampleRows[0])
	assert.Equal(t, []string{"3", "gamma", "c"}, res.SampleRows[2])
}

func TestRunRowsCapUnderConcurrency(t *testing.T) {
	p := openSQLite(t)
	res := run(t, cfgFor("SELECT id, name FROM items", 50, 8, ResultRows, 4), p)

	assert.Equal(t, 50, res.SuccessCount)
	assert.Len(t, res.SampleRows, 4)
}

func TestRunRowsZeroMaxRows(t *testing.T) {
	p := openSQLite(t)
	res := run(t, cfgFor("SELECT id FROM items", 3, 1, ResultRows, 0), p)
	assert.Equal(t, 3, res.SuccessCount)
	assert.Empty(t, res.SampleRows)
}

func TestRunNonQueryExecutes(t *testing.T) {
	p := openSQLite(t)
	res := run(t, cfgFor("INSERT INTO hits (n) VALUES (1)", 12, 3, ResultRows, 10), p)

	assert.Equal(t, 12, res.SuccessCount)
	assert.Empty(t, res.SampleRows)

	var n int
	require.NoError(t, p.SQL().QueryRow("SELECT COUNT(*) FROM hits").Scan(&n))
	assert.Equal(t, 12, n)
}

func TestRunCTEIsQuery(t *testing.T) {
	p := openSQLite(t)
	res := run(t, cfgFor("WITH x AS (SELECT 7 AS v) SELECT v FROM x", 2, 2, ResultScalar, 5), p)
	require.Len(t, res.SampleRows, 2)
	assert.Equal(t, []string{"7"}, res.SampleRows[0])
}

// The second row overflows when stepped; none mode must not step that far.
func TestRunNoneModeLeavesRowsUnread(t *testing.T) {
	p := openSQLite(t)
	sqlText := "SELECT 1 UNION ALL SELECT abs(-9223372036854775808)"

	res := run(t, cfgFor(sqlText, 4, 2, ResultNone, 10), p)
	assert.Equal(t, 4, res.SuccessCount)

	res = run(t, cfgFor(sqlText, 4, 2, ResultRows, 10), p)
	assert.Equal(t, 4, res.ErrorCount)
	assert.Contains(t, res.ErrorSamples[0], "integer overflow")
}

func TestRunSurvivesPoolChangesMidRun(t *testing.T) {
	p := openSQLite(t)
	sqlText := "WITH RECURSIVE c(n) AS (SELECT 1 UNION ALL SELECT n + 1 FROM c WHERE n < 50) SELECT n FROM c"

	done := make(chan struct{})
	churned := make(chan int)
	go func() {
		n := 0
		for {
			select {
			case <-done:
				churned <- n
				return
			default:
			}
			maxPool := n%8 + 1
			minIdle := maxPool / 2
			pool.ResizePool(p, &minIdle, &maxPool)
			pool.EvictIdleConnections(p)
			n++
		}
	}()

	res := run(t, cfgFor(sqlText, 600, 16, ResultRows, 7), p)
	close(done)
	assert.Positive(t, <-churned)

	assert.Equal(t, 600, res.SuccessCount)
	assert.Zero(t, res.ErrorCount)
	assert.Len(t, res.SampleRows, 7)
	assert.Zero(t, p.SQL().Stats().InUse)
}

func TestRunStatementErrorsAreSampled(t *testing.T) {
	p := openSQLite(t)
	res := run(t, cfgFor("SELECT * FROM no_such_table", 30, 6, ResultRows, 10), p)

	assert.Equal(t, 0, res.SuccessCount)
	assert.Equal(t, 30, res.ErrorCount)
	assert.Len(t, res.ErrorSamples, MaxErrorSamples)
	for _, s := range res.ErrorSamples {
		assert.True(t, strings.HasPrefix(s, "StatementError: "), s)
	}
	assert.Zero(t, res.AvgMs)
	assert.Zero(t, res.P50Ms)
	assert.Zero(t, res.P95Ms)
	assert.Zero(t, res.P99Ms)
	assert.Zero(t, res.ThroughputQPS)
}

func TestRunTimeout(t *testing.T) {
	p := &fakeProvider{exec: sleepExec(time.Minute)}
	cfg := cfgFor("UPDATE t SET x = 1", 2, 2, ResultNone, 0)
	cfg.TimeoutSec = 1

	res := run(t, cfg, p)
	assert.Equal(t, 2, res.ErrorCount)
	require.NotEmpty(t, res.ErrorSamples)
	assert.True(t, strings.HasPrefix(res.ErrorSamples[0], "Timeout: "), res.ErrorSamples[0])
	assert.Equal(t, p.acquired.Load(), p.released.Load())
}

func TestRunConnectionFailure(t *testing.T) {
	p := &fakeProvider{acquireErr: errors.New("dial tcp: connection refused")}
	res := run(t, cfgFor("UPDATE t SET x = 1", 7, 3, ResultNone, 0), p)

	assert.Equal(t, 7, res.ErrorCount)
	assert.Len(t, res.ErrorSamples, 5)
	assert.Equal(t, "ConnectionFailure: dial tcp: connection refused", res.ErrorSamples[0])
}

func TestRunCancellationReleasesConnections(t *testing.T) {
	p := &fakeProvider{exec: sleepExec(30 * time.Millisecond)}
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	res, err := NewRunner(cfgFor("DELETE FROM t", 200, 4, ResultNone, 0), p, nil).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 200, res.SuccessCount+res.ErrorCount)
	assert.Positive(t, res.SuccessCount)
	assert.Positive(t, res.ErrorCount)
	assert.True(t, res.Cancelled)
	assert.Equal(t, p.acquired.Load(), p.released.Load())
	assert.Contains(t, res.ErrorSamples[0], "Cancelled")
}

func TestRunAlreadyCancelled(t *testing.T) {
	p := &fakeProvider{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := NewRunner(cfgFor("DELETE FROM t", 10, 2, ResultNone, 0), p, nil).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, res.ErrorCount)
	assert.Zero(t, p.acquired.Load())
	assert.Equal(t, "Cancelled: context canceled", res.ErrorSamples[0])
}

func TestRunHugeIterationCountWhenCancelled(t *testing.T) {
	p := &fakeProvider{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := NewRunner(cfgFor("DELETE FROM t", 1<<40, 1, ResultNone, 0), p, nil).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1<<40, res.ErrorCount)
	assert.Zero(t, res.SuccessCount)
	assert.True(t, res.Cancelled)
	assert.Zero(t, p.acquired.Load())
	assert.Equal(t, []string{"Cancelled: context canceled"}, res.ErrorSamples)
}

func TestRunRecoversPanics(t *testing.T) {
	p := &fakeProvider{exec: func(context.Context) (sql.Result, error) {
		panic("driver bug")
	}}
	res := run(t, cfgFor("UPDATE t SET x = 1", 3, 1, ResultNone, 0), p)

	assert.Equal(t, 3, res.ErrorCount)
	assert.Equal(t, "Unknown: panic: driver bug", res.ErrorSamples[0])
	assert.Equal(t, int64(3), p.released.Load())
}

func TestRunWithoutProvider(t *testing.T) {
	_, err := NewRunner(DefaultConfig(), nil, nil).Run(context.Background())
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestRunTemplated(t *testing.T) {
	p := openSQLite(t)
	cfg := cfgFor("SELECT {{iteration}} AS i, {{quote \"x'y\"}} AS q", 3, 1, ResultRows, 10)
	cfg.Templated = true

	res := run(t, cfg, p)
	require.Len(t, res.SampleRows, 3)
	for i, row := range res.SampleRows {
		assert.Equal(t, []string{fmt.Sprint(i), "x'y"}, row)
	}
}

func TestRunTemplateParseError(t *testing.T) {
	cfg := cfgFor("SELECT {{", 1, 1, ResultNone, 0)
	cfg.Templated = true
	_, err := NewRunner(cfg, &fakeProvider{}, nil).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse sql template")
}

func TestRunDelayAndRate(t *testing.T) {
	p := &fakeProvider{}

	cfg := cfgFor("UPDATE t SET x = 1", 3, 1, ResultNone, 0)
	cfg.DelayMs = 20
	res := run(t, cfg, p)
	assert.GreaterOrEqual(t, res.DurationMs, int64(60))

	cfg = cfgFor("UPDATE t SET x = 1", 5, 5, ResultNone, 0)
	cfg.TargetRate = 50
	res = run(t, cfg, p)
	assert.GreaterOrEqual(t, res.DurationMs, int64(70))
}

func TestRunPublishesFinalSnapshot(t *testing.T) {
	updates := make(StatsUpdateChan, 100)
	_, err := NewRunner(cfgFor("UPDATE t SET x = 1", 6, 2, ResultNone, 0), &fakeProvider{}, updates).Run(context.Background())
	require.NoError(t, err)

	var last StatsSnapshot
	for len(updates) > 0 {
		last = <-updates
	}
	assert.Equal(t, uint64(6), last.Requests)
	assert.Equal(t, uint64(6), last.Success)
	assert.Equal(t, 6, last.Total)
	assert.Zero(t, last.Inflight)
}

func TestRunNormalizesConfig(t *testing.T) {
	p := &fakeProvider{}
	res := run(t, Config{SQL: "UPDATE t SET x = 1", Iterations: -3, Concurrency: 0, TimeoutSec: 0, MaxRows: -1}, p)
	assert.Equal(t, 1, res.TotalIterations)
	assert.Equal(t, 1, res.Concurrency)
	assert.Equal(t, 1, res.SuccessCount)
}
