package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlstress/internal/pool"
	"sqlstress/internal/runner"
)

func TestStartPrintsSummaryAndReports(t *testing.T) {
	dir := t.TempDir()
	p, err := pool.Open(context.Background(), pool.Settings{
		Driver:  pool.DriverSQLite,
		DSN:     filepath.Join(dir, "cli.db"),
		MaxPool: 4,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	cfg := runner.Config{
		SQL:         "SELECT 'hello' AS greeting, 2 AS n",
		Iterations:  8,
		Concurrency: 2,
		TimeoutSec:  5,
		ResultMode:  runner.ResultRows,
		MaxRows:     2,
	}

	var out bytes.Buffer
	prefix := filepath.Join(dir, "report")
	res, err := Start(context.Background(), &out, cfg, p, Options{OutPrefix: prefix, Target: "cli.db", Progress: true})
	require.NoError(t, err)

	assert.Equal(t, 8, res.SuccessCount)
	text := out.String()
	assert.Contains(t, text, "STARTING SQLSTRESS RUN")
	assert.Contains(t, text, "Success        : 8")
	assert.Contains(t, text, "hello | 2")
	assert.Contains(t, text, "Reports saved")

	_, err = os.Stat(prefix + ".json")
	assert.NoError(t, err)
}

func TestStartReportsFatalError(t *testing.T) {
	var out bytes.Buffer
	_, err := Start(context.Background(), &out, runner.DefaultConfig(), nil, Options{})
	require.ErrorIs(t, err, runner.ErrNoProvider)
	assert.Contains(t, out.String(), "Run failed")
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "[█████-----]", progressBar(0.5, 10))
	assert.Equal(t, "[██████████]", progressBar(1.7, 10))
	assert.Equal(t, "[----------]", progressBar(-1, 10))
}

func TestOneLine(t *testing.T) {
	assert.Equal(t, "SELECT 1 FROM t", oneLine("SELECT 1\n  FROM t", 50))
	assert.Equal(t, "abcdefg...", oneLine("abcdefghijklmnop", 10))
}

func TestPrintProgressShowsErrorRate(t *testing.T) {
	var buf bytes.Buffer
	printProgress(&buf, runner.StatsSnapshot{Total: 10, Requests: 4, Success: 3, Fail: 1, ErrorRate: 25}, 0)
	assert.Contains(t, buf.String(), "4/10")
	assert.Contains(t, buf.String(), "Err: 1 (25.0%)")
}
