package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"sqlstress/internal/runner"
)

func sampleResult() *runner.Result {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &runner.Result{
		ID:              "abc",
		SQL:             "SELECT id, name FROM items",
		ResultMode:      runner.ResultRows,
		TotalIterations: 4,
		Concurrency:     2,
		StartedAt:       start,
		FinishedAt:      start.Add(120 * time.Millisecond),
		DurationMs:      120,
		SuccessCount:    3,
		ErrorCount:      1,
		AvgMs:           12,
		P50Ms:           10,
		P95Ms:           20,
		P99Ms:           20,
		ErrorSamples:    []string{"Timeout: context deadline exceeded"},
		SampleRows:      [][]string{{"1", "alpha"}, {"2", "with, comma"}},
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleResult()))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "rows", got["result_mode"])
	assert.Equal(t, float64(20), got["p95_ms"])
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, sampleResult()))

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "rows", got["result_mode"])
	assert.Equal(t, 3, got["success_count"])
}

func TestWriteRowsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRowsCSV(&buf, sampleResult()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "row,col1,col2", lines[0])
	assert.Equal(t, `2,2,"with, comma"`, lines[2])
}

func TestExport(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "run")
	paths, err := Export(sampleResult(), prefix)
	require.NoError(t, err)
	require.Len(t, paths, 4)

	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}

	b, err := os.ReadFile(prefix + "_errors.csv")
	require.NoError(t, err)
	assert.Contains(t, string(b), "Timeout: context deadline exceeded")
}

func TestExportBadPath(t *testing.T) {
	_, err := Export(sampleResult(), filepath.Join(t.TempDir(), "missing", "run"))
	assert.Error(t, err)
}
