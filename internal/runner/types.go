package runner

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ResultMode controls how much of a query's result set is captured.
type ResultMode int

const (
	ResultNone ResultMode = iota
	ResultScalar
	ResultRows
)

func (m ResultMode) String() string {
	switch m {
	case ResultScalar:
		return "scalar"
	case ResultRows:
		return "rows"
	default:
		return "none"
	}
}

// ParseResultMode accepts none, scalar or rows in any case.
func ParseResultMode(s string) (ResultMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return ResultNone, nil
	case "scalar":
		return ResultScalar, nil
	case "rows":
		return ResultRows, nil
	}
	return ResultNone, fmt.Errorf("unknown result mode %q (want none, scalar or rows)", s)
}

func (m ResultMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *ResultMode) UnmarshalText(b []byte) error {
	v, err := ParseResultMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Config describes one stress run.
type Config struct {
	SQL         string     `json:"sql" yaml:"sql"`
	Iterations  int        `json:"iterations" yaml:"iterations"`
	Concurrency int        `json:"concurrency" yaml:"concurrency"`
	DelayMs     int        `json:"delay_ms" yaml:"delay_ms"`
	TimeoutSec  int        `json:"timeout_sec" yaml:"timeout_sec"`
	ResultMode  ResultMode `json:"result_mode" yaml:"result_mode"`
	MaxRows     int        `json:"max_rows" yaml:"max_rows"`

	// Open-loop pacing across all workers, queries per second. 0 = unpaced.
	TargetRate float64 `json:"target_rate,omitempty" yaml:"target_rate,omitempty"`
	// Render SQL as a template for every iteration.
	Templated bool `json:"templated,omitempty" yaml:"templated,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		SQL:         "SELECT CURRENT_TIMESTAMP AS now",
		Iterations:  50,
		Concurrency: 10,
		DelayMs:     0,
		TimeoutSec:  30,
		ResultMode:  ResultScalar,
		MaxRows:     10,
	}
}

// Normalize clamps every numeric field into its valid range.
func (c Config) Normalize() Config {
	c.Iterations = max(1, c.Iterations)
	c.Concurrency = max(1, c.Concurrency)
	c.DelayMs = max(0, c.DelayMs)
	c.TimeoutSec = max(1, c.TimeoutSec)
	c.MaxRows = max(0, c.MaxRows)
	if c.TargetRate < 0 {
		c.TargetRate = 0
	}
	return c
}

func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

func (c Config) Delay() time.Duration {
	return time.Duration(c.DelayMs) * time.Millisecond
}

// ErrorKind classifies why a single call failed.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindTimeout
	KindConnection
	KindStatement
	KindCancelled
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "Timeout"
	case KindConnection:
		return "ConnectionFailure"
	case KindStatement:
		return "StatementError"
	case KindCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// CallError is a classified per-call failure.
type CallError struct {
	Kind ErrorKind
	Err  error
}

func (e *CallError) Error() string {
	msg := "<nil>"
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return e.Kind.String() + ": " + msg
}

func (e *CallError) Unwrap() error { return e.Err }

// KindOf returns the kind of a CallError anywhere in err's chain.
func KindOf(err error) ErrorKind {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

// Outcome is the result of one iteration: a latency or an error.
type Outcome struct {
	Latency time.Duration
	Err     *CallError
}

func (o Outcome) OK() bool { return o.Err == nil }

// LatencyMs is the latency truncated to whole milliseconds.
func (o Outcome) LatencyMs() int64 { return o.Latency.Milliseconds() }

// Result is the aggregate of a finished run.
type Result struct {
	ID              string     `json:"id" yaml:"id"`
	SQL             string     `json:"sql" yaml:"sql"`
	ResultMode      ResultMode `json:"result_mode" yaml:"result_mode"`
	TotalIterations int        `json:"total_iterations" yaml:"total_iterations"`
	Concurrency     int        `json:"concurrency" yaml:"concurrency"`
	StartedAt       time.Time  `json:"started_at" yaml:"started_at"`
	FinishedAt      time.Time  `json:"finished_at" yaml:"finished_at"`
	DurationMs      int64      `json:"duration_ms" yaml:"duration_ms"`
	SuccessCount    int        `json:"success_count" yaml:"success_count"`
	ErrorCount      int        `json:"error_count" yaml:"error_count"`
	AvgMs           int64      `json:"avg_ms" yaml:"avg_ms"`
	P50Ms           int64      `json:"p50_ms" yaml:"p50_ms"`
	P95Ms           int64      `json:"p95_ms" yaml:"p95_ms"`
	P99Ms           int64      `json:"p99_ms" yaml:"p99_ms"`
	MinMs           int64      `json:"min_ms" yaml:"min_ms"`
	MaxMs           int64      `json:"max_ms" yaml:"max_ms"`
	ThroughputQPS   float64    `json:"throughput_qps" yaml:"throughput_qps"`
	ErrorSamples    []string   `json:"error_samples" yaml:"error_samples"`
	SampleRows      [][]string `json:"sample_rows" yaml:"sample_rows"`
	Cancelled       bool       `json:"cancelled" yaml:"cancelled"`
}
