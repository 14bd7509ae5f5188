package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"text/template"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"sqlstress/internal/pool"
	"sqlstress/internal/stats"
)

const (
	// MaxErrorSamples bounds how many error messages a result keeps.
	MaxErrorSamples = 5

	tickInterval = 200 * time.Millisecond
)

// ErrNoProvider is returned by Run when the runner has no connection source.
var ErrNoProvider = errors.New("no connection provider configured")

// StatsSnapshot is sent over the channel
type StatsSnapshot struct {
	Total    int
	Requests uint64
	Success  uint64
	Fail     uint64
	Inflight int64

	// Failed share of completed calls, percent
	ErrorRate float64

	// Pre-calculated percentiles for the UI (cheap copy)
	P50ServiceMs  float64
	P90ServiceMs  float64
	P99ServiceMs  float64
	MeanServiceMs float64
	MaxServiceMs  int64
}

// StatsUpdateChan is the channel type
type StatsUpdateChan chan StatsSnapshot

// Runner executes a single run. Create a new one per run.
type Runner struct {
	Cfg      Config
	Provider pool.Provider
	Stats    *stats.Stats
	Logger   *slog.Logger

	// Event Channel
	Updates StatsUpdateChan

	engine   *TemplateEngine
	inflight int64
}

func NewRunner(cfg Config, provider pool.Provider, updates StatsUpdateChan) *Runner {
	if updates == nil {
		// Avoid nil panics if not provided
		updates = make(StatsUpdateChan, 10)
	}

	return &Runner{
		Cfg:      cfg.Normalize(),
		Provider: provider,
		Stats:    stats.NewStats(),
		Logger:   slog.Default(),
		Updates:  updates,
		engine:   NewTemplateEngine(),
	}
}

// StartTickLoop starts a goroutine that pushes stats updates
func (r *Runner) StartTickLoop(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.sendUpdate()
			}
		}
	}()
}

func (r *Runner) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Total:         r.Cfg.Iterations,
		Requests:      atomic.LoadUint64(&r.Stats.Requests),
		Success:       atomic.LoadUint64(&r.Stats.Success),
		Fail:          atomic.LoadUint64(&r.Stats.Fail),
		Inflight:      atomic.LoadInt64(&r.inflight),
		ErrorRate:     r.Stats.ErrorRate(),
		P50ServiceMs:  r.Stats.GetP50Service(),
		P90ServiceMs:  r.Stats.GetP90Service(),
		P99ServiceMs:  r.Stats.GetP99Service(),
		MeanServiceMs: r.Stats.MeanServiceMs(),
		MaxServiceMs:  r.Stats.ServiceTime.Max() / 1000,
	}
}

func (r *Runner) sendUpdate() {
	// Non-blocking send
	select {
	case r.Updates <- r.Snapshot():
	default:
		// Drop update if channel full, UI acts as backpressure
	}
}

type runState struct {
	cfg       Config
	exec      Executor
	tmpl      *template.Template
	limiter   *rate.Limiter
	latencies *Sink[int64]
	errs      *Sink[string]
	rows      *Sink[[]string]
	next      atomic.Int64
	failed    atomic.Int64
	cancelled atomic.Int64
}

// Run executes Cfg.Iterations calls on exactly Cfg.Concurrency workers and
// blocks until every worker has returned. Per-call failures are counted in
// the result; the error is reserved for runs that cannot start.
//
// Cancelling ctx stops workers from taking new iterations (those are
// recorded as Cancelled errors). Calls already in flight run to completion
// or to their own timeout, so every acquired connection is released.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if r.Provider == nil {
		return nil, ErrNoProvider
	}
	cfg := r.Cfg

	st := &runState{
		cfg:       cfg,
		latencies: NewSink[int64](cfg.Iterations),
		errs:      NewSink[string](MaxErrorSamples),
		rows:      NewSink[[]string](cfg.MaxRows),
	}
	st.exec = Executor{Mode: cfg.ResultMode, Timeout: cfg.Timeout(), Rows: st.rows}

	if cfg.Templated {
		t, err := r.engine.Parse("sql", cfg.SQL)
		if err != nil {
			return nil, fmt.Errorf("parse sql template: %w", err)
		}
		st.tmpl = t
	}
	if cfg.TargetRate > 0 {
		st.limiter = rate.NewLimiter(rate.Limit(cfg.TargetRate), 1)
	}

	tickCtx, stopTicks := context.WithCancel(context.Background())
	r.StartTickLoop(tickCtx, tickInterval)

	r.Logger.Info("run started",
		"iterations", cfg.Iterations,
		"concurrency", cfg.Concurrency,
		"mode", cfg.ResultMode.String(),
		"timeout_sec", cfg.TimeoutSec,
	)

	started := time.Now()
	var wg sync.WaitGroup
	for w := range min(cfg.Concurrency, cfg.Iterations) {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for ctx.Err() == nil {
				i := st.next.Add(1) - 1
				if i >= int64(cfg.Iterations) {
					return
				}
				r.record(st, r.runUnit(ctx, st, worker, int(i)))
			}
		}(w)
	}
	wg.Wait()
	r.recordUnstarted(ctx, st)
	finished := time.Now()

	stopTicks()
	r.sendUpdate()

	res := r.aggregate(st, started, finished)
	r.Logger.Info("run finished",
		"id", res.ID,
		"success", res.SuccessCount,
		"errors", res.ErrorCount,
		"duration_ms", res.DurationMs,
		"p95_ms", res.P95Ms,
		"cancelled", res.Cancelled,
	)
	return res, nil
}

func (r *Runner) runUnit(ctx context.Context, st *runState, worker, iteration int) Outcome {
	if err := ctx.Err(); err != nil {
		return cancelledOutcome(err)
	}

	if st.cfg.DelayMs > 0 {
		t := time.NewTimer(st.cfg.Delay())
		select {
		case <-ctx.Done():
			t.Stop()
			return cancelledOutcome(ctx.Err())
		case <-t.C:
		}
	}

	if st.limiter != nil {
		if err := st.limiter.Wait(ctx); err != nil {
			return cancelledOutcome(err)
		}
	}

	sqlText := st.cfg.SQL
	if st.tmpl != nil {
		rendered, err := r.engine.Execute(st.tmpl, TemplateData{
			Iteration: iteration,
			Worker:    worker,
			UUID:      uuid.NewString(),
		})
		if err != nil {
			return Outcome{Err: &CallError{Kind: KindStatement, Err: fmt.Errorf("render sql template: %w", err)}}
		}
		sqlText = rendered
	}

	return r.callOnce(ctx, st, sqlText)
}

func cancelledOutcome(err error) Outcome {
	return Outcome{Err: &CallError{Kind: KindCancelled, Err: err}}
}

// callOnce times acquire + execute of one scoped connection. Run
// cancellation does not reach the call; only its own timeout bounds it.
func (r *Runner) callOnce(ctx context.Context, st *runState, sqlText string) (out Outcome) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), st.cfg.Timeout())
	defer cancel()

	atomic.AddInt64(&r.inflight, 1)
	defer atomic.AddInt64(&r.inflight, -1)

	defer func() {
		if p := recover(); p != nil {
			out = Outcome{Err: &CallError{Kind: KindUnknown, Err: fmt.Errorf("panic: %v", p)}}
		}
	}()

	start := time.Now()
	conn, err := r.Provider.Acquire(callCtx)
	if err != nil {
		return Outcome{Err: &CallError{Kind: kindFor(callCtx, err, KindConnection), Err: err}}
	}
	defer conn.Close()

	if err := st.exec.Execute(callCtx, conn, sqlText); err != nil {
		var ce *CallError
		if !errors.As(err, &ce) {
			ce = &CallError{Kind: KindUnknown, Err: err}
		}
		return Outcome{Err: ce}
	}
	return Outcome{Latency: time.Since(start)}
}

func (r *Runner) record(st *runState, out Outcome) {
	if out.OK() {
		st.latencies.Add(out.LatencyMs())
		r.Stats.AddSuccess(out.Latency)
		return
	}

	st.failed.Add(1)
	if out.Err.Kind == KindCancelled {
		st.cancelled.Add(1)
	} else {
		r.Logger.Debug("call failed", "kind", out.Err.Kind.String(), "err", out.Err.Err)
	}
	st.errs.Add(out.Err.Error())
	r.Stats.AddFailure()
}

// recordUnstarted counts the iterations no worker claimed before the run
// was cancelled, without touching them one by one.
func (r *Runner) recordUnstarted(ctx context.Context, st *runState) {
	left := int64(st.cfg.Iterations) - min(st.next.Load(), int64(st.cfg.Iterations))
	if left <= 0 {
		return
	}
	out := cancelledOutcome(ctx.Err())
	st.failed.Add(left)
	st.cancelled.Add(left)
	st.errs.Add(out.Err.Error())
	r.Stats.AddFailures(uint64(left))
}

func (r *Runner) aggregate(st *runState, started, finished time.Time) *Result {
	cfg := st.cfg
	sum := stats.Summarize(st.latencies.Snapshot())
	elapsed := finished.Sub(started)

	qps := 0.0
	if elapsed > 0 {
		qps = float64(sum.Count) / elapsed.Seconds()
	}

	return &Result{
		ID:              uuid.NewString(),
		SQL:             cfg.SQL,
		ResultMode:      cfg.ResultMode,
		TotalIterations: cfg.Iterations,
		Concurrency:     cfg.Concurrency,
		StartedAt:       started,
		FinishedAt:      finished,
		DurationMs:      elapsed.Milliseconds(),
		SuccessCount:    sum.Count,
		ErrorCount:      int(st.failed.Load()),
		AvgMs:           sum.AvgMs,
		P50Ms:           sum.P50Ms,
		P95Ms:           sum.P95Ms,
		P99Ms:           sum.P99Ms,
		MinMs:           sum.MinMs,
		MaxMs:           sum.MaxMs,
		ThroughputQPS:   qps,
		ErrorSamples:    st.errs.Snapshot(),
		SampleRows:      st.rows.Snapshot(),
		Cancelled:       st.cancelled.Load() > 0,
	}
}
