package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"sqlstress/internal/pool"
	"sqlstress/internal/report"
	"sqlstress/internal/runner"
)

// Options control the headless output.
type Options struct {
	OutPrefix string
	Target    string
	Progress  bool
}

// Start runs cfg against provider, printing progress and a summary to w.
// A returned error means the run could not start.
func Start(ctx context.Context, w io.Writer, cfg runner.Config, provider pool.Provider, opts Options) (*runner.Result, error) {
	cfg = cfg.Normalize()
	printHeader(w, cfg, opts.Target)

	updates := make(runner.StatsUpdateChan, 100)
	r := runner.NewRunner(cfg, provider, updates)

	type outcome struct {
		res *runner.Result
		err error
	}
	done := make(chan outcome, 1)
	startTime := time.Now()
	go func() {
		res, err := r.Run(ctx)
		done <- outcome{res, err}
	}()

	for {
		select {
		case snap := <-updates:
			if opts.Progress {
				printProgress(w, snap, time.Since(startTime))
			}
		case o := <-done:
			if o.err != nil {
				fmt.Fprintf(w, "\n❌ Run failed: %v\n", o.err)
				return nil, o.err
			}
			if opts.Progress {
				printProgress(w, r.Snapshot(), time.Since(startTime))
			}
			printSummary(w, o.res)
			handleAutoReport(w, o.res, opts.OutPrefix)
			return o.res, nil
		}
	}
}

func printHeader(w io.Writer, cfg runner.Config, target string) {
	fmt.Fprintf(w, "\n🚀 STARTING SQLSTRESS RUN\n")
	fmt.Fprintf(w, "======================================================================\n")
	if target != "" {
		fmt.Fprintf(w, "Target      : %s\n", target)
	}
	fmt.Fprintf(w, "SQL         : %s\n", oneLine(cfg.SQL, 60))
	fmt.Fprintf(w, "Iterations  : %d\n", cfg.Iterations)
	fmt.Fprintf(w, "Concurrency : %d\n", cfg.Concurrency)
	fmt.Fprintf(w, "Delay       : %dms\n", cfg.DelayMs)
	if cfg.TargetRate > 0 {
		fmt.Fprintf(w, "Rate        : %.1f q/s\n", cfg.TargetRate)
	}
	fmt.Fprintf(w, "Timeout     : %ds\n", cfg.TimeoutSec)
	fmt.Fprintf(w, "Result mode : %s (max rows %d)\n", cfg.ResultMode, cfg.MaxRows)
	fmt.Fprintf(w, "======================================================================\n\n")
}

func printProgress(w io.Writer, snap runner.StatsSnapshot, elapsed time.Duration) {
	pct := 0.0
	if snap.Total > 0 {
		pct = float64(snap.Requests) / float64(snap.Total)
	}
	qps := 0.0
	if elapsed.Seconds() > 0 {
		qps = float64(snap.Requests) / elapsed.Seconds()
	}
	fmt.Fprintf(w, "\r%s %3.0f%% | %d/%d | Inf: %3d | QPS: %.1f | OK: %d | Err: %d (%.1f%%)",
		progressBar(pct, 20), pct*100,
		snap.Requests, snap.Total,
		snap.Inflight,
		qps,
		snap.Success,
		snap.Fail,
		snap.ErrorRate,
	)
}

func progressBar(pct float64, width int) string {
	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("-", width-filled) + "]"
}

func printSummary(w io.Writer, res *runner.Result) {
	title := "📊 RUN RESULTS"
	if res.Cancelled {
		title += " (cancelled)"
	}
	fmt.Fprintf(w, "\n\n%s\n", title)
	fmt.Fprintf(w, "======================================================================\n")
	fmt.Fprintf(w, "Run ID         : %s\n", res.ID)
	fmt.Fprintf(w, "Total Duration : %s\n", time.Duration(res.DurationMs)*time.Millisecond)
	fmt.Fprintf(w, "Iterations     : %d\n", res.TotalIterations)
	fmt.Fprintf(w, "Success        : %d\n", res.SuccessCount)
	fmt.Fprintf(w, "Failures       : %d\n", res.ErrorCount)
	fmt.Fprintf(w, "Throughput     : %.2f q/s\n", res.ThroughputQPS)
	fmt.Fprintf(w, "\n⏱️  LATENCY (ms) [Success Only]\n")
	fmt.Fprintf(w, "   Avg : %d\n", res.AvgMs)
	fmt.Fprintf(w, "   P50 : %d\n", res.P50Ms)
	fmt.Fprintf(w, "   P95 : %d\n", res.P95Ms)
	fmt.Fprintf(w, "   P99 : %d\n", res.P99Ms)
	fmt.Fprintf(w, "   Min : %d\n", res.MinMs)
	fmt.Fprintf(w, "   Max : %d\n", res.MaxMs)

	if len(res.ErrorSamples) > 0 {
		fmt.Fprintf(w, "\n❌ ERROR SAMPLES\n")
		for _, e := range res.ErrorSamples {
			fmt.Fprintf(w, "   %s\n", oneLine(e, 100))
		}
	}

	if len(res.SampleRows) > 0 {
		fmt.Fprintf(w, "\n📄 SAMPLE ROWS\n")
		for _, row := range res.SampleRows {
			fmt.Fprintf(w, "   %s\n", oneLine(strings.Join(row, " | "), 100))
		}
	}
	fmt.Fprintf(w, "======================================================================\n")
}

func handleAutoReport(w io.Writer, res *runner.Result, prefix string) {
	if prefix == "" {
		return
	}

	fmt.Fprintf(w, "\n💾 Generating reports with prefix: %s\n", prefix)
	paths, err := report.Export(res, prefix)
	if err != nil {
		fmt.Fprintf(w, "❌ Report failed: %v\n", err)
		return
	}
	fmt.Fprintf(w, "✅ Reports saved: %s\n", strings.Join(paths, ", "))
}

func oneLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > limit {
		return s[:limit-3] + "..."
	}
	return s
}
